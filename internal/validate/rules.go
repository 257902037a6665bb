package validate

// Named rule sets per entity type. The field names mirror the attribute maps
// the import pipeline and the web layer build before creation.
var ruleSets = map[string]RuleSet{
	"city.create": {
		"name": {required()},
	},

	"metertype.create": {
		"max_current": {required(), numeric(), minFloat(0)},
		"phase":       {required(), oneOf("1", "3")},
	},

	// Import sheets carry only the bare person attributes; defaults fill the
	// rest, so only the identity fields are checked.
	"person.import": {
		"name":    {required()},
		"surname": {required()},
		"phone":   {required(), digits()},
	},

	"person.create": {
		"name":       {required(), minLen(3)},
		"surname":    {required(), minLen(3)},
		"phone":      {required(), minLen(11), digits()},
		"tariff_id":  {required()},
		"geo_points": {required()},
		// manufacturer and meter_type ride along with the person payload the
		// way the registration flow supplies them.
		"manufacturer": {required()},
		"meter_type":   {required()},
	},

	"meter.create": {
		"serial_number":       {required()},
		"meter_type_id":       {required(), numeric()},
		"manufacturer_id":     {required(), numeric()},
		"connection_type_id":  {required(), numeric()},
		"connection_group_id": {required(), numeric()},
		"tariff_id":           {required(), numeric()},
	},

	"order.create": {
		"type":   {required(), oneOf("meter_order", "meter_electricity_order", "product_order")},
		"amount": {required(), numeric(), minFloat(0)},
	},

	// Electricity orders arriving over the API are completed vends, so the
	// vend result must come with them.
	"order.create_electricity": {
		"token":        {required()},
		"power_code":   {required()},
		"purchased_at": {required()},
	},

	"order.assign_meter": {
		"external_customer_id": {required()},
		"serial_number":        {required()},
		"max_current":          {required(), numeric()},
		"phase":                {required(), oneOf("1", "3")},
		"phone":                {required()},
	},
}
