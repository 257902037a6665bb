// Package core implements the bulk-import reconciliation pipeline: parsing
// tabular uploads into keyed rows, resolving or creating the entities each
// row references, and assembling a per-row outcome report. It has no HTTP
// dependencies and is driven by the web layer.
package core

// RawRow maps column-header names to cell values for one data row.
type RawRow map[string]string

// ParsedRow is a single data row after header resolution. Rows whose cell
// count does not match the header carry Err instead of Fields and surface as
// parse errors in the batch report.
type ParsedRow struct {
	Line   int      // 1-based row number in the source file
	Cells  []string // original cells, kept as the attempted payload on failure
	Fields RawRow   // nil when Err is set
	Err    string
}

// Sheet is the parsed form of an uploaded file.
type Sheet struct {
	Header []string
	Rows   []ParsedRow
}

// Stage identifies which pipeline step produced a row error.
type Stage string

const (
	StageParse     Stage = "parse"
	StageCity      Stage = "city"
	StageMeterType Stage = "meter_type"
	StagePerson    Stage = "person"
	StageMeter     Stage = "meter"
	StageOrder     Stage = "order"
)

// EntityRef points at a resolved entity and records whether it already
// existed or was created by this row.
type EntityRef struct {
	ID       int64 `json:"id"`
	Existing bool  `json:"existing"`
}

// OrderRef points at an order created for a row.
type OrderRef struct {
	ID      int64  `json:"id"`
	OrderID string `json:"order_id"`
}

// RowError describes a failed row: the stage that failed, its message, and
// the attributes that were being attempted when it did.
type RowError struct {
	Stage     Stage             `json:"stage"`
	Message   string            `json:"message"`
	Attempted map[string]string `json:"data_attempted,omitempty"`
}

// RowOutcome is the per-row result bundled into the batch report. A row is
// either a success aggregate or an error, never both.
type RowOutcome struct {
	Line      int        `json:"line"`
	City      *EntityRef `json:"city,omitempty"`
	MeterType *EntityRef `json:"meter_type,omitempty"`
	Person    *EntityRef `json:"person,omitempty"`
	Meter     *EntityRef `json:"meter,omitempty"`
	Order     *OrderRef  `json:"order,omitempty"`
	Error     *RowError  `json:"error,omitempty"`
}

// Failed reports whether the row ended in an error outcome.
func (o RowOutcome) Failed() bool {
	return o.Error != nil
}

// Report summarizes a completed batch. Preview holds the first rows only;
// the full outcome set is not returned to the caller.
type Report struct {
	BatchID   string       `json:"batch_id"`
	Message   string       `json:"message"`
	Columns   []string     `json:"columns,omitempty"`
	TotalRows int          `json:"total_rows"`
	Failed    int          `json:"failed_rows"`
	Preview   []RowOutcome `json:"preview"`
}

// Kind selects which reconciliation cascade a batch runs.
type Kind string

const (
	// KindCustomers resolves City and Person per row.
	KindCustomers Kind = "customers"
	// KindMeters runs the full cascade per row: MeterType, Person, Meter,
	// device link, and Order.
	KindMeters Kind = "meters"
)

// BatchParams carries the upload context the pipeline needs besides the
// file itself.
type BatchParams struct {
	Kind       Kind
	FileName   string
	MiniGridID int64 // required for KindCustomers
	ClusterID  int64 // required for KindCustomers
}

// Column headers the import sheet formats use.
const (
	colName         = "Name"
	colCustomerName = "Customer Name"
	colSurname      = "Surname"
	colPhone        = "Phone"
	colAddress      = "Address"
	colExternalID   = "Id"
	colMeterNo      = "Meter No."
	colPrice        = "Price"
	colTotalUnit    = "Total Unit"
	colToken        = "Token"
	colCreateDate   = "Create Date"
)
