package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"gridvend/internal/store"
)

// Reference ids stamped onto meters created by import, where the sheet
// carries no such columns.
const (
	defaultCityID            = 1
	defaultManufacturerID    = 1
	defaultConnectionTypeID  = 1
	defaultConnectionGroupID = 1
	defaultTariffID          = 1
)

// pipelineError tags a row failure with the stage it happened in and the
// attributes being attempted, for the report's error payload.
type pipelineError struct {
	stage     Stage
	attempted map[string]string
	err       error
}

func (e *pipelineError) Error() string { return e.err.Error() }
func (e *pipelineError) Unwrap() error { return e.err }

func failStage(stage Stage, attempted map[string]string, err error) error {
	return &pipelineError{stage: stage, attempted: attempted, err: err}
}

// runBatch drives a parsed sheet through the per-row cascade. Every row runs
// in its own transaction: a failed row rolls back only its own writes and is
// reported, never aborting the batch. Reference-cache entries survive only
// when their row commits.
func (s *Service) runBatch(ctx context.Context, sheet *Sheet, p BatchParams) (*Report, error) {
	report := &Report{
		BatchID: uuid.New().String(),
		Columns: sheet.Header,
	}

	if len(sheet.Rows) == 0 {
		report.Message = "No valid data rows"
		return report, nil
	}
	if max := s.limits.MaxRows; max > 0 && len(sheet.Rows) > max {
		return nil, fmt.Errorf("file has %d data rows, limit is %d", len(sheet.Rows), max)
	}

	resolver := newReferenceResolver(p.MiniGridID, p.ClusterID)
	report.TotalRows = len(sheet.Rows)

	for _, row := range sheet.Rows {
		outcome := s.processRow(ctx, resolver, row, p)
		if outcome.Failed() {
			report.Failed++
			s.log.WarnContext(ctx, "import row failed",
				"batch_id", report.BatchID,
				"line", outcome.Line,
				"stage", outcome.Error.Stage,
				"error", outcome.Error.Message)
		}
		if len(report.Preview) < s.limits.PreviewRows {
			report.Preview = append(report.Preview, outcome)
		}
	}

	report.Message = "Import processed successfully"
	return report, nil
}

// processRow runs one row inside its own transaction and converts the result
// into an outcome. On failure the transaction and the resolver's pending
// cache entries are both discarded.
func (s *Service) processRow(ctx context.Context, resolver *referenceResolver, row ParsedRow, p BatchParams) RowOutcome {
	if row.Err != "" {
		return RowOutcome{
			Line: row.Line,
			Error: &RowError{
				Stage:     StageParse,
				Message:   row.Err,
				Attempted: cellsAsAttempted(row.Cells),
			},
		}
	}

	outcome := RowOutcome{Line: row.Line}
	err := s.db.RunInTx(ctx, func(q store.Querier) error {
		switch p.Kind {
		case KindCustomers:
			return s.customerRow(ctx, q, resolver, row.Fields, p, &outcome)
		case KindMeters:
			return s.meterRow(ctx, q, resolver, row.Fields, &outcome)
		default:
			return fmt.Errorf("unknown batch kind %q", p.Kind)
		}
	})
	if err != nil {
		resolver.discard()
		return RowOutcome{Line: row.Line, Error: asRowError(err, row.Fields)}
	}

	resolver.commit()
	return outcome
}

// customerRow resolves City then Person.
func (s *Service) customerRow(ctx context.Context, q store.Querier, resolver *referenceResolver, fields RawRow, p BatchParams, outcome *RowOutcome) error {
	cityRef, err := resolver.City(ctx, q, fields[colAddress])
	if err != nil {
		return failStage(StageCity, map[string]string{"name": fields[colAddress]}, err)
	}
	outcome.City = &cityRef

	// The phone cell doubles as phone#national-id in legacy exports.
	phone, nationalID := splitPhoneCell(fields[colPhone])

	person, existing, err := ResolvePerson(ctx, q, PersonInput{
		Name:       fields[colName],
		Surname:    fields[colSurname],
		Phone:      phone,
		NationalID: nationalID,
		ExternalID: fields[colExternalID],
		CityID:     cityRef.ID,
		MiniGridID: p.MiniGridID,
	})
	if err != nil {
		return failStage(StagePerson, fields, err)
	}
	outcome.Person = &EntityRef{ID: person.ID, Existing: existing}
	return nil
}

// meterRow runs the full cascade: MeterType, Person, Meter, device link,
// Order.
func (s *Service) meterRow(ctx context.Context, q store.Querier, resolver *referenceResolver, fields RawRow, outcome *RowOutcome) error {
	if addr := strings.TrimSpace(fields[colAddress]); addr != "" {
		cityRef, err := resolver.City(ctx, q, addr)
		if err != nil {
			return failStage(StageCity, map[string]string{"name": addr}, err)
		}
		outcome.City = &cityRef
	}

	mtRef, err := resolver.MeterType(ctx, q, fields[colTotalUnit], 1)
	if err != nil {
		return failStage(StageMeterType, map[string]string{"total_unit": fields[colTotalUnit]}, err)
	}
	outcome.MeterType = &mtRef

	cityID := int64(defaultCityID)
	if outcome.City != nil {
		cityID = outcome.City.ID
	}
	person, personExisting, err := ResolvePerson(ctx, q, PersonInput{
		Name:       fields[colCustomerName],
		Phone:      fields[colPhone],
		ExternalID: fields[colExternalID],
		CityID:     cityID,
	})
	if err != nil {
		return failStage(StagePerson, fields, err)
	}
	outcome.Person = &EntityRef{ID: person.ID, Existing: personExisting}

	meter, meterExisting, err := ResolveMeter(ctx, q, MeterInput{
		SerialNumber:      fields[colMeterNo],
		MeterTypeID:       mtRef.ID,
		ManufacturerID:    defaultManufacturerID,
		ConnectionTypeID:  defaultConnectionTypeID,
		ConnectionGroupID: defaultConnectionGroupID,
		TariffID:          defaultTariffID,
	})
	if err != nil {
		return failStage(StageMeter, fields, err)
	}
	outcome.Meter = &EntityRef{ID: meter.ID, Existing: meterExisting}

	if !meterExisting {
		if _, err := LinkPersonToMeter(ctx, q, person.ID, meter.SerialNumber); err != nil {
			return failStage(StageMeter, fields, err)
		}
	}

	order, err := s.vendOrder(ctx, q, fields, person, meter)
	if err != nil {
		return failStage(StageOrder, fields, err)
	}
	outcome.Order = &OrderRef{ID: order.ID, OrderID: order.OrderID}
	return nil
}

// vendOrder turns the row's vending fields into an order. Rows with a token
// record a completed electricity vend against the meter; token-less rows
// record a meter purchase that awaits assignment.
func (s *Service) vendOrder(ctx context.Context, q store.Querier, fields RawRow, person store.Person, meter store.Meter) (store.Order, error) {
	amountText := digitsAndDot(fields[colPrice])
	if amountText == "" {
		amountText = "0"
	}
	amount, err := strconv.ParseFloat(amountText, 64)
	if err != nil {
		return store.Order{}, fmt.Errorf("price %q is not numeric", fields[colPrice])
	}

	in := OrderInput{
		Type:               store.OrderTypeMeter,
		CustomerID:         person.ID,
		Amount:             amount,
		PurchasedAt:        parseVendDate(fields[colCreateDate]),
		FirstName:          person.Name,
		LastName:           person.Surname,
		PhoneNumber:        person.Phone,
		ExternalCustomerID: fields[colExternalID],
	}
	if token := strings.TrimSpace(fields[colToken]); token != "" {
		in.Type = store.OrderTypeElectricity
		in.Token = token
		in.MeterID = meter.ID
	}

	return BuildOrder(ctx, q, in)
}

// asRowError converts a pipeline failure into the report form. Untagged
// errors (transaction plumbing and the like) default to the order stage.
func asRowError(err error, fields RawRow) *RowError {
	if pe, ok := err.(*pipelineError); ok {
		return &RowError{Stage: pe.stage, Message: pe.err.Error(), Attempted: pe.attempted}
	}
	return &RowError{Stage: StageOrder, Message: err.Error(), Attempted: fields}
}

func splitPhoneCell(cell string) (phone, nationalID string) {
	phone, nationalID, _ = strings.Cut(cell, "#")
	return strings.TrimSpace(phone), strings.TrimSpace(nationalID)
}

func cellsAsAttempted(cells []string) map[string]string {
	m := make(map[string]string, len(cells))
	for i, c := range cells {
		m[fmt.Sprintf("col_%d", i+1)] = c
	}
	return m
}
