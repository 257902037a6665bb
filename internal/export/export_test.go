package export

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"gridvend/internal/store"
)

func sampleRows() []store.PendingVendingRow {
	return []store.PendingVendingRow{
		{
			OrderID:      1,
			FirstName:    pgtype.Text{String: "Jane", Valid: true},
			LastName:     pgtype.Text{String: "Doe", Valid: true},
			SerialNumber: pgtype.Text{String: "47000001", Valid: true},
			Amount:       35000,
			MaxCurrent:   pgtype.Float8{Float64: 4.35, Valid: true},
			Token:        pgtype.Text{String: "TOK-1", Valid: true},
			PurchasedAt: pgtype.Timestamptz{
				Time: time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC), Valid: true,
			},
		},
		{
			OrderID:   2,
			FirstName: pgtype.Text{String: "John", Valid: true},
			LastName:  pgtype.Text{String: "Mark", Valid: true},
			Amount:    42000,
		},
	}
}

func TestWorkbook(t *testing.T) {
	f, err := Workbook(sampleRows())
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}

	for i, want := range headers {
		if rows[0][i] != want {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], want)
		}
	}

	first := rows[1]
	if first[1] != "Jane Doe" {
		t.Errorf("customer name = %q", first[1])
	}
	if first[2] != "47000001" {
		t.Errorf("meter no = %q", first[2])
	}
	if first[7] != Operator {
		t.Errorf("operator = %q, want %q", first[7], Operator)
	}
	if first[8] != "TOK-1" {
		t.Errorf("token = %q", first[8])
	}
	if first[9] != "2024-06-01 14:30:00" {
		t.Errorf("created date = %q", first[9])
	}

	style, err := f.GetCellStyle(sheet, "A1")
	if err != nil {
		t.Fatalf("GetCellStyle: %v", err)
	}
	if style == 0 {
		t.Error("header row should carry the bold style")
	}
}

func TestRecords(t *testing.T) {
	records := Records(sampleRows())
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	if records[0].CustomerName != "Jane Doe" {
		t.Errorf("customer name = %q", records[0].CustomerName)
	}
	if records[0].Operator != Operator {
		t.Errorf("operator = %q", records[0].Operator)
	}
	if records[0].TotalUnit != 4.35 {
		t.Errorf("total unit = %v", records[0].TotalUnit)
	}

	// Missing meter and purchase date render as empty strings.
	if records[1].MeterNo != "" || records[1].CreatedDate != "" {
		t.Errorf("unassigned order should have empty meter/date: %+v", records[1])
	}
	if records[1].TotalUnit != "" {
		t.Errorf("total unit without meter = %v", records[1].TotalUnit)
	}
}
