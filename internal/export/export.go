// Package export renders pending vending records as the VendingRecords.xlsx
// workbook external vendors consume, or as plain JSON rows for debugging.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"gridvend/internal/store"
)

// FileName is the download name of the generated workbook.
const FileName = "VendingRecords.xlsx"

// Operator is the point-of-sale identifier stamped on every exported row.
const Operator = "pos1"

var headers = []string{
	"Customer No.",
	"Customer Name",
	"Meter No.",
	"Price",
	"Tax",
	"Total Unit",
	"Total Paid",
	"Operator",
	"Token",
	"Created Date",
}

// VendingRecord is the JSON form of one export row, returned in debug mode.
type VendingRecord struct {
	CustomerNo   string  `json:"customer_no"`
	CustomerName string  `json:"customer_name"`
	MeterNo      string  `json:"meter_no"`
	Price        float64 `json:"price"`
	Tax          string  `json:"tax"`
	TotalUnit    any     `json:"total_unit"`
	TotalPaid    string  `json:"total_paid"`
	Operator     string  `json:"operator"`
	Token        string  `json:"token"`
	CreatedDate  string  `json:"created_date"`
}

// Records converts pending orders to the JSON export shape.
func Records(rows []store.PendingVendingRow) []VendingRecord {
	out := make([]VendingRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, VendingRecord{
			CustomerName: customerName(r),
			MeterNo:      r.SerialNumber.String,
			Price:        r.Amount,
			TotalUnit:    totalUnit(r),
			Operator:     Operator,
			Token:        r.Token.String,
			CreatedDate:  createdDate(r),
		})
	}
	return out
}

// Workbook builds the VendingRecords sheet: the ten-column header in bold,
// one row per pending order beneath it.
func Workbook(rows []store.PendingVendingRow) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "J1", bold); err != nil {
		return nil, err
	}

	for i, r := range rows {
		line := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, line)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, "")
		set(2, customerName(r))
		set(3, r.SerialNumber.String)
		set(4, r.Amount)
		set(5, "")
		set(6, totalUnit(r))
		set(7, "")
		set(8, Operator)
		set(9, r.Token.String)
		set(10, createdDate(r))
	}

	return f, nil
}

func customerName(r store.PendingVendingRow) string {
	return fmt.Sprintf("%s %s", r.FirstName.String, r.LastName.String)
}

func totalUnit(r store.PendingVendingRow) any {
	if !r.MaxCurrent.Valid {
		return ""
	}
	return r.MaxCurrent.Float64
}

func createdDate(r store.PendingVendingRow) string {
	if !r.PurchasedAt.Valid {
		return ""
	}
	return r.PurchasedAt.Time.Format("2006-01-02 15:04:05")
}
