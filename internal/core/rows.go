package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ParseTabular decodes an uploaded file into a Sheet. The decoder is picked
// from the file extension: csv/txt go through the CSV reader, xlsx through
// excelize. Metadata rows (at most one non-empty cell) are dropped before the
// header is located; the first surviving row becomes the header.
func ParseTabular(fileName string, data []byte) (*Sheet, error) {
	var records [][]string
	var err error

	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), ".")) {
	case "csv", "txt":
		records, err = parseCSV(sanitizeUTF8(data))
	case "xlsx", "xlsm":
		records, err = parseXLSX(data)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(fileName))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fileName, err)
	}

	// A file that decodes to nothing is not an error: the batch report
	// carries the "no data" message instead.
	return buildSheet(records), nil
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func parseXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	return f.GetRows(sheet)
}

// buildSheet strips metadata rows, resolves the header, and keys the
// remaining rows by header name. Rows whose cell count disagrees with the
// header are kept as parse errors rather than silently dropped.
func buildSheet(records [][]string) *Sheet {
	type numbered struct {
		line  int
		cells []string
	}

	var rows []numbered
	for i, rec := range records {
		if countNonEmpty(rec) <= 1 {
			continue // metadata or blank row
		}
		rows = append(rows, numbered{line: i + 1, cells: rec})
	}
	if len(rows) == 0 {
		return &Sheet{}
	}

	header := normalizeHeader(rows[0].cells)
	sheet := &Sheet{Header: header}

	for _, row := range rows[1:] {
		parsed := ParsedRow{Line: row.line, Cells: row.cells}
		if len(row.cells) != len(header) {
			parsed.Err = fmt.Sprintf("row has %d cells, header has %d", len(row.cells), len(header))
		} else {
			fields := make(RawRow, len(header))
			for i, h := range header {
				fields[h] = strings.TrimSpace(row.cells[i])
			}
			parsed.Fields = fields
		}
		sheet.Rows = append(sheet.Rows, parsed)
	}
	return sheet
}

// normalizeHeader trims header cells and substitutes positional names
// (col_1, col_2, ...) for empty ones.
func normalizeHeader(cells []string) []string {
	header := make([]string, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			c = fmt.Sprintf("col_%d", i+1)
		}
		header[i] = c
	}
	return header
}

func countNonEmpty(row []string) int {
	n := 0
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// the CSV reader never chokes on exported legacy encodings.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}
	return buf.Bytes()
}
