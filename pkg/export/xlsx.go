package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/xuri/excelize/v2"
)

// Format selects the file type written by Write.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" and "xlsx", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Write exports records in format with every column of a schema.
func Write(w io.Writer, format Format, sheet string, columns []cases.Column, records []cases.Record) error {
	headers, rows := tabulate(columns, records)
	switch format {
	case FormatCSV:
		return WriteCSV(w, headers, rows)
	case FormatXLSX:
		return WriteXLSX(w, sheet, headers, rows)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// WriteXLSX writes rows to a workbook with a single sheet. The header row is
// bold and frozen.
func WriteXLSX(w io.Writer, sheet string, headers []string, rows []map[string]any) error {
	if sheet == "" {
		sheet = "Cases"
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		values := make([]any, len(headers))
		for j, h := range headers {
			values[j] = row[h]
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellName, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if len(headers) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(headers), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("freeze header: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
