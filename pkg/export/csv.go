// Package export writes case lists as CSV or XLSX files.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
)

// bom makes spreadsheet tools detect UTF-8.
const bom = "\ufeff"

// DynamicHeaders returns the union of keys over rows, sorted.
func DynamicHeaders(rows []map[string]any) []string {
	seen := make(map[string]struct{})
	var headers []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			headers = append(headers, k)
		}
	}
	sort.Strings(headers)
	return headers
}

// WriteCSV writes rows under headers. The output starts with a UTF-8 BOM.
// Header cells are always quoted. Numbers and booleans are written as is;
// text is quoted when it contains a comma, semicolon, quote or line break.
// Missing and nil values are empty cells.
func WriteCSV(w io.Writer, headers []string, rows []map[string]any) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom); err != nil {
		return err
	}

	for i, h := range headers {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteString(quote(h))
	}
	bw.WriteByte('\n')

	for _, row := range rows {
		for i, h := range headers {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(cell(row[h]))
		}
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteRecordsCSV writes records with every column of a schema, hidden ones
// included.
// Header cells carry the column labels; values use the column display text.
func WriteRecordsCSV(w io.Writer, columns []cases.Column, records []cases.Record) error {
	headers, rows := tabulate(columns, records)
	return WriteCSV(w, headers, rows)
}

// tabulate projects records onto columns, keyed by label.
func tabulate(columns []cases.Column, records []cases.Record) ([]string, []map[string]any) {
	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.Label
	}

	rows := make([]map[string]any, len(records))
	for i, r := range records {
		row := make(map[string]any, len(columns))
		for _, col := range columns {
			v, ok := r[col.Key]
			if !ok || v == nil {
				continue
			}
			if col.Kind == cases.ColumnText && isNumeric(v) {
				row[col.Label] = v
				continue
			}
			row[col.Label] = col.Display(r)
		}
		rows[i] = row
	}
	return headers, rows
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, int, int64, bool, json.Number:
		return true
	}
	return false
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return quoteIfNeeded(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return quoteIfNeeded(x.String())
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return quoteIfNeeded(fmt.Sprint(x))
		}
		return quoteIfNeeded(string(data))
	}
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ",;\"\r\n") {
		return quote(s)
	}
	return s
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FileName returns a download name such as "cases_personal_20240630_091500".
// Callers append the extension.
func FileName(prefix string, now time.Time) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "cases"
	}
	prefix = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, prefix)
	return prefix + "_" + now.Format("20060102_150405")
}
