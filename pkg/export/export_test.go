package export

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/xuri/excelize/v2"
)

func TestWriteCSV_DynamicHeaders(t *testing.T) {
	rows := []map[string]any{{"a": 1, "b": 2}}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, DynamicHeaders(rows), rows); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "\ufeff\"a\",\"b\"\n1,2\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteCSV() = %q, want %q", got, want)
	}
}

func TestDynamicHeaders_Union(t *testing.T) {
	rows := []map[string]any{
		{"policyNo": "P1", "applicationNo": "A1"},
		{"applicationNo": "A2", "remark": "x"},
	}
	want := []string{"applicationNo", "policyNo", "remark"}
	if got := DynamicHeaders(rows); !reflect.DeepEqual(got, want) {
		t.Errorf("DynamicHeaders() = %v, want %v", got, want)
	}
	if got := DynamicHeaders(nil); len(got) != 0 {
		t.Errorf("DynamicHeaders(nil) = %v", got)
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"plain", "Zhang Wei", "Zhang Wei"},
		{"comma", "a,b", `"a,b"`},
		{"semicolon", "a;b", `"a;b"`},
		{"quote", `say "hi"`, `"say ""hi"""`},
		{"newline", "line1\nline2", "\"line1\nline2\""},
		{"int", 42, "42"},
		{"float", 12.5, "12.5"},
		{"whole float", float64(100000), "100000"},
		{"bool", true, "true"},
		{"time", time.Date(2024, 6, 30, 9, 15, 0, 0, time.UTC), "2024-06-30 09:15:00"},
		{"object", map[string]any{"k": 1}, `"{""k"":1}"`},
		{"list", []any{"x", "y"}, `"[""x"",""y""]"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cell(tt.in); got != tt.want {
				t.Errorf("cell(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteCSV_QuotesHeaders(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]any{{"Owner": `O"Neil, Pat`}}
	if err := WriteCSV(&buf, []string{"Owner", "Missing"}, rows); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "\ufeff\"Owner\",\"Missing\"\n\"O\"\"Neil, Pat\",\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteCSV() = %q, want %q", got, want)
	}
}

func TestWriteRecordsCSV(t *testing.T) {
	columns := []cases.Column{
		{Key: cases.KeyApplicationNo, Label: "Application No", Kind: cases.ColumnText},
		{Key: cases.KeyStatusCode, Label: "Status", Kind: cases.ColumnSelect, Options: []cases.Option{{Value: "01", Label: "Pending"}}},
		{Key: cases.KeyApplyDate, Label: "Apply Date", Kind: cases.ColumnDate},
		{Key: cases.KeyChannel, Label: "Channel", Kind: cases.ColumnText, Hidden: true},
	}
	records := []cases.Record{
		{
			cases.KeyApplicationNo: "A0001",
			cases.KeyStatusCode:    "01",
			cases.KeyApplyDate:     "2024-06-30 10:20:00",
			cases.KeyChannel:       float64(7),
		},
		{cases.KeyApplicationNo: "A0002"},
	}

	var buf bytes.Buffer
	if err := WriteRecordsCSV(&buf, columns, records); err != nil {
		t.Fatalf("WriteRecordsCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimPrefix(buf.String(), bom), "\n")
	want := []string{
		`"Application No","Status","Apply Date","Channel"`,
		`A0001,Pending,2024-06-30,7`,
		`A0002,,,`,
		``,
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("WriteRecordsCSV() lines =\n%q\nwant\n%q", lines, want)
	}
}

func TestWriteXLSX(t *testing.T) {
	rows := []map[string]any{
		{"a": "x", "b": float64(2)},
		{"a": "y,z"},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, "Personal", []string{"a", "b"}, rows); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	got, err := f.GetRows("Personal")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	want := [][]string{{"a", "b"}, {"x", "2"}, {"y,z"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestWrite_Formats(t *testing.T) {
	records := []cases.Record{{cases.KeyApplicationNo: "A1"}}
	columns := []cases.Column{{Key: cases.KeyApplicationNo, Label: "Application No"}}

	for _, format := range []Format{FormatCSV, FormatXLSX} {
		var buf bytes.Buffer
		if err := Write(&buf, format, "Cases", columns, records); err != nil {
			t.Errorf("Write(%s) error = %v", format, err)
		}
		if buf.Len() == 0 {
			t.Errorf("Write(%s) produced no output", format)
		}
	}

	if err := Write(&bytes.Buffer{}, Format("pdf"), "", columns, records); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" XLSX "); err != nil || f != FormatXLSX {
		t.Errorf("ParseFormat(XLSX) = %q, %v", f, err)
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("ParseFormat(pdf) should fail")
	}
	if FormatCSV.Ext() != ".csv" {
		t.Errorf("Ext() = %q", FormatCSV.Ext())
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 6, 30, 9, 15, 0, 0, time.UTC)
	tests := []struct {
		prefix string
		want   string
	}{
		{"cases_personal", "cases_personal_20240630_091500"},
		{"", "cases_20240630_091500"},
		{"Query: A/B", "Query__A_B_20240630_091500"},
	}

	for _, tt := range tests {
		if got := FileName(tt.prefix, now); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
