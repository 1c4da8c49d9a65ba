package cases

import (
	"fmt"
	"strings"
	"time"
)

// Filter selects records on the client side.
type Filter interface {
	Match(r Record) bool
	// Field is the record key the filter inspects.
	Field() string
}

// TextFilter matches records whose value contains Contains, case-insensitively.
type TextFilter struct {
	Key      string
	Contains string
}

func (f TextFilter) Field() string { return f.Key }

func (f TextFilter) Match(r Record) bool {
	needle := strings.ToLower(strings.TrimSpace(f.Contains))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.String(f.Key)), needle)
}

// DateFilter matches records whose date lies within [From, To]. A zero bound
// is open. To is inclusive of the whole day.
type DateFilter struct {
	Key  string
	From time.Time
	To   time.Time
}

func (f DateFilter) Field() string { return f.Key }

func (f DateFilter) Match(r Record) bool {
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	t, ok := r.Time(f.Key)
	if !ok {
		return false
	}
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Before(f.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// SelectFilter matches records whose value equals one of Values.
type SelectFilter struct {
	Key    string
	Values []string
}

func (f SelectFilter) Field() string { return f.Key }

func (f SelectFilter) Match(r Record) bool {
	if len(f.Values) == 0 {
		return true
	}
	v := r.String(f.Key)
	for _, want := range f.Values {
		if v == want {
			return true
		}
	}
	return false
}

// Apply returns the records matching every filter. The input is not modified.
func Apply(records []Record, filters ...Filter) []Record {
	if len(filters) == 0 {
		return records
	}
	out := make([]Record, 0, len(records))
next:
	for _, r := range records {
		for _, f := range filters {
			if !f.Match(r) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// ParseFilter turns "key=value" into a filter typed by the column schema.
//
//	text:   ownerName=zhang
//	date:   applyDate=2024-01-01..2024-01-31 (either side may be empty)
//	select: statusCode=01,02
func ParseFilter(columns []Column, expr string) (Filter, error) {
	key, value, ok := strings.Cut(expr, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return nil, fmt.Errorf("filter %q: expected key=value", expr)
	}
	col, found := FindColumn(columns, key)
	if !found {
		return nil, fmt.Errorf("filter %q: unknown column %q", expr, key)
	}

	switch col.Kind {
	case ColumnDate:
		fromStr, toStr, _ := strings.Cut(value, "..")
		f := DateFilter{Key: key}
		if s := strings.TrimSpace(fromStr); s != "" {
			t, ok := ParseDate(s)
			if !ok {
				return nil, fmt.Errorf("filter %q: invalid from date %q", expr, s)
			}
			f.From = t
		}
		if s := strings.TrimSpace(toStr); s != "" {
			t, ok := ParseDate(s)
			if !ok {
				return nil, fmt.Errorf("filter %q: invalid to date %q", expr, s)
			}
			f.To = t
		}
		return f, nil
	case ColumnSelect:
		var values []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		return SelectFilter{Key: key, Values: values}, nil
	default:
		return TextFilter{Key: key, Contains: value}, nil
	}
}
