package cases

import (
	"slices"
	"strings"
)

// Sort returns a copy of records stably ordered by key. Date columns of the
// given schema compare chronologically; everything else compares as text.
// Records missing the key sort last in either direction.
func Sort(records []Record, columns []Column, key string, desc bool) []Record {
	out := slices.Clone(records)
	col, _ := FindColumn(columns, key)
	if col.Key == "" {
		col = Column{Key: key, Kind: ColumnText}
	}

	slices.SortStableFunc(out, func(a, b Record) int {
		c, aMissing, bMissing := compare(col, a, b)
		switch {
		case aMissing && bMissing:
			return 0
		case aMissing:
			return 1
		case bMissing:
			return -1
		}
		if desc {
			return -c
		}
		return c
	})
	return out
}

func compare(col Column, a, b Record) (cmp int, aMissing, bMissing bool) {
	if col.Kind == ColumnDate {
		ta, okA := a.Time(col.Key)
		tb, okB := b.Time(col.Key)
		if !okA || !okB {
			return 0, !okA, !okB
		}
		return ta.Compare(tb), false, false
	}
	sa, sb := a.String(col.Key), b.String(col.Key)
	if sa == "" || sb == "" {
		return 0, sa == "", sb == ""
	}
	return strings.Compare(sa, sb), false, false
}

// SortDefault orders records newest first by apply date, then by
// application number. Fetched results are passed through it so the final
// order never depends on page arrival.
func SortDefault(records []Record) []Record {
	out := Sort(records, nil, KeyApplicationNo, false)
	return Sort(out, []Column{{Key: KeyApplyDate, Kind: ColumnDate}}, KeyApplyDate, true)
}
