package cases

// ColumnKind is the closed set of column types a table or filter form knows.
type ColumnKind int

const (
	ColumnText ColumnKind = iota
	ColumnDate
	ColumnSelect
)

func (k ColumnKind) String() string {
	switch k {
	case ColumnText:
		return "text"
	case ColumnDate:
		return "date"
	case ColumnSelect:
		return "select"
	default:
		return "unknown"
	}
}

// Option is one choice of a select column.
type Option struct {
	Value string
	Label string
}

// Column describes a displayed and filterable field of a case record.
// Options is only meaningful for ColumnSelect.
type Column struct {
	Key     string
	Label   string
	Kind    ColumnKind
	Options []Option
	// Hidden columns are folded in narrow views but still exported.
	Hidden bool
}

var statusOptions = []Option{
	{Value: "01", Label: "Pending"},
	{Value: "02", Label: "Underwriting"},
	{Value: "03", Label: "Suspended"},
	{Value: "04", Label: "Closed"},
}

var currencyOptions = []Option{
	{Value: "CNY", Label: "CNY"},
	{Value: "USD", Label: "USD"},
	{Value: "HKD", Label: "HKD"},
}

// PersonalColumns is the schema of the personal case listing.
var PersonalColumns = []Column{
	{Key: KeyApplicationNo, Label: "Application No", Kind: ColumnText},
	{Key: KeyPolicyNo, Label: "Policy No", Kind: ColumnText},
	{Key: KeyOwnerName, Label: "Owner", Kind: ColumnText},
	{Key: KeyInsuredName, Label: "Insured", Kind: ColumnText},
	{Key: KeyStatusCode, Label: "Status", Kind: ColumnSelect, Options: statusOptions},
	{Key: KeyApplyDate, Label: "Apply Date", Kind: ColumnDate},
	{Key: KeyCurrency, Label: "Currency", Kind: ColumnSelect, Options: currencyOptions, Hidden: true},
	{Key: KeyChannel, Label: "Channel", Kind: ColumnText, Hidden: true},
	{Key: KeyAssignee, Label: "Assignee", Kind: ColumnText},
}

// BatchColumns is the schema of the batch case listing.
var BatchColumns = []Column{
	{Key: KeyBatchNo, Label: "Batch No", Kind: ColumnText},
	{Key: KeyApplicationNo, Label: "Application No", Kind: ColumnText},
	{Key: KeyPolicyNo, Label: "Policy No", Kind: ColumnText},
	{Key: KeyOwnerName, Label: "Owner", Kind: ColumnText},
	{Key: KeyStatusCode, Label: "Status", Kind: ColumnSelect, Options: statusOptions},
	{Key: KeyApplyDate, Label: "Apply Date", Kind: ColumnDate},
	{Key: KeyChannel, Label: "Channel", Kind: ColumnText, Hidden: true},
	{Key: KeyAssignee, Label: "Assignee", Kind: ColumnText},
}

// ColumnsFor returns the schema for a listing kind.
func ColumnsFor(kind Kind) []Column {
	if kind == KindBatch {
		return BatchColumns
	}
	return PersonalColumns
}

// FindColumn looks up a column by key.
func FindColumn(columns []Column, key string) (Column, bool) {
	for _, c := range columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// Visible drops folded columns.
func Visible(columns []Column) []Column {
	out := make([]Column, 0, len(columns))
	for _, c := range columns {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// Display renders a record value for a column, resolving select labels.
func (c Column) Display(r Record) string {
	raw := r.String(c.Key)
	switch c.Kind {
	case ColumnSelect:
		for _, o := range c.Options {
			if o.Value == raw {
				return o.Label
			}
		}
	case ColumnDate:
		if t, ok := r.Time(c.Key); ok {
			return t.Format("2006-01-02")
		}
	}
	return raw
}
