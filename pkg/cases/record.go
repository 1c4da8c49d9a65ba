// Package cases holds the client-side domain model: case records, column
// schemas, filters, sorting, selection and tab state.
package cases

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Well-known record keys returned by the case backend.
const (
	KeyApplicationNo = "applicationNo"
	KeyPolicyNo      = "policyNo"
	KeyOwnerName     = "ownerName"
	KeyInsuredName   = "insuredName"
	KeyStatusCode    = "statusCode"
	KeyApplyDate     = "applyDate"
	KeyCurrency      = "currency"
	KeyChannel       = "channel"
	KeyAssignee      = "assignee"
	KeyBatchNo       = "batchNo"
)

// Validation errors raised before any request is sent.
var (
	ErrEmptySelection = errors.New("no cases selected")
	ErrEmptyInput     = errors.New("input is empty")
)

// Kind distinguishes the two case listings served by the backend.
type Kind string

const (
	KindPersonal Kind = "personal"
	KindBatch    Kind = "batch"
)

// ParseKind accepts "personal" or "batch" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPersonal:
		return KindPersonal, nil
	case KindBatch:
		return KindBatch, nil
	case "":
		return "", ErrEmptyInput
	default:
		return "", fmt.Errorf("unknown case kind %q", s)
	}
}

// Record is one case as returned by the backend: a flat key-value map.
// Records are read-only on the client; they are replaced only by a re-fetch.
type Record map[string]any

// ApplicationNo returns the identity key of the record.
func (r Record) ApplicationNo() string {
	return r.String(KeyApplicationNo)
}

// String renders the value under key as text. Missing keys yield "".
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// dateLayouts are tried in order when parsing date columns.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// Time parses the value under key as a date. Numeric values are treated as
// epoch milliseconds.
func (r Record) Time(key string) (time.Time, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return time.Time{}, false
	}
	switch val := v.(type) {
	case float64:
		return time.UnixMilli(int64(val)), true
	case int64:
		return time.UnixMilli(val), true
	case int:
		return time.UnixMilli(int64(val)), true
	}
	return ParseDate(r.String(key))
}

// ParseDate parses the date formats the backend emits.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Index builds an application-number lookup over records.
func Index(records []Record) map[string]Record {
	idx := make(map[string]Record, len(records))
	for _, r := range records {
		if id := r.ApplicationNo(); id != "" {
			idx[id] = r
		}
	}
	return idx
}

// Maps converts records to plain maps, e.g. for dynamic-header export.
func Maps(records []Record) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = map[string]any(r)
	}
	return out
}
