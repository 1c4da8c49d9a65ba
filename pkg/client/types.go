package client

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
)

// Paging fields added to every list request body.
const (
	FieldPageIndex = "pageIndex"
	FieldPageSize  = "size"
)

// responseCode accepts both "0" and 0 in the envelope.
type responseCode string

func (c *responseCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = responseCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = responseCode(n.String())
	return nil
}

func (c responseCode) ok() bool {
	switch c {
	case "", "0", "200", "00000":
		return true
	}
	return false
}

func (c responseCode) unauthorized() bool {
	return c == "401" || c == "403"
}

// envelope is the common response wrapper of the case backend.
type envelope struct {
	Code    responseCode    `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// PageData is the data section of a list response.
type PageData struct {
	Total   int            `json:"total"`
	Records []cases.Record `json:"list"`
}

// UnmarshalJSON tolerates "total" sent as a string.
func (p *PageData) UnmarshalJSON(data []byte) error {
	var raw struct {
		Total   json.RawMessage `json:"total"`
		Records []cases.Record  `json:"list"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Records = raw.Records
	p.Total = 0
	if len(raw.Total) == 0 || string(raw.Total) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Total, &s); err == nil {
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		p.Total = n
		return nil
	}
	return json.Unmarshal(raw.Total, &p.Total)
}

// AssignRequest dispatches cases to a handler.
type AssignRequest struct {
	ApplicationNos []string   `json:"applicationNos" validate:"required,min=1,dive,required"`
	Assignee       string     `json:"assignee" validate:"required"`
	Kind           cases.Kind `json:"caseType" validate:"required,oneof=personal batch"`
	Remark         string     `json:"remark,omitempty" validate:"max=200"`
}

// AssignFailure is one case the backend refused to assign.
type AssignFailure struct {
	ApplicationNo string `json:"applicationNo"`
	Reason        string `json:"reason"`
}

// AssignResult is the data section of an assign response.
type AssignResult struct {
	Succeeded []string        `json:"successList"`
	Failed    []AssignFailure `json:"failList"`
}

// Total returns how many cases the backend reported on.
func (r *AssignResult) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}
