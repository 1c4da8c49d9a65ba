package cache

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
)

// CacheKey identifies one logical list request: the backend endpoint and the
// query payload without paging fields.
type CacheKey struct {
	// Endpoint is the backend path (e.g., "/case/personal/query")
	Endpoint string

	// Payload is the JSON request body. Paging fields (PagingFields) are
	// dropped from map payloads.
	Payload any
}

// PagingFields are set per page by the fetcher and never identify a list.
var PagingFields = []string{"pageIndex", "size"}

func withoutPaging(payload any) any {
	var m map[string]any
	switch p := payload.(type) {
	case map[string]any:
		m = p
	case cases.Query:
		m = p
	default:
		return payload
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if !slices.Contains(PagingFields, k) {
			out[k] = v
		}
	}
	return out
}

// String generates the fingerprint of the request.
// Format: casedesk:endpoint:{json payload with sorted keys}
//
// Example:
//
//	casedesk:case/personal/query:{"ownerName":"Li","statusCode":"01"}
//
// encoding/json sorts map keys at every nesting level, so two payloads with
// the same content always produce the same fingerprint.
func (k CacheKey) String() string {
	parts := []string{"casedesk"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if payload := withoutPaging(k.Payload); payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			// Not representable as JSON; still deterministic for the same value.
			data = []byte(fmt.Sprintf("%#v", payload))
		}
		if s := string(data); s != "null" && s != "{}" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, ":")
}

// Fingerprint is shorthand for CacheKey{endpoint, payload}.String().
func Fingerprint(endpoint string, payload any) string {
	return CacheKey{Endpoint: endpoint, Payload: payload}.String()
}
