package cache

import (
	"testing"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "endpoint only",
			key:  CacheKey{Endpoint: "/case/personal/query"},
			want: "casedesk:case/personal/query",
		},
		{
			name: "empty payload is dropped",
			key:  CacheKey{Endpoint: "/case/batch/query/", Payload: map[string]any{}},
			want: "casedesk:case/batch/query",
		},
		{
			name: "payload keys sorted",
			key: CacheKey{
				Endpoint: "/case/personal/query",
				Payload:  map[string]any{"statusCode": "01", "ownerName": "Li"},
			},
			want: `casedesk:case/personal/query:{"ownerName":"Li","statusCode":"01"}`,
		},
		{
			name: "paging fields dropped",
			key: CacheKey{
				Endpoint: "/case/personal/query",
				Payload:  map[string]any{"statusCode": "01", "pageIndex": 3, "size": 50},
			},
			want: `casedesk:case/personal/query:{"statusCode":"01"}`,
		},
		{
			name: "paging fields dropped from query",
			key: CacheKey{
				Endpoint: "/case/batch/query",
				Payload:  cases.Query{"pageIndex": 1},
			},
			want: "casedesk:case/batch/query",
		},
		{
			name: "nested payload sorted",
			key: CacheKey{
				Endpoint: "/case/batch/query",
				Payload: map[string]any{
					"range": map[string]any{"to": "2024-02-01", "from": "2024-01-01"},
					"channel": []string{"BK", "AG"},
				},
			},
			want: `casedesk:case/batch/query:{"channel":["BK","AG"],"range":{"from":"2024-01-01","to":"2024-02-01"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestFingerprint_Determinism ensures equal payloads built in different
// orders produce the same key.
func TestFingerprint_Determinism(t *testing.T) {
	a := map[string]any{}
	a["z"] = 1
	a["a"] = "x"
	a["m"] = true

	b := map[string]any{"m": true, "a": "x", "z": 1}

	first := Fingerprint("/case/personal/query", a)
	for i := 0; i < 10; i++ {
		if got := Fingerprint("case/personal/query", b); got != first {
			t.Fatalf("attempt %d: %v != %v (not deterministic)", i, got, first)
		}
	}
}

func TestFingerprint_DistinguishesEndpoints(t *testing.T) {
	payload := map[string]any{"ownerName": "Li"}
	if Fingerprint("/case/personal/query", payload) == Fingerprint("/case/batch/query", payload) {
		t.Error("different endpoints must not share a fingerprint")
	}
}

func TestFingerprint_UnmarshalablePayload(t *testing.T) {
	payload := map[string]any{"ch": make(chan int)}
	// Must not panic.
	_ = Fingerprint("/x", payload)
}
