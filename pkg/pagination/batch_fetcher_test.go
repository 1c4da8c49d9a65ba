package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/casedesk-client/internal/testutil"
	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/client"
)

// fakeFetcher serves a fixed dataset and records every call.
type fakeFetcher struct {
	records []cases.Record
	delay   func(page int) time.Duration
	failOn  map[int]error

	mu       sync.Mutex
	calls    []int
	inFlight int
	maxSeen  int
	payloads []map[string]any
}

func newFakeFetcher(n int) *fakeFetcher {
	return &fakeFetcher{records: testutil.GenerateRecords(n), failOn: map[int]error{}}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, endpoint string, payload map[string]any, pageIndex, size int) ([]cases.Record, int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageIndex)
	f.payloads = append(f.payloads, payload)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	failure := f.failOn[pageIndex]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(pageIndex)):
		case <-ctx.Done():
			return nil, 0, &client.APIError{ErrorClass: client.ErrorClassAborted, Err: ctx.Err()}
		}
	}
	if failure != nil {
		return nil, 0, failure
	}

	start := (pageIndex - 1) * size
	end := min(start+size, len(f.records))
	start = min(start, len(f.records))
	return f.records[start:end], len(f.records), nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func ids(records []cases.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ApplicationNo()
	}
	return out
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 50, 0},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{237, 50, 5},
		{10, 0, 0},
	}

	for _, tt := range tests {
		if got := PageCount(tt.total, tt.size); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestChunks(t *testing.T) {
	tests := []struct {
		name              string
		first, last, size int
		want              [][]int
	}{
		{"remaining of 237/50", 2, 5, 5, [][]int{{2, 3, 4, 5}}},
		{"split", 2, 8, 3, [][]int{{2, 3, 4}, {5, 6, 7}, {8}}},
		{"empty", 2, 1, 5, nil},
		{"zero size", 2, 3, 0, [][]int{{2}, {3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Chunks(tt.first, tt.last, tt.size); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Chunks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetchAll_RequestPlan(t *testing.T) {
	f := newFakeFetcher(237)
	bf := NewBatchFetcher(f, DefaultConfig())

	records, err := bf.FetchAll(context.Background(), "/case/personal/query", nil, 50, 5)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 237 {
		t.Errorf("len(records) = %d, want 237", len(records))
	}
	if f.callCount() != 5 {
		t.Errorf("requests = %d, want 1 + 4", f.callCount())
	}
	if f.calls[0] != 1 {
		t.Errorf("first request was page %d, want 1", f.calls[0])
	}
}

func TestFetchAll_SinglePage(t *testing.T) {
	f := newFakeFetcher(30)
	bf := NewBatchFetcher(f, DefaultConfig())

	records, err := bf.FetchAll(context.Background(), "/x", nil, 50, 5)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 30 || f.callCount() != 1 {
		t.Errorf("records=%d requests=%d", len(records), f.callCount())
	}
}

func TestFetchAll_Empty(t *testing.T) {
	f := newFakeFetcher(0)
	bf := NewBatchFetcher(f, DefaultConfig())

	records, err := bf.FetchAll(context.Background(), "/x", nil, 50, 5)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 0 || f.callCount() != 1 {
		t.Errorf("records=%d requests=%d", len(records), f.callCount())
	}
}

func TestFetchAll_PageOrder(t *testing.T) {
	f := newFakeFetcher(100)
	// Later pages answer first.
	f.delay = func(page int) time.Duration {
		return time.Duration(12-page) * 3 * time.Millisecond
	}
	bf := NewBatchFetcher(f, DefaultConfig())

	records, err := bf.FetchAll(context.Background(), "/x", nil, 10, 4)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	want := ids(testutil.GenerateRecords(100))
	if got := ids(records); !reflect.DeepEqual(got, want) {
		t.Errorf("records out of page order:\n got %v\nwant %v", got[:12], want[:12])
	}
}

func TestFetchAll_ChunksRunSequentially(t *testing.T) {
	f := newFakeFetcher(95)
	f.delay = func(int) time.Duration { return 5 * time.Millisecond }
	bf := NewBatchFetcher(f, DefaultConfig())

	if _, err := bf.FetchAll(context.Background(), "/x", nil, 10, 3); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if f.maxSeen > 3 {
		t.Errorf("max concurrent = %d, want <= 3", f.maxSeen)
	}

	// Pages 2..10 in chunks {2,3,4} {5,6,7} {8,9,10}: every page of a chunk is
	// requested before any page of the next one.
	chunkOf := func(p int) int { return (p - 2) / 3 }
	last := -1
	for _, p := range f.calls[1:] {
		c := chunkOf(p)
		if c < last {
			t.Fatalf("page %d requested after a later chunk started: %v", p, f.calls)
		}
		last = c
	}
}

func TestFetchAll_PayloadPerPage(t *testing.T) {
	f := newFakeFetcher(120)
	bf := NewBatchFetcher(f, DefaultConfig())
	base := map[string]any{"statusCode": "01"}

	if _, err := bf.FetchAll(context.Background(), "/x", base, 50, 5); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	for i, p := range f.payloads {
		if p["statusCode"] != "01" {
			t.Errorf("call %d lost base payload: %v", i, p)
		}
	}
	if len(base) != 1 {
		t.Errorf("base payload mutated: %v", base)
	}
}

func TestFetchAll_FailureDiscardsPartial(t *testing.T) {
	f := newFakeFetcher(237)
	boom := &client.APIError{StatusCode: 500, ErrorClass: client.ErrorClassServer, Message: "boom"}
	f.failOn[3] = boom
	bf := NewBatchFetcher(f, DefaultConfig())

	records, err := bf.FetchAll(context.Background(), "/x", nil, 50, 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if records != nil {
		t.Errorf("partial results returned: %d records", len(records))
	}
	if !errors.Is(err, boom) {
		t.Errorf("error does not wrap page failure: %v", err)
	}
	if client.IsAborted(err) {
		t.Error("page failure must not be reported as abort")
	}
	for _, p := range f.calls {
		if p >= 4 {
			t.Errorf("page %d of a later chunk was requested", p)
		}
	}
}

func TestFetchAll_FirstPageFailure(t *testing.T) {
	f := newFakeFetcher(237)
	f.failOn[1] = errors.New("down")
	bf := NewBatchFetcher(f, DefaultConfig())

	_, err := bf.FetchAll(context.Background(), "/x", nil, 50, 5)
	if err == nil || f.callCount() != 1 {
		t.Errorf("err=%v requests=%d", err, f.callCount())
	}
}

func TestFetchAll_Abort(t *testing.T) {
	f := newFakeFetcher(500)
	f.delay = func(page int) time.Duration {
		if page == 1 {
			return 0
		}
		return time.Second
	}
	bf := NewBatchFetcher(f, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	records, err := bf.FetchAll(ctx, "/x", nil, 50, 5)
	if !client.IsAborted(err) {
		t.Fatalf("expected aborted, got %v", err)
	}
	if records != nil {
		t.Error("aborted fetch returned records")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("abort did not stop in-flight requests")
	}
}

func TestFetchAll_Progress(t *testing.T) {
	f := newFakeFetcher(237)
	var got []string
	cfg := DefaultConfig()
	cfg.OnProgress = func(fetched, total int) {
		got = append(got, fmt.Sprintf("%d/%d", fetched, total))
	}
	bf := NewBatchFetcher(f, cfg)

	if _, err := bf.FetchAll(context.Background(), "/x", nil, 50, 2); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	want := []string{"1/5", "3/5", "5/5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("progress = %v, want %v", got, want)
	}
}

func TestFetchAll_Defaults(t *testing.T) {
	f := newFakeFetcher(120)
	bf := NewBatchFetcher(f, Config{})

	records, err := bf.FetchAll(context.Background(), "/x", nil, 0, 0)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 120 || f.callCount() != 3 {
		t.Errorf("records=%d requests=%d", len(records), f.callCount())
	}
}

func TestFetchAll_AgainstMockBackend(t *testing.T) {
	mock := testutil.NewMockCaseAPI("tok")
	defer mock.Close()
	mock.SetRecords(testutil.PathBatch, testutil.GenerateRecords(237))
	mock.Delay = 10 * time.Millisecond

	cfg := client.DefaultConfig(mock.URL(), client.StaticToken("tok"))
	cfg.Retry = client.NoRetry()
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	bf := NewBatchFetcher(c, DefaultConfig())
	records, err := bf.FetchAll(context.Background(), client.EndpointBatch, map[string]any{"batchNo": "B1"}, 50, 3)
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(records) != 237 {
		t.Errorf("len(records) = %d, want 237", len(records))
	}
	if got := mock.RequestCount(testutil.PathBatch); got != 5 {
		t.Errorf("requests = %d, want 5", got)
	}
	if got := mock.MaxConcurrent(); got > 3 {
		t.Errorf("max concurrent = %d, want <= 3", got)
	}
	if records[0].ApplicationNo() != "A0001" || records[236].ApplicationNo() != "A0237" {
		t.Errorf("unexpected order: first=%s last=%s", records[0].ApplicationNo(), records[236].ApplicationNo())
	}

	mock.Reset()
	mock.FailPage(testutil.PathBatch, 3, http.StatusInternalServerError)
	if _, err := bf.FetchAll(context.Background(), client.EndpointBatch, nil, 50, 3); client.ClassOf(err) != client.ErrorClassServer {
		t.Errorf("expected server error, got %v", err)
	}
}
