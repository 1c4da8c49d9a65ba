package cases

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status is the load state of a tab.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Query is the server-side filter payload sent with every page request.
type Query map[string]any

// Clone returns a shallow copy so page payloads never alias the tab's query.
func (q Query) Clone() Query {
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// Static tab identifiers, present for the whole session.
const (
	TabPersonal = "personal"
	TabBatch    = "batch"
)

// ErrStaticTab is returned when closing one of the startup tabs.
var ErrStaticTab = errors.New("static tabs cannot be closed")

// Tab is one listing in the case window.
type Tab struct {
	ID     string
	Name   string
	Kind   Kind
	Query  Query
	Static bool

	Data   []Record
	Status Status
	Err    error
}

// Begin marks the tab as loading and drops the previous error.
func (t *Tab) Begin() {
	t.Status = StatusLoading
	t.Err = nil
}

// Succeed stores freshly fetched data.
func (t *Tab) Succeed(data []Record) {
	t.Data = data
	t.Status = StatusSuccess
	t.Err = nil
}

// Fail records a hard error. Aborted loads go through Reset instead.
func (t *Tab) Fail(err error) {
	t.Status = StatusError
	t.Err = err
}

// Reset returns the tab to idle, keeping any data already shown.
func (t *Tab) Reset() {
	if t.Data != nil {
		t.Status = StatusSuccess
	} else {
		t.Status = StatusIdle
	}
	t.Err = nil
}

// TabSet holds the open tabs in display order.
type TabSet struct {
	mu    sync.Mutex
	order []string
	tabs  map[string]*Tab
}

// NewTabSet creates the startup tabs for personal and batch cases.
func NewTabSet() *TabSet {
	ts := &TabSet{tabs: make(map[string]*Tab)}
	ts.add(&Tab{ID: TabPersonal, Name: "Personal cases", Kind: KindPersonal, Query: Query{}, Static: true})
	ts.add(&Tab{ID: TabBatch, Name: "Batch cases", Kind: KindBatch, Query: Query{}, Static: true})
	return ts
}

func (ts *TabSet) add(t *Tab) {
	ts.order = append(ts.order, t.ID)
	ts.tabs[t.ID] = t
}

// Open creates a dynamic query tab and returns it.
func (ts *TabSet) Open(name string, kind Kind, query Query) *Tab {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t := &Tab{
		ID:    uuid.NewString(),
		Name:  name,
		Kind:  kind,
		Query: query.Clone(),
	}
	ts.add(t)
	return t
}

// Close removes a dynamic tab.
func (ts *TabSet) Close(id string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.tabs[id]
	if !ok {
		return fmt.Errorf("tab %q not found", id)
	}
	if t.Static {
		return ErrStaticTab
	}
	delete(ts.tabs, id)
	for i, tid := range ts.order {
		if tid == id {
			ts.order = append(ts.order[:i], ts.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the tab with id.
func (ts *TabSet) Get(id string) (*Tab, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.tabs[id]
	return t, ok
}

// List returns the tabs in display order.
func (ts *TabSet) List() []*Tab {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]*Tab, 0, len(ts.order))
	for _, id := range ts.order {
		out = append(out, ts.tabs[id])
	}
	return out
}

// ResetAll closes dynamic tabs and drops data of static ones. Used when the
// cache or session is cleared.
func (ts *TabSet) ResetAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	kept := ts.order[:0]
	for _, id := range ts.order {
		t := ts.tabs[id]
		if !t.Static {
			delete(ts.tabs, id)
			continue
		}
		t.Data = nil
		t.Status = StatusIdle
		t.Err = nil
		kept = append(kept, id)
	}
	ts.order = kept
}
