// Package testutil provides a mock case backend for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
)

// Paths served by the mock, relative to URL().
const (
	PathPersonal = "/case/personal/query"
	PathBatch    = "/case/batch/query"
	PathAssign   = "/case/manual-assign"
)

// MockCaseAPI is a configurable in-process case backend.
type MockCaseAPI struct {
	server *httptest.Server

	mu          sync.Mutex
	token       string
	records     map[string][]cases.Record
	failPages   map[string]map[int]int
	failBody    map[string]string
	rejectIDs   map[string]string
	assignments []AssignCall
	pages       map[string][]int
	requests    map[string]int
	lastHeader  http.Header
	lastBody    map[string]any

	// Delay is applied to every list page request.
	Delay time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

// AssignCall records one request to the assign endpoint.
type AssignCall struct {
	ApplicationNos []string
	Assignee       string
	CaseType       string
}

// NewMockCaseAPI starts a mock backend that accepts token.
func NewMockCaseAPI(token string) *MockCaseAPI {
	m := &MockCaseAPI{
		token:     token,
		records:   make(map[string][]cases.Record),
		failPages: make(map[string]map[int]int),
		failBody:  make(map[string]string),
		rejectIDs: make(map[string]string),
		pages:     make(map[string][]int),
		requests:  make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the base URL of the mock.
func (m *MockCaseAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCaseAPI) Close() {
	m.server.Close()
}

// SetToken changes the accepted token; an empty token accepts any request.
func (m *MockCaseAPI) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// SetRecords sets the dataset served by a list path.
func (m *MockCaseAPI) SetRecords(path string, records []cases.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[path] = records
}

// FailPage makes a page of a list path answer with status.
func (m *MockCaseAPI) FailPage(path string, page, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPages[path] == nil {
		m.failPages[path] = make(map[int]int)
	}
	m.failPages[path][page] = status
}

// FailWithCode makes every request to path answer 200 with a business error code.
func (m *MockCaseAPI) FailWithCode(path, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failBody[path] = code
}

// RejectAssign makes the assign endpoint refuse an application number.
func (m *MockCaseAPI) RejectAssign(applicationNo, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectIDs[applicationNo] = reason
}

// Reset clears all tracking counters.
func (m *MockCaseAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = make(map[string][]int)
	m.requests = make(map[string]int)
	m.assignments = nil
	m.lastHeader = nil
	m.lastBody = nil
	m.maxInFlight.Store(0)
}

// RequestCount returns the number of requests made to path.
func (m *MockCaseAPI) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path]
}

// PagesRequested returns the page indices requested on path in arrival order.
func (m *MockCaseAPI) PagesRequested(path string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.pages[path]...)
}

// MaxConcurrent returns the highest number of list requests served at once.
func (m *MockCaseAPI) MaxConcurrent() int {
	return int(m.maxInFlight.Load())
}

// Assignments returns the recorded assign calls.
func (m *MockCaseAPI) Assignments() []AssignCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AssignCall(nil), m.assignments...)
}

// LastHeader returns the headers of the most recent request.
func (m *MockCaseAPI) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

// LastBody returns the decoded body of the most recent request.
func (m *MockCaseAPI) LastBody() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBody
}

func (m *MockCaseAPI) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	m.mu.Lock()
	m.requests[r.URL.Path]++
	m.lastHeader = r.Header.Clone()
	m.lastBody = body
	token := m.token
	code := m.failBody[r.URL.Path]
	m.mu.Unlock()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if token != "" && r.Header.Get("SSO-TOKEN") != token {
		writeEnvelope(w, http.StatusUnauthorized, "401", "token expired", nil)
		return
	}
	if code != "" {
		writeEnvelope(w, http.StatusOK, code, "business error "+code, nil)
		return
	}

	switch r.URL.Path {
	case PathPersonal, PathBatch:
		m.handleList(w, r, body)
	case PathAssign:
		m.handleAssign(w, body)
	default:
		writeEnvelope(w, http.StatusNotFound, "404", "no such endpoint", nil)
	}
}

func (m *MockCaseAPI) handleList(w http.ResponseWriter, r *http.Request, body map[string]any) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	page := intField(body, "pageIndex", 1)
	size := intField(body, "size", 50)

	m.mu.Lock()
	m.pages[r.URL.Path] = append(m.pages[r.URL.Path], page)
	status := m.failPages[r.URL.Path][page]
	all := m.records[r.URL.Path]
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		writeEnvelope(w, status, fmt.Sprint(status), "injected failure", nil)
		return
	}

	start := (page - 1) * size
	end := start + size
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	writeEnvelope(w, http.StatusOK, "0", "ok", map[string]any{
		"total": len(all),
		"list":  all[start:end],
	})
}

func (m *MockCaseAPI) handleAssign(w http.ResponseWriter, body map[string]any) {
	call := AssignCall{}
	if ids, ok := body["applicationNos"].([]any); ok {
		for _, id := range ids {
			call.ApplicationNos = append(call.ApplicationNos, fmt.Sprint(id))
		}
	}
	call.Assignee, _ = body["assignee"].(string)
	call.CaseType, _ = body["caseType"].(string)

	m.mu.Lock()
	m.assignments = append(m.assignments, call)
	var ok []string
	var failed []map[string]string
	for _, id := range call.ApplicationNos {
		if reason, rejected := m.rejectIDs[id]; rejected {
			failed = append(failed, map[string]string{"applicationNo": id, "reason": reason})
			continue
		}
		ok = append(ok, id)
	}
	m.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "0", "ok", map[string]any{
		"successList": ok,
		"failList":    failed,
	})
}

func intField(body map[string]any, key string, def int) int {
	if v, ok := body[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}

func writeEnvelope(w http.ResponseWriter, status int, code, message string, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"data":    data,
	})
}

// GenerateRecords builds n records with application numbers A0001.. and
// apply dates counting back from 2024-06-30.
func GenerateRecords(n int) []cases.Record {
	base := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	out := make([]cases.Record, n)
	for i := 0; i < n; i++ {
		out[i] = cases.Record{
			cases.KeyApplicationNo: fmt.Sprintf("A%04d", i+1),
			cases.KeyPolicyNo:      fmt.Sprintf("P%06d", 100000+i),
			cases.KeyOwnerName:     fmt.Sprintf("Owner %d", i+1),
			cases.KeyStatusCode:    fmt.Sprintf("0%d", i%4+1),
			cases.KeyApplyDate:     base.AddDate(0, 0, -i).Format("2006-01-02"),
			cases.KeyCurrency:      "CNY",
		}
	}
	return out
}
