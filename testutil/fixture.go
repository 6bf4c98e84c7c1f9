// Package testutil provides an in-memory stand-in for the remote
// time-tracking API, served over httptest. Tests point a real transport at
// Fixture.URL and exercise the full request path.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Record is one stored API object.
type Record = map[string]any

// Fixture is a fake API server with per-collection in-memory storage.
type Fixture struct {
	URL   string
	Token string

	mu          sync.Mutex
	nextID      int64
	server      *httptest.Server
	collections map[string][]Record
	user        Record
}

// NewFixture starts the fake API. It ships with one premium workspace
// (id 1) and a current user whose default workspace points at it; tests
// add more state through Seed.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	f := &Fixture{
		Token:       "fixture-token",
		nextID:      100,
		collections: map[string][]Record{},
	}
	f.collections["workspaces"] = []Record{
		{"id": int64(1), "name": "fixture workspace", "premium": true, "admin": true},
	}
	f.user = Record{
		"id":                   int64(10),
		"email":                "fixture@example.com",
		"fullname":             "Fixture User",
		"default_workspace_id": int64(1),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	f.URL = f.server.URL
	t.Cleanup(f.server.Close)
	return f
}

// Seed stores a record in a collection, assigning an id when absent, and
// returns the id.
func (f *Fixture) Seed(collection string, record Record) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := record["id"].(int64)
	if !ok {
		id = f.allocate()
		record["id"] = id
	}
	f.collections[collection] = append(f.collections[collection], record)
	return id
}

// Records returns a copy of a collection's current state.
func (f *Fixture) Records(collection string) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, len(f.collections[collection]))
	copy(out, f.collections[collection])
	return out
}

func (f *Fixture) allocate() int64 {
	f.nextID++
	return f.nextID
}

func (f *Fixture) handle(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "me" && r.Method == http.MethodGet:
		writeData(w, f.user)
	case path == "me/time_entries/current" && r.Method == http.MethodGet:
		writeData(w, f.runningEntry())
	case len(parts) == 3 && parts[0] == "me" && parts[1] == "time_entries" && r.Method == http.MethodGet:
		f.serveDetail(w, "time_entries", parts[2])
	case len(parts) == 2 && parts[0] == "me" && parts[1] == "time_entries" && r.Method == http.MethodGet:
		writeJSON(w, f.collections["time_entries"])
	case len(parts) == 3 && parts[0] == "workspaces" && r.Method == http.MethodGet:
		writeJSON(w, f.scopedList(parts[2], parts[1]))
	case len(parts) == 2 && parts[0] == "workspaces" && r.Method == http.MethodGet:
		f.serveDetail(w, "workspaces", parts[1])
	case len(parts) == 1 && r.Method == http.MethodPost:
		f.serveCreate(w, r, parts[0])
	case len(parts) == 2 && r.Method == http.MethodGet:
		f.serveDetail(w, parts[0], parts[1])
	case len(parts) == 2 && r.Method == http.MethodPut:
		f.serveUpdate(w, r, parts[0], parts[1])
	case len(parts) == 2 && r.Method == http.MethodDelete:
		f.serveDelete(w, parts[0], parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *Fixture) runningEntry() Record {
	for _, rec := range f.collections["time_entries"] {
		if _, stopped := rec["stop"]; !stopped {
			return rec
		}
	}
	return nil
}

func (f *Fixture) scopedList(collection, workspaceID string) []Record {
	wid, _ := strconv.ParseInt(workspaceID, 10, 64)
	var out []Record
	for _, rec := range f.collections[collection] {
		if got, ok := toID(rec["wid"]); !ok || got == wid {
			out = append(out, rec)
		}
	}
	return out
}

func (f *Fixture) find(collection, rawID string) (int, Record) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return -1, nil
	}
	for i, rec := range f.collections[collection] {
		if got, ok := toID(rec["id"]); ok && got == id {
			return i, rec
		}
	}
	return -1, nil
}

func (f *Fixture) serveDetail(w http.ResponseWriter, collection, rawID string) {
	_, rec := f.find(collection, rawID)
	if rec == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeData(w, rec)
}

func (f *Fixture) serveCreate(w http.ResponseWriter, r *http.Request, collection string) {
	payload, err := decodeEnvelope(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	payload["id"] = f.allocate()
	f.collections[collection] = append(f.collections[collection], payload)
	writeData(w, payload)
}

func (f *Fixture) serveUpdate(w http.ResponseWriter, r *http.Request, collection, rawID string) {
	i, rec := f.find(collection, rawID)
	if rec == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	payload, err := decodeEnvelope(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	for k, v := range payload {
		if v == nil {
			delete(rec, k)
			continue
		}
		rec[k] = v
	}
	f.collections[collection][i] = rec
	writeData(w, rec)
}

func (f *Fixture) serveDelete(w http.ResponseWriter, collection, rawID string) {
	i, rec := f.find(collection, rawID)
	if rec == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f.collections[collection] = append(f.collections[collection][:i], f.collections[collection][i+1:]...)
	writeJSON(w, Record{})
}

// decodeEnvelope unwraps the single-key {"entity_name": {...}} request
// body.
func decodeEnvelope(r *http.Request) (Record, error) {
	var outer map[string]Record
	if err := json.NewDecoder(r.Body).Decode(&outer); err != nil {
		return nil, err
	}
	for _, inner := range outer {
		return inner, nil
	}
	return nil, fmt.Errorf("empty request envelope")
}

func toID(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case float64:
		return int64(t), true
	}
	return 0, false
}

func writeData(w http.ResponseWriter, payload any) {
	writeJSON(w, map[string]any{"data": payload})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
