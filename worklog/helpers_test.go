package worklog

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/worklog-cli/worklog/config"
)

type fakeCall struct {
	Method string
	Path   string
	Body   any
}

// fakeTransport serves canned responses keyed by "METHOD path" and records
// every request it sees.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]any
	failures  map[string]error
	calls     []fakeCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: map[string]any{},
		failures:  map[string]error{},
	}
}

func (f *fakeTransport) stub(method, path string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method+" "+path] = payload
}

func (f *fakeTransport) stubError(method, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = err
}

func (f *fakeTransport) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{Method: method, Path: path, Body: body})

	key := method + " " + path
	if err, ok := f.failures[key]; ok {
		return nil, err
	}
	payload, ok := f.responses[key]
	if !ok {
		return nil, fmt.Errorf("unexpected request %s", key)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (f *fakeTransport) requests() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// countRequests counts recorded calls with the given method.
func (f *fakeTransport) countRequests(method string) int {
	n := 0
	for _, c := range f.requests() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func newTestSession(t *testing.T) (*Session, *fakeTransport) {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), ".worklog.yaml"))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	fake := newFakeTransport()
	return NewSession(cfg, fake, zerolog.Nop()), fake
}

// stubWorkspace registers a workspace detail response and returns its id.
func stubWorkspace(fake *fakeTransport, id int64, premium, admin bool) {
	fake.stub("GET", fmt.Sprintf("/workspaces/%d", id), map[string]any{
		"data": map[string]any{
			"id":      id,
			"name":    fmt.Sprintf("workspace-%d", id),
			"premium": premium,
			"admin":   admin,
		},
	})
}
