package worklog_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/worklog-cli/worklog/config"
	"github.com/worklog-cli/worklog/testutil"
	"github.com/worklog-cli/worklog/transport"
	"github.com/worklog-cli/worklog/worklog"
)

func newFixtureSession(t *testing.T) *worklog.Session {
	t.Helper()
	fix := testutil.NewFixture(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), ".worklog.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tr := transport.New(transport.Config{
		BaseURL:  fix.URL,
		APIToken: fix.Token,
		Logger:   zerolog.Nop(),
	})
	return worklog.NewSession(cfg, tr, zerolog.Nop())
}

func TestClientLifecycleOverHTTP(t *testing.T) {
	sess := newFixtureSession(t)
	ctx := context.Background()

	ws, err := sess.DefaultWorkspace(ctx)
	if err != nil {
		t.Fatalf("DefaultWorkspace: %v", err)
	}
	if id, _ := ws.ID(); id != 1 {
		t.Fatalf("default workspace id = %d, want 1", id)
	}

	client, err := worklog.Client.New(ctx, sess, map[string]any{"name": "acme", "workspace": ws})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	id, ok := client.ID()
	if !ok {
		t.Fatal("saved client has no id")
	}

	found, err := worklog.Client.Objects().GetBy(ctx, sess, worklog.Conditions{"name": "acme"})
	if err != nil {
		t.Fatalf("GetBy: %v", err)
	}
	if found == nil {
		t.Fatal("created client not listed")
	}
	if eq, _ := found.Equal(client); !eq {
		t.Error("listed client differs from the created one")
	}

	if err := client.Set(ctx, "notes", "important"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := client.Save(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	refetched, err := worklog.Client.Objects().Get(ctx, sess, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if notes, _ := refetched.Get(ctx, "notes"); notes != "important" {
		t.Errorf("notes = %v after update", notes)
	}

	if err := client.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	gone, err := worklog.Client.Objects().Get(ctx, sess, id)
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if gone != nil {
		t.Error("client still present after delete")
	}
}

func TestTrackingOverHTTP(t *testing.T) {
	sess := newFixtureSession(t)
	ctx := context.Background()

	entry, err := worklog.TimeEntries.Start(ctx, sess, "deep work", map[string]any{"workspace": 1})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	current, err := worklog.TimeEntries.Current(ctx, sess)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current == nil {
		t.Fatal("no running entry after Start")
	}
	if eq, _ := current.Equal(entry); !eq {
		t.Error("current is not the started entry")
	}

	stopped, err := worklog.TimeEntries.Stop(ctx, sess, time.Time{})
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if running, _ := stopped.Get(ctx, "is_running"); running != false {
		t.Error("entry still running after Stop")
	}

	current, err = worklog.TimeEntries.Current(ctx, sess)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current != nil {
		t.Error("an entry is still running after Stop")
	}

	if _, err := worklog.TimeEntries.Stop(ctx, sess, time.Time{}); err == nil {
		t.Error("expected error stopping when nothing runs")
	}
}
