package worklog

import (
	"context"
	"errors"
	"testing"

	"github.com/worklog-cli/worklog/transport"
)

func TestDirtyTracking(t *testing.T) {
	sess, _ := newTestSession(t)
	ctx := context.Background()

	e, err := Client.New(ctx, sess, map[string]any{"name": "acme", "notes": "keep", "workspace": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := e.Dirty(); len(got) != 0 {
		t.Fatalf("fresh entity is dirty: %v", got)
	}

	// writing the stored value back is not a change
	if err := e.Set(ctx, "notes", "keep"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := e.Dirty(); len(got) != 0 {
		t.Fatalf("unchanged write marked dirty: %v", got)
	}

	if err := e.Set(ctx, "notes", "changed"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := e.Dirty(); len(got) != 1 || got[0] != "notes" {
		t.Fatalf("Dirty = %v, want [notes]", got)
	}
}

func TestAccessGates(t *testing.T) {
	sess, _ := newTestSession(t)
	ctx := context.Background()

	entry, err := TimeEntry.New(ctx, sess, map[string]any{"start": "2024-01-01T10:00:00Z", "workspace": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := entry.Get(ctx, "created_with"); err == nil {
		t.Error("expected error reading a write-only field")
	}

	task, err := Task.New(ctx, sess, map[string]any{"name": "t", "project": 5, "workspace": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := task.Set(ctx, "tracked_seconds", 10); err == nil {
		t.Error("expected error writing a read-only field")
	}

	if _, err := entry.Get(ctx, "no_such_field"); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestRelationAssignment(t *testing.T) {
	sess, fake := newTestSession(t)
	ctx := context.Background()

	fake.stub("GET", "/clients/7", map[string]any{
		"data": map[string]any{"id": 7, "name": "acme", "wid": 1},
	})
	client, err := Client.Objects().Get(ctx, sess, 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if client == nil {
		t.Fatal("client not found")
	}

	project, err := Project.New(ctx, sess, map[string]any{"name": "site", "workspace": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := project.Set(ctx, "client", client); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := project.values["client_id"]; got != int64(7) {
		t.Errorf("stored client id = %v, want 7", got)
	}
	if got := project.Dirty(); len(got) != 1 || got[0] != "client_id" {
		t.Errorf("Dirty = %v, want [client_id]", got)
	}

	// a raw integer id is accepted too
	if err := project.Set(ctx, "client", 9); err != nil {
		t.Fatalf("Set with raw id: %v", err)
	}
	if got := project.values["client_id"]; got != int64(9) {
		t.Errorf("stored client id = %v, want 9", got)
	}

	// linking to an unsaved entity is an error
	unsaved, err := Client.New(ctx, sess, map[string]any{"name": "new", "workspace": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := project.Set(ctx, "client", unsaved); err == nil {
		t.Error("expected error linking unsaved entity")
	}

	// an entity of another schema still stores its id, with a warning
	stubWorkspace(fake, 2, false, false)
	ws, err := Workspace.Objects().Get(ctx, sess, 2)
	if err != nil {
		t.Fatalf("Get workspace: %v", err)
	}
	if err := project.Set(ctx, "client", ws); err != nil {
		t.Fatalf("Set with foreign schema: %v", err)
	}
	if got := project.values["client_id"]; got != int64(2) {
		t.Errorf("stored client id = %v, want 2", got)
	}

	// reading resolves the id through the target's query set
	if err := project.Set(ctx, "client", 7); err != nil {
		t.Fatalf("Set: %v", err)
	}
	resolved, err := project.Get(ctx, "client")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, ok := resolved.(*Entity)
	if !ok || got == nil {
		t.Fatalf("Get(client) = %v", resolved)
	}
	if id, _ := got.ID(); id != 7 {
		t.Errorf("resolved client id = %d, want 7", id)
	}
}

func TestAdminOnlyAssignment(t *testing.T) {
	sess, fake := newTestSession(t)
	ctx := context.Background()

	stubWorkspace(fake, 1, false, false)
	stubWorkspace(fake, 2, false, true)

	member, err := WorkspaceUser.New(ctx, sess, map[string]any{"workspace": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = member.Set(ctx, "admin", true)
	var perm *PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("Set admin = %v, want PermissionError", err)
	}

	admin, err := WorkspaceUser.New(ctx, sess, map[string]any{"workspace": 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := admin.Set(ctx, "admin", true); err != nil {
		t.Errorf("Set admin as admin: %v", err)
	}
}

func TestPremiumFieldGatedAtSave(t *testing.T) {
	sess, fake := newTestSession(t)
	ctx := context.Background()

	stubWorkspace(fake, 1, false, true)

	entry, err := TimeEntry.New(ctx, sess, map[string]any{
		"start":     "2024-01-01T10:00:00Z",
		"stop":      "2024-01-01T11:00:00Z",
		"workspace": 1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// assignment itself is allowed
	if err := entry.Set(ctx, "billable", true); err != nil {
		t.Fatalf("Set billable: %v", err)
	}

	err = entry.Save(ctx)
	var ent *EntitlementError
	if !errors.As(err, &ent) {
		t.Fatalf("Save = %v, want EntitlementError", err)
	}
	if n := fake.countRequests("POST"); n != 0 {
		t.Errorf("save reached the network: %d POST requests", n)
	}
}

func TestPremiumEntityGatedAtSave(t *testing.T) {
	sess, fake := newTestSession(t)
	ctx := context.Background()

	stubWorkspace(fake, 1, false, true)

	task, err := Task.New(ctx, sess, map[string]any{"name": "t", "project": 5, "workspace": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = task.Save(ctx)
	var ent *EntitlementError
	if !errors.As(err, &ent) {
		t.Fatalf("Save = %v, want EntitlementError", err)
	}
	if n := fake.countRequests("POST"); n != 0 {
		t.Errorf("save reached the network: %d POST requests", n)
	}
}

func TestSaveLifecycle(t *testing.T) {
	sess, fake := newTestSession(t)
	ctx := context.Background()

	fake.stub("POST", "/clients", map[string]any{"data": map[string]any{"id": 33}})
	fake.stub("PUT", "/clients/33", map[string]any{"data": map[string]any{"id": 33}})
	fake.stub("DELETE", "/clients/33", map[string]any{})

	e, err := Client.New(ctx, sess, map[string]any{"name": "acme", "workspace": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id, ok := e.ID(); !ok || id != 33 {
		t.Fatalf("ID = %d, %v, want 33", id, ok)
	}

	calls := fake.requests()
	create := calls[len(calls)-1]
	body := create.Body.(map[string]any)["client"].(map[string]any)
	if body["name"] != "acme" {
		t.Errorf("create payload name = %v", body["name"])
	}
	if body["wid"] != int64(1) {
		t.Errorf("create payload wid = %v", body["wid"])
	}
	if _, hasID := body["id"]; hasID {
		t.Error("create payload must not carry an id")
	}

	// update sends only the dirty attributes
	if err := e.Set(ctx, "name", "acme gmbh"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	calls = fake.requests()
	update := calls[len(calls)-1]
	if update.Method != "PUT" || update.Path != "/clients/33" {
		t.Fatalf("update went to %s %s", update.Method, update.Path)
	}
	upBody := update.Body.(map[string]any)["client"].(map[string]any)
	if len(upBody) != 1 || upBody["name"] != "acme gmbh" {
		t.Errorf("update payload = %v, want only the new name", upBody)
	}
	if got := e.Dirty(); len(got) != 0 {
		t.Errorf("dirty after save: %v", got)
	}

	// delete resets identity; the next save creates again
	if err := e.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := e.ID(); ok {
		t.Fatal("entity still has an id after delete")
	}
	if err := e.Save(ctx); err != nil {
		t.Fatalf("Save after delete: %v", err)
	}
	if n := fake.countRequests("POST"); n != 2 {
		t.Errorf("POST count = %d, want 2", n)
	}
}

func TestSchemaCapabilities(t *testing.T) {
	sess, _ := newTestSession(t)
	ctx := context.Background()

	ws, err := Workspace.New(ctx, sess, map[string]any{"name": "home"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var notAllowed *NotAllowedError
	if err := ws.Save(ctx); !errors.As(err, &notAllowed) {
		t.Errorf("Save on uncreatable schema = %v, want NotAllowedError", err)
	}
}

func TestEqual(t *testing.T) {
	sess, fake := newTestSession(t)
	ctx := context.Background()

	fake.stub("GET", "/clients/7", map[string]any{"data": map[string]any{"id": 7, "name": "a", "wid": 1}})
	fake.stub("GET", "/clients/8", map[string]any{"data": map[string]any{"id": 8, "name": "b", "wid": 1}})

	a, _ := Client.Objects().Get(ctx, sess, 7)
	b, _ := Client.Objects().Get(ctx, sess, 7)
	c, _ := Client.Objects().Get(ctx, sess, 8)

	if eq, err := a.Equal(b); err != nil || !eq {
		t.Errorf("Equal same id = %v, %v", eq, err)
	}
	if eq, err := a.Equal(c); err != nil || eq {
		t.Errorf("Equal different id = %v, %v", eq, err)
	}

	unsaved, _ := Client.New(ctx, sess, map[string]any{"name": "x", "workspace": 1})
	if _, err := a.Equal(unsaved); err == nil {
		t.Error("expected error comparing with unsaved entity")
	}
	ws, _ := Workspace.New(ctx, sess, map[string]any{"name": "w"})
	if _, err := a.Equal(ws); err == nil {
		t.Error("expected error comparing across schemas")
	}
}

func TestGetNotFoundIsAbsence(t *testing.T) {
	sess, fake := newTestSession(t)
	ctx := context.Background()

	fake.stubError("GET", "/clients/99", &transport.StatusError{Code: 404})
	e, err := Client.Objects().Get(ctx, sess, 99)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e != nil {
		t.Fatalf("Get = %v, want nil", e)
	}
}
