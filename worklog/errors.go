package worklog

import (
	"errors"
	"fmt"
)

// ErrNotImplemented marks declared but unsupported behavior, such as
// to-many relations.
var ErrNotImplemented = errors.New("not implemented")

// ValidationError reports a field value that fails its field's validation
// rules. Validation errors are terminal: the operation that produced one is
// never retried.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

// TypeError reports a value that cannot be coerced into a field's canonical
// type.
type TypeError struct {
	Field string
	Kind  string
	Value any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("field %q expects %s, got %T (%v)", e.Field, e.Kind, e.Value, e.Value)
}

// PermissionError reports an assignment to an admin-only field by a caller
// who is not an admin of the entity's workspace.
type PermissionError struct {
	Field     string
	Workspace string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("field %q may only be set by an admin of workspace %q", e.Field, e.Workspace)
}

// EntitlementError reports use of a premium field or entity in a workspace
// that is not on a premium plan. It is raised before any network call.
type EntitlementError struct {
	Entity    string
	Field     string
	Workspace string
}

func (e *EntitlementError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field %q requires a premium workspace (workspace %q is not premium)", e.Field, e.Workspace)
	}
	return fmt.Sprintf("entity %q requires a premium workspace (workspace %q is not premium)", e.Entity, e.Workspace)
}

// MultipleResultsError reports a unique lookup that matched more than one
// entity.
type MultipleResultsError struct {
	Entity string
	Count  int
}

func (e *MultipleResultsError) Error() string {
	return fmt.Sprintf("expected at most one %s, got %d", e.Entity, e.Count)
}

// NotAllowedError reports an operation the entity's schema forbids, such as
// deleting an entity whose schema disables deletion.
type NotAllowedError struct {
	Entity string
	Op     string
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Entity, e.Op)
}
