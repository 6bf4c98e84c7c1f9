package worklog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sort"
)

// Entity is one record of a registered schema. Values live in a map keyed
// by attribute name (relations store their target's id under the wire
// name); a separate dirty set records which attributes changed since the
// last sync, and drives partial updates.
//
// An entity without an id has never been saved, or was deleted; saving it
// creates a new record.
type Entity struct {
	schema *Schema
	sess   *Session
	id     int64
	hasID  bool
	values map[string]any
	dirty  map[string]bool
}

func newEntity(s *Schema, sess *Session) *Entity {
	return &Entity{
		schema: s,
		sess:   sess,
		values: map[string]any{},
		dirty:  map[string]bool{},
	}
}

// New constructs an unsaved entity from raw attribute values. Relations
// accept either the related entity or its id, under the field name or the
// wire name. Required fields without a default must be present. Unknown
// keys are rejected.
func (s *Schema) New(ctx context.Context, sess *Session, raw map[string]any) (*Entity, error) {
	if s.abstract {
		return nil, fmt.Errorf("schema %q is abstract", s.name)
	}
	e := newEntity(s, sess)
	consumed := map[string]bool{}

	for _, f := range s.fields {
		switch field := f.(type) {
		case *RelationField:
			v, key := raw[f.Name()], f.Name()
			if v == nil {
				v, key = raw[field.Wire()], field.Wire()
			}
			if v == nil {
				continue
			}
			consumed[key] = true
			if err := e.initRelation(field, v); err != nil {
				return nil, err
			}
		case *PropertyField:
			v, ok := raw[f.Name()]
			if !ok {
				continue
			}
			if field.set == nil {
				return nil, &NotAllowedError{Entity: s.name, Op: fmt.Sprintf("writing field %q", f.Name())}
			}
			consumed[f.Name()] = true
			if _, err := field.set(ctx, e, v, true); err != nil {
				return nil, err
			}
		default:
			v, ok := raw[f.Name()]
			if !ok {
				if f.Required() && f.Default() == nil {
					return nil, &ValidationError{Entity: s.name, Field: f.Name(), Reason: "value is required"}
				}
				continue
			}
			consumed[f.Name()] = true
			parsed, err := f.Parse(v, sess)
			if err != nil {
				return nil, err
			}
			e.values[f.Name()] = parsed
		}
	}

	for key := range raw {
		if !consumed[key] {
			return nil, fmt.Errorf("unknown field %q for %s", key, s.name)
		}
	}
	if s.init != nil {
		if err := s.init(ctx, e, raw); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Entity) Schema() *Schema   { return e.schema }
func (e *Entity) Session() *Session { return e.sess }

// ID returns the entity's remote identity, if it has been saved.
func (e *Entity) ID() (int64, bool) { return e.id, e.hasID }

func (e *Entity) String() string {
	if name, ok := e.values["name"].(string); ok && name != "" {
		return fmt.Sprintf("%s %q", e.schema.name, name)
	}
	if e.hasID {
		return fmt.Sprintf("%s #%d", e.schema.name, e.id)
	}
	return fmt.Sprintf("unsaved %s", e.schema.name)
}

// Dirty lists the changed attribute slots, sorted.
func (e *Entity) Dirty() []string {
	out := make([]string, 0, len(e.dirty))
	for k := range e.dirty {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *Entity) markClean() {
	e.dirty = map[string]bool{}
}

// Get reads a field by name. Relation fields resolve the stored id into an
// entity via the target's query set; unset plain fields fall back to their
// default (nil when there is none).
func (e *Entity) Get(ctx context.Context, name string) (any, error) {
	f, ok := e.schema.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown field %q for %s", name, e.schema.name)
	}
	if !f.CanRead() {
		return nil, &NotAllowedError{Entity: e.schema.name, Op: fmt.Sprintf("reading field %q", name)}
	}
	switch field := f.(type) {
	case *RelationField:
		if field.Cardinality() == Many {
			return nil, fmt.Errorf("relation %q: to-many traversal: %w", name, ErrNotImplemented)
		}
		return e.resolveRelation(ctx, field)
	case *PropertyField:
		return field.get(ctx, e)
	default:
		if v, ok := e.values[name]; ok {
			return v, nil
		}
		if def := f.Default(); def != nil {
			v, err := def.Resolve(ctx, e.sess)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, nil
			}
			return f.Parse(v, e.sess)
		}
		return nil, nil
	}
}

// Set writes a field by name. Read-only fields reject the write; admin-only
// fields require the caller to be an admin of the entity's workspace.
// Plain fields become dirty when the parsed value differs from the stored
// one; property fields become dirty when their setter reports a change.
func (e *Entity) Set(ctx context.Context, name string, value any) error {
	f, ok := e.schema.byName[name]
	if !ok {
		return fmt.Errorf("unknown field %q for %s", name, e.schema.name)
	}
	if !f.CanWrite() {
		return &NotAllowedError{Entity: e.schema.name, Op: fmt.Sprintf("writing field %q", name)}
	}
	if f.AdminOnly() {
		if err := e.checkAdmin(ctx, f); err != nil {
			return err
		}
	}
	switch field := f.(type) {
	case *RelationField:
		if field.Cardinality() == Many {
			return fmt.Errorf("relation %q: to-many assignment: %w", name, ErrNotImplemented)
		}
		return e.setRelation(field, value)
	case *PropertyField:
		changed, err := field.set(ctx, e, value, false)
		if err != nil {
			return err
		}
		if changed {
			e.dirty[name] = true
		}
		return nil
	default:
		if value == nil {
			if f.Required() {
				return &ValidationError{Entity: e.schema.name, Field: name, Reason: "required field cannot be cleared"}
			}
			if _, had := e.values[name]; had && e.values[name] != nil {
				e.values[name] = nil
				e.dirty[name] = true
			}
			return nil
		}
		parsed, err := f.Parse(value, e.sess)
		if err != nil {
			return err
		}
		if current, ok := e.values[name]; !ok || !reflect.DeepEqual(current, parsed) {
			e.values[name] = parsed
			e.dirty[name] = true
		}
		return nil
	}
}

// initRelation stores a foreign key during construction, without dirty
// tracking or warnings.
func (e *Entity) initRelation(f *RelationField, value any) error {
	if other, ok := value.(*Entity); ok {
		id, saved := other.ID()
		if !saved {
			return fmt.Errorf("cannot link %s to unsaved %s", e.schema.name, other.schema.name)
		}
		e.values[f.Wire()] = id
		return nil
	}
	id, err := f.Parse(value, e.sess)
	if err != nil {
		return err
	}
	e.values[f.Wire()] = id
	return nil
}

func (e *Entity) setRelation(f *RelationField, value any) error {
	var stored any
	switch other := value.(type) {
	case nil:
		stored = nil
	case *Entity:
		if other == nil {
			stored = nil
			break
		}
		if other.schema != f.Target() {
			e.sess.Logger().Warn().
				Str("field", f.Name()).
				Str("expected", f.Target().Name()).
				Str("got", other.schema.name).
				Msg("assigning entity of unexpected type to relation")
		}
		id, saved := other.ID()
		if !saved {
			return fmt.Errorf("cannot link %s to unsaved %s", e.schema.name, other.schema.name)
		}
		stored = id
	default:
		id, err := toInt64(value)
		if err != nil {
			e.sess.Logger().Warn().
				Str("field", f.Name()).
				Interface("value", value).
				Msg("assigning non-entity, non-integer value to relation")
			stored = value
			break
		}
		stored = id
	}

	if current, ok := e.values[f.Wire()]; !ok || !reflect.DeepEqual(current, stored) {
		e.values[f.Wire()] = stored
		e.dirty[f.Wire()] = true
	}
	return nil
}

// resolveRelation turns the stored id (or the relation's default) into the
// target entity.
func (e *Entity) resolveRelation(ctx context.Context, f *RelationField) (*Entity, error) {
	id, ok := e.values[f.Wire()]
	if !ok || id == nil {
		def := f.Default()
		if def == nil {
			return nil, nil
		}
		v, err := def.Resolve(ctx, e.sess)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		if other, isEntity := v.(*Entity); isEntity {
			return other, nil
		}
		id = v
	}
	n, err := toInt64(id)
	if err != nil {
		return nil, &TypeError{Field: f.Name(), Kind: "relation id", Value: id}
	}
	return f.Target().Objects().Get(ctx, e.sess, n)
}

// Workspace resolves the entity's workspace. Workspace entities are their
// own workspace.
func (e *Entity) Workspace(ctx context.Context) (*Entity, error) {
	if e.schema.name == "workspace" {
		return e, nil
	}
	rel, ok := e.schema.workspaceRelation()
	if !ok {
		return nil, nil
	}
	return e.resolveRelation(ctx, rel)
}

func (e *Entity) checkAdmin(ctx context.Context, f Field) error {
	ws, err := e.Workspace(ctx)
	if err != nil {
		return err
	}
	if ws == nil {
		return fmt.Errorf("field %q is admin-only but %s has no workspace", f.Name(), e.schema.name)
	}
	if admin, _ := ws.values["admin"].(bool); !admin {
		name, _ := ws.values["name"].(string)
		return &PermissionError{Field: f.Name(), Workspace: name}
	}
	return nil
}

// workspacePremium reports whether the entity's workspace is on a premium
// plan, along with the workspace name for error messages.
func (e *Entity) workspacePremium(ctx context.Context) (bool, string, error) {
	ws, err := e.Workspace(ctx)
	if err != nil {
		return false, "", err
	}
	if ws == nil {
		return false, "", fmt.Errorf("%s has no workspace to check the plan of", e.schema.name)
	}
	premium, _ := ws.values["premium"].(bool)
	name, _ := ws.values["name"].(string)
	return premium, name, nil
}

// Validate checks every field's current (or default) value. It performs no
// writes; premium and required violations surface here before a save ever
// reaches the network.
func (e *Entity) Validate(ctx context.Context) error {
	for _, f := range e.schema.fields {
		var v any
		switch field := f.(type) {
		case *RelationField:
			v = e.values[field.Wire()]
		case *PropertyField:
			got, err := field.get(ctx, e)
			if err != nil {
				return err
			}
			v = got
		default:
			if stored, ok := e.values[f.Name()]; ok {
				v = stored
			} else if def := f.Default(); def != nil {
				resolved, err := def.Resolve(ctx, e.sess)
				if err != nil {
					return err
				}
				if resolved != nil {
					parsed, err := f.Parse(resolved, e.sess)
					if err != nil {
						return err
					}
					v = parsed
				}
			}
		}
		if err := f.Validate(ctx, v, e); err != nil {
			return err
		}
	}
	return nil
}

// Save validates the entity and creates or updates the remote record.
// Creation sends the full serialized payload; update sends only dirty
// attributes. On success the entity adopts the server-assigned id and the
// dirty set is cleared.
func (e *Entity) Save(ctx context.Context) error {
	if e.schema.premium {
		premium, name, err := e.workspacePremium(ctx)
		if err != nil {
			return err
		}
		if !premium {
			return &EntitlementError{Entity: e.schema.name, Workspace: name}
		}
	}
	if err := e.Validate(ctx); err != nil {
		return err
	}

	if e.hasID {
		return e.update(ctx)
	}
	return e.create(ctx)
}

func (e *Entity) create(ctx context.Context) error {
	if !e.schema.canCreate {
		return &NotAllowedError{Entity: e.schema.name, Op: "create"}
	}
	wire, err := e.wireMap(ctx, false)
	if err != nil {
		return err
	}
	body := map[string]any{e.schema.name: wire}
	raw, err := e.sess.Transport().Request(ctx, http.MethodPost, "/"+e.schema.collection, body)
	if err != nil {
		return err
	}
	if err := e.adoptIdentity(raw); err != nil {
		return err
	}
	e.markClean()
	return nil
}

func (e *Entity) update(ctx context.Context) error {
	if !e.schema.canUpdate {
		return &NotAllowedError{Entity: e.schema.name, Op: "update"}
	}
	wire, err := e.wireMap(ctx, true)
	if err != nil {
		return err
	}
	if len(wire) == 0 {
		return nil
	}
	body := map[string]any{e.schema.name: wire}
	path := fmt.Sprintf("/%s/%d", e.schema.collection, e.id)
	if _, err := e.sess.Transport().Request(ctx, http.MethodPut, path, body); err != nil {
		return err
	}
	e.markClean()
	return nil
}

// Delete removes the remote record and resets the entity's identity, so a
// subsequent Save creates a fresh record.
func (e *Entity) Delete(ctx context.Context) error {
	if !e.schema.canDelete {
		return &NotAllowedError{Entity: e.schema.name, Op: "delete"}
	}
	if !e.hasID {
		return fmt.Errorf("cannot delete unsaved %s", e.schema.name)
	}
	path := fmt.Sprintf("/%s/%d", e.schema.collection, e.id)
	if _, err := e.sess.Transport().Request(ctx, http.MethodDelete, path, nil); err != nil {
		return err
	}
	e.id = 0
	e.hasID = false
	return nil
}

// adoptIdentity pulls the server-assigned id out of a create response,
// accepting both enveloped ({"data": {...}}) and bare payloads.
func (e *Entity) adoptIdentity(raw json.RawMessage) error {
	record, err := unwrapData(raw)
	if err != nil {
		return err
	}
	idVal, ok := record["id"]
	if !ok {
		return fmt.Errorf("create response for %s carries no id", e.schema.name)
	}
	id, err := toInt64(idVal)
	if err != nil {
		return fmt.Errorf("create response for %s: %w", e.schema.name, err)
	}
	e.id = id
	e.hasID = true
	return nil
}

// wireMap serializes the entity for the API. Updates include only dirty
// slots; creates include every non-nil value, defaults resolved. The id is
// never part of the payload, and neither are private marker slots.
func (e *Entity) wireMap(ctx context.Context, update bool) (map[string]any, error) {
	wire := map[string]any{}
	for _, f := range e.schema.fields {
		key := f.Name()
		var value any
		var present bool

		switch field := f.(type) {
		case *RelationField:
			key = field.Wire()
			if v, ok := e.values[key]; ok {
				value, present = v, true
			} else if def := f.Default(); def != nil && !update {
				resolved, err := def.Resolve(ctx, e.sess)
				if err != nil {
					return nil, err
				}
				if other, isEntity := resolved.(*Entity); isEntity {
					if id, saved := other.ID(); saved {
						value, present = id, true
					}
				} else if resolved != nil {
					value, present = resolved, true
				}
			}
		case *PropertyField:
			if field.omitWire {
				continue
			}
			got, err := field.get(ctx, e)
			if err != nil {
				return nil, err
			}
			value, present = got, true
		default:
			if v, ok := e.values[key]; ok {
				value, present = v, true
			} else if def := f.Default(); def != nil && !update {
				resolved, err := def.Resolve(ctx, e.sess)
				if err != nil {
					return nil, err
				}
				value, present = resolved, true
			}
		}

		if update && !e.dirty[key] && !e.dirty[f.Name()] {
			continue
		}
		if !present {
			continue
		}
		if !update && value == nil {
			continue
		}

		if value != nil {
			parsed, err := f.Parse(value, e.sess)
			if err != nil {
				return nil, err
			}
			value = parsed
		}
		serialized, err := f.Serialize(value)
		if err != nil {
			return nil, err
		}
		wire[key] = serialized
	}
	if e.schema.prepareWire != nil {
		e.schema.prepareWire(ctx, e, wire, update)
	}
	return wire, nil
}

// FormatField renders a field for display using its Format hook.
func (e *Entity) FormatField(ctx context.Context, name string) (string, error) {
	f, ok := e.schema.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown field %q for %s", name, e.schema.name)
	}
	v, err := e.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if other, isEntity := v.(*Entity); isEntity {
		return other.String(), nil
	}
	return f.Format(v, e.sess), nil
}

// Equal compares two saved entities of the same schema by id. Comparing
// across schemas or with unsaved entities is an error.
func (e *Entity) Equal(other *Entity) (bool, error) {
	if other == nil {
		return false, fmt.Errorf("cannot compare %s with nil", e.schema.name)
	}
	if e.schema != other.schema {
		return false, fmt.Errorf("cannot compare %s with %s", e.schema.name, other.schema.name)
	}
	if !e.hasID || !other.hasID {
		return false, fmt.Errorf("cannot compare unsaved %s entities", e.schema.name)
	}
	return e.id == other.id, nil
}

// unwrapData peels the {"data": ...} envelope some endpoints use. A JSON
// null data member yields a nil record.
func unwrapData(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	payload := raw
	if data, ok := outer["data"]; ok {
		payload = data
	}
	if string(payload) == "null" {
		return nil, nil
	}
	var record map[string]any
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	return record, nil
}
