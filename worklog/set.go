package worklog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/worklog-cli/worklog/transport"
)

// Conditions are attribute filters for Set queries, keyed by field name or
// relation wire name. Matching is performed client-side after fetching the
// collection, except where a custom list URL pushes supported conditions
// into the request itself.
type Conditions map[string]any

// FilterOption tweaks client-side matching.
type FilterOption func(*filterConfig)

type filterConfig struct {
	contain bool
}

// WithSubstringMatch makes string conditions match as substrings instead of
// exact values.
func WithSubstringMatch() FilterOption {
	return func(c *filterConfig) { c.contain = true }
}

// Set is a schema's query manager: fetching one entity by id, filtering a
// collection by conditions, or listing everything visible to the session.
type Set struct {
	schema    *Schema
	listURL   func(ctx context.Context, s *Session, conds Conditions) (string, error)
	detailURL func(s *Session, id int64) string
	sortFn    func(entities []*Entity)
}

func newSet(
	schema *Schema,
	listURL func(ctx context.Context, s *Session, conds Conditions) (string, error),
	detailURL func(s *Session, id int64) string,
	sortFn func(entities []*Entity),
) *Set {
	set := &Set{schema: schema, listURL: listURL, detailURL: detailURL, sortFn: sortFn}
	if set.detailURL == nil {
		set.detailURL = func(s *Session, id int64) string {
			return fmt.Sprintf("/%s/%d", schema.collection, id)
		}
	}
	if set.listURL == nil {
		set.listURL = schema.defaultListURL
	}
	return set
}

// defaultListURL scopes workspaced collections under their workspace. The
// workspace comes from the conditions ("workspace" as entity or id, or the
// relation's wire name), falling back to the session's default workspace.
func (s *Schema) defaultListURL(ctx context.Context, sess *Session, conds Conditions) (string, error) {
	rel, workspaced := s.workspaceRelation()
	if !workspaced {
		return "/" + s.collection, nil
	}
	var wid int64
	switch v := conds["workspace"].(type) {
	case *Entity:
		id, saved := v.ID()
		if !saved {
			return "", fmt.Errorf("cannot list %s of an unsaved workspace", s.collection)
		}
		wid = id
		delete(conds, "workspace")
	case nil:
		if raw, ok := conds[rel.Wire()]; ok {
			id, err := toInt64(raw)
			if err != nil {
				return "", fmt.Errorf("invalid workspace id %v", raw)
			}
			wid = id
			delete(conds, rel.Wire())
		} else {
			ws, err := sess.DefaultWorkspace(ctx)
			if err != nil {
				return "", err
			}
			wid, _ = ws.ID()
		}
	default:
		id, err := toInt64(v)
		if err != nil {
			return "", fmt.Errorf("invalid workspace %v", v)
		}
		wid = id
		delete(conds, "workspace")
	}
	// the scope is in the URL; matching the condition again client-side
	// would drop records that omit wid
	return fmt.Sprintf("/workspaces/%d/%s", wid, s.collection), nil
}

// Get fetches one entity by id. A 404 is absence, not an error. Schemas
// without a detail endpoint fall back to filtering the collection.
func (t *Set) Get(ctx context.Context, sess *Session, id int64) (*Entity, error) {
	if !t.schema.canDetail {
		return t.GetBy(ctx, sess, Conditions{"id": id})
	}
	raw, err := sess.Transport().Request(ctx, http.MethodGet, t.detailURL(sess, id), nil)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	record, err := unwrapData(raw)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return t.deserialize(ctx, sess, record)
}

// GetBy fetches the single entity matching the conditions. More than one
// match is a MultipleResultsError; none is nil without error.
func (t *Set) GetBy(ctx context.Context, sess *Session, conds Conditions, opts ...FilterOption) (*Entity, error) {
	matches, err := t.Filter(ctx, sess, conds, opts...)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, &MultipleResultsError{Entity: t.schema.name, Count: len(matches)}
	}
}

// Filter fetches the collection and keeps the entities matching every
// condition. Custom list URLs may consume conditions they can push into
// the request query string; the rest match client-side.
func (t *Set) Filter(ctx context.Context, sess *Session, conds Conditions, opts ...FilterOption) ([]*Entity, error) {
	cfg := filterConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	remaining := Conditions{}
	for k, v := range conds {
		remaining[k] = v
	}
	entities, err := t.fetch(ctx, sess, remaining)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		return entities, nil
	}

	var out []*Entity
	for _, e := range entities {
		ok, err := t.matches(ctx, e, remaining, cfg.contain)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// All lists every entity in the collection visible to the session.
func (t *Set) All(ctx context.Context, sess *Session) ([]*Entity, error) {
	return t.Filter(ctx, sess, nil)
}

func (t *Set) fetch(ctx context.Context, sess *Session, conds Conditions) ([]*Entity, error) {
	if !t.schema.canList {
		return nil, &NotAllowedError{Entity: t.schema.name, Op: "listing"}
	}
	url, err := t.listURL(ctx, sess, conds)
	if err != nil {
		return nil, err
	}
	raw, err := sess.Transport().Request(ctx, http.MethodGet, url, nil)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	records, err := unwrapList(raw)
	if err != nil {
		return nil, err
	}
	entities := make([]*Entity, 0, len(records))
	for _, record := range records {
		e, err := t.deserialize(ctx, sess, record)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if t.sortFn != nil {
		t.sortFn(entities)
	}
	return entities, nil
}

// deserialize builds an entity from a wire record. The server's "at"
// modification stamp is transport metadata and is dropped; unknown keys are
// ignored. The id is restored after field initialization so the entity
// counts as saved.
func (t *Set) deserialize(ctx context.Context, sess *Session, record map[string]any) (*Entity, error) {
	e := newEntity(t.schema, sess)

	for _, f := range t.schema.fields {
		switch field := f.(type) {
		case *RelationField:
			raw := record[field.Wire()]
			if raw == nil {
				raw = record[f.Name()]
			}
			if raw == nil {
				continue
			}
			id, err := field.Parse(raw, sess)
			if err != nil {
				return nil, err
			}
			e.values[field.Wire()] = id
		case *PropertyField:
			// derived read-only properties (is_running) may appear in
			// server records; their value is recomputed, not stored
			raw, ok := record[f.Name()]
			if !ok || field.set == nil {
				continue
			}
			if _, err := field.set(ctx, e, raw, true); err != nil {
				return nil, err
			}
		default:
			raw, ok := record[f.Name()]
			if !ok || raw == nil {
				continue
			}
			parsed, err := f.Parse(raw, sess)
			if err != nil {
				return nil, err
			}
			e.values[f.Name()] = parsed
		}
	}

	if t.schema.init != nil {
		if err := t.schema.init(ctx, e, record); err != nil {
			return nil, err
		}
	}
	if rawID, ok := record["id"]; ok && rawID != nil {
		id, err := toInt64(rawID)
		if err != nil {
			return nil, fmt.Errorf("%s record carries malformed id %v", t.schema.name, rawID)
		}
		e.id = id
		e.hasID = true
	}
	e.markClean()
	return e, nil
}

// matches evaluates client-side conditions against one entity. Relation
// conditions compare ids, tag conditions require a subset, everything else
// compares stringified values (or substrings when contain is set).
func (t *Set) matches(ctx context.Context, e *Entity, conds Conditions, contain bool) (bool, error) {
	for key, want := range conds {
		if key == "id" {
			wantID, err := toInt64(want)
			if err != nil {
				return false, fmt.Errorf("invalid id condition %v", want)
			}
			if !e.hasID || e.id != wantID {
				return false, nil
			}
			continue
		}

		rel, isWire := t.schema.relationByWire(key)
		if !isWire {
			if f, ok := t.schema.byName[key]; ok {
				if r, isRel := f.(*RelationField); isRel {
					rel, isWire = r, true
				}
			}
		}
		if isWire {
			ok, err := matchRelation(e, rel, want)
			if err != nil || !ok {
				return false, err
			}
			continue
		}

		// a condition key the schema lacks matches nothing
		f, ok := t.schema.byName[key]
		if !ok {
			return false, nil
		}
		if _, isTags := f.(*TagsField); isTags {
			if !matchTags(e.values[key], want) {
				return false, nil
			}
			continue
		}
		got, err := e.Get(ctx, key)
		if err != nil {
			return false, err
		}
		if got == nil {
			return false, nil
		}
		gotStr := fmt.Sprintf("%v", got)
		wantStr := fmt.Sprintf("%v", want)
		if contain {
			if !strings.Contains(gotStr, wantStr) {
				return false, nil
			}
		} else if gotStr != wantStr {
			return false, nil
		}
	}
	return true, nil
}

func matchRelation(e *Entity, rel *RelationField, want any) (bool, error) {
	var wantID int64
	if other, isEntity := want.(*Entity); isEntity {
		id, saved := other.ID()
		if !saved {
			return false, fmt.Errorf("cannot filter by unsaved %s", other.schema.name)
		}
		wantID = id
	} else {
		id, err := toInt64(want)
		if err != nil {
			return false, fmt.Errorf("invalid %s condition %v", rel.Name(), want)
		}
		wantID = id
	}
	stored := e.values[rel.Wire()]
	if stored == nil {
		return false, nil
	}
	gotID, err := toInt64(stored)
	if err != nil {
		return false, nil
	}
	return gotID == wantID, nil
}

// matchTags requires every wanted tag to be present on the entity.
func matchTags(got any, want any) bool {
	have, _ := got.([]string)
	haveSet := make(map[string]bool, len(have))
	for _, tag := range have {
		haveSet[tag] = true
	}
	var wanted []string
	switch w := want.(type) {
	case string:
		wanted = []string{w}
	case []string:
		wanted = w
	case []any:
		for _, item := range w {
			wanted = append(wanted, fmt.Sprintf("%v", item))
		}
	default:
		return false
	}
	for _, tag := range wanted {
		if !haveSet[tag] {
			return false
		}
	}
	return true
}

// unwrapList parses a collection response, peeling the data envelope when
// present. A null body is an empty collection.
func unwrapList(raw json.RawMessage) ([]map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	payload := raw
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(raw, &outer); err == nil {
		if data, ok := outer["data"]; ok {
			payload = data
		}
	}
	if string(payload) == "null" {
		return nil, nil
	}
	var records []map[string]any
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("malformed collection response: %w", err)
	}
	return records, nil
}
