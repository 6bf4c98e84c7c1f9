package worklog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/worklog-cli/worklog/internal/validation"
)

// SchemaSpec declares an entity type for registration. Field order is
// significant: construction, validation and serialization all walk the
// fields in declaration order, inherited fields first.
type SchemaSpec struct {
	// Name is the entity's snake_case singular name ("time_entry").
	Name string
	// Collection overrides the derived plural collection name.
	Collection string
	// Extends copies the fields and premium flag of an already registered
	// (usually abstract) schema ahead of this spec's own fields.
	Extends *Schema
	// Abstract schemas only exist to be extended: they get no query set
	// and cannot construct entities.
	Abstract bool
	Fields   []Field

	// PremiumOnly gates the whole entity type behind a premium workspace.
	PremiumOnly bool

	DisableCreate bool
	DisableUpdate bool
	DisableDelete bool
	DisableDetail bool
	DisableList   bool

	// Init runs after construction and deserialization, for invariants
	// that span multiple fields.
	Init func(ctx context.Context, e *Entity, raw map[string]any) error
	// PrepareWire post-processes an outgoing payload, for wire quirks that
	// span multiple fields.
	PrepareWire func(ctx context.Context, e *Entity, wire map[string]any, update bool)
	// ListURL and DetailURL override the default endpoint layout.
	ListURL   func(ctx context.Context, s *Session, conds Conditions) (string, error)
	DetailURL func(s *Session, id int64) string
	// Sort orders fetched collections before they are returned.
	Sort func(entities []*Entity)
}

// Schema is a registered entity type: the ordered field registry plus the
// capability flags and endpoint hooks that drive the entity lifecycle.
type Schema struct {
	name       string
	collection string
	abstract   bool
	premium    bool

	fields []Field
	byName map[string]Field
	byWire map[string]*RelationField

	canCreate bool
	canUpdate bool
	canDelete bool
	canDetail bool
	canList   bool

	init        func(ctx context.Context, e *Entity, raw map[string]any) error
	prepareWire func(ctx context.Context, e *Entity, wire map[string]any, update bool)
	set         *Set
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Schema{}
)

// Register builds a schema from spec, validates it and adds it to the
// process-wide registry. Field instances bind to exactly one schema; reuse
// across specs is an error (declare fresh instances, or extend).
func Register(spec SchemaSpec) (*Schema, error) {
	if spec.Extends != nil && !spec.Extends.abstract {
		return nil, fmt.Errorf("schema %q: can only extend abstract schemas, %q is concrete", spec.Name, spec.Extends.name)
	}
	registryMu.RLock()
	_, taken := registry[spec.Name]
	registryMu.RUnlock()
	if taken {
		return nil, fmt.Errorf("schema %q is already registered", spec.Name)
	}

	s := &Schema{
		name:        spec.Name,
		collection:  spec.Collection,
		abstract:    spec.Abstract,
		premium:     spec.PremiumOnly,
		byName:      map[string]Field{},
		byWire:      map[string]*RelationField{},
		canCreate:   !spec.DisableCreate,
		canUpdate:   !spec.DisableUpdate,
		canDelete:   !spec.DisableDelete,
		canDetail:   !spec.DisableDetail,
		canList:     !spec.DisableList,
		init:        spec.Init,
		prepareWire: spec.PrepareWire,
	}
	if s.collection == "" {
		s.collection = pluralize(spec.Name)
	}

	var fields []Field
	if spec.Extends != nil {
		s.premium = s.premium || spec.Extends.premium
		for _, f := range spec.Extends.fields {
			fields = append(fields, f.clone())
		}
	}
	fields = append(fields, spec.Fields...)

	vspec := validation.SchemaSpec{Name: spec.Name, Collection: s.collection}
	for _, f := range fields {
		vf := validation.FieldSpec{Name: f.Name(), Kind: f.Kind()}
		if rel, ok := f.(*RelationField); ok {
			vf.Wire = rel.Wire()
			vf.TargetKnown = rel.Target() != nil
		}
		vspec.Fields = append(vspec.Fields, vf)
	}
	if err := validation.Schema(vspec); err != nil {
		return nil, fmt.Errorf("schema %q: %w", spec.Name, err)
	}

	for _, f := range fields {
		if err := f.bind(s); err != nil {
			return nil, fmt.Errorf("schema %q: %w", spec.Name, err)
		}
		s.fields = append(s.fields, f)
		s.byName[f.Name()] = f
		if rel, ok := f.(*RelationField); ok {
			s.byWire[rel.Wire()] = rel
		}
	}

	if !s.abstract {
		s.set = newSet(s, spec.ListURL, spec.DetailURL, spec.Sort)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[spec.Name]; exists {
		return nil, fmt.Errorf("schema %q is already registered", spec.Name)
	}
	registry[spec.Name] = s
	return s, nil
}

// MustRegister is Register for package-level schema declarations.
func MustRegister(spec SchemaSpec) *Schema {
	s, err := Register(spec)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the registered schema with the given name.
func Lookup(name string) (*Schema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	return s, ok
}

// Schemas returns every registered non-abstract schema, sorted by name.
func Schemas() []*Schema {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]*Schema, 0, len(registry))
	for _, s := range registry {
		if !s.abstract {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (s *Schema) Name() string       { return s.name }
func (s *Schema) Collection() string { return s.collection }
func (s *Schema) Premium() bool      { return s.premium }

// CanCreate and CanDelete report which lifecycle operations the API offers
// for this entity type.
func (s *Schema) CanCreate() bool { return s.canCreate }
func (s *Schema) CanDelete() bool { return s.canDelete }

// Fields returns the registry in declaration order.
func (s *Schema) Fields() []Field { return s.fields }

// FieldByName looks a field up by its attribute name.
func (s *Schema) FieldByName(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// relationByWire resolves a wire attribute ("pid") back to its relation.
func (s *Schema) relationByWire(wire string) (*RelationField, bool) {
	f, ok := s.byWire[wire]
	return f, ok
}

// workspaceRelation returns the schema's workspace link, if it has one.
func (s *Schema) workspaceRelation() (*RelationField, bool) {
	f, ok := s.byName["workspace"]
	if !ok {
		return nil, false
	}
	rel, ok := f.(*RelationField)
	return rel, ok
}

// Objects is the schema's query set.
func (s *Schema) Objects() *Set { return s.set }

func pluralize(name string) string {
	if strings.HasSuffix(name, "y") {
		return name[:len(name)-1] + "ies"
	}
	if strings.HasSuffix(name, "s") {
		return name + "es"
	}
	return name + "s"
}
