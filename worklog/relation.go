package worklog

import "context"

// Cardinality describes how many target entities a relation points at.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

// RelationField links an entity to another registered schema. The entity
// stores only the target's integer id, under the relation's wire name
// ("project" stored as "pid", for example); reading the field resolves the
// id into a full entity through the target schema's query set.
//
// Only cardinality One is supported. A Many relation registers but every
// read or write through it fails with ErrNotImplemented.
type RelationField struct {
	baseField
	target      *Schema
	wire        string
	cardinality Cardinality
}

// Relation declares a to-one link to target, with the id stored under the
// wire attribute name.
func Relation(name string, target *Schema, wire string, opts ...FieldOption) *RelationField {
	return &RelationField{
		baseField: newBase(name, "relation", opts),
		target:    target,
		wire:      wire,
	}
}

// ManyRelation declares a to-many link. Declared for schema completeness
// only; traversal is unsupported.
func ManyRelation(name string, target *Schema, wire string, opts ...FieldOption) *RelationField {
	f := Relation(name, target, wire, opts...)
	f.cardinality = Many
	return f
}

// Wire is the attribute name the related id is stored and serialized under.
func (f *RelationField) Wire() string { return f.wire }

// Target is the schema this relation points at.
func (f *RelationField) Target() *Schema { return f.target }

func (f *RelationField) Cardinality() Cardinality { return f.cardinality }

// Parse coerces a foreign key value into an int64 id.
func (f *RelationField) Parse(v any, s *Session) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, &TypeError{Field: f.name, Kind: "relation id", Value: v}
	}
	return n, nil
}

func (f *RelationField) Serialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, &TypeError{Field: f.name, Kind: "relation id", Value: v}
	}
	return n, nil
}

func (f *RelationField) Validate(ctx context.Context, v any, e *Entity) error {
	return f.baseField.Validate(ctx, v, e)
}

func (f *RelationField) Format(v any, s *Session) string {
	return f.baseField.Format(v, s)
}

func (f *RelationField) clone() Field {
	c := *f
	c.owner = nil
	return &c
}
