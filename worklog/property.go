package worklog

import "context"

// Getter computes a property field's value from its entity.
type Getter func(ctx context.Context, e *Entity) (any, error)

// Setter applies a new value to the entity, typically by writing derived
// state into other value slots. It returns true when the entity actually
// changed; that signal, not value comparison, drives dirty tracking.
// init is true while the entity is being constructed or deserialized, so
// setters can skip consistency checks that only make sense for live edits.
type Setter func(ctx context.Context, e *Entity, v any, init bool) (changed bool, err error)

// PropertyField derives its value from other fields instead of a plain
// value slot. Time entry duration is the canonical example: it is computed
// from start, stop and the running marker, and writing it adjusts those.
type PropertyField struct {
	baseField
	get         Getter
	set         Setter
	omitWire    bool
	serializeFn func(v any) (any, error)
	formatFn    func(v any, s *Session) string
}

// Property declares a derived field. A nil getter falls back to reading the
// field's own value slot; a nil setter makes the field read-only.
func Property(name string, get Getter, set Setter, opts ...FieldOption) *PropertyField {
	f := &PropertyField{
		baseField: newBase(name, "property", opts),
		get:       get,
		set:       set,
	}
	if f.get == nil {
		f.get = func(ctx context.Context, e *Entity) (any, error) {
			return e.values[name], nil
		}
	}
	if f.set == nil {
		f.write = false
	}
	return f
}

// omitFromWire keeps the property out of serialized payloads entirely.
// Derived flags like is_running are client-side only.
func (f *PropertyField) omitFromWire() *PropertyField {
	f.omitWire = true
	return f
}

// WithSerializer overrides how the computed value goes on the wire.
func (f *PropertyField) WithSerializer(fn func(v any) (any, error)) *PropertyField {
	f.serializeFn = fn
	return f
}

// WithFormatter overrides display rendering.
func (f *PropertyField) WithFormatter(fn func(v any, s *Session) string) *PropertyField {
	f.formatFn = fn
	return f
}

// Parse is identity: property setters receive the caller's value as-is and
// do their own coercion.
func (f *PropertyField) Parse(v any, s *Session) (any, error) { return v, nil }

func (f *PropertyField) Serialize(v any) (any, error) {
	if f.serializeFn != nil {
		return f.serializeFn(v)
	}
	return v, nil
}

func (f *PropertyField) Format(v any, s *Session) string {
	if f.formatFn != nil {
		return f.formatFn(v, s)
	}
	return f.baseField.Format(v, s)
}

func (f *PropertyField) clone() Field {
	c := *f
	c.owner = nil
	return &c
}
