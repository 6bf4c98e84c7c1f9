package worklog

import "context"

// Default is the declared fallback value of a field. It is either a fixed
// value or a function computed against the live session, so defaults like
// "the session's default workspace" resolve at read time rather than at
// schema registration time.
type Default struct {
	value any
	fn    func(ctx context.Context, s *Session) (any, error)
}

// Fixed returns a Default that always resolves to v.
func Fixed(v any) *Default {
	return &Default{value: v}
}

// Computed returns a Default resolved by calling fn.
func Computed(fn func(ctx context.Context, s *Session) (any, error)) *Default {
	return &Default{fn: fn}
}

// Resolve produces the default's value for the given session.
func (d *Default) Resolve(ctx context.Context, s *Session) (any, error) {
	if d.fn != nil {
		return d.fn(ctx, s)
	}
	return d.value, nil
}

// IsComputed reports whether the default is session dependent.
func (d *Default) IsComputed() bool {
	return d.fn != nil
}
