package worklog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/worklog-cli/worklog/config"
)

// Field describes one attribute of an entity: how raw input is coerced into
// the field's canonical type, how stored values are validated, serialized
// for the wire, and formatted for display, and which permission flags gate
// access to it.
//
// Fields are declared once and bound to exactly one schema at registration
// time. Binding a field instance to a second schema is a definition-time
// error.
type Field interface {
	// Name is the field's attribute name, also its wire name unless the
	// field maps to a different wire attribute (relations do).
	Name() string
	// Kind names the canonical type for error messages ("string",
	// "integer", ...).
	Kind() string

	Required() bool
	AdminOnly() bool
	Premium() bool
	CanRead() bool
	CanWrite() bool
	Default() *Default

	// Parse coerces an arbitrary input value into the canonical type.
	Parse(v any, s *Session) (any, error)
	// Validate checks a canonical value against the field's rules. The
	// owning entity is supplied so checks can resolve its workspace.
	Validate(ctx context.Context, v any, e *Entity) error
	// Serialize converts a canonical value into its wire representation.
	Serialize(v any) (any, error)
	// Format renders a canonical value for terminal display.
	Format(v any, s *Session) string

	bind(owner *Schema) error
	clone() Field
	base() *baseField
}

// FieldOption configures a field at declaration time.
type FieldOption func(*baseField)

// WithRequired marks the field as mandatory: constructing an entity without
// a value (and without a default) fails validation.
func WithRequired() FieldOption {
	return func(f *baseField) { f.required = true }
}

// WithAdminOnly restricts assignment to workspace admins.
func WithAdminOnly() FieldOption {
	return func(f *baseField) { f.adminOnly = true }
}

// WithPremium restricts the field to premium workspaces. The check runs at
// validation time, before any write reaches the API.
func WithPremium() FieldOption {
	return func(f *baseField) { f.premium = true }
}

// WithReadOnly forbids assignment after construction.
func WithReadOnly() FieldOption {
	return func(f *baseField) { f.write = false }
}

// WithWriteOnly hides the field from reads; it still serializes. Used for
// wire-side metadata such as created_with.
func WithWriteOnly() FieldOption {
	return func(f *baseField) { f.read = false }
}

// WithDefault attaches a fixed default value.
func WithDefault(v any) FieldOption {
	return func(f *baseField) { f.def = Fixed(v) }
}

// WithComputedDefault attaches a session-dependent default.
func WithComputedDefault(fn func(ctx context.Context, s *Session) (any, error)) FieldOption {
	return func(f *baseField) { f.def = Computed(fn) }
}

type baseField struct {
	name      string
	kind      string
	required  bool
	adminOnly bool
	premium   bool
	read      bool
	write     bool
	def       *Default
	owner     *Schema
}

func newBase(name, kind string, opts []FieldOption) baseField {
	f := baseField{name: name, kind: kind, read: true, write: true}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func (f *baseField) Name() string      { return f.name }
func (f *baseField) Kind() string      { return f.kind }
func (f *baseField) Required() bool    { return f.required }
func (f *baseField) AdminOnly() bool   { return f.adminOnly }
func (f *baseField) Premium() bool     { return f.premium }
func (f *baseField) CanRead() bool     { return f.read }
func (f *baseField) CanWrite() bool    { return f.write }
func (f *baseField) Default() *Default { return f.def }
func (f *baseField) base() *baseField  { return f }

func (f *baseField) bind(owner *Schema) error {
	if f.owner != nil {
		return fmt.Errorf("field %q is already bound to schema %q", f.name, f.owner.Name())
	}
	f.owner = owner
	return nil
}

// Validate applies the rules shared by every field kind. A required field
// with no default must carry a value; present values that happen to be falsy
// still count as present. Premium fields holding a truthy value require the
// entity's workspace to be on a premium plan.
func (f *baseField) Validate(ctx context.Context, v any, e *Entity) error {
	if v == nil {
		if f.required && f.def == nil {
			return &ValidationError{Entity: e.schema.Name(), Field: f.name, Reason: "value is required"}
		}
		return nil
	}
	if f.premium && isTruthy(v) {
		premium, ws, err := e.workspacePremium(ctx)
		if err != nil {
			return err
		}
		if !premium {
			return &EntitlementError{Entity: e.schema.Name(), Field: f.name, Workspace: ws}
		}
	}
	return nil
}

func (f *baseField) Format(v any, s *Session) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// isTruthy mirrors the notion of "actually using" a gated field: nil, false,
// zero and empty string do not trigger premium enforcement.
func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []string:
		return len(t) > 0
	case time.Time:
		return !t.IsZero()
	}
	return true
}

// StringField holds free-form text.
type StringField struct{ baseField }

func String(name string, opts ...FieldOption) *StringField {
	return &StringField{newBase(name, "string", opts)}
}

func (f *StringField) Parse(v any, s *Session) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	case int, int32, int64, float64, bool:
		return fmt.Sprintf("%v", t), nil
	}
	return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
}

func (f *StringField) Serialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t, ok := v.(string)
	if !ok {
		return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
	}
	return t, nil
}

func (f *StringField) clone() Field {
	c := *f
	c.owner = nil
	return &c
}

// IntegerField holds int64 values. JSON numbers arrive as float64 and are
// accepted when they are whole.
type IntegerField struct{ baseField }

func Integer(name string, opts ...FieldOption) *IntegerField {
	return &IntegerField{newBase(name, "integer", opts)}
}

func (f *IntegerField) Parse(v any, s *Session) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
	}
	return n, nil
}

func (f *IntegerField) Serialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t, ok := v.(int64)
	if !ok {
		return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
	}
	return t, nil
}

func (f *IntegerField) clone() Field {
	c := *f
	c.owner = nil
	return &c
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		if t != float64(int64(t)) {
			return 0, fmt.Errorf("%v is not a whole number", t)
		}
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to int64", v)
}

// FloatField holds float64 values.
type FloatField struct{ baseField }

func Float(name string, opts ...FieldOption) *FloatField {
	return &FloatField{newBase(name, "float", opts)}
}

func (f *FloatField) Parse(v any, s *Session) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
		}
		return n, nil
	}
	return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
}

func (f *FloatField) Serialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t, ok := v.(float64)
	if !ok {
		return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
	}
	return t, nil
}

func (f *FloatField) clone() Field {
	c := *f
	c.owner = nil
	return &c
}

// BooleanField holds bool values and accepts the usual textual spellings.
type BooleanField struct{ baseField }

func Boolean(name string, opts ...FieldOption) *BooleanField {
	return &BooleanField{newBase(name, "boolean", opts)}
}

func (f *BooleanField) Parse(v any, s *Session) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.ToLower(t))
		if err != nil {
			return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
		}
		return b, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	}
	return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
}

func (f *BooleanField) Serialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t, ok := v.(bool)
	if !ok {
		return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
	}
	return t, nil
}

func (f *BooleanField) clone() Field {
	c := *f
	c.owner = nil
	return &c
}

// DateTimeField holds time.Time values. String input without zone
// information is interpreted in the session's configured timezone;
// serialization is always RFC 3339 in UTC.
type DateTimeField struct{ baseField }

func DateTime(name string, opts ...FieldOption) *DateTimeField {
	return &DateTimeField{newBase(name, "datetime", opts)}
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// slashDateLayouts orders ambiguous slash-separated dates by the day_first
// and year_first settings.
func slashDateLayouts(cfg *config.Config) []string {
	if cfg == nil {
		return nil
	}
	if cfg.Bool(config.KeyYearFirst) {
		return []string{"2006/01/02 15:04", "2006/01/02"}
	}
	if cfg.Bool(config.KeyDayFirst) {
		return []string{"02/01/2006 15:04", "02/01/2006"}
	}
	return []string{"01/02/2006 15:04", "01/02/2006"}
}

func (f *DateTimeField) Parse(v any, s *Session) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		loc := time.UTC
		var cfg *config.Config
		if s != nil {
			loc = s.Timezone()
			cfg = s.Config()
		}
		for _, layout := range datetimeLayouts {
			if parsed, err := time.ParseInLocation(layout, t, loc); err == nil {
				return parsed, nil
			}
		}
		for _, layout := range slashDateLayouts(cfg) {
			if parsed, err := time.ParseInLocation(layout, t, loc); err == nil {
				return parsed, nil
			}
		}
		return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case float64:
		return time.Unix(int64(t), 0).UTC(), nil
	}
	return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
}

func (f *DateTimeField) Serialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t, ok := v.(time.Time)
	if !ok {
		return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
	}
	return t.UTC().Format(time.RFC3339), nil
}

func (f *DateTimeField) Format(v any, s *Session) string {
	if v == nil {
		return ""
	}
	t, ok := v.(time.Time)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	layout := "2006-01-02 15:04:05"
	loc := time.Local
	if s != nil {
		layout = s.Config().DatetimeFormat()
		loc = s.Timezone()
	}
	return t.In(loc).Format(layout)
}

func (f *DateTimeField) clone() Field {
	c := *f
	c.owner = nil
	return &c
}

// EmailField is a StringField with a shape check on validation.
type EmailField struct{ StringField }

func Email(name string, opts ...FieldOption) *EmailField {
	f := &EmailField{StringField{newBase(name, "email", opts)}}
	return f
}

func (f *EmailField) Validate(ctx context.Context, v any, e *Entity) error {
	if err := f.baseField.Validate(ctx, v, e); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	t, _ := v.(string)
	at := strings.Index(t, "@")
	if at <= 0 || !strings.Contains(t[at:], ".") {
		return &ValidationError{Entity: e.schema.Name(), Field: f.name, Reason: fmt.Sprintf("%q is not a valid email address", t)}
	}
	return nil
}

func (f *EmailField) clone() Field {
	c := *f
	c.owner = nil
	return &c
}

// ChoiceField holds one value out of a fixed mapping of wire value to
// human label. Input matching either side of the mapping is accepted and
// normalized to the wire value.
type ChoiceField struct {
	baseField
	choices map[string]string
}

func Choice(name string, choices map[string]string, opts ...FieldOption) *ChoiceField {
	return &ChoiceField{baseField: newBase(name, "choice", opts), choices: choices}
}

func (f *ChoiceField) Parse(v any, s *Session) (any, error) {
	raw := fmt.Sprintf("%v", v)
	if _, ok := f.choices[raw]; ok {
		return raw, nil
	}
	for value, label := range f.choices {
		if strings.EqualFold(label, raw) {
			return value, nil
		}
	}
	return nil, &ValidationError{Field: f.name, Reason: fmt.Sprintf("%q is not one of the allowed values", raw)}
}

func (f *ChoiceField) Serialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t, ok := v.(string)
	if !ok {
		return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
	}
	return t, nil
}

func (f *ChoiceField) Format(v any, s *Session) string {
	if v == nil {
		return ""
	}
	if label, ok := f.choices[fmt.Sprintf("%v", v)]; ok {
		return label
	}
	return fmt.Sprintf("%v", v)
}

func (f *ChoiceField) clone() Field {
	c := *f
	c.owner = nil
	return &c
}

// TagsField holds a set of strings, canonically a sorted []string.
type TagsField struct{ baseField }

func Tags(name string, opts ...FieldOption) *TagsField {
	return &TagsField{newBase(name, "tags", opts)}
}

func (f *TagsField) Parse(v any, s *Session) (any, error) {
	var out []string
	switch t := v.(type) {
	case []string:
		out = append(out, t...)
	case []any:
		for _, item := range t {
			str, ok := item.(string)
			if !ok {
				return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
			}
			out = append(out, str)
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	default:
		return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
	}
	sort.Strings(out)
	return dedupeSorted(out), nil
}

func (f *TagsField) Serialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t, ok := v.([]string)
	if !ok {
		return nil, &TypeError{Field: f.name, Kind: f.kind, Value: v}
	}
	return t, nil
}

func (f *TagsField) Format(v any, s *Session) string {
	t, ok := v.([]string)
	if !ok {
		return ""
	}
	return strings.Join(t, ", ")
}

func (f *TagsField) clone() Field {
	c := *f
	c.owner = nil
	return &c
}

func dedupeSorted(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}
