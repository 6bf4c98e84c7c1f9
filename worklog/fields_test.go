package worklog

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/worklog-cli/worklog/config"
)

func TestIntegerParse(t *testing.T) {
	f := Integer("count")

	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{42, 42, true},
		{int64(7), 7, true},
		{float64(3), 3, true},
		{"19", 19, true},
		{3.5, 0, false},
		{"abc", 0, false},
		{true, 0, false},
	}
	for _, c := range cases {
		got, err := f.Parse(c.in, nil)
		if c.ok && err != nil {
			t.Errorf("Parse(%v): unexpected error %v", c.in, err)
			continue
		}
		if !c.ok {
			if err == nil {
				t.Errorf("Parse(%v): expected error, got %v", c.in, got)
			}
			continue
		}
		if got != c.want {
			t.Errorf("Parse(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestBooleanParse(t *testing.T) {
	f := Boolean("flag")

	for _, c := range []struct {
		in   any
		want bool
	}{
		{true, true},
		{"true", true},
		{"False", false},
		{"1", true},
		{0, false},
		{float64(1), true},
	} {
		got, err := f.Parse(c.in, nil)
		if err != nil {
			t.Fatalf("Parse(%v): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Parse(%v) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := f.Parse("maybe", nil); err == nil {
		t.Error("expected error for unparsable boolean")
	}
}

func TestDateTimeParseAndSerialize(t *testing.T) {
	f := DateTime("start")

	got, err := f.Parse("2024-01-01T10:00:00Z", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !got.(time.Time).Equal(want) {
		t.Errorf("Parse = %v, want %v", got, want)
	}

	// no zone in the input: interpreted as UTC when there is no session
	got, err = f.Parse("2024-01-01 10:00:00", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.(time.Time).Equal(want) {
		t.Errorf("Parse = %v, want %v", got, want)
	}

	serialized, err := f.Serialize(want)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if serialized != "2024-01-01T10:00:00Z" {
		t.Errorf("Serialize = %v", serialized)
	}

	if _, err := f.Serialize("not a time"); err == nil {
		t.Error("expected serialize error for wrong canonical type")
	}
}

func TestDateTimeAmbiguousDateOrder(t *testing.T) {
	sess, _ := newTestSession(t)
	f := DateTime("when")

	got, err := f.Parse("03/04/2024", sess)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.(time.Time).Month() != time.March {
		t.Errorf("month-first parse = %v, want March", got)
	}

	sess.Config().Set(config.KeyDayFirst, true)
	got, err = f.Parse("03/04/2024", sess)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.(time.Time).Month() != time.April {
		t.Errorf("day-first parse = %v, want April", got)
	}

	sess.Config().Set(config.KeyYearFirst, true)
	got, err = f.Parse("2024/05/06", sess)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.(time.Time).Month() != time.May {
		t.Errorf("year-first parse = %v, want May", got)
	}
}

func TestChoiceParse(t *testing.T) {
	f := Choice("beginning_of_week", map[string]string{"0": "Sunday", "1": "Monday"})

	if got, err := f.Parse("1", nil); err != nil || got != "1" {
		t.Errorf("Parse(1) = %v, %v", got, err)
	}
	if got, err := f.Parse("monday", nil); err != nil || got != "1" {
		t.Errorf("Parse(monday) = %v, %v", got, err)
	}
	if got, err := f.Parse(float64(0), nil); err != nil || got != "0" {
		t.Errorf("Parse(0.0) = %v, %v", got, err)
	}
	if _, err := f.Parse("noday", nil); err == nil {
		t.Error("expected error for unknown choice")
	}
	if f.Format("1", nil) != "Monday" {
		t.Errorf("Format(1) = %q", f.Format("1", nil))
	}
}

func TestTagsParse(t *testing.T) {
	f := Tags("tags")

	got, err := f.Parse([]any{"work", "billing", "work"}, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"billing", "work"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse = %v, want %v", got, want)
	}

	got, err = f.Parse("b, a ,c", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Parse = %v", got)
	}
}

func TestStringParseAcceptsScalars(t *testing.T) {
	f := String("name")

	for in, want := range map[any]string{
		"plain": "plain",
		42:      "42",
		true:    "true",
	} {
		got, err := f.Parse(in, nil)
		if err != nil || got != want {
			t.Errorf("Parse(%v) = %v, %v, want %q", in, got, err, want)
		}
	}
	if _, err := f.Parse(map[string]any{}, nil); err == nil {
		t.Error("expected error for non-scalar value")
	}
}

func TestRequiredValidation(t *testing.T) {
	sess, _ := newTestSession(t)
	ctx := context.Background()

	// no value, no default: validation fails
	e, err := Client.New(ctx, sess, map[string]any{"name": "acme", "workspace": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Set(ctx, "name", nil); err == nil {
		t.Error("expected error clearing a required field")
	}

	// constructing without the required field fails outright
	if _, err := Client.New(ctx, sess, map[string]any{"workspace": 1}); err == nil {
		t.Error("expected construction error without required name")
	}

	// a falsy but present value passes
	e2, err := Project.New(ctx, sess, map[string]any{"name": "", "workspace": 1})
	if err != nil {
		t.Fatalf("New with empty name: %v", err)
	}
	if err := e2.Validate(ctx); err != nil {
		t.Errorf("Validate with empty name: %v", err)
	}
}

func TestEmailValidation(t *testing.T) {
	sess, _ := newTestSession(t)
	ctx := context.Background()

	user, err := User.New(ctx, sess, map[string]any{"email": "worker@example.com"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := user.Validate(ctx); err != nil {
		t.Errorf("valid address rejected: %v", err)
	}

	bad, err := User.New(ctx, sess, map[string]any{"email": "nope"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := bad.Validate(ctx); err == nil {
		t.Error("expected validation error for malformed address")
	}
}

func TestFieldRebindRejected(t *testing.T) {
	shared := String("name")
	_, err := Register(SchemaSpec{
		Name:   "rebind_probe_a",
		Fields: []Field{shared},
	})
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	_, err = Register(SchemaSpec{
		Name:   "rebind_probe_b",
		Fields: []Field{shared},
	})
	if err == nil {
		t.Fatal("expected rebind error")
	}
}
