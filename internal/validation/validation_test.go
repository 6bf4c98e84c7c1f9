package validation

import "testing"

func validSpec() SchemaSpec {
	return SchemaSpec{
		Name:       "time_entry",
		Collection: "time_entries",
		Fields: []FieldSpec{
			{Name: "description", Kind: "string"},
			{Name: "project", Kind: "relation", Wire: "pid", TargetKnown: true},
		},
	}
}

func TestSchemaAcceptsValidSpec(t *testing.T) {
	if err := Schema(validSpec()); err != nil {
		t.Errorf("Schema: %v", err)
	}
}

func TestSchemaRejectsBadNames(t *testing.T) {
	spec := validSpec()
	spec.Name = "TimeEntry"
	if err := Schema(spec); err == nil {
		t.Error("expected error for non-snake-case name")
	}

	spec = validSpec()
	spec.Fields = append(spec.Fields, FieldSpec{Name: "id", Kind: "integer"})
	if err := Schema(spec); err == nil {
		t.Error("expected error for reserved field name")
	}

	spec = validSpec()
	spec.Fields = append(spec.Fields, FieldSpec{Name: "description", Kind: "string"})
	if err := Schema(spec); err == nil {
		t.Error("expected error for duplicate field name")
	}

	spec = validSpec()
	spec.Fields = append(spec.Fields, FieldSpec{Name: "task", Kind: "relation", Wire: "pid", TargetKnown: true})
	if err := Schema(spec); err == nil {
		t.Error("expected error for duplicate wire name")
	}
}

func TestSchemaRejectsBrokenRelations(t *testing.T) {
	spec := validSpec()
	spec.Fields[1].TargetKnown = false
	if err := Schema(spec); err == nil {
		t.Error("expected error for unknown relation target")
	}

	spec = validSpec()
	spec.Fields[1].Wire = ""
	if err := Schema(spec); err == nil {
		t.Error("expected error for missing wire name")
	}
}

func TestLogLevel(t *testing.T) {
	for _, level := range []string{"trace", "debug", "info", "warn", "error", "fatal"} {
		if err := LogLevel(level); err != nil {
			t.Errorf("LogLevel(%q): %v", level, err)
		}
	}
	if err := LogLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestTimezone(t *testing.T) {
	for _, name := range []string{"", "Local", "UTC", "Europe/Berlin"} {
		if err := Timezone(name); err != nil {
			t.Errorf("Timezone(%q): %v", name, err)
		}
	}
	if err := Timezone("Mars/Olympus"); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestWorkspaceID(t *testing.T) {
	if err := WorkspaceID(1); err != nil {
		t.Errorf("WorkspaceID(1): %v", err)
	}
	for _, id := range []int64{0, -5} {
		if err := WorkspaceID(id); err == nil {
			t.Errorf("WorkspaceID(%d): expected error", id)
		}
	}
}
