// Package validation checks schema declarations and configuration values
// before they are put to use, so malformed definitions fail at startup
// rather than at the first API call.
package validation

import (
	"fmt"
	"regexp"
	"time"
)

// SchemaSpec is the declaration-shaped view of an entity schema.
type SchemaSpec struct {
	Name       string
	Collection string
	Fields     []FieldSpec
}

// FieldSpec describes one declared field. Wire is set for relation fields
// that store their id under a different attribute name.
type FieldSpec struct {
	Name        string
	Kind        string
	Wire        string
	TargetKnown bool
}

var snakeName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reservedNames are attribute names the entity layer claims for itself:
// "id" is the identity slot and "at" is the server's transport-only
// modification stamp, stripped during deserialization.
var reservedNames = map[string]bool{
	"id": true,
	"at": true,
}

// Schema validates a schema declaration: snake_case names, no duplicate or
// reserved attribute names (wire names included), and resolvable relation
// targets.
func Schema(spec SchemaSpec) error {
	if !snakeName.MatchString(spec.Name) {
		return fmt.Errorf("entity name %q must be snake_case", spec.Name)
	}
	if spec.Collection == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if len(spec.Fields) == 0 {
		return fmt.Errorf("schema declares no fields")
	}

	seen := make(map[string]string, len(spec.Fields)*2)
	claim := func(name, role string) error {
		if name == "" {
			return fmt.Errorf("%s name cannot be empty", role)
		}
		if reservedNames[name] {
			return fmt.Errorf("%q is a reserved attribute name", name)
		}
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("attribute name %q is declared twice (%s and %s)", name, prev, role)
		}
		seen[name] = role
		return nil
	}

	for _, f := range spec.Fields {
		if err := claim(f.Name, "field"); err != nil {
			return err
		}
		if f.Kind == "relation" {
			if !f.TargetKnown {
				return fmt.Errorf("relation %q points at an unregistered schema", f.Name)
			}
			if f.Wire == "" {
				return fmt.Errorf("relation %q has no wire attribute", f.Name)
			}
			if f.Wire != f.Name {
				if err := claim(f.Wire, fmt.Sprintf("wire of %q", f.Name)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fatal": true,
}

// LogLevel rejects unknown level names.
func LogLevel(level string) error {
	if !logLevels[level] {
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}

// Timezone checks that the name resolves against the zone database.
// "Local" and the empty string mean the process-local zone and pass.
func Timezone(name string) error {
	if name == "" || name == "Local" {
		return nil
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown timezone %q", name)
	}
	return nil
}

// DatetimeFormat requires a non-empty reference-time layout.
func DatetimeFormat(layout string) error {
	if layout == "" {
		return fmt.Errorf("datetime format cannot be empty")
	}
	return nil
}

// WorkspaceID requires a positive id.
func WorkspaceID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("workspace id must be positive, got %d", id)
	}
	return nil
}
