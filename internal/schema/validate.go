package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// payloadValidator compiles JSON Schemas once and validates instances
// against them. A single compiler is safe for concurrent use; compiled
// schemas are not cached across calls because payload schemas vary per
// plugin/entity-type and are typically small.
type payloadValidator struct {
	compiler *jsonschema.Compiler
}

func newPayloadValidator() *payloadValidator {
	return &payloadValidator{compiler: jsonschema.NewCompiler()}
}

var defaultValidator = newPayloadValidator()

// ValidatePayload checks data against the given JSON Schema document. An
// empty or nil schema is treated as "anything validates" so plugins that
// declare no payload shape don't block saves.
func ValidatePayload(rawSchema json.RawMessage, data json.RawMessage) error {
	if len(rawSchema) == 0 || string(rawSchema) == "null" {
		return nil
	}
	s, err := defaultValidator.compiler.Compile(rawSchema)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var instance any
	if len(data) == 0 {
		instance = map[string]any{}
	} else if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	result := s.Validate(instance)
	if !result.IsValid() {
		return fmt.Errorf("payload does not match schema: %v", result.Errors)
	}
	return nil
}

// NormalizeManifest validates capability<->definition consistency for v2
// manifests and folds notePayloadSchema into payloadSchema. v1 manifests
// (ManifestVersion == 0 or 1) pass through unmodified.
func NormalizeManifest(m Manifest) (Manifest, error) {
	if m.Namespace == "" {
		return m, fmt.Errorf("missing_namespace")
	}
	if !isDottedSlug(m.Namespace) {
		return m, fmt.Errorf("invalid_input: namespace %q is not a lowercase dotted slug", m.Namespace)
	}
	if m.ManifestVersion < 2 {
		return m, nil
	}

	declared := map[string]bool{}
	for _, c := range m.Capabilities {
		declared[c] = false
	}
	for _, a := range append(append([]Action{}, m.CLI...), m.UI...) {
		if _, ok := declared[a.ActionID]; !ok {
			return m, fmt.Errorf("invalid_input: action %q has no matching capability", a.ActionID)
		}
		declared[a.ActionID] = true
		for _, p := range a.RequiredPermissions {
			if !contains(m.Permissions, p) {
				return m, fmt.Errorf("invalid_input: action %q requires undeclared permission %q", a.ActionID, p)
			}
		}
	}
	for cap, matched := range declared {
		if !matched {
			return m, fmt.Errorf("invalid_input: capability %q has no matching action definition", cap)
		}
	}
	for _, t := range m.ScheduledTasks {
		if !declared[t.ActionID] {
			return m, fmt.Errorf("invalid_input: scheduledTask %q references undeclared action %q", t.TaskID, t.ActionID)
		}
	}

	if len(m.NotePayloadSchema) > 0 {
		m.PayloadSchema = m.NotePayloadSchema
	}
	return m, nil
}

func isDottedSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '-' {
			continue
		}
		return false
	}
	return !strings.HasPrefix(s, ".") && !strings.HasSuffix(s, ".")
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// PermissionsExpanded reports whether next is a strict superset of prev,
// which forces a re-registered plugin into disabled.
func PermissionsExpanded(prev, next []string) bool {
	if len(next) <= len(prev) {
		return false
	}
	for _, p := range prev {
		if !contains(next, p) {
			return false
		}
	}
	return true
}
