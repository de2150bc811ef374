package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Tool describes a tool exposed via MCP.
type Tool struct {
	Name        string           `json:"name"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description"`
	InputSchema Schema           `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// ToolAnnotations are behavioural hints for clients.
type ToolAnnotations struct {
	ReadOnlyHint    bool `json:"readOnlyHint"`
	DestructiveHint bool `json:"destructiveHint"`
	IdempotentHint  bool `json:"idempotentHint"`
	OpenWorldHint   bool `json:"openWorldHint"`
}

// Schema is the subset of JSON Schema used for tool inputs: an object with
// named primitive properties.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property is one named input parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	MinLength   int    `json:"minLength,omitempty"`
}

// ValidationError reports arguments that do not match a tool's schema.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("invalid arguments for %s: %s %s", e.Tool, e.Field, e.Reason)
}

// validate checks raw against s. Absent or null arguments are treated as an
// empty object. Properties not declared in the schema are ignored.
func (s Schema) validate(tool string, raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	args := map[string]json.RawMessage{}
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if raw[0] != '{' {
			return &ValidationError{Tool: tool, Reason: "arguments must be an object"}
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return &ValidationError{Tool: tool, Reason: "arguments are not valid JSON: " + err.Error()}
		}
	}

	for _, name := range s.Required {
		v, ok := args[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return &ValidationError{Tool: tool, Field: name, Reason: "is required"}
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		prop, ok := s.Properties[name]
		if !ok {
			continue
		}
		v := bytes.TrimSpace(args[name])
		if bytes.Equal(v, []byte("null")) {
			continue
		}
		if err := prop.check(v); err != "" {
			return &ValidationError{Tool: tool, Field: name, Reason: err}
		}
	}
	return nil
}

// check returns a reason string when v does not satisfy p, or "".
func (p Property) check(v json.RawMessage) string {
	switch p.Type {
	case "string":
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "must be a string"
		}
		if p.MinLength > 0 && len([]rune(s)) < p.MinLength {
			if p.MinLength == 1 {
				return "must not be empty"
			}
			return fmt.Sprintf("must be at least %d characters", p.MinLength)
		}
	case "boolean":
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return "must be a boolean"
		}
	case "number", "integer":
		var n json.Number
		if v[0] == '"' || json.Unmarshal(v, &n) != nil {
			return "must be a number"
		}
		if p.Type == "integer" {
			if _, err := n.Int64(); err != nil {
				return "must be an integer"
			}
		}
	}
	return ""
}
