package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Handler executes a tool call. Arguments have already been validated
// against the tool's schema. A returned error is reported to the client as
// an error result by the dispatcher.
type Handler func(ctx context.Context, args json.RawMessage) (*ToolCallResult, error)

type registered struct {
	tool    Tool
	handler Handler
}

// Registry holds the tools a server exposes, in registration order.
type Registry struct {
	tools  []registered
	byName map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a tool. It panics on a duplicate or empty name, since the
// tool set is fixed at start-up.
func (r *Registry) Register(tool Tool, h Handler) {
	if tool.Name == "" {
		panic("mcp: tool with empty name")
	}
	if _, dup := r.byName[tool.Name]; dup {
		panic("mcp: duplicate tool " + tool.Name)
	}
	if tool.InputSchema.Type == "" {
		tool.InputSchema.Type = "object"
	}
	if tool.InputSchema.Properties == nil {
		tool.InputSchema.Properties = map[string]Property{}
	}
	r.byName[tool.Name] = len(r.tools)
	r.tools = append(r.tools, registered{tool: tool, handler: h})
}

// Tools returns the tool descriptors in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.tool
	}
	return out
}

// Lookup finds a tool by exact, case-sensitive name.
func (r *Registry) Lookup(name string) (Tool, Handler, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Tool{}, nil, false
	}
	return r.tools[i].tool, r.tools[i].handler, true
}

// Validate checks raw arguments against the named tool's input schema. It
// returns a *ValidationError for bad arguments and a plain error for an
// unknown tool.
func (r *Registry) Validate(name string, raw json.RawMessage) error {
	tool, _, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown tool: %s", name)
	}
	return tool.InputSchema.validate(name, raw)
}

// bind adapts a typed handler to Handler by decoding the arguments into T.
func bind[T any](fn func(ctx context.Context, args T) *ToolCallResult) Handler {
	return func(ctx context.Context, raw json.RawMessage) (*ToolCallResult, error) {
		var args T
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("decoding arguments: %w", err)
			}
		}
		return fn(ctx, args), nil
	}
}

// guard runs fn and converts a returned error or a panic into an error
// result whose text starts with prefix.
func guard(prefix string, fn func() (*ToolCallResult, error)) (res *ToolCallResult) {
	defer func() {
		if r := recover(); r != nil {
			res = ErrorResult(fmt.Sprintf("%s: %v", prefix, r))
		}
	}()

	var err error
	res, err = fn()
	if err != nil {
		return ErrorResult(fmt.Sprintf("%s: %v", prefix, err))
	}
	return res
}
