// Package mcp implements the Model Context Protocol server core: JSON-RPC
// envelopes, the tool registry and schema validation, the secret tools and
// the request dispatcher shared by the stdio and HTTP transports.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ServerName is reported in serverInfo.
const ServerName = "keyring-mcp"

const instructions = "Secrets are kept in the operating system keychain. " +
	"Use store_secret to save a value under a key, retrieve_secret to read it back, " +
	"delete_secret to remove it and list_secrets to see which keys exist."

// Dispatcher routes JSON-RPC requests to protocol handlers and tools. It
// holds no per-connection state and is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	info     ServerInfo
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher serving the tools in registry. An empty
// info.Name defaults to ServerName.
func NewDispatcher(registry *Registry, info ServerInfo) *Dispatcher {
	if info.Name == "" {
		info.Name = ServerName
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return &Dispatcher{
		registry: registry,
		info:     info,
		logger:   slog.With("component", "mcp"),
	}
}

// HandleAll handles every request in order and returns the responses,
// omitting notifications.
func (d *Dispatcher) HandleAll(ctx context.Context, reqs []*Request) []*Response {
	var out []*Response
	for _, req := range reqs {
		if resp := d.Handle(ctx, req); resp != nil {
			out = append(out, resp)
		}
	}
	return out
}

// Handle processes one request. It returns nil for notifications. Panics are
// recovered and reported as an internal error so a fault never reaches the
// transport.
func (d *Dispatcher) Handle(ctx context.Context, req *Request) (resp *Response) {
	if req.malformed || req.JSONRPC != "2.0" || req.Method == "" {
		return NewErrorResponse(req.ID, CodeInvalidRequest, "Invalid Request")
	}
	if req.IsNotification() {
		d.logger.Debug("notification", "method", req.Method)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic handling request", "method", req.Method, "panic", r, "stack", string(debug.Stack()))
			resp = NewErrorResponse(req.ID, CodeInternalError, fmt.Sprintf("Internal error: %v", r))
		}
	}()

	switch req.Method {
	case "initialize":
		return d.handleInitialize(req)
	case "ping":
		return newResult(req.ID, struct{}{})
	case "tools/list":
		return newResult(req.ID, ToolsListResult{Tools: d.registry.Tools()})
	case "tools/call":
		return d.handleToolsCall(ctx, req)
	default:
		return NewErrorResponse(req.ID, CodeMethodNotFound, "Method not found: "+req.Method)
	}
}

func (d *Dispatcher) handleInitialize(req *Request) *Response {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return NewErrorResponse(req.ID, CodeInvalidParams, "Invalid params: "+err.Error())
		}
	}
	version := negotiateProtocolVersion(params.ProtocolVersion)
	d.logger.Info("client initialized",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"requested_protocol", params.ProtocolVersion,
		"protocol", version)

	return newResult(req.ID, InitializeResult{
		ProtocolVersion: version,
		Capabilities:    ServerCapabilities{Tools: &ToolsCapability{}},
		ServerInfo:      d.info,
		Instructions:    instructions,
	})
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if len(req.Params) == 0 || json.Unmarshal(req.Params, &params) != nil {
		return NewErrorResponse(req.ID, CodeInvalidParams, "Invalid params: expected {name, arguments}")
	}
	return newResult(req.ID, d.CallTool(ctx, params.Name, params.Arguments))
}

// CallTool runs the named tool and always returns a result. Unknown tools,
// invalid arguments and handler failures are reported with IsError set.
func (d *Dispatcher) CallTool(ctx context.Context, name string, args json.RawMessage) (result *ToolCallResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", "tool", name, "panic", r)
			result = ErrorResult(fmt.Sprintf("Error: %v", r))
		}
	}()

	_, handler, ok := d.registry.Lookup(name)
	if !ok {
		d.logger.Warn("unknown tool", "tool", name)
		return ErrorResult("Unknown tool: " + name)
	}

	if err := d.registry.Validate(name, args); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			d.logger.Info("tool arguments rejected", "tool", name, "field", verr.Field, "reason", verr.Reason)
		}
		return ErrorResult("Error: " + err.Error())
	}

	res, err := handler(ctx, args)
	if err != nil {
		d.logger.Error("tool failed", "tool", name, "error", err)
		return ErrorResult("Error: " + err.Error())
	}
	if res == nil || len(res.Content) == 0 {
		return ErrorResult("Error: tool " + name + " returned no content")
	}
	d.logger.Debug("tool called", "tool", name, "is_error", res.IsError)
	return res
}
