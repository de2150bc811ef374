package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// JSON-RPC 2.0 wire types.

// Request is a JSON-RPC 2.0 request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`

	malformed bool // batch element that was not a JSON object
}

// IsNotification reports whether the request carries no id and so must not
// be answered.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 && !r.malformed
}

// Response is a JSON-RPC 2.0 response. ID is always serialised, as null when
// the request's id could not be determined.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message)
}

// JSON-RPC error codes.
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternalError   = -32603
	CodeServerError     = -32000 // transport-level rejection, e.g. no session
	CodeSessionNotFound = -32001
)

// NewErrorResponse builds an error response for id (nil encodes as null).
func NewErrorResponse(id json.RawMessage, code int, msg string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: msg},
	}
}

func newResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

// DecodeMessages parses a single JSON-RPC message or a batch. batch reports
// whether the payload was a JSON array, in which case responses must be
// returned as an array too. The returned error is always an *RPCError.
func DecodeMessages(data []byte) (reqs []*Request, batch bool, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false, &RPCError{Code: CodeParseError, Message: "Parse error: empty message"}
	}

	if data[0] != '[' {
		if !json.Valid(data) {
			return nil, false, &RPCError{Code: CodeParseError, Message: "Parse error: invalid JSON"}
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, false, &RPCError{Code: CodeInvalidRequest, Message: "Invalid Request: " + err.Error()}
		}
		return []*Request{&req}, false, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, true, &RPCError{Code: CodeParseError, Message: "Parse error: " + err.Error()}
	}
	if len(raws) == 0 {
		return nil, true, &RPCError{Code: CodeInvalidRequest, Message: "Invalid Request: empty batch"}
	}

	reqs = make([]*Request, 0, len(raws))
	for _, raw := range raws {
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			req = Request{malformed: true}
		}
		reqs = append(reqs, &req)
	}
	return reqs, true, nil
}

// EncodeResponses marshals responses for the wire. It returns nil when there
// is nothing to send, which happens when every message was a notification.
func EncodeResponses(resps []*Response, batch bool) ([]byte, error) {
	if len(resps) == 0 {
		return nil, nil
	}
	if batch {
		return json.Marshal(resps)
	}
	return json.Marshal(resps[0])
}

// MCP protocol types.

// LatestProtocolVersion is returned when a client asks for a version this
// server does not speak.
const LatestProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists every MCP revision this server accepts,
// newest first.
var SupportedProtocolVersions = []string{
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
	"2024-10-07",
}

// IsSupportedProtocolVersion reports whether v is one of SupportedProtocolVersions.
func IsSupportedProtocolVersion(v string) bool {
	return slices.Contains(SupportedProtocolVersions, v)
}

func negotiateProtocolVersion(requested string) string {
	if IsSupportedProtocolVersion(requested) {
		return requested
	}
	return LatestProtocolVersion
}

// InitializeParams is the params object of an initialize request.
type InitializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
	ClientInfo      ClientInfo      `json:"clientInfo"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerInfo identifies the MCP server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities advertises what the server supports. Only tools are
// offered.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability is the tools entry of ServerCapabilities.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// InitializeResult is the response to an initialize request.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// ToolsListResult is the response to tools/list.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolCallParams is the params for tools/call.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallResult is the response to tools/call. IsError is always present on
// the wire so clients can branch on it without a default.
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// ContentBlock is a text content block in a tool response.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextResult returns a successful result with a single text block.
func TextResult(text string) *ToolCallResult {
	return &ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

// ErrorResult returns a result flagged isError with a single text block.
func ErrorResult(text string) *ToolCallResult {
	return &ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

// Text joins the result's text blocks. Handy for callers that only care
// about the message.
func (r *ToolCallResult) Text() string {
	var b bytes.Buffer
	for i, c := range r.Content {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.Text)
	}
	return b.String()
}
