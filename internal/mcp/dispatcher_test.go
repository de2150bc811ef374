package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/benaskins/keyring-mcp/internal/keychain"
)

// wireResponse mirrors Response with the result left raw for decoding.
type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func roundTrip(t *testing.T, resp *Response) wireResponse {
	t.Helper()
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var out wireResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v\nraw: %s", err, data)
	}
	return out
}

func request(id, method string, params any) *Request {
	req := &Request{JSONRPC: "2.0", Method: method}
	if id != "" {
		req.ID = json.RawMessage(id)
	}
	if params != nil {
		data, _ := json.Marshal(params)
		req.Params = data
	}
	return req
}

func TestInitialize(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())

	resp := roundTrip(t, d.Handle(context.Background(), request("1", "initialize", InitializeParams{
		ProtocolVersion: "2024-11-05",
		ClientInfo:      ClientInfo{Name: "test-client", Version: "0.1"},
	})))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if string(resp.ID) != "1" {
		t.Errorf("id = %s, want 1", resp.ID)
	}

	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.ServerInfo.Name != "keyring-mcp" {
		t.Errorf("server name = %q, want keyring-mcp", result.ServerInfo.Name)
	}
	if result.ServerInfo.Version != "test" {
		t.Errorf("version = %q, want test", result.ServerInfo.Version)
	}
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocolVersion = %q, want echoed 2024-11-05", result.ProtocolVersion)
	}
	if result.Capabilities.Tools == nil {
		t.Error("expected tools capability")
	}
}

func TestInitializeUnknownVersionGetsLatest(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())

	resp := roundTrip(t, d.Handle(context.Background(), request(`"init"`, "initialize", map[string]any{
		"protocolVersion": "1999-01-01",
	})))
	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.ProtocolVersion != LatestProtocolVersion {
		t.Errorf("protocolVersion = %q, want %q", result.ProtocolVersion, LatestProtocolVersion)
	}
	if string(resp.ID) != `"init"` {
		t.Errorf("string id not preserved: %s", resp.ID)
	}
}

func TestInitializeDoesNotTouchStore(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(panickyStore{})
	resp := d.Handle(context.Background(), request("1", "initialize", nil))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())
	resp := roundTrip(t, d.Handle(context.Background(), request("7", "ping", nil)))
	if resp.Error != nil || string(resp.Result) != "{}" {
		t.Errorf("ping = %s / %v, want {}", resp.Result, resp.Error)
	}
}

func TestToolsList(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(panickyStore{})

	resp := roundTrip(t, d.Handle(context.Background(), request("2", "tools/list", nil)))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var result ToolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}

	want := []string{"store_secret", "retrieve_secret", "delete_secret", "list_secrets"}
	if len(result.Tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(result.Tools))
	}
	for i, tool := range result.Tools {
		if tool.Name != want[i] {
			t.Errorf("tool %d = %q, want %q", i, tool.Name, want[i])
		}
		if tool.Description == "" {
			t.Errorf("tool %s has no description", tool.Name)
		}
		if tool.InputSchema.Type != "object" || tool.InputSchema.Properties == nil {
			t.Errorf("tool %s has no object schema", tool.Name)
		}
	}

	store := result.Tools[0].InputSchema
	if len(store.Required) != 2 || store.Properties["value"].Type != "string" {
		t.Errorf("store_secret schema = %+v", store)
	}
}

func TestToolsCallWire(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())

	resp := roundTrip(t, d.Handle(context.Background(), request("3", "tools/call", ToolCallParams{
		Name:      "store_secret",
		Arguments: json.RawMessage(`{"key":"api_token","value":"sk-123"}`),
	})))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if !strings.Contains(string(resp.Result), `"isError":false`) {
		t.Errorf("isError must always be serialised: %s", resp.Result)
	}

	var result ToolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("content = %+v", result.Content)
	}
}

func TestToolsCallUnknownTool(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())

	resp := roundTrip(t, d.Handle(context.Background(), request("4", "tools/call", ToolCallParams{Name: "unknown_tool"})))
	if resp.Error != nil {
		t.Fatalf("unknown tool must not be a protocol error: %v", resp.Error)
	}
	var result ToolCallResult
	json.Unmarshal(resp.Result, &result)
	assertResult(t, &result, "Unknown tool: unknown_tool", true)
}

func TestToolsCallIsCaseSensitive(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())
	res := d.CallTool(context.Background(), "Store_Secret", json.RawMessage(`{"key":"k","value":"v"}`))
	assertResult(t, res, "Unknown tool: Store_Secret", true)
}

func TestToolsCallMissingValue(t *testing.T) {
	t.Parallel()
	store := keychain.NewMemoryStore()
	d := newTestDispatcher(store)

	res := d.CallTool(context.Background(), "store_secret", json.RawMessage(`{"key":"api_token"}`))
	assertResult(t, res, "Error: invalid arguments for store_secret: value is required", true)

	if keys, _ := store.List("keyring-mcp.test"); len(keys) != 0 {
		t.Errorf("invalid call must not reach the store, got keys %v", keys)
	}
}

func TestToolsCallBadParams(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())

	for _, params := range []string{"", `"store_secret"`, `[1,2]`} {
		req := request("5", "tools/call", nil)
		req.Params = json.RawMessage(params)
		resp := d.Handle(context.Background(), req)
		if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
			t.Errorf("params %q: expected invalid params, got %+v", params, resp)
		}
	}
}

func TestHandlerPanicBecomesErrorResult(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(Tool{Name: "boom", Description: "panics"}, func(context.Context, json.RawMessage) (*ToolCallResult, error) {
		panic("out of cheese")
	})
	d := NewDispatcher(r, ServerInfo{Version: "test"})

	res := d.CallTool(context.Background(), "boom", nil)
	assertResult(t, res, "Error: out of cheese", true)
}

func TestHandlerErrorBecomesErrorResult(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(Tool{Name: "typed", Description: "typed"}, bind(func(context.Context, struct{ N int }) *ToolCallResult {
		return TextResult("unreachable")
	}))
	d := NewDispatcher(r, ServerInfo{})

	// Schema has no properties, so validation passes and decoding fails.
	res := d.CallTool(context.Background(), "typed", json.RawMessage(`{"N":"not a number"}`))
	if !res.IsError || !strings.HasPrefix(res.Text(), "Error: decoding arguments") {
		t.Errorf("got %q (isError %v)", res.Text(), res.IsError)
	}
}

func TestUnknownMethod(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())

	resp := d.Handle(context.Background(), request("6", "resources/list", nil))
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp)
	}
	if string(resp.ID) != "6" {
		t.Errorf("id = %s, want 6", resp.ID)
	}
}

func TestInvalidEnvelope(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())

	resp := d.Handle(context.Background(), &Request{JSONRPC: "1.0", ID: json.RawMessage("1"), Method: "ping"})
	if resp == nil || resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Errorf("wrong version: got %+v", resp)
	}
	resp = d.Handle(context.Background(), &Request{JSONRPC: "2.0", ID: json.RawMessage("2")})
	if resp == nil || resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Errorf("empty method: got %+v", resp)
	}
}

func TestNotificationsGetNoResponse(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())

	for _, method := range []string{"notifications/initialized", "notifications/cancelled", "tools/list"} {
		if resp := d.Handle(context.Background(), request("", method, nil)); resp != nil {
			t.Errorf("%s: expected no response, got %+v", method, resp)
		}
	}
}

func TestDecodeMessages(t *testing.T) {
	t.Parallel()

	reqs, batch, err := DecodeMessages([]byte(`  {"jsonrpc":"2.0","id":1,"method":"ping"}  `))
	if err != nil || batch || len(reqs) != 1 || reqs[0].Method != "ping" {
		t.Errorf("single: %v %v %v", reqs, batch, err)
	}

	reqs, batch, err = DecodeMessages([]byte(`[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","method":"notifications/initialized"},7]`))
	if err != nil || !batch || len(reqs) != 3 {
		t.Fatalf("batch: %v %v %v", reqs, batch, err)
	}
	if !reqs[1].IsNotification() || reqs[2].IsNotification() {
		t.Error("notification detection wrong")
	}

	for _, bad := range []string{``, `{`, `[1,`, `nope`} {
		_, _, err := DecodeMessages([]byte(bad))
		rpcErr, ok := err.(*RPCError)
		if !ok || rpcErr.Code != CodeParseError {
			t.Errorf("%q: expected parse error, got %v", bad, err)
		}
	}

	for _, bad := range []string{`123`, `"ping"`, `{"jsonrpc":"2.0","id":1,"method":5}`} {
		_, _, err := DecodeMessages([]byte(bad))
		rpcErr, ok := err.(*RPCError)
		if !ok || rpcErr.Code != CodeInvalidRequest {
			t.Errorf("%q: expected invalid request, got %v", bad, err)
		}
	}

	_, _, err = DecodeMessages([]byte(`[]`))
	if rpcErr, ok := err.(*RPCError); !ok || rpcErr.Code != CodeInvalidRequest {
		t.Errorf("empty batch: expected invalid request, got %v", err)
	}
}

func TestHandleAllBatch(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(keychain.NewMemoryStore())

	reqs, batch, err := DecodeMessages([]byte(`[
		{"jsonrpc":"2.0","id":1,"method":"ping"},
		{"jsonrpc":"2.0","method":"notifications/initialized"},
		"garbage",
		{"jsonrpc":"2.0","id":2,"method":"tools/list"}
	]`))
	if err != nil {
		t.Fatal(err)
	}
	resps := d.HandleAll(context.Background(), reqs)
	if len(resps) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(resps))
	}
	if string(resps[0].ID) != "1" || string(resps[2].ID) != "2" {
		t.Errorf("ids out of order: %s %s", resps[0].ID, resps[2].ID)
	}
	if resps[1].Error == nil || resps[1].Error.Code != CodeInvalidRequest || resps[1].ID != nil {
		t.Errorf("malformed element: %+v", resps[1])
	}

	data, err := EncodeResponses(resps, batch)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != '[' || !strings.Contains(string(data), `"id":null`) {
		t.Errorf("batch encoding: %s", data)
	}
}

func TestEncodeResponsesEmpty(t *testing.T) {
	t.Parallel()
	data, err := EncodeResponses(nil, true)
	if err != nil || data != nil {
		t.Errorf("expected nothing to send, got %s / %v", data, err)
	}
}
