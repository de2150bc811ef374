// Package api serves the MCP dispatcher over streamable HTTP: a single
// endpoint accepting JSON-RPC POSTs, with per-client sessions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/benaskins/keyring-mcp/internal/mcp"
)

const (
	headerSessionID       = "Mcp-Session-Id"
	headerProtocolVersion = "Mcp-Protocol-Version"
	sessionCookie         = "mcp_session_id"
)

// Options configure a Server.
type Options struct {
	// Endpoint is the MCP path. Defaults to "/mcp".
	Endpoint string
	// JSONResponse selects plain application/json replies. When false,
	// replies are sent as a text/event-stream.
	JSONResponse bool
	// RateLimit is the global request rate in requests per second. Zero
	// disables limiting.
	RateLimit float64
	RateBurst int
}

// Server serves the MCP endpoint over HTTP.
type Server struct {
	dispatcher *mcp.Dispatcher
	sessions   *SessionRegistry
	opts       Options
	limiter    atomic.Pointer[rate.Limiter]
	handler    http.Handler
	server     *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server in front of d.
func NewServer(d *mcp.Dispatcher, opts Options) *Server {
	if opts.Endpoint == "" {
		opts.Endpoint = "/mcp"
	}
	s := &Server{
		dispatcher: d,
		sessions:   NewSessionRegistry(),
		opts:       opts,
		logger:     slog.With("component", "api"),
	}
	s.SetRateLimit(opts.RateLimit, opts.RateBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+opts.Endpoint, s.handlePost)
	mux.HandleFunc("DELETE "+opts.Endpoint, s.handleDelete)
	mux.HandleFunc("GET "+opts.Endpoint, s.handleGet)
	mux.HandleFunc("GET /health", s.health)

	s.handler = cors(logRequests(s.logger, mux))
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the server's root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Sessions returns the live session registry.
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

// SetRateLimit changes the global request rate. perSecond <= 0 removes the
// limit. Safe to call while serving; the new limiter starts with a full
// bucket.
func (s *Server) SetRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		s.limiter.Store(rate.NewLimiter(rate.Inf, 0))
		return
	}
	if burst < 1 {
		burst = max(1, int(perSecond))
	}
	s.limiter.Store(rate.NewLimiter(rate.Limit(perSecond), burst))
	s.logger.Info("rate limit set", "per_second", perSecond, "burst", burst)
}

// ListenTCP starts the server on a TCP address.
func (s *Server) ListenTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("MCP HTTP server listening", "addr", ln.Addr().String(), "endpoint", s.opts.Endpoint, "json_response", s.opts.JSONResponse)
	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the server and drops all sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.sessions.Clear()
	return err
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Load().Allow() {
		writeRPCError(w, http.StatusTooManyRequests, mcp.CodeServerError, "Too Many Requests: rate limit exceeded")
		return
	}

	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		writeRPCError(w, http.StatusUnsupportedMediaType, mcp.CodeServerError, "Unsupported Media Type: Content-Type must be application/json")
		return
	}

	want := "application/json"
	if !s.opts.JSONResponse {
		want = "text/event-stream"
	}
	if accept := r.Header.Get("Accept"); accept != "" && !accepts(accept, want) {
		writeRPCError(w, http.StatusNotAcceptable, mcp.CodeServerError, "Not Acceptable: Client must accept "+want)
		return
	}

	if v := r.Header.Get(headerProtocolVersion); v != "" && !mcp.IsSupportedProtocolVersion(v) {
		writeRPCError(w, http.StatusBadRequest, mcp.CodeServerError,
			fmt.Sprintf("Bad Request: Unsupported protocol version: %s (supported: %s)", v, strings.Join(mcp.SupportedProtocolVersions, ", ")))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, mcp.MaxMessageSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeRPCError(w, http.StatusRequestEntityTooLarge, mcp.CodeServerError, "Request Entity Too Large")
			return
		}
		writeRPCError(w, http.StatusBadRequest, mcp.CodeParseError, "Parse error: "+err.Error())
		return
	}

	reqs, batch, err := mcp.DecodeMessages(body)
	if err != nil {
		var rpcErr *mcp.RPCError
		errors.As(err, &rpcErr)
		writeRPCError(w, http.StatusBadRequest, rpcErr.Code, rpcErr.Message)
		return
	}

	var session *Session
	initReq := findInitialize(reqs)
	if initReq != nil {
		if len(reqs) > 1 {
			writeRPCError(w, http.StatusBadRequest, mcp.CodeInvalidRequest, "Invalid Request: initialize must not be batched")
			return
		}
	} else if session = s.resolveSession(w, r); session == nil {
		return
	}

	resps := s.dispatcher.HandleAll(r.Context(), reqs)
	if initReq != nil {
		session = s.startSession(w, initReq, resps)
	}
	if session != nil {
		w.Header().Set(headerSessionID, session.ID)
	}
	if len(resps) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if s.opts.JSONResponse {
		data, err := mcp.EncodeResponses(resps, batch)
		if err != nil {
			s.logger.Error("marshal error", "error", err)
			writeRPCError(w, http.StatusInternalServerError, mcp.CodeInternalError, "Internal error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}
	s.writeEventStream(w, resps)
}

// startSession mints a session for an initialize request the dispatcher
// answered successfully. Notifications and failed initializations get none.
func (s *Server) startSession(w http.ResponseWriter, initReq *mcp.Request, resps []*mcp.Response) *Session {
	if len(resps) != 1 || resps[0].Error != nil {
		return nil
	}
	var params mcp.InitializeParams
	if len(initReq.Params) > 0 {
		if err := json.Unmarshal(initReq.Params, &params); err != nil {
			return nil
		}
	}

	session := s.sessions.Create(params.ProtocolVersion, params.ClientInfo)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("session created", "session", session.ID, "client", params.ClientInfo.Name)
	return session
}

// writeEventStream sends each response as an SSE "message" event and ends
// the stream.
func (s *Server) writeEventStream(w http.ResponseWriter, resps []*mcp.Response) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for _, resp := range resps {
		data, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error("marshal error", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
			s.logger.Warn("event stream write failed", "error", err)
			return
		}
		rc.Flush()
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	session := s.resolveSession(w, r)
	if session == nil {
		return
	}
	s.sessions.Delete(session.ID)
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	s.logger.Info("session terminated", "session", session.ID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, DELETE, OPTIONS")
	writeRPCError(w, http.StatusMethodNotAllowed, mcp.CodeServerError, "Method Not Allowed: server-initiated streams are not supported")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

// resolveSession finds the caller's session from the Mcp-Session-Id header,
// falling back to the session cookie. On failure it writes the error
// response and returns nil.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) *Session {
	id := r.Header.Get(headerSessionID)
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		writeRPCError(w, http.StatusBadRequest, mcp.CodeServerError, "Bad Request: No valid session ID provided")
		return nil
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		writeRPCError(w, http.StatusNotFound, mcp.CodeSessionNotFound, "Session not found")
		return nil
	}
	return session
}

func findInitialize(reqs []*mcp.Request) *mcp.Request {
	for _, req := range reqs {
		if req.Method == "initialize" {
			return req
		}
	}
	return nil
}

// accepts reports whether an Accept header admits mediaType.
func accepts(header, mediaType string) bool {
	typ, _, _ := strings.Cut(mediaType, "/")
	for _, part := range strings.Split(header, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mt == mediaType || mt == "*/*" || mt == typ+"/*" {
			return true
		}
	}
	return false
}

func writeRPCError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, mcp.NewErrorResponse(nil, code, msg))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
