package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Twixes/mcpolice/internal/violation"
)

// maxBodyBytes bounds a single JSON-RPC request
const maxBodyBytes = 1 << 20

// CallObserver receives one event per dispatched call
type CallObserver interface {
	RPCCall(method, outcome string)
}

// Handler serves JSON-RPC requests against the violation service
type Handler struct {
	svc      *violation.Service
	logger   *slog.Logger
	observer CallObserver
	server   Implementation
	version  string
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the handler logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithObserver registers a call observer
func WithObserver(o CallObserver) Option {
	return func(h *Handler) {
		h.observer = o
	}
}

// WithServerInfo sets the name, version and default protocol version
// returned by initialize
func WithServerInfo(name, serverVersion, protocolVersion string) Option {
	return func(h *Handler) {
		h.server = Implementation{Name: name, Version: serverVersion}
		h.version = protocolVersion
	}
}

// NewHandler creates a JSON-RPC handler
func NewHandler(svc *violation.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:     svc,
		logger:  slog.Default(),
		server:  Implementation{Name: "mcpolice", Version: "dev"},
		version: "2024-11-05",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP decodes one request body and writes the response, framed as a
// single server-sent event when the client accepts text/event-stream
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	var resp Response
	if err != nil {
		resp = failure(nil, &Error{Code: CodeParseError, Message: "Parse error: " + err.Error()})
	} else {
		resp = h.Handle(r.Context(), body)
	}

	status := resp.Error.HTTPStatus()
	data, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("Failed to encode JSON-RPC response", "error", err)
		status = http.StatusInternalServerError
		data, _ = json.Marshal(failure(resp.ID, internalError()))
	}

	if wantsEventStream(r) {
		writeEvent(w, status, data)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("Failed to write JSON-RPC response", "error", err)
	}
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func writeEvent(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(status)
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// Handle decodes and dispatches a single JSON-RPC payload. Panics in a
// method become an internal error response.
func (h *Handler) Handle(ctx context.Context, payload []byte) (resp Response) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		// Well-formed JSON that is not a request object is an invalid request
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			resp = failure(nil, &Error{Code: CodeParseError, Message: "Parse error: " + err.Error()})
		} else {
			resp = failure(nil, &Error{Code: CodeInvalidRequest, Message: "Invalid Request: expected a JSON-RPC request object"})
		}
		h.observe("", resp)
		return resp
	}

	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("JSON-RPC method panicked", "method", req.Method, "panic", p)
			resp = failure(req.ID, internalError())
		}
		h.observe(req.Method, resp)
	}()

	if rpcErr := req.Validate(); rpcErr != nil {
		return failure(req.ID, rpcErr)
	}

	result, rpcErr := h.dispatch(ctx, req)
	if rpcErr != nil {
		h.logger.Debug("JSON-RPC call failed", "method", req.Method, "code", rpcErr.Code, "message", rpcErr.Message)
		return failure(req.ID, rpcErr)
	}
	return success(req.ID, result)
}

func (h *Handler) dispatch(ctx context.Context, req Request) (any, *Error) {
	switch req.Method {
	case MethodInitialize:
		var params InitializeParams
		if rpcErr := decodeParams(req.Params, &params); rpcErr != nil {
			return nil, rpcErr
		}
		version := params.ProtocolVersion
		if version == "" {
			version = h.version
		}
		if params.ClientInfo != nil {
			h.logger.Info("Client initialized", "client", params.ClientInfo.Name, "version", params.ClientInfo.Version)
		}
		return InitializeResult{
			ProtocolVersion: version,
			ServerInfo:      h.server,
		}, nil

	case MethodToolsList:
		return map[string]any{"tools": tools()}, nil

	case MethodToolsCall:
		var params CallParams
		if rpcErr := decodeParams(req.Params, &params); rpcErr != nil {
			return nil, rpcErr
		}
		if rpcErr := params.Validate(); rpcErr != nil {
			return nil, rpcErr
		}
		return h.callTool(ctx, params)

	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method}
	}
}

func (h *Handler) observe(method string, resp Response) {
	if h.observer == nil {
		return
	}
	outcome := "ok"
	if resp.Error != nil {
		outcome = strconv.Itoa(resp.Error.Code)
	}
	switch method {
	case MethodInitialize, MethodToolsList, MethodToolsCall:
	default:
		method = "other"
	}
	h.observer.RPCCall(method, outcome)
}
