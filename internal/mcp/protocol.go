// Package mcp implements the JSON-RPC 2.0 tool-call endpoint used by agents
// to report violations.
package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// JSONRPCVersion is the only accepted envelope version
const JSONRPCVersion = "2.0"

// JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Method names
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// Request is a decoded JSON-RPC request envelope
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Validate checks the envelope before dispatch
func (r *Request) Validate() *Error {
	var missing string
	switch {
	case r.JSONRPC != JSONRPCVersion:
		missing = `jsonrpc must be "2.0"`
	case r.Method == "":
		missing = "method is required"
	case !present(r.ID):
		missing = "id is required"
	}
	if missing != "" {
		return &Error{Code: CodeInvalidRequest, Message: "Invalid Request: " + missing}
	}
	return nil
}

// present reports whether raw holds a non-null JSON value
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Response is a JSON-RPC response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// HTTPStatus maps an error code to the transport status
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusOK
	}
	switch e.Code {
	case CodeParseError, CodeInvalidRequest, CodeInvalidParams:
		return http.StatusBadRequest
	case CodeMethodNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func invalidParams(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func internalError() *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error"}
}

var nullID = json.RawMessage("null")

func success(id json.RawMessage, result any) Response {
	return Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

func failure(id json.RawMessage, err *Error) Response {
	if !present(id) {
		id = nullID
	}
	return Response{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}

// InitializeParams are the params of "initialize"
type InitializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
	ClientInfo      *Implementation `json:"clientInfo,omitempty"`
}

// Implementation names a client or server
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of "initialize"
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
}

// Capabilities advertises what the server supports
type Capabilities struct {
	Tools struct{} `json:"tools"`
}

// CallParams are the params of "tools/call"
type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Validate checks the call params
func (p *CallParams) Validate() *Error {
	if p.Name == "" {
		return invalidParams("Invalid params: name is required")
	}
	return nil
}

// ReportArgs are the arguments of report_violation
type ReportArgs struct {
	Statute                 string `json:"statute"`
	ResponsibleOrganization string `json:"responsible_organization"`
	OffendingContent        string `json:"offending_content"`
	DetectedBy              string `json:"detected_by,omitempty"`
}

// ListArgs are the arguments of list_violations
type ListArgs struct {
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
	Severity     string `json:"severity,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}

// Validate checks the pagination bounds
func (a *ListArgs) Validate() *Error {
	if a.Limit < 0 {
		return invalidParams("Invalid params: limit must not be negative")
	}
	if a.Offset < 0 {
		return invalidParams("Invalid params: offset must not be negative")
	}
	return nil
}

// ToolResult is the result of "tools/call"
type ToolResult struct {
	Content []Content `json:"content"`
}

// Content is one block of tool output
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textResult(text string) ToolResult {
	return ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// decodeParams decodes raw into v. Absent params leave v untouched.
func decodeParams(raw json.RawMessage, v any) *Error {
	if !present(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidParams("Invalid params: %v", err)
	}
	return nil
}
