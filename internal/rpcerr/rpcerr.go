// Package rpcerr translates the router's domain errors (spec §7) into
// JSON-RPC error objects on the host-facing wire. It is the only place that
// knows about numeric wire codes; the core stays transport-agnostic per the
// teacher's domain/infra split (internal/domain/error.go never mentions a
// wire code).
package rpcerr

import (
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"mcpd/internal/domain"
)

// Wire codes assigned by spec §7.
const (
	CodeInvalidParams  int64 = -32602
	CodeMethodNotFound int64 = -32601
	CodeUpstreamTimeout int64 = -32000
	CodeUpstreamError  int64 = -32603
	CodeUpstreamClosed int64 = -32000
	CodeSearchUnavailable int64 = -32000
)

// Data is the structured detail attached to every wire error (spec §7):
// the public tool name when applicable, the upstream id when the failure
// originated upstream, and machine-readable upstream error detail.
type Data struct {
	Name          string `json:"name,omitempty"`
	UpstreamID    string `json:"upstreamId,omitempty"`
	UpstreamError any    `json:"upstreamError,omitempty"`
}

// New builds a *jsonrpc.Error for err, attaching name/upstreamID context.
// Unrecognized errors fall back to CodeUpstreamError so no internal detail
// leaks as a panic or an opaque 500-equivalent.
func New(err error, name, upstreamID string) *jsonrpc.Error {
	code, message := classify(err)
	data := Data{Name: name, UpstreamID: upstreamID}

	var upstreamErr *jsonrpc.Error
	if errors.As(err, &upstreamErr) {
		data.UpstreamError = map[string]any{
			"code":    upstreamErr.Code,
			"message": upstreamErr.Message,
		}
	}

	raw, marshalErr := json.Marshal(data)
	if marshalErr != nil {
		raw = nil
	}
	return &jsonrpc.Error{Code: code, Message: message, Data: raw}
}

// classify delegates to the domain package's own error taxonomy
// (RouterCodeFrom, which falls back to CodeFrom for a wrapped *domain.Error)
// and maps the resulting ErrorCode onto this package's wire codes.
func classify(err error) (int64, string) {
	code, ok := domain.RouterCodeFrom(err)
	if !ok {
		return CodeUpstreamError, err.Error()
	}
	switch code {
	case domain.CodeInvalidArgument:
		return CodeInvalidParams, err.Error()
	case domain.CodeNotFound:
		return CodeMethodNotFound, err.Error()
	case domain.CodeDeadlineExceeded:
		return CodeUpstreamTimeout, err.Error()
	case domain.CodeUnavailable:
		return CodeUpstreamClosed, err.Error()
	default:
		return CodeUpstreamError, err.Error()
	}
}

// MethodNotFound builds the wire error for an unknown public tool name
// (spec §4.6, scenario 4).
func MethodNotFound(publicName string) *jsonrpc.Error {
	return New(domain.ErrPublicToolNotFound, publicName, "")
}
