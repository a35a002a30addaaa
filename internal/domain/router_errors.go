package domain

import "errors"

// Sentinel errors for the router's own error taxonomy (spec §7). These pair
// with ErrorCode values via RouterCodeFrom and, at the wire boundary, with
// internal/rpcerr's JSON-RPC code assignments.
var (
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrUpstreamUnreachable  = errors.New("upstream unreachable")
	ErrHandshakeFailed      = errors.New("upstream handshake failed")
	ErrListToolsFailed      = errors.New("upstream tools/list failed")
	ErrUpstreamTimeout      = errors.New("upstream call timed out")
	ErrUpstreamError        = errors.New("upstream returned an error")
	ErrUpstreamClosed       = errors.New("upstream session is not ready")
	ErrCatalogConflict      = errors.New("duplicate public tool name")
	ErrAllUpstreamsFailed   = errors.New("all upstreams failed to start")
	ErrInvalidParams        = errors.New("invalid parameters")
	ErrPublicToolNotFound   = errors.New("public tool not found")
	ErrSearchUnavailable    = errors.New("search unavailable")
	ErrEmptyQuery           = errors.New("query must not be empty")
	ErrCallCanceled         = errors.New("call canceled by host")
)

// RouterCodeFrom extends CodeFrom with the router-specific sentinel errors.
// Kept separate from CodeFrom in error.go so that file stays close to its
// original shape; errors outside the router's sentinel set fall back to
// CodeFrom here, so router-layer callers need only call this.
func RouterCodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrEmbeddingUnavailable):
		return CodeUnavailable, true
	case errors.Is(err, ErrUpstreamUnreachable), errors.Is(err, ErrHandshakeFailed), errors.Is(err, ErrListToolsFailed):
		return CodeUnavailable, true
	case errors.Is(err, ErrUpstreamTimeout):
		return CodeDeadlineExceeded, true
	case errors.Is(err, ErrUpstreamError):
		return CodeInternal, true
	case errors.Is(err, ErrUpstreamClosed):
		return CodeUnavailable, true
	case errors.Is(err, ErrCatalogConflict), errors.Is(err, ErrAllUpstreamsFailed):
		return CodeFailedPrecond, true
	case errors.Is(err, ErrInvalidParams), errors.Is(err, ErrEmptyQuery):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrPublicToolNotFound):
		return CodeNotFound, true
	case errors.Is(err, ErrSearchUnavailable):
		return CodeUnavailable, true
	case errors.Is(err, ErrCallCanceled):
		return CodeCanceled, true
	default:
		return CodeFrom(err)
	}
}
