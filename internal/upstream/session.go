// Package upstream implements the Upstream Session (spec §4.3): one
// transport to one upstream MCP server, its MCP handshake, and a
// correlated call/response interface with timeout and degradation
// handling.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"mcpd/internal/domain"
)

// Session owns one transport to one upstream MCP server. The zero value is
// not usable; construct with New.
type Session struct {
	descriptor domain.UpstreamDescriptor
	logger     *zap.Logger

	client *mcp.Client

	mu                sync.RWMutex
	status            domain.UpstreamStatus
	session           *mcp.ClientSession
	lastErr           error
	protocolVersion   string
	reconnectAttempts int
	maxReconnect      int
	instanceID        string
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithMaxReconnectAttempts overrides the default single-reconnect policy
// (DESIGN.md Open Question 1).
func WithMaxReconnectAttempts(n int) Option {
	return func(s *Session) { s.maxReconnect = n }
}

// New constructs a Session for descriptor. It does not connect; call Start.
func New(descriptor domain.UpstreamDescriptor, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		descriptor:   descriptor,
		logger:       logger.Named("upstream").With(zap.String("upstream_id", descriptor.ID)),
		status:       domain.UpstreamInit,
		maxReconnect: domain.DefaultMaxReconnectAttempts,
		instanceID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.client = mcp.NewClient(&mcp.Implementation{Name: "mcprouter", Version: "dev"}, nil)
	return s
}

// ID returns the upstream descriptor id.
func (s *Session) ID() string { return s.descriptor.ID }

// InstanceID returns the unique id assigned to this session instance,
// stable across reconnects within the process lifetime.
func (s *Session) InstanceID() string { return s.instanceID }

// Status returns the current lifecycle state.
func (s *Session) Status() domain.UpstreamStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastError returns the most recently observed error, if any.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ProtocolVersion returns the negotiated MCP protocol version, if connected.
func (s *Session) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

func (s *Session) setStatus(status domain.UpstreamStatus, err error) {
	s.mu.Lock()
	s.status = status
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()
}

// Start opens the transport, performs the MCP handshake, and lists the
// upstream's tools. On success the session transitions to ready.
func (s *Session) Start(ctx context.Context) ([]domain.NativeTool, error) {
	s.setStatus(domain.UpstreamConnecting, nil)

	transport, err := s.buildTransport(ctx)
	if err != nil {
		s.setStatus(domain.UpstreamClosed, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnreachable, err)
	}

	clientSession, err := s.client.Connect(ctx, transport, nil)
	if err != nil {
		s.setStatus(domain.UpstreamClosed, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrHandshakeFailed, err)
	}

	tools, err := s.listTools(ctx, clientSession)
	if err != nil {
		_ = clientSession.Close()
		s.setStatus(domain.UpstreamClosed, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrListToolsFailed, err)
	}

	protocolVersion := ""
	if initResult := clientSession.InitializeResult(); initResult != nil {
		protocolVersion = initResult.ProtocolVersion
	}

	s.mu.Lock()
	s.session = clientSession
	s.status = domain.UpstreamReady
	s.lastErr = nil
	s.reconnectAttempts = 0
	s.protocolVersion = protocolVersion
	s.mu.Unlock()

	s.logger.Info("upstream ready", zap.Int("tool_count", len(tools)))
	return tools, nil
}

func (s *Session) listTools(ctx context.Context, cs *mcp.ClientSession) ([]domain.NativeTool, error) {
	result, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.NativeTool, 0, len(result.Tools))
	for _, t := range result.Tools {
		out = append(out, domain.NativeTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaToMap(t.InputSchema),
			UpstreamID:  s.descriptor.ID,
		})
	}
	return out, nil
}

func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	return nil
}

func (s *Session) buildTransport(ctx context.Context) (mcp.Transport, error) {
	switch s.descriptor.Transport {
	case domain.TransportStdio:
		if s.descriptor.Command == "" {
			return nil, fmt.Errorf("stdio upstream %q requires a command", s.descriptor.ID)
		}
		cmd := exec.CommandContext(ctx, s.descriptor.Command, s.descriptor.Args...)
		if len(s.descriptor.Env) > 0 {
			cmd.Env = append(cmd.Env, formatEnv(s.descriptor.Env)...)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	case domain.TransportHTTP:
		if s.descriptor.Endpoint == "" {
			return nil, fmt.Errorf("http upstream %q requires an endpoint", s.descriptor.ID)
		}
		return &mcp.StreamableClientTransport{Endpoint: s.descriptor.Endpoint}, nil
	case domain.TransportSSE:
		if s.descriptor.Endpoint == "" {
			return nil, fmt.Errorf("sse upstream %q requires an endpoint", s.descriptor.ID)
		}
		return &mcp.SSEClientTransport{Endpoint: s.descriptor.Endpoint}, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q for upstream %q", s.descriptor.Transport, s.descriptor.ID)
	}
}

func formatEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// Call submits a tools/call to the upstream and awaits its response,
// honoring an absolute deadline (default 30s, spec §4.3). A JSON-RPC error
// returned for this call alone (spec line 71) surfaces on that request only
// and never touches session health; only a transport-level failure degrades
// the session and attempts one reconnect before giving up (spec line 78).
func (s *Session) Call(ctx context.Context, nativeName string, arguments map[string]any, deadline time.Time) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	status := s.status
	clientSession := s.session
	s.mu.RUnlock()

	if status != domain.UpstreamReady || clientSession == nil {
		return nil, domain.ErrUpstreamClosed
	}

	if deadline.IsZero() {
		deadline = time.Now().Add(domain.DefaultCallDeadline)
	}
	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	result, err := clientSession.CallTool(callCtx, &mcp.CallToolParams{Name: nativeName, Arguments: arguments})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: upstream %q tool %q", domain.ErrUpstreamTimeout, s.descriptor.ID, nativeName)
		}
		if ctx.Err() != nil {
			return nil, domain.ErrCallCanceled
		}
		if !isUpstreamRPCError(err) {
			s.degrade(err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamError, err)
	}
	return result, nil
}

// isUpstreamRPCError reports whether err is a structured JSON-RPC error
// response from the upstream, as opposed to a transport or decode failure.
// The former is a per-call failure (spec line 71); the latter is what
// degrade exists for (spec line 78).
func isUpstreamRPCError(err error) bool {
	var rpcErr *jsonrpc.Error
	return errors.As(err, &rpcErr)
}

// degrade moves a ready session to degraded and attempts one reconnect
// (spec §4.3). Two consecutive failures move it to closed.
func (s *Session) degrade(cause error) {
	s.mu.Lock()
	if s.status != domain.UpstreamReady {
		s.mu.Unlock()
		return
	}
	s.status = domain.UpstreamDegraded
	s.lastErr = cause
	old := s.session
	s.session = nil
	attempts := s.reconnectAttempts
	maxAttempts := s.maxReconnect
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	if attempts >= maxAttempts {
		s.setStatus(domain.UpstreamClosed, cause)
		s.logger.Warn("upstream closed after exhausting reconnect attempts", zap.Error(cause))
		return
	}

	s.mu.Lock()
	s.reconnectAttempts++
	s.mu.Unlock()

	s.logger.Warn("upstream degraded, attempting reconnect", zap.Error(cause))
	ctx, cancel := context.WithTimeout(context.Background(), domain.DefaultStartupDeadline)
	defer cancel()
	if _, err := s.Start(ctx); err != nil {
		s.setStatus(domain.UpstreamClosed, err)
		s.logger.Error("upstream reconnect failed", zap.Error(err))
	}
}

// Stop performs a graceful shutdown: closes the transport and marks the
// session closed. Any subsequent Call returns UpstreamClosed.
func (s *Session) Stop(_ context.Context) error {
	s.mu.Lock()
	clientSession := s.session
	s.session = nil
	s.status = domain.UpstreamClosed
	s.mu.Unlock()

	if clientSession == nil {
		return nil
	}
	return clientSession.Close()
}
