package upstream

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/require"

	"mcpd/internal/domain"
)

func newTestSession(t *testing.T, maxReconnect int) *Session {
	t.Helper()
	return New(domain.UpstreamDescriptor{ID: "a", Transport: domain.TransportStdio, Command: "echo"},
		nil, WithMaxReconnectAttempts(maxReconnect))
}

func TestBuildTransportRejectsMissingCommand(t *testing.T) {
	s := New(domain.UpstreamDescriptor{ID: "a", Transport: domain.TransportStdio}, nil)
	_, err := s.buildTransport(nil) //nolint:staticcheck // nil ctx is fine, buildTransport never reads it for stdio validation
	require.Error(t, err)
}

func TestBuildTransportRejectsMissingEndpoint(t *testing.T) {
	for _, transport := range []domain.TransportKind{domain.TransportHTTP, domain.TransportSSE} {
		s := New(domain.UpstreamDescriptor{ID: "a", Transport: transport}, nil)
		_, err := s.buildTransport(nil) //nolint:staticcheck
		require.Error(t, err)
	}
}

func TestBuildTransportRejectsUnknownKind(t *testing.T) {
	s := New(domain.UpstreamDescriptor{ID: "a", Transport: "carrier-pigeon"}, nil)
	_, err := s.buildTransport(nil) //nolint:staticcheck
	require.Error(t, err)
}

func TestCallOnUnreadySessionFailsFast(t *testing.T) {
	s := newTestSession(t, 1)
	_, err := s.Call(nil, "tool", nil, time.Now().Add(domain.DefaultCallDeadline)) //nolint:staticcheck
	require.ErrorIs(t, err, domain.ErrUpstreamClosed)
}

func TestDegradeIsNoopWhenNotReady(t *testing.T) {
	s := newTestSession(t, 1)
	require.Equal(t, domain.UpstreamInit, s.Status())
	s.degrade(errors.New("boom"))
	require.Equal(t, domain.UpstreamInit, s.Status(), "degrade only acts on a ready session")
}

func TestDegradeClosesAfterExhaustingReconnectAttempts(t *testing.T) {
	s := newTestSession(t, 0)
	s.mu.Lock()
	s.status = domain.UpstreamReady
	s.mu.Unlock()

	s.degrade(errors.New("upstream dropped"))
	require.Equal(t, domain.UpstreamClosed, s.Status())
	require.Error(t, s.LastError())
}

func TestIsUpstreamRPCErrorDetectsStructuredJSONRPCErrors(t *testing.T) {
	require.True(t, isUpstreamRPCError(&jsonrpc.Error{Code: -32000, Message: "tool failed"}))
	require.True(t, isUpstreamRPCError(fmt.Errorf("call failed: %w", &jsonrpc.Error{Code: -32000})),
		"wrapped jsonrpc.Error must still be detected via errors.As")
}

func TestIsUpstreamRPCErrorRejectsTransportFailures(t *testing.T) {
	require.False(t, isUpstreamRPCError(errors.New("connection reset by peer")))
	require.False(t, isUpstreamRPCError(nil))
}

func TestInstanceIDIsStableAndUnique(t *testing.T) {
	a := newTestSession(t, 1)
	b := newTestSession(t, 1)
	require.NotEmpty(t, a.InstanceID())
	require.NotEqual(t, a.InstanceID(), b.InstanceID())
}
