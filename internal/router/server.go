// Package router implements the Router Server (spec §4.6): the host-facing
// MCP endpoint exposing tools/list, tools/call, and the built-in
// search_tools, dispatching calls through the Tool Catalog to the owning
// Upstream Session.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"mcpd/internal/catalog"
	"mcpd/internal/domain"
	"mcpd/internal/index"
	"mcpd/internal/rpcerr"
	"mcpd/internal/search"
	"mcpd/internal/upstream"
)

// SessionLookup resolves an upstream id to its live Session, for dispatch.
type SessionLookup func(upstreamID string) (*upstream.Session, bool)

// Server is the host-facing MCP endpoint. Construct with New once the
// Catalog and Index are built; it is read-only thereafter.
type Server struct {
	mcpServer *mcp.Server
	catalog   *catalog.Catalog
	index     *index.Index
	search    *search.Service
	sessions  SessionLookup
	logger    *zap.Logger
	metrics   domain.RouterMetrics

	defaultSubset []string
}

// Options configures server construction.
type Options struct {
	Name     string
	Version  string
	Catalog  *catalog.Catalog
	Index    *index.Index
	Search   *search.Service
	Sessions SessionLookup
	Logger   *zap.Logger
	Metrics  domain.RouterMetrics
}

// New builds the Router Server, registers every catalog tool (including the
// built-in search_tools) with the underlying mcp.Server, and installs a
// tools/list middleware that returns only the deterministic default subset
// (spec §4.6: N=20, built-in always included). Registering every catalog
// entry — not just the default subset — keeps tools/call reachable for any
// public name per spec §4.6, independent of what tools/list advertises.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopRouterMetrics{}
	}
	s := &Server{
		catalog:  opts.Catalog,
		index:    opts.Index,
		search:   opts.Search,
		sessions: opts.Sessions,
		logger:   logger.Named("router"),
		metrics:  metrics,
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}, &mcp.ServerOptions{HasTools: true})

	for _, entry := range s.catalog.Entries() {
		entry := entry
		tool := &mcp.Tool{
			Name:        entry.PublicName,
			Description: entry.Description,
			InputSchema: entry.InputSchema,
		}
		s.mcpServer.AddTool(tool, s.handlerFor(entry.PublicName))
	}

	n := domain.DefaultToolsListN - 1
	s.defaultSubset = s.index.DefaultSubset(n, domain.ExcludeBuiltin)

	s.mcpServer.AddReceivingMiddleware(s.toolsListMiddleware())
	return s
}

// Run serves the host transport until ctx is cancelled or the host closes
// the transport (spec §4.6, stdio is the only required host transport).
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// CatalogSize reports the number of entries in the underlying Tool Catalog,
// for health and readiness reporting (SUPPLEMENTED FEATURES, SPEC_FULL §4).
func (s *Server) CatalogSize() int {
	return s.catalog.Size()
}

// toolsListMiddleware intercepts tools/list and short-circuits with the
// deterministic default subset instead of the SDK's default (every
// registered tool). Grounded in the teacher's toolsReadyMiddleware
// (AddReceivingMiddleware wrapping a single method).
func (s *Server) toolsListMiddleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != "tools/list" {
				return next(ctx, method, req)
			}
			return s.listDefaultSubset(), nil
		}
	}
}

func (s *Server) listDefaultSubset() *mcp.ListToolsResult {
	names := make([]string, 0, len(s.defaultSubset)+1)
	names = append(names, domain.BuiltinSearchToolName)
	names = append(names, s.defaultSubset...)

	tools := make([]*mcp.Tool, 0, len(names))
	for _, name := range names {
		entry, ok := s.catalog.Describe(name)
		if !ok {
			continue
		}
		tools = append(tools, &mcp.Tool{
			Name:        entry.PublicName,
			Description: entry.Description,
			InputSchema: entry.InputSchema,
		})
	}
	return &mcp.ListToolsResult{Tools: tools}
}

// handlerFor returns the mcp.ToolHandler for a public tool name, resolved
// once at registration time so dispatch is a closure call, not a runtime
// type switch (spec §9: "dynamic dispatch on tool name -> a single
// authoritative map, dispatch is a table lookup").
func (s *Server) handlerFor(publicName string) mcp.ToolHandler {
	if publicName == domain.BuiltinSearchToolName {
		return s.handleSearchTools
	}
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.handleUpstreamCall(ctx, publicName, req)
	}
}

type searchToolsInput struct {
	Query      string   `json:"query"`
	Context    []string `json:"context,omitempty"`
	UpstreamID string   `json:"upstream_id,omitempty"`
}

// handleSearchTools delegates to the Search Service and serializes the
// result list as the single text block of a successful tool result
// (DESIGN.md Open Question 3: kept as the spec's own resolution).
func (s *Server) handleSearchTools(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input searchToolsInput
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
			return nil, rpcerr.New(fmt.Errorf("%w: %w", domain.ErrInvalidParams, err), domain.BuiltinSearchToolName, "")
		}
	}

	start := time.Now()
	results, err := s.search.Search(ctx, input.Query, search.Options{Context: input.Context, UpstreamID: input.UpstreamID})
	if err != nil {
		s.metrics.ObserveSearch("error", time.Since(start))
		return nil, rpcerr.New(err, domain.BuiltinSearchToolName, "")
	}
	s.metrics.ObserveSearch("ok", time.Since(start))

	payload, err := json.Marshal(results)
	if err != nil {
		return nil, rpcerr.New(fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err), domain.BuiltinSearchToolName, "")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}, nil
}

// handleUpstreamCall resolves publicName through the Catalog and dispatches
// to the owning Upstream Session (spec §4.6). The upstream's result is
// returned verbatim on success.
func (s *Server) handleUpstreamCall(ctx context.Context, publicName string, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, ok := s.catalog.Lookup(publicName)
	if !ok {
		return nil, rpcerr.MethodNotFound(publicName)
	}

	session, ok := s.sessions(target.UpstreamID)
	if !ok || session.Status() != domain.UpstreamReady {
		s.metrics.SetUpstreamStatus(target.UpstreamID, domain.UpstreamClosed)
		return nil, rpcerr.New(domain.ErrUpstreamClosed, publicName, target.UpstreamID)
	}

	var arguments map[string]any
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &arguments); err != nil {
			return nil, rpcerr.New(fmt.Errorf("%w: %w", domain.ErrInvalidParams, err), publicName, target.UpstreamID)
		}
	}

	deadline := time.Now().Add(domain.DefaultCallDeadline)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	start := time.Now()
	result, err := session.Call(ctx, target.NativeName, arguments, deadline)
	s.metrics.SetUpstreamStatus(target.UpstreamID, session.Status())
	if err != nil {
		s.metrics.ObserveRoute(publicName, target.UpstreamID, "error", time.Since(start))
		s.logger.Warn("upstream call failed",
			zap.String("public_name", publicName),
			zap.String("upstream_id", target.UpstreamID),
			zap.Error(err))
		return nil, rpcerr.New(err, publicName, target.UpstreamID)
	}
	s.metrics.ObserveRoute(publicName, target.UpstreamID, "ok", time.Since(start))
	return result, nil
}
