package domain

import "time"

// TransportKind selects the wire transport used to reach an upstream MCP server.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportSSE   TransportKind = "sse"
	TransportHTTP  TransportKind = "http"
)

// UpstreamStatus is the lifecycle state of an Upstream Session.
type UpstreamStatus string

const (
	UpstreamInit       UpstreamStatus = "init"
	UpstreamConnecting UpstreamStatus = "connecting"
	UpstreamReady      UpstreamStatus = "ready"
	UpstreamDegraded   UpstreamStatus = "degraded"
	UpstreamClosed     UpstreamStatus = "closed"
)

// NamespaceStrategy selects how the Catalog resolves public_name collisions.
type NamespaceStrategy string

const (
	// NamespacePrefixed is the default: public_name = prefix + "." + native_name,
	// fatal on collision.
	NamespacePrefixed NamespaceStrategy = "prefixed"
	// NamespaceFlat renames a colliding tool with a "_<upstream_id>" suffix
	// (plus a numeric counter if that is taken too) instead of failing catalog
	// construction. Opt-in (SUPPLEMENTED FEATURES, SPEC_FULL §4).
	NamespaceFlat NamespaceStrategy = "flat"
)

const (
	// BuiltinSearchToolName is the public name of the built-in search tool.
	BuiltinSearchToolName = "search_tools"

	// DefaultSearchK is the default number of results search_tools returns.
	DefaultSearchK = 10
	// DefaultToolsListN is the total tool count advertised by tools/list,
	// including the built-in search tool (spec §4.6: N = 20, 19 + built-in).
	DefaultToolsListN = 20
	// DefaultCallDeadline is the default absolute deadline for an
	// Upstream Session call when the caller does not supply one.
	DefaultCallDeadline = 30 * time.Second
	// DefaultStartupDeadline bounds how long the Orchestrator waits for all
	// Upstream Sessions to reach ready or fail during startup.
	DefaultStartupDeadline = 60 * time.Second
	// DefaultMaxReconnectAttempts is how many times a degraded session
	// attempts to reconnect before moving to closed.
	DefaultMaxReconnectAttempts = 1
)

// UpstreamDescriptor is the configuration for one upstream MCP server.
type UpstreamDescriptor struct {
	ID                  string
	Transport           TransportKind
	Command             string
	Args                []string
	Env                 map[string]string
	Endpoint            string
	Prefix              string
	CategoryDescription string
}

// ResolvedPrefix returns the descriptor's namespace prefix, defaulting to ID.
func (d UpstreamDescriptor) ResolvedPrefix() string {
	if d.Prefix != "" {
		return d.Prefix
	}
	return d.ID
}

// NativeTool is a tool as reported by an upstream, before namespacing.
type NativeTool struct {
	Name        string
	Description string
	InputSchema map[string]any
	UpstreamID  string
}

// PublicTool is a namespaced catalog entry with its embedding.
type PublicTool struct {
	PublicName          string
	NativeName          string
	Description         string
	InputSchema         map[string]any
	UpstreamID          string
	CategoryDescription string
	EmbeddingText        string
	Embedding            []float64
	Builtin              bool
}

// ToolTarget identifies where a public tool routes to.
type ToolTarget struct {
	UpstreamID string
	NativeName string
}

// SearchResult is one ranked result of search_tools.
type SearchResult struct {
	PublicName  string  `json:"public_name"`
	Description string  `json:"description"`
	Similarity  float64 `json:"similarity"`
}

// RouteOptions carries per-call overrides for an Upstream Session call.
type RouteOptions struct {
	Deadline time.Time
}

// IndexFilter restricts the candidate set considered by Index.Rank.
type IndexFilter func(publicName string, upstreamID string, builtin bool) bool

// ExcludeBuiltin is an IndexFilter that excludes the built-in search tool.
func ExcludeBuiltin(publicName string, upstreamID string, builtin bool) bool {
	return !builtin
}
