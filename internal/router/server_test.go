package router

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"mcpd/internal/catalog"
	"mcpd/internal/domain"
	"mcpd/internal/embedding"
	"mcpd/internal/index"
	"mcpd/internal/rpcerr"
	"mcpd/internal/search"
	"mcpd/internal/upstream"
)

func buildTestServer(t *testing.T) *Server {
	t.Helper()
	cat, err := catalog.Build([]catalog.SessionTools{
		{UpstreamID: "a", Prefix: "a", Tools: []domain.NativeTool{
			{Name: "one", Description: "navigate to a URL"},
			{Name: "two", Description: "take a screenshot"},
		}},
	}, domain.NamespacePrefixed)
	require.NoError(t, err)

	entries := make([]index.Entry, 0, cat.Size())
	for _, e := range cat.Entries() {
		entries = append(entries, index.Entry{PublicName: e.PublicName, EmbeddingText: e.EmbeddingText, UpstreamID: e.UpstreamID, Builtin: e.Builtin})
	}
	embedder := embedding.NewTFIDFEmbedder()
	idx, err := index.Build(context.Background(), entries, embedder)
	require.NoError(t, err)

	svc := search.New(embedder, idx, cat, nil)

	noSessions := func(string) (*upstream.Session, bool) { return nil, false }
	return New(Options{Name: "test", Version: "dev", Catalog: cat, Index: idx, Search: svc, Sessions: noSessions})
}

func TestHandleSearchToolsReturnsJSONResults(t *testing.T) {
	s := buildTestServer(t)
	args, err := json.Marshal(searchToolsInput{Query: "open a web page"})
	require.NoError(t, err)

	result, err := s.handleSearchTools(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)},
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	var results []domain.SearchResult
	require.NoError(t, json.Unmarshal([]byte(text.Text), &results))
}

func TestHandleSearchToolsRejectsEmptyQuery(t *testing.T) {
	s := buildTestServer(t)
	_, err := s.handleSearchTools(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{}})
	require.Error(t, err)
}

func TestHandleUpstreamCallOnUnknownNameReturnsMethodNotFound(t *testing.T) {
	s := buildTestServer(t)
	_, err := s.handleUpstreamCall(context.Background(), "nonexistent.tool", &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{}})
	require.Error(t, err)

	var wireErr *jsonrpc.Error
	require.ErrorAs(t, err, &wireErr)
	require.Equal(t, rpcerr.CodeMethodNotFound, wireErr.Code)
}

func TestHandleUpstreamCallWhenSessionMissing(t *testing.T) {
	s := buildTestServer(t)
	_, err := s.handleUpstreamCall(context.Background(), "a.one", &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{}})
	require.Error(t, err)
}

func TestListDefaultSubsetAlwaysIncludesBuiltin(t *testing.T) {
	s := buildTestServer(t)
	result := s.listDefaultSubset()

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	require.Contains(t, names, domain.BuiltinSearchToolName)
}

func TestHandlerForDispatchesBuiltinSeparately(t *testing.T) {
	s := buildTestServer(t)
	require.NotNil(t, s.handlerFor(domain.BuiltinSearchToolName))
	require.NotNil(t, s.handlerFor("a.one"))
}
