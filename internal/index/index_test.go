package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"mcpd/internal/domain"
	"mcpd/internal/embedding"
)

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	entries := []Entry{
		{PublicName: "a.one", EmbeddingText: "navigate to a URL in the browser", UpstreamID: "a"},
		{PublicName: "a.two", EmbeddingText: "take a screenshot of the page", UpstreamID: "a"},
		{PublicName: "b.one", EmbeddingText: "search the web for a query", UpstreamID: "b"},
		{PublicName: domain.BuiltinSearchToolName, EmbeddingText: "search tools by natural language query", Builtin: true},
	}
	idx, err := Build(context.Background(), entries, embedding.NewTFIDFEmbedder())
	require.NoError(t, err)
	return idx
}

func TestBuildDeterministicOrder(t *testing.T) {
	idx1 := buildTestIndex(t)
	idx2 := buildTestIndex(t)
	require.Equal(t, idx1.entries, idx2.entries)
}

func TestRankExcludesBuiltinAndLimitsK(t *testing.T) {
	// Build the embedder separately so its fitted vocabulary can also
	// produce a compatible query vector for Rank.
	e := embedding.NewTFIDFEmbedder()
	entries := []Entry{
		{PublicName: "a.one", EmbeddingText: "navigate to a URL in the browser", UpstreamID: "a"},
		{PublicName: "a.two", EmbeddingText: "take a screenshot of the page", UpstreamID: "a"},
		{PublicName: "b.one", EmbeddingText: "search the web for a query", UpstreamID: "b"},
		{PublicName: domain.BuiltinSearchToolName, EmbeddingText: "search tools by natural language query", Builtin: true},
	}
	idx, err := Build(context.Background(), entries, e)
	require.NoError(t, err)

	qv, err := e.Embed(context.Background(), "open a web page")
	require.NoError(t, err)

	results := idx.Rank(qv, 10, domain.ExcludeBuiltin)
	require.LessOrEqual(t, len(results), 3)
	for _, r := range results {
		require.NotEqual(t, domain.BuiltinSearchToolName, r.PublicName)
	}

	limited := idx.Rank(qv, 1, domain.ExcludeBuiltin)
	require.Len(t, limited, 1)
}

func TestDefaultSubsetRoundRobinsByUpstream(t *testing.T) {
	entries := []Entry{
		{PublicName: "a.one", EmbeddingText: "navigate browser", UpstreamID: "a"},
		{PublicName: "a.two", EmbeddingText: "take screenshot", UpstreamID: "a"},
		{PublicName: "b.one", EmbeddingText: "search web", UpstreamID: "b"},
	}
	idx, err := Build(context.Background(), entries, embedding.NewTFIDFEmbedder())
	require.NoError(t, err)

	subset := idx.DefaultSubset(3, nil)
	require.Equal(t, []string{"a.one", "b.one", "a.two"}, subset)
}

func TestDefaultSubsetIsDeterministicAcrossRuns(t *testing.T) {
	entries := []Entry{
		{PublicName: "a.one", EmbeddingText: "navigate browser", UpstreamID: "a"},
		{PublicName: "a.two", EmbeddingText: "take screenshot", UpstreamID: "a"},
		{PublicName: "b.one", EmbeddingText: "search web", UpstreamID: "b"},
	}
	idx1, err := Build(context.Background(), entries, embedding.NewTFIDFEmbedder())
	require.NoError(t, err)
	idx2, err := Build(context.Background(), entries, embedding.NewTFIDFEmbedder())
	require.NoError(t, err)

	require.Equal(t, idx1.DefaultSubset(10, nil), idx2.DefaultSubset(10, nil))
}

func TestDefaultSubsetCapsAtCatalogSize(t *testing.T) {
	entries := []Entry{
		{PublicName: "a.one", EmbeddingText: "navigate browser", UpstreamID: "a"},
	}
	idx, err := Build(context.Background(), entries, embedding.NewTFIDFEmbedder())
	require.NoError(t, err)
	require.Equal(t, []string{"a.one"}, idx.DefaultSubset(20, nil))
}
