package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"mcpd/internal/catalog"
	"mcpd/internal/domain"
	"mcpd/internal/embedding"
	"mcpd/internal/index"
)

func buildService(t *testing.T) *Service {
	t.Helper()
	cat, err := catalog.Build([]catalog.SessionTools{
		{UpstreamID: "a", Prefix: "a", Tools: []domain.NativeTool{
			{Name: "one", Description: "navigate to a URL"},
			{Name: "two", Description: "take a screenshot"},
		}},
	}, domain.NamespacePrefixed)
	require.NoError(t, err)

	embedder := embedding.NewTFIDFEmbedder()
	entries := make([]index.Entry, 0, len(cat.Entries()))
	for _, e := range cat.Entries() {
		entries = append(entries, index.Entry{
			PublicName:    e.PublicName,
			EmbeddingText: e.EmbeddingText,
			UpstreamID:    e.UpstreamID,
			Builtin:       e.Builtin,
		})
	}
	idx, err := index.Build(context.Background(), entries, embedder)
	require.NoError(t, err)

	return New(embedder, idx, cat, nil)
}

func TestSearchEmptyQueryIsInvalid(t *testing.T) {
	s := buildService(t)
	_, err := s.Search(context.Background(), "   ", Options{})
	require.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestSearchExcludesBuiltinAndRanks(t *testing.T) {
	s := buildService(t)
	results, err := s.Search(context.Background(), "open a web page", Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "a.one", results[0].PublicName)
	for _, r := range results {
		require.NotEqual(t, domain.BuiltinSearchToolName, r.PublicName)
		require.GreaterOrEqual(t, r.Similarity, -1.0)
		require.LessOrEqual(t, r.Similarity, 1.0)
	}
}

func TestSearchUpstreamFilter(t *testing.T) {
	s := buildService(t)
	results, err := s.Search(context.Background(), "page", Options{UpstreamID: "nonexistent"})
	require.NoError(t, err)
	require.Empty(t, results)
}
