// Package search implements the Search Service (spec §4.5): builds a query
// vector from a natural-language query plus optional context and asks the
// Tool Index for the most relevant catalog entries.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mcpd/internal/catalog"
	"mcpd/internal/domain"
	"mcpd/internal/embedding"
	"mcpd/internal/index"
)

// Service answers search_tools requests.
type Service struct {
	embedder embedding.Embedder
	index    *index.Index
	catalog  *catalog.Catalog
	logger   *zap.Logger
}

// New constructs a Service over a built Index and Catalog. logger may be nil.
func New(embedder embedding.Embedder, idx *index.Index, cat *catalog.Catalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embedder: embedder, index: idx, catalog: cat, logger: logger.Named("search")}
}

// Options carries optional search_tools parameters (spec §4.5 plus the
// supplemented upstream_id filter, SPEC_FULL §4).
type Options struct {
	Context    []string
	UpstreamID string
	K          int
}

// Search returns the top-K catalog entries ranked by similarity to query
// (and context, if given), excluding the built-in search tool itself.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	text := buildQueryText(query, opts.Context)
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err)
	}

	k := opts.K
	if k <= 0 {
		k = domain.DefaultSearchK
	}

	filter := func(publicName, upstreamID string, builtin bool) bool {
		if builtin {
			return false
		}
		if opts.UpstreamID != "" && upstreamID != opts.UpstreamID {
			return false
		}
		return true
	}

	ranked := s.index.Rank(vec, k, filter)
	results := make([]domain.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		entry, ok := s.catalog.Describe(r.PublicName)
		if !ok {
			s.logger.Warn("ranked public name missing from catalog", zap.String("public_name", r.PublicName))
			continue
		}
		results = append(results, domain.SearchResult{
			PublicName:  entry.PublicName,
			Description: entry.Description,
			Similarity:  r.Similarity,
		})
	}
	return results, nil
}

func buildQueryText(query string, context []string) string {
	parts := make([]string, 0, len(context)+1)
	parts = append(parts, query)
	parts = append(parts, context...)
	return strings.Join(parts, "\n")
}
