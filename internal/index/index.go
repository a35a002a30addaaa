// Package index implements the Tool Index (spec §4.2): an immutable,
// read-only collection of (public_name, embedding vector) pairs supporting
// top-K cosine ranking and a deterministic default subset selection.
package index

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"mcpd/internal/domain"
	"mcpd/internal/embedding"
)

// Entry is one input to Build: a catalog entry's name plus the text fed to
// the Embedding Provider.
type Entry struct {
	PublicName    string
	EmbeddingText string
	UpstreamID    string
	Builtin       bool
}

type vectorEntry struct {
	publicName string
	upstreamID string
	builtin    bool
	vector     []float64
}

// Result is one ranked or default-subset hit.
type Result struct {
	PublicName string
	Similarity float64
}

// Index is built once from a finite set of Entry values and is read-only
// thereafter; its zero value is not usable, use Build.
type Index struct {
	entries []vectorEntry
}

// Build embeds every entry's embedding_text and stores unit-normalized
// vectors sorted by public_name for deterministic iteration. If the
// embedder implements embedding.Fitter, Fit runs once over every entry's
// text before any Embed call. Concurrent embedding is used but storage
// order is always by sorted public_name, satisfying spec §4.2's determinism
// requirement regardless of goroutine completion order.
func Build(ctx context.Context, entries []Entry, embedder embedding.Embedder) (*Index, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PublicName < sorted[j].PublicName })

	if fitter, ok := embedder.(embedding.Fitter); ok {
		texts := make([]string, len(sorted))
		for i, e := range sorted {
			texts[i] = e.EmbeddingText
		}
		if err := fitter.Fit(ctx, texts); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
	}

	vectors := make([][]float64, len(sorted))
	group, gctx := errgroup.WithContext(ctx)
	for i, e := range sorted {
		i, e := i, e
		group.Go(func() error {
			vec, err := embedder.Embed(gctx, e.EmbeddingText)
			if err != nil {
				return fmt.Errorf("%w: embed %q: %w", domain.ErrEmbeddingUnavailable, e.PublicName, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := make([]vectorEntry, len(sorted))
	for i, e := range sorted {
		out[i] = vectorEntry{
			publicName: e.PublicName,
			upstreamID: e.UpstreamID,
			builtin:    e.Builtin,
			vector:     vectors[i],
		}
	}
	return &Index{entries: out}, nil
}

// Size returns the number of entries in the index.
func (idx *Index) Size() int {
	return len(idx.entries)
}

// Rank returns the top-k public names by cosine similarity to queryVector,
// descending, ties broken lexicographically by public_name. filter may be
// nil to consider every entry. Returns all entries if k exceeds the
// candidate count.
func (idx *Index) Rank(queryVector []float64, k int, filter domain.IndexFilter) []Result {
	candidates := make([]vectorEntry, 0, len(idx.entries))
	for _, e := range idx.entries {
		if filter != nil && !filter(e.publicName, e.upstreamID, e.builtin) {
			continue
		}
		candidates = append(candidates, e)
	}

	scored := make([]Result, len(candidates))
	for i, c := range candidates {
		scored[i] = Result{PublicName: c.publicName, Similarity: cosine(queryVector, c.vector)}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].PublicName < scored[j].PublicName
	})

	if k < 0 || k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

// DefaultSubset returns a deterministic, diversity-oriented subset of size
// min(n, candidate_count): partition by upstream_id, round-robin across
// upstreams in sorted order, picking the smallest lexicographic public_name
// not yet chosen on each upstream's turn, until n is reached.
func (idx *Index) DefaultSubset(n int, filter domain.IndexFilter) []string {
	byUpstream := make(map[string][]string)
	for _, e := range idx.entries {
		if filter != nil && !filter(e.publicName, e.upstreamID, e.builtin) {
			continue
		}
		byUpstream[e.upstreamID] = append(byUpstream[e.upstreamID], e.publicName)
	}

	upstreamIDs := make([]string, 0, len(byUpstream))
	for id, names := range byUpstream {
		sort.Strings(names)
		upstreamIDs = append(upstreamIDs, id)
	}
	sort.Strings(upstreamIDs)

	cursor := make(map[string]int, len(upstreamIDs))
	out := make([]string, 0, n)
	for len(out) < n {
		progressed := false
		for _, id := range upstreamIDs {
			if len(out) >= n {
				break
			}
			names := byUpstream[id]
			pos := cursor[id]
			if pos >= len(names) {
				continue
			}
			out = append(out, names[pos])
			cursor[id] = pos + 1
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}

// cosine computes the dot product of two vectors, assumed unit-normalized.
func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
