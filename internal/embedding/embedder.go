// Package embedding provides the Embedding Provider contract (spec §4.1):
// an opaque function mapping text to a fixed-dimension, unit-normalized
// vector. The core depends only on the Embedder interface; the default
// TFIDFEmbedder is the in-process implementation the router ships with,
// and is swappable for a model-backed one without touching the Index.
package embedding

import "context"

// Embedder maps text to a fixed-dimension, unit-normalized vector.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// Fitter is implemented by embedders whose vocabulary or parameters depend
// on seeing the corpus ahead of time (TF-IDF's document frequencies, for
// instance). The Tool Index calls Fit once, with every tool's embedding_text,
// before calling Embed on any of them.
type Fitter interface {
	Fit(ctx context.Context, documents []string) error
}
