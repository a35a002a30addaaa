// Package orchestrator wires the Embedding Provider, Upstream Sessions,
// Tool Catalog, Tool Index, Search Service, and Router Server into a single
// process (spec §4.7): start every upstream concurrently, build the catalog
// and index from whatever came up ready, then serve the host transport
// until shutdown.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mcpd/internal/catalog"
	"mcpd/internal/domain"
	"mcpd/internal/embedding"
	"mcpd/internal/index"
	"mcpd/internal/router"
	"mcpd/internal/search"
	"mcpd/internal/upstream"
)

// Config is the Orchestrator's static configuration, produced by
// internal/config from flags, env, and file sources.
type Config struct {
	Name              string
	Version           string
	Upstreams         []domain.UpstreamDescriptor
	NamespaceStrategy domain.NamespaceStrategy
	StartupDeadline   time.Duration
	ToolRefreshPeriod time.Duration
}

// Orchestrator owns the full set of Upstream Sessions and the Router Server
// built on top of them. Its zero value is not usable, use New.
type Orchestrator struct {
	cfg      Config
	embedder embedding.Embedder
	metrics  domain.RouterMetrics
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*upstream.Session
	server   *router.Server

	refreshStop chan struct{}
	refreshWG   sync.WaitGroup
}

// New constructs an Orchestrator. embedder and logger may be nil; embedder
// defaults to a TF-IDF embedder and metrics to a no-op implementation.
func New(cfg Config, embedder embedding.Embedder, metrics domain.RouterMetrics, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if embedder == nil {
		embedder = embedding.NewTFIDFEmbedder()
	}
	if metrics == nil {
		metrics = domain.NopRouterMetrics{}
	}
	if cfg.StartupDeadline <= 0 {
		cfg.StartupDeadline = domain.DefaultStartupDeadline
	}
	if cfg.NamespaceStrategy == "" {
		cfg.NamespaceStrategy = domain.NamespacePrefixed
	}
	return &Orchestrator{
		cfg:      cfg,
		embedder: embedder,
		metrics:  metrics,
		logger:   logger.Named("orchestrator"),
		sessions: make(map[string]*upstream.Session),
	}
}

// Status is a readiness snapshot for health and readiness endpoints
// (SUPPLEMENTED FEATURES, SPEC_FULL §4).
type Status struct {
	Upstreams map[string]domain.UpstreamStatus
	ToolCount int
}

// Status reports the current lifecycle state of every upstream and the
// size of the live catalog. Safe to call concurrently with Run.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := Status{Upstreams: make(map[string]domain.UpstreamStatus, len(o.sessions))}
	for id, s := range o.sessions {
		out.Upstreams[id] = s.Status()
	}
	if o.server != nil {
		out.ToolCount = o.server.CatalogSize()
	}
	return out
}

// Run starts every configured upstream concurrently, builds the catalog and
// index from those that reach ready within cfg.StartupDeadline, and then
// serves transport until ctx is cancelled or an unrecoverable error occurs.
// It returns domain.ErrAllUpstreamsFailed if not a single upstream started.
func (o *Orchestrator) Run(ctx context.Context, transport mcp.Transport) error {
	sessionTools, err := o.startUpstreams(ctx)
	if err != nil {
		return err
	}

	cat, idx, svc, err := o.buildCatalog(ctx, sessionTools)
	if err != nil {
		return err
	}

	o.server = router.New(router.Options{
		Name:     o.cfg.Name,
		Version:  o.cfg.Version,
		Catalog:  cat,
		Index:    idx,
		Search:   svc,
		Sessions: o.lookupSession,
		Logger:   o.logger,
		Metrics:  o.metrics,
	})

	o.startToolRefresh(ctx)
	defer o.stopToolRefresh()

	runErr := o.server.Run(ctx, transport)

	o.shutdownUpstreams()
	return runErr
}

// startUpstreams starts every configured upstream concurrently under
// cfg.StartupDeadline and returns the catalog.SessionTools contribution of
// each one that reached ready. A failed upstream is logged and excluded,
// not fatal, unless every upstream failed (spec §4.7).
func (o *Orchestrator) startUpstreams(ctx context.Context) ([]catalog.SessionTools, error) {
	startCtx, cancel := context.WithTimeout(ctx, o.cfg.StartupDeadline)
	defer cancel()

	type outcome struct {
		descriptor domain.UpstreamDescriptor
		session    *upstream.Session
		tools      []domain.NativeTool
		err        error
	}
	outcomes := make([]outcome, len(o.cfg.Upstreams))

	group, gctx := errgroup.WithContext(startCtx)
	for i, descriptor := range o.cfg.Upstreams {
		i, descriptor := i, descriptor
		group.Go(func() error {
			session := upstream.New(descriptor, o.logger)
			tools, err := session.Start(gctx)
			outcomes[i] = outcome{descriptor: descriptor, session: session, tools: tools, err: err}
			return nil
		})
	}
	_ = group.Wait()

	var sessionTools []catalog.SessionTools
	readyCount := 0
	o.mu.Lock()
	for _, oc := range outcomes {
		if oc.err != nil {
			o.logger.Warn("upstream failed to start",
				zap.String("upstream_id", oc.descriptor.ID), zap.Error(oc.err))
			continue
		}
		readyCount++
		o.sessions[oc.descriptor.ID] = oc.session
		o.metrics.SetUpstreamStatus(oc.descriptor.ID, domain.UpstreamReady)
		sessionTools = append(sessionTools, catalog.SessionTools{
			UpstreamID:          oc.descriptor.ID,
			Prefix:              oc.descriptor.ResolvedPrefix(),
			CategoryDescription: oc.descriptor.CategoryDescription,
			Tools:               oc.tools,
		})
	}
	o.mu.Unlock()

	if readyCount == 0 && len(o.cfg.Upstreams) > 0 {
		return nil, domain.ErrAllUpstreamsFailed
	}
	o.logger.Info("upstreams started", zap.Int("ready", readyCount), zap.Int("configured", len(o.cfg.Upstreams)))
	return sessionTools, nil
}

func (o *Orchestrator) buildCatalog(ctx context.Context, sessionTools []catalog.SessionTools) (*catalog.Catalog, *index.Index, *search.Service, error) {
	cat, err := catalog.Build(sessionTools, o.cfg.NamespaceStrategy)
	if err != nil {
		return nil, nil, nil, err
	}

	entries := make([]index.Entry, 0, cat.Size())
	for _, entry := range cat.Entries() {
		entries = append(entries, index.Entry{
			PublicName:    entry.PublicName,
			EmbeddingText: entry.EmbeddingText,
			UpstreamID:    entry.UpstreamID,
			Builtin:       entry.Builtin,
		})
	}

	start := time.Now()
	idx, err := index.Build(ctx, entries, o.embedder)
	if err != nil {
		return nil, nil, nil, err
	}
	o.metrics.ObserveIndexBuild(time.Since(start), idx.Size())

	svc := search.New(o.embedder, idx, cat, o.logger)
	return cat, idx, svc, nil
}

func (o *Orchestrator) lookupSession(upstreamID string) (*upstream.Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[upstreamID]
	return s, ok
}

// shutdownUpstreams stops every upstream session concurrently, logging but
// not failing on individual stop errors (spec §4.7 graceful shutdown).
func (o *Orchestrator) shutdownUpstreams() {
	o.mu.RLock()
	sessions := make([]*upstream.Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		sessions = append(sessions, s)
	}
	o.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Stop(ctx); err != nil {
				o.logger.Warn("upstream stop failed", zap.String("upstream_id", s.ID()), zap.Error(err))
			}
		}()
	}
	wg.Wait()
}

// startToolRefresh runs a periodic check of every session's lifecycle state,
// disabled by default (SUPPLEMENTED FEATURES, SPEC_FULL §4). On each tick it
// updates the upstream status gauges and logs degraded or closed upstreams
// so an operator can restart. It does not re-list tools or rebuild the
// catalog or index, and never swaps the Router Server's tool registrations.
func (o *Orchestrator) startToolRefresh(ctx context.Context) {
	if o.cfg.ToolRefreshPeriod <= 0 {
		return
	}
	o.refreshStop = make(chan struct{})
	o.refreshWG.Add(1)
	ticker := time.NewTicker(o.cfg.ToolRefreshPeriod)
	go func() {
		defer o.refreshWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.logCatalogDrift()
			case <-o.refreshStop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (o *Orchestrator) logCatalogDrift() {
	o.mu.RLock()
	sessions := make([]*upstream.Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		sessions = append(sessions, s)
	}
	o.mu.RUnlock()

	var degraded, closed int
	for _, s := range sessions {
		switch s.Status() {
		case domain.UpstreamDegraded:
			degraded++
		case domain.UpstreamClosed:
			closed++
		}
		o.metrics.SetUpstreamStatus(s.ID(), s.Status())
	}
	if degraded > 0 || closed > 0 {
		o.logger.Warn("tool refresh tick observed unhealthy upstreams",
			zap.Int("degraded", degraded), zap.Int("closed", closed))
	}
}

func (o *Orchestrator) stopToolRefresh() {
	if o.refreshStop == nil {
		return
	}
	close(o.refreshStop)
	o.refreshWG.Wait()
}
