package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mcpd/internal/domain"
	"mcpd/internal/embedding"
)

func TestStartUpstreamsWithNoneConfiguredSucceeds(t *testing.T) {
	o := New(Config{Name: "test"}, embedding.NewTFIDFEmbedder(), nil, nil)
	tools, err := o.startUpstreams(context.Background())
	require.NoError(t, err)
	require.Empty(t, tools)
}

func TestStartUpstreamsFailsFastWhenEveryUpstreamFails(t *testing.T) {
	o := New(Config{
		Name: "test",
		Upstreams: []domain.UpstreamDescriptor{
			{ID: "broken", Transport: domain.TransportStdio}, // no command: fails fast
		},
	}, embedding.NewTFIDFEmbedder(), nil, nil)

	_, err := o.startUpstreams(context.Background())
	require.ErrorIs(t, err, domain.ErrAllUpstreamsFailed)
}

func TestStatusWithNoSessionsReportsEmpty(t *testing.T) {
	o := New(Config{Name: "test"}, embedding.NewTFIDFEmbedder(), nil, nil)
	status := o.Status()
	require.Empty(t, status.Upstreams)
	require.Zero(t, status.ToolCount)
}

func TestToolRefreshTickerStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	o := New(Config{Name: "test", ToolRefreshPeriod: time.Millisecond}, embedding.NewTFIDFEmbedder(), nil, nil)
	ctx := context.Background()
	o.startToolRefresh(ctx)
	time.Sleep(5 * time.Millisecond)
	o.stopToolRefresh()
}

func TestBuildCatalogProducesSearchableIndex(t *testing.T) {
	o := New(Config{Name: "test"}, embedding.NewTFIDFEmbedder(), nil, nil)
	cat, idx, svc, err := o.buildCatalog(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, cat.Size(), "built-in search tool is always present")
	require.Equal(t, 1, idx.Size())
	require.NotNil(t, svc)
}
