// Command mcprouter runs the MCP semantic router: it starts every
// configured upstream MCP server, aggregates their tools into a searchable
// catalog, and serves a single host-facing MCP endpoint over stdio.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcpd/internal/config"
	"mcpd/internal/embedding"
	"mcpd/internal/orchestrator"
	"mcpd/internal/telemetry"
)

var version = "dev"

type serveOptions struct {
	configPath  string
	metricsAddr string
	watchConfig bool
	logger      *zap.Logger
}

func main() {
	opts := &serveOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "mcprouter",
		Short: "MCP semantic router: aggregate, index, and route tools across upstream MCP servers",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := zap.NewProductionConfig()
			log, err := cfg.Build()
			if err != nil {
				return err
			}
			opts.logger = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		opts.logger.Fatal("command failed", zap.Error(err))
	}
}

func newServeCommand(opts *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the router against a config file, serving the host MCP endpoint over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "mcprouter.yaml", "path to the router config file")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on, empty disables it")
	cmd.Flags().BoolVar(&opts.watchConfig, "watch-config", false, "log a reload prompt when the config file changes")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the router version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func runServe(ctx context.Context, opts *serveOptions) error {
	loader := config.NewLoader(opts.logger)
	cfg, err := loader.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = version
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(registry)

	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: opts.metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				opts.logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			_ = server.Close()
		}()
	}

	if opts.watchConfig {
		go func() {
			if err := config.Watch(ctx, opts.configPath, opts.logger, func() {}); err != nil {
				opts.logger.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	embedder := embedding.NewTFIDFEmbedder()
	orch := orchestrator.New(cfg, embedder, metrics, opts.logger)

	opts.logger.Info("starting router",
		zap.String("config", opts.configPath),
		zap.Int("upstreams", len(cfg.Upstreams)))

	return orch.Run(ctx, &mcp.StdioTransport{})
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
