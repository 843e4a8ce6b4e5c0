package commands

import (
	"context"
	"os"

	"github.com/leapstack-labs/bqrun/internal/cli/config"
	"github.com/leapstack-labs/bqrun/internal/lsp"
	"github.com/leapstack-labs/bqrun/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand(version string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC and exposes the
bigquery.runAsQuery, bigquery.runSelectedAsQuery and bigquery.dryRun
commands. Settings pushed by the editor override the config file, which
is watched and reloaded when it changes.`,
		Example: `  # Start LSP server (usually called by an editor)
  bqrun lsp

  # Also expose Prometheus metrics
  bqrun lsp --metrics-addr 127.0.0.1:9464`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd, version, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")
	return cmd
}

func runLSP(cmd *cobra.Command, version, metricsAddr string) error {
	registry := prometheus.NewRegistry()
	cmdCtx := NewCommandContext(cmd, registry)
	manager := cmdCtx.Manager
	logger := cmdCtx.Logger

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.Options{
		Config:   manager,
		Executor: cmdCtx.Executor,
		Logger:   logger,
		Version:  version,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The session ending stops the watcher and the metrics server.
		defer cancel()
		return server.Run(ctx)
	})

	g.Go(func() error {
		return manager.Watch(ctx, func(_ config.Config, err error) {
			if err != nil {
				server.ShowError(err.Error())
				return
			}
			logger.Info("configuration reloaded", "file", manager.FileUsed())
		})
	})

	if metricsAddr != "" {
		g.Go(func() error {
			if err := observability.ServeMetrics(ctx, metricsAddr, registry, logger); err != nil {
				server.ShowError("metrics server stopped: " + err.Error())
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
