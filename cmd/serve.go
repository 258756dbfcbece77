package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adalundhe/architect/core/config"
	"github.com/adalundhe/architect/core/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generation pipeline over HTTP",
	Long: `Serve exposes generate, fix, document, classify and usage endpoints under
/v1, plus /healthz and Prometheus metrics on /metrics. Edits to the config
files update the classifier policy and log level without a restart.`,
	Example: `  architect serve --addr 127.0.0.1:8501`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{metrics: true})
	if err != nil {
		return err
	}
	defer a.Close()

	a.config.OnChange(func(cfg *config.Config) {
		if err := a.pipeline.Classifier().UpdatePolicy(cfg.Classifier); err != nil {
			a.logger.Warn("classifier policy not reloaded", zap.Error(err))
		}
		if logLevel == "" {
			if err := a.logger.SetLevel(cfg.Log.Level); err != nil {
				a.logger.Warn("log level not reloaded", zap.Error(err))
			}
		}
	})
	if err := a.config.Watch(ctx); err != nil {
		a.logger.Debug("config files not watched", zap.Error(err))
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	opts := []server.Option{
		server.WithLogger(a.logger.Logger),
		server.WithMetrics(a.metrics),
		server.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout),
	}
	if a.ledger != nil {
		opts = append(opts, server.WithLedger(a.ledger))
	}
	a.logger.Info("pipeline ready",
		zap.String("provider", a.provider),
		zap.Bool("cache", a.results != nil),
		zap.Bool("ledger", a.ledger != nil),
	)
	return server.New(a.pipeline, opts...).Run(ctx, addr)
}
