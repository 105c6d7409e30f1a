package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arloliu/helmsman"
	"github.com/arloliu/helmsman/accessor"
	"github.com/arloliu/helmsman/admin"
	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/internal/metrics"
	"github.com/arloliu/helmsman/model"
)

type runOptions struct {
	configPath  string
	cluster     string
	logLevel    string
	logJSON     bool
	metricsAddr string
	bootstrap   bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the cluster controller",
		Long: `Run the controller for one cluster until interrupted.

The store backend and timing are read from the configuration file. Without
a file the in-memory backend is used, which is only useful for trying the
controller out.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runController(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to YAML configuration file")
	flags.StringVar(&opts.cluster, "cluster", "", "Cluster name (overrides the configuration file)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", ":9090", "Address of the Prometheus /metrics endpoint (empty disables it)")
	flags.BoolVar(&opts.bootstrap, "bootstrap", false, "Create the cluster and built-in state models when missing")

	return cmd
}

func loadRunConfig(opts *runOptions) (*helmsman.Config, error) {
	cfg := helmsman.DefaultConfig()
	if opts.configPath != "" {
		read, err := helmsman.ReadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *read
	}
	if opts.cluster != "" {
		cfg.ClusterName = opts.cluster
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", helmsman.ErrInvalidConfig, err)
	}

	return &cfg, nil
}

func runController(ctx context.Context, opts *runOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadRunConfig(opts)
	if err != nil {
		return err
	}

	logger := logging.NewZerologWriter(logging.ZerologOptions{Level: opts.logLevel, JSON: opts.logJSON})

	st, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	if opts.bootstrap {
		if err := bootstrapCluster(ctx, accessor.New(st), helmsman.ClusterID(cfg.ClusterName), logger); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctrl, err := helmsman.NewController(cfg, st,
		helmsman.WithLogger(logger),
		helmsman.WithMetrics(metrics.NewPrometheus(reg, "")),
	)
	if err != nil {
		return err
	}

	var srv *http.Server
	errCh := make(chan error, 1)
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		logger.Info("metrics endpoint listening", "addr", opts.metricsAddr)
	}

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start controller: %w", err)
	}
	logger.Info("controller running",
		"cluster", cfg.ClusterName,
		"controller", cfg.ControllerName,
		"backend", cfg.Store.Backend,
		"session", ctrl.SessionID(),
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("metrics endpoint failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := ctrl.Stop(shutdownCtx); err != nil && !errors.Is(err, helmsman.ErrNotStarted) {
		logger.Warn("controller stop failed", "error", err)
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics endpoint shutdown failed", "error", err)
		}
	}
	logger.Info("shutdown complete", "passes", ctrl.Passes())

	return runErr
}

// bootstrapCluster creates the cluster config and the built-in state models,
// leaving existing ones untouched.
func bootstrapCluster(ctx context.Context, da *accessor.DataAccessor, cluster helmsman.ClusterID, logger helmsman.Logger) error {
	adm := admin.New(da, admin.WithLogger(logger))
	if err := adm.AddCluster(ctx, cluster); err != nil && !errors.Is(err, helmsman.ErrAlreadyExists) {
		return fmt.Errorf("bootstrap: %w", err)
	}
	for _, def := range model.DefaultStateModels() {
		if err := adm.AddStateModelDef(ctx, cluster, def); err != nil && !errors.Is(err, helmsman.ErrAlreadyExists) {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	return nil
}
