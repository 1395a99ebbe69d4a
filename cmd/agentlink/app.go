package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/agentlink/internal/api"
	"github.com/rickgao/agentlink/internal/config"
	"github.com/rickgao/agentlink/internal/metrics"
	"github.com/rickgao/agentlink/internal/session"
	"github.com/rickgao/agentlink/internal/version"
)

type globalOptions struct {
	configPath string
	logLevel   string
	agent      string
}

// app holds what every subcommand needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := config.LoadAndValidate(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	logger.Debug("configuration loaded",
		"version", version.Version,
		"config", opts.configPath,
		"endpoint", cfg.Endpoint.BaseURL,
	)

	return &app{cfg: cfg, logger: logger, registry: registry, metrics: m}, nil
}

func (a *app) historyClient() *api.Client {
	return api.NewClient(
		a.cfg.API.BaseURL,
		a.cfg.API.Token,
		api.WithLogger(a.logger.With("component", "api")),
		api.WithTimeout(a.cfg.API.Timeout),
		api.WithRetries(a.cfg.API.MaxRetries, a.cfg.API.RetryBackoff),
	)
}

func (a *app) sessionManager(withHistory bool) *session.Manager {
	conn := a.cfg.ConnectionSettings()
	if conn.Header == nil {
		conn.Header = make(http.Header)
	}
	conn.Header.Set("User-Agent", version.UserAgent())

	opts := []session.Option{
		session.WithLogger(a.logger),
		session.WithMetrics(a.metrics),
	}
	if withHistory && a.cfg.API.BaseURL != "" {
		opts = append(opts, session.WithHistory(a.historyClient()))
	}

	return session.NewManager(session.Config{
		Connection:     conn,
		URLFor:         a.cfg.EndpointURL,
		RequestTimeout: a.cfg.Requests.Timeout,
		HistoryLimit:   a.cfg.API.HistoryLimit,
	}, opts...)
}

// serveMetrics runs the /metrics endpoint until ctx ends. Port 0 disables it.
func (a *app) serveMetrics(ctx context.Context) error {
	if a.cfg.Metrics.Port <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("serving metrics", "port", a.cfg.Metrics.Port, "path", a.cfg.Metrics.Path)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func requireAgent(opts *globalOptions) error {
	if opts.agent == "" {
		return errors.New("--agent is required")
	}
	return nil
}
