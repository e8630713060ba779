package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/mhpenta/imagestudio"
	"github.com/mhpenta/imagestudio/config"
	"github.com/mhpenta/imagestudio/history"
	"github.com/mhpenta/imagestudio/internal/metrics"
	"github.com/mhpenta/imagestudio/provider/gemini"
	"github.com/mhpenta/imagestudio/provider/modelscope"
	"github.com/mhpenta/imagestudio/ratelimiter"
	"github.com/prometheus/client_golang/prometheus"
)

// app holds everything built from configuration for one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	orch     *imagestudio.Orchestrator
	history  history.Store
	registry *prometheus.Registry
}

func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log, stderr)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector("imagestudio", registry)

	adapters, err := buildAdapters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []imagestudio.OrchestratorOption{
		imagestudio.WithLogger(logger),
		imagestudio.WithMetrics(collector),
		imagestudio.WithDefaultProvider(cfg.DefaultProvider),
		imagestudio.WithPoller(imagestudio.NewTaskPoller(
			imagestudio.WithPollInterval(cfg.Poll.Interval),
			imagestudio.WithMaxAttempts(cfg.Poll.MaxAttempts),
			imagestudio.WithPollLogger(logger),
		)),
	}
	for _, a := range adapters {
		opts = append(opts, imagestudio.WithAdapter(a))
		if cfg.RateLimit.RequestsPerMinute > 0 || cfg.RateLimit.TokensPerMinute > 0 {
			opts = append(opts, imagestudio.WithRateLimiter(a.Name(),
				ratelimiter.New(cfg.RateLimit.TokensPerMinute, cfg.RateLimit.RequestsPerMinute)))
		}
	}
	orch := imagestudio.NewOrchestrator(nil, opts...)

	store, err := history.Open(ctx, history.Options{
		Driver:    cfg.History.Driver,
		DSN:       cfg.History.DSN,
		RedisAddr: cfg.History.RedisAddr,
	})
	if err != nil {
		_ = orch.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, orch: orch, history: store, registry: registry}, nil
}

// buildAdapters creates ModelScope always and Gemini when it has a key.
func buildAdapters(ctx context.Context, cfg *config.Config) ([]imagestudio.Adapter, error) {
	var adapters []imagestudio.Adapter

	msCfg := cfg.ModelScope()
	if cfg.Providers.ModelScope.Async {
		adapters = append(adapters, modelscope.NewAsync(msCfg))
	} else {
		adapters = append(adapters, modelscope.NewSync(msCfg))
	}

	if g := cfg.Providers.Gemini; g.APIKey != "" {
		adapter, err := gemini.New(ctx, gemini.Config{APIKey: g.APIKey, Model: g.Model})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

func (a *app) Close() error {
	return errors.Join(a.orch.Close(), a.history.Close())
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
