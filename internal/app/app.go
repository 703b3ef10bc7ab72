// Package app wires configuration into a ready-to-use appraisal pipeline. Both
// the CLI and the HTTP API build their runtime through it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spherical-ai/appraisal/internal/cache"
	"github.com/spherical-ai/appraisal/internal/config"
	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/extract"
	"github.com/spherical-ai/appraisal/internal/llm"
	"github.com/spherical-ai/appraisal/internal/observability"
	"github.com/spherical-ai/appraisal/internal/pipeline"
	"github.com/spherical-ai/appraisal/internal/reduce"
	"github.com/spherical-ai/appraisal/internal/regress"
	"github.com/spherical-ai/appraisal/internal/regress/gbrt"
	"github.com/spherical-ai/appraisal/internal/snapshot"
	"github.com/spherical-ai/appraisal/internal/tabular"
)

// App is a fully wired pipeline and the resources it owns.
type App struct {
	Config      *config.Config
	Logger      *observability.Logger
	Regressor   *regress.Regressor
	Coordinator *pipeline.Coordinator

	// Source identifies this process on the model update channel.
	Source string

	store snapshot.Store
	cache cache.Client
	redis *cache.RedisClient
}

// Build creates every pipeline component from cfg and loads the stored model
// snapshot when there is one. Close releases what Build opened.
func Build(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	logger = observability.OrNop(logger)
	a := &App{
		Config: cfg,
		Logger: logger,
		Source: uuid.NewString(),
	}

	chat, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger)
	if err != nil {
		return nil, err
	}

	var summarizer domain.Summarizer = llm.NewSummarizer(chat)
	if cfg.Cache.Enabled {
		if err := a.openCache(ctx); err != nil {
			return nil, err
		}
		summarizer = cache.NewCachedSummarizer(summarizer, a.cache, cfg.Cache.TTL, logger)
	}

	a.store, err = snapshot.Open(ctx, snapshot.Options{
		Driver: cfg.Snapshot.Driver,
		Path:   cfg.Snapshot.Path,
		DSN:    cfg.SnapshotDSN(),
		Pool: snapshot.PoolOptions{
			MaxOpenConns:    cfg.Snapshot.MaxOpenConns,
			ConnMaxLifetime: cfg.Snapshot.ConnMaxLifetime,
		},
	})
	if err != nil {
		a.Close()
		return nil, domain.ConfigError("open snapshot store", err)
	}

	booster := gbrt.NewBooster(
		gbrt.WithRounds(cfg.Model.RoundsPerCall),
		gbrt.WithLearningRate(cfg.Model.LearningRate),
		gbrt.WithMaxDepth(cfg.Model.MaxDepth),
		gbrt.WithMinSamplesLeaf(cfg.Model.MinSamplesLeaf),
	)
	a.Regressor = regress.New(booster, a.store, cfg.Model.SnapshotName, logger)

	switch err := a.Regressor.Load(ctx); {
	case err == nil:
	case errors.Is(err, snapshot.ErrNotFound):
		logger.Info().Str("name", cfg.Model.SnapshotName).Msg("No stored model yet, starting untrained")
	default:
		logger.Warn().Err(err).Str("name", cfg.Model.SnapshotName).Msg("Stored model could not be loaded, starting untrained")
	}

	var notifier pipeline.ModelNotifier
	if a.redis != nil {
		notifier = cache.NewUpdateNotifier(a.redis, cfg.Cache.UpdateChannel, a.Source)
	}

	orch := pipeline.NewOrchestrator(
		pipeline.Config{
			MinTrainRows: cfg.Pipeline.MinTrainRows,
			Persist:      cfg.Pipeline.Persist,
			ModelName:    cfg.Model.SnapshotName,
		},
		reduce.NewReducer(summarizer, reduce.Config{
			TokenCeiling: cfg.Reduce.TokenCeiling,
			MinRatio:     cfg.Reduce.MinRatio,
			MaxRatio:     cfg.Reduce.MaxRatio,
			KeepUnpaired: cfg.Reduce.KeepUnpaired,
		}, logger),
		extract.NewExtractor(llm.NewConversation(chat, extract.SystemPrompt, cfg.LLM.HistoryTurns), logger),
		tabular.NewParser(),
		a.Regressor,
		notifier,
		logger,
	)
	a.Coordinator = pipeline.NewCoordinator(orch, cfg.Pipeline.QueueSize, logger)

	logger.Info().
		Str("llm_model", chat.Model()).
		Str("snapshot_driver", cfg.Snapshot.Driver).
		Bool("cache", cfg.Cache.Enabled).
		Bool("model_loaded", a.Regressor.Trained()).
		Msg("Pipeline ready")

	return a, nil
}

func (a *App) openCache(ctx context.Context) error {
	switch a.Config.Cache.Driver {
	case "memory", "":
		a.cache = cache.NewMemoryClient(a.Config.Cache.MaxEntries, a.Config.Cache.TTL)
	case "redis":
		rc, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			URL:      a.Config.Cache.Redis.URL,
			Addr:     a.Config.Cache.Redis.Addr,
			Password: a.Config.Cache.Redis.Password,
			DB:       a.Config.Cache.Redis.DB,
			PoolSize: a.Config.Cache.Redis.PoolSize,
		})
		if err != nil {
			return domain.ConfigError("connect to redis", err)
		}
		a.cache, a.redis = rc, rc
	default:
		return domain.ConfigError(fmt.Sprintf("unsupported cache driver: %s", a.Config.Cache.Driver), nil)
	}
	return nil
}

// Ready reports whether a trained model is available for prediction.
func (a *App) Ready() bool {
	return a.Regressor != nil && a.Regressor.Trained()
}

// WatchModelUpdates reloads the model whenever another process announces a new
// snapshot. It returns immediately when no redis cache is configured, and
// otherwise blocks until ctx is done.
func (a *App) WatchModelUpdates(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return cache.WatchUpdates(ctx, a.redis, a.Config.Cache.UpdateChannel, a.Source, a.Logger,
		func(ctx context.Context, u cache.ModelUpdate) {
			if u.Name != a.Config.Model.SnapshotName {
				return
			}
			if err := a.Coordinator.Reload(ctx); err != nil {
				a.Logger.Error().Err(err).Str("from", u.Source).Msg("Model reload failed")
				return
			}
			a.Logger.Info().Str("from", u.Source).Msg("Model reloaded after update")
		})
}

// Close stops the coordinator and releases stores and caches.
func (a *App) Close() {
	if a.Coordinator != nil {
		a.Coordinator.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close snapshot store")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close cache")
		}
	}
}
