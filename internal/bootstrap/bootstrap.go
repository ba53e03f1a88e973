package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/ports"
	"github.com/kirillkom/document-classifier/internal/core/usecase"
	"github.com/kirillkom/document-classifier/internal/infrastructure/cache/redis"
	"github.com/kirillkom/document-classifier/internal/infrastructure/converter"
	"github.com/kirillkom/document-classifier/internal/infrastructure/imagecodec"
	"github.com/kirillkom/document-classifier/internal/infrastructure/llm/openai"
	"github.com/kirillkom/document-classifier/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-classifier/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-classifier/internal/infrastructure/resilience"
	"github.com/kirillkom/document-classifier/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/document-classifier/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue   ports.BatchQueue
	Metrics *metrics.BatchMetrics

	FileUC  *usecase.ClassifyFileUseCase
	BatchUC *usecase.BatchClassificationUseCase

	closeFns []func()
}

// New wires every adapter. Batch metrics are registered on registerer so each
// binary can expose them next to its own collectors.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, service string, registerer prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	taxonomy, err := config.LoadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	batchMetrics := metrics.NewBatchMetrics(service, registerer)
	app.Metrics = batchMetrics

	executor := resilience.NewExecutor(resilienceConfig(cfg),
		resilience.WithLogger(logger),
		resilience.WithStateListener(batchMetrics.ObserveBreakerState),
	)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closeFns = append(app.closeFns, func() { _ = db.Close() })
	repo := postgres.NewBatchRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.closeFns = append(app.closeFns, queue.Close)
	app.Queue = queue

	var cache ports.ResultCache
	if cfg.RedisURL != "" {
		redisCache, err := redis.New(cfg.RedisURL, redis.Options{TTL: cfg.CacheTTL})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init result cache: %w", err)
		}
		app.closeFns = append(app.closeFns, func() { _ = redisCache.Close() })
		cache = redisCache
	}

	docConverter, err := converter.New(converter.Options{
		OutputDir:    cfg.OutputDir,
		OfficeBinary: cfg.OfficeBinary,
		MaxImageEdge: cfg.MaxImageEdge,
		Logger:       logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init document converter: %w", err)
	}

	provider := openai.NewWithOptions(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, openai.Options{
		Timeout:            cfg.OpenAITimeout,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	codec := imagecodec.New()
	builder := usecase.NewRequestBuilder(taxonomy, cfg.OpenAIModel)

	ingestor := usecase.NewFileIngestor(docConverter, batchMetrics, logger, cfg.IngestWorkers)
	coordinator := usecase.NewBatchCoordinator(provider, storage, builder, batchMetrics, logger, usecase.BatchCoordinatorConfig{
		PollInterval:     cfg.BatchPollInterval,
		CompletionWindow: cfg.BatchCompletionWindow,
	})

	app.FileUC = usecase.NewClassifyFileUseCase(storage, docConverter, codec, builder, provider, cache, logger)
	app.BatchUC = usecase.NewBatchClassificationUseCase(ingestor, codec, builder, coordinator, repo, queue, batchMetrics, logger)

	logger.Info("bootstrap_ready",
		"model", cfg.OpenAIModel,
		"categories", taxonomy.Categories,
		"result_cache", cache != nil,
		"ingest_workers", cfg.IngestWorkers,
	)
	return app, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.RetryMaxAttempts
	rc.RetryInitialBackoff = cfg.RetryInitialBackoff
	rc.RetryMaxBackoff = cfg.RetryMaxBackoff
	rc.BreakerEnabled = cfg.BreakerEnabled
	rc.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return rc
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
