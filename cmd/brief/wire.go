package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/brief-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/events/kafka"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract/docx"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract/eml"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract/html"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract/markdown"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/extract/plaintext"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/brief-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/brief-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/core/services"
	"github.com/custodia-labs/brief-cli/internal/logger"
)

// closers runs cleanup functions in reverse order of registration.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.Warn("cleanup: %v", err)
		}
	}
}

// build is the composition root. It reads settings and wires the adapters
// they select into the core services.
func build(ctx context.Context, opts cli.BootstrapOptions) (*cli.Services, func(), error) {
	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	if opts.SettingsOnly {
		return &cli.Services{Settings: settingsService, Validator: ai.NewConfigValidator()}, func() {}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}

	var cl closers
	fail := func(err error) (*cli.Services, func(), error) {
		cl.close()
		return nil, nil, err
	}

	store, err := openStore(ctx, settings, opts.ConfigDir)
	if err != nil {
		return fail(err)
	}
	cl.add(store.Close)

	recorder := prometheus.New()

	provider, err := ai.NewEmbeddingProvider(settings)
	if err != nil {
		logger.Warn("%v", err)
	}
	if provider != nil {
		cl.add(provider.Close)
	}

	batcher := services.NewEmbeddingBatcher(provider, settings.Batch)
	batcher.SetMetrics(recorder)
	if settings.Cache.RedisAddr != "" {
		cache, closeCache, err := redis.New(ctx, redis.Config{
			Addr:     settings.Cache.RedisAddr,
			Password: os.Getenv("BRIEF_REDIS_PASSWORD"),
			TTL:      settings.Cache.TTL,
		})
		if err != nil {
			logger.Warn("query cache disabled: %v", err)
		} else {
			batcher.SetCache(cache)
			cl.add(closeCache)
			if err := recorder.ObserveQueryCache(cache.Stats); err != nil {
				logger.Warn("query cache metrics disabled: %v", err)
			}
		}
	}

	ingestService := services.NewIngestService(store, batcher, settings.Chunking)
	ingestService.SetMetrics(recorder)
	if len(settings.Events.Brokers) > 0 {
		publisher := kafka.NewPublisher(settings.Events.Brokers, settings.Events.Topic)
		ingestService.SetEventPublisher(publisher)
		cl.add(publisher.Close)
	}

	searchService := services.NewSearchService(store, batcher, settings.Search)
	searchService.SetMetrics(recorder)

	return &cli.Services{
		Ingest:    ingestService,
		Search:    searchService,
		Context:   services.NewContextService(searchService, settings.Context),
		Document:  services.NewDocumentService(store),
		Settings:  settingsService,
		Validator: ai.NewConfigValidator(),
		Files:     extract.NewRegistry(plaintext.New(), markdown.New(), html.New(), docx.New(), eml.New()),
		NewMetricsServer: func(addr string) (cli.MetricsServer, error) {
			server, err := prometheus.NewServer(addr, recorder)
			if err != nil {
				return nil, err
			}
			return server, nil
		},
	}, cl.close, nil
}

// openStore opens the knowledge store backend selected in settings.
func openStore(ctx context.Context, settings *domain.Settings, configDir string) (driven.KnowledgeStore, error) {
	switch settings.Store.Backend {
	case domain.StorePostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{DSN: settings.Store.PostgresDSN})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return store, nil

	case domain.StoreMemory:
		logger.Warn("Using the in-memory store; documents are lost on exit")
		return memory.NewStore(), nil

	default:
		dataDir := settings.Store.DataDir
		if dataDir == "" && configDir != "" {
			dataDir = filepath.Join(configDir, "data")
		}
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return store, nil
	}
}
