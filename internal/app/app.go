// Пакет app — сборка общих компонентов Catalog Module:
// подключение к PostgreSQL, репозитории, кэш и сервисы.
// Используется HTTP-сервером и CLI catalogctl.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/catalog-module/internal/config"
	"github.com/bigkaa/goartstore/catalog-module/internal/database"
	"github.com/bigkaa/goartstore/catalog-module/internal/ingest"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
)

// Core — собранные компоненты.
type Core struct {
	Pool      *pgxpool.Pool
	Store     repository.Store
	Cache     *service.MovieCache
	Catalog   *service.CatalogService
	Ingestion *service.IngestionService
	Sweep     *service.SweepService
}

// New подключается к PostgreSQL и создаёт сервисы.
// Миграции не применяются, это отдельный шаг.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	corrections, err := loadCorrections(cfg, logger)
	if err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(pool)
	cache := service.NewMovieCache(cfg.CacheSize, cfg.CacheTTL)

	return &Core{
		Pool:      pool,
		Store:     store,
		Cache:     cache,
		Catalog:   service.NewCatalogService(store, corrections, cache, nil, logger),
		Ingestion: service.NewIngestionService(store, corrections, cache, nil, logger),
		Sweep:     service.NewSweepService(store, cache, cfg.SweepInterval, cfg.SweepOnStart, nil, logger),
	}, nil
}

// Close закрывает пул подключений.
func (c *Core) Close() {
	c.Pool.Close()
}

func loadCorrections(cfg *config.Config, logger *slog.Logger) (*ingest.GenreCorrections, error) {
	if cfg.GenreCorrectionsFile == "" {
		return ingest.DefaultGenreCorrections(), nil
	}

	corrections, err := ingest.LoadGenreCorrections(cfg.GenreCorrectionsFile)
	if err != nil {
		return nil, fmt.Errorf("CM_GENRE_CORRECTIONS_FILE: %w", err)
	}
	logger.Info("Загружены исправления жанров",
		slog.String("path", cfg.GenreCorrectionsFile),
		slog.Int("entries", corrections.Len()),
	)
	return corrections, nil
}
