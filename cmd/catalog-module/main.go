// Точка входа Catalog Module — каталог фильмов с загрузкой CSV.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт сервисный слой и API handlers, запускает фоновые задачи
// (проверка качества данных, входящие каталог и бакет, topologymetrics)
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/catalog-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/catalog-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/catalog-module/internal/api/openapi"
	"github.com/bigkaa/goartstore/catalog-module/internal/app"
	"github.com/bigkaa/goartstore/catalog-module/internal/config"
	"github.com/bigkaa/goartstore/catalog-module/internal/database"
	"github.com/bigkaa/goartstore/catalog-module/internal/inbox"
	"github.com/bigkaa/goartstore/catalog-module/internal/server"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Catalog Module завершился с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// 1. Конфигурация и логирование
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.SetupLogger(cfg)
	logger.Info("Catalog Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Миграции и подключение к PostgreSQL
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return err
	}

	core, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	// 3. topologymetrics через существующий пул соединений
	pgDB := stdlib.OpenDBFromPool(core.Pool)
	defer pgDB.Close()

	dephealthSvc, err := service.NewDephealthService(service.DephealthParams{
		ServiceID:     "catalog-module",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PgURL:         cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
	} else {
		defer dephealthSvc.Stop()
	}

	// 4. HTTP API
	doc, err := openapi.Load(ctx)
	if err != nil {
		return err
	}

	opts := server.Options{OpenAPI: doc}
	if cfg.AuthEnabled() {
		opts.JWTAuth, err = middleware.NewJWTAuth(
			cfg.JWTJWKSURL,
			cfg.JWTIssuer,
			cfg.RoleAdminGroups,
			cfg.RoleReadonlyGroups,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			return err
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("CM_JWT_JWKS_URL не задан, API работает без аутентификации")
	}
	if cfg.ImportRateLimit > 0 {
		opts.ImportLimiter = middleware.NewKeyedRateLimiter(cfg.ImportRateLimit, cfg.ImportRateBurst)
	}

	apiHandler := handlers.NewAPIHandler(
		handlers.NewHealthHandler(map[string]handlers.ReadinessChecker{
			"postgresql": database.NewReadinessChecker(core.Pool),
			"sweep":      core.Sweep,
		}),
		core.Catalog,
		core.Ingestion,
		core.Sweep,
		cfg.MaxUploadSize,
		logger,
	)
	srv, err := server.New(cfg, logger, apiHandler, opts)
	if err != nil {
		return err
	}

	// 5. Фоновые задачи
	core.Sweep.Start(ctx)
	defer core.Sweep.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.InboxDir != "" {
		watcher, err := inbox.NewDirWatcher(cfg.InboxDir, cfg.InboxSettleDelay, core.Ingestion, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if cfg.GCSBucket != "" {
		bucket, err := inbox.NewGCSBucket(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return err
		}
		defer bucket.Close()

		poller := inbox.NewGCSPoller(bucket, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCSPollInterval, core.Ingestion, logger)
		g.Go(func() error { return poller.Run(gctx) })
	}

	g.Go(func() error { return srv.Run(gctx) })

	err = g.Wait()
	logger.Info("Catalog Module остановлен")
	return err
}
