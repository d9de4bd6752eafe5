// Пакет server — HTTP-сервер Catalog Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bigkaa/goartstore/catalog-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/catalog-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/catalog-module/internal/config"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/rbac"
)

// Options — необязательные компоненты сервера.
type Options struct {
	// JWTAuth — аутентификация (nil — API без аутентификации).
	JWTAuth *middleware.JWTAuth
	// OpenAPI — документ для проверки запросов (nil — без проверки).
	OpenAPI *openapi3.T
	// ImportLimiter — лимит загрузок (nil — без лимита).
	ImportLimiter *middleware.KeyedRateLimiter
}

// Server — HTTP-сервер Catalog Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, handler handlers.ServerInterface, opts Options) (*Server, error) {
	router, err := newRouter(cfg, logger, handler, opts)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}, nil
}

func newRouter(cfg *config.Config, logger *slog.Logger, handler handlers.ServerInterface, opts Options) (http.Handler, error) {
	router := chi.NewRouter()

	// Глобальные middleware
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	// Health и metrics проверяются Kubernetes напрямую, без токена.
	if opts.JWTAuth != nil {
		router.Use(jwtAuthWithExclusions(opts.JWTAuth, "/health/", "/metrics", "/api/v1/openapi.yaml"))
	}

	if opts.OpenAPI != nil {
		validator, err := middleware.OpenAPIValidator(opts.OpenAPI)
		if err != nil {
			return nil, fmt.Errorf("создание OpenAPI валидатора: %w", err)
		}
		router.Use(validator)
	}

	var mw handlers.Middlewares
	if opts.JWTAuth != nil {
		mw.Read = append(mw.Read, middleware.RequireAccess(rbac.AccessRead))
		mw.Write = append(mw.Write, middleware.RequireAccess(rbac.AccessWrite))
	}
	if opts.ImportLimiter != nil {
		mw.Import = append(mw.Import, opts.ImportLimiter.Middleware())
	}

	handlers.HandlerFromMux(handler, router, mw)
	return router, nil
}

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская указанные пути.
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		protected := jwtMiddleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и блокируется до отмены ctx или ошибки сервера.
// После отмены ctx выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Получен сигнал завершения")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
