// handler.go — основной обработчик API, реализующий ServerInterface.
// Делегирует запросы в сервисный слой, ошибки переводит apierrors.WriteFailure.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/catalog-module/internal/api/errors"
	"github.com/bigkaa/goartstore/catalog-module/internal/api/openapi"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
)

// CatalogService — операции каталога, используемые API.
type CatalogService interface {
	Create(ctx context.Context, in service.MovieInput) (*model.Movie, error)
	Get(ctx context.Context, movieID int) (*model.Movie, error)
	List(ctx context.Context, filter model.MovieFilter, limit, offset int) ([]*model.Movie, int, error)
	Update(ctx context.Context, movieID int, fields service.MovieFields) (*model.Movie, error)
	Delete(ctx context.Context, movieID int) error
	Stats(ctx context.Context) (*model.MovieStats, error)
}

// IngestionService — загрузка и проверка CSV.
type IngestionService interface {
	Ingest(ctx context.Context, r io.Reader, fileName string) (*model.IngestionResult, error)
	ValidateFile(ctx context.Context, r io.Reader) *model.FileValidationResult
	ListRuns(ctx context.Context, limit, offset int) ([]*model.IngestionRun, int, error)
}

// SweepRunner — ручной запуск проверки качества данных.
type SweepRunner interface {
	RunOnce(ctx context.Context) (*model.SweepResult, error)
}

// APIHandler — основной обработчик API Catalog Module.
type APIHandler struct {
	health        *HealthHandler
	catalog       CatalogService
	ingestion     IngestionService
	sweep         SweepRunner
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	catalog CatalogService,
	ingestion IngestionService,
	sweep SweepRunner,
	maxUploadSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		catalog:       catalog,
		ingestion:     ingestion,
		sweep:         sweep,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

var _ ServerInterface = (*APIHandler)(nil)

// HealthLive — проверка liveness (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — проверка readiness (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// GetOpenAPI — GET /api/v1/openapi.yaml.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapi.Raw())
}

// RunSweep — POST /api/v1/maintenance/sweep.
// Проверка уже идёт — 409 BUSY.
func (h *APIHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweep.RunOnce(r.Context())
	if err != nil {
		apierrors.WriteFailure(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationDefaults нормализует параметры пагинации.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = min(max(*limit, 1), 1000)
	}
	if offset != nil {
		o = max(*offset, 0)
	}
	return l, o
}
