// health.go — проверки liveness/readiness и /metrics.
package handlers

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/catalog-module/internal/config"
)

const serviceName = "catalog-module"

// ReadinessChecker — проверка готовности одной зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady(ctx context.Context) (status string, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	checks      map[string]ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик. checks — проверки по имени зависимости
// (например, "postgresql"); nil-проверка считается проваленной.
func NewHealthHandler(checks map[string]ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		checks:      checks,
		promHandler: promhttp.Handler(),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks,omitempty"`
}

func newHealthResponse(status string) healthResponse {
	return healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}
}

// HealthLive — процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newHealthResponse("ok"))
}

// statusRank — порядок статусов от лучшего к худшему.
var statusRank = map[string]int{"ok": 0, "degraded": 1, "fail": 2}

// HealthReady — 200 при ok/degraded, 503 если хотя бы одна проверка провалена.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := newHealthResponse("ok")
	resp.Checks = make(map[string]healthCheckResult, len(h.checks))

	for _, name := range slices.Sorted(maps.Keys(h.checks)) {
		res := healthCheckResult{Status: "fail", Message: "не инициализирован"}
		if c := h.checks[name]; c != nil {
			res.Status, res.Message = c.CheckReady(r.Context())
		}
		resp.Checks[name] = res
		if statusRank[res.Status] > statusRank[resp.Status] {
			resp.Status = res.Status
		}
	}

	status := http.StatusOK
	if resp.Status == "fail" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}
