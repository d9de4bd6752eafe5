package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/service"
)

type mockCatalog struct {
	createFn func(ctx context.Context, in service.MovieInput) (*model.Movie, error)
	getFn    func(ctx context.Context, movieID int) (*model.Movie, error)
	listFn   func(ctx context.Context, filter model.MovieFilter, limit, offset int) ([]*model.Movie, int, error)
	updateFn func(ctx context.Context, movieID int, fields service.MovieFields) (*model.Movie, error)
	deleteFn func(ctx context.Context, movieID int) error
	statsFn  func(ctx context.Context) (*model.MovieStats, error)
}

func (m *mockCatalog) Create(ctx context.Context, in service.MovieInput) (*model.Movie, error) {
	return m.createFn(ctx, in)
}

func (m *mockCatalog) Get(ctx context.Context, movieID int) (*model.Movie, error) {
	return m.getFn(ctx, movieID)
}

func (m *mockCatalog) List(ctx context.Context, filter model.MovieFilter, limit, offset int) ([]*model.Movie, int, error) {
	return m.listFn(ctx, filter, limit, offset)
}

func (m *mockCatalog) Update(ctx context.Context, movieID int, fields service.MovieFields) (*model.Movie, error) {
	return m.updateFn(ctx, movieID, fields)
}

func (m *mockCatalog) Delete(ctx context.Context, movieID int) error {
	return m.deleteFn(ctx, movieID)
}

func (m *mockCatalog) Stats(ctx context.Context) (*model.MovieStats, error) {
	return m.statsFn(ctx)
}

type mockIngestion struct {
	ingestFn   func(ctx context.Context, r io.Reader, fileName string) (*model.IngestionResult, error)
	validateFn func(ctx context.Context, r io.Reader) *model.FileValidationResult
	listRunsFn func(ctx context.Context, limit, offset int) ([]*model.IngestionRun, int, error)
}

func (m *mockIngestion) Ingest(ctx context.Context, r io.Reader, fileName string) (*model.IngestionResult, error) {
	return m.ingestFn(ctx, r, fileName)
}

func (m *mockIngestion) ValidateFile(ctx context.Context, r io.Reader) *model.FileValidationResult {
	return m.validateFn(ctx, r)
}

func (m *mockIngestion) ListRuns(ctx context.Context, limit, offset int) ([]*model.IngestionRun, int, error) {
	return m.listRunsFn(ctx, limit, offset)
}

type mockSweep struct {
	runFn func(ctx context.Context) (*model.SweepResult, error)
}

func (m *mockSweep) RunOnce(ctx context.Context) (*model.SweepResult, error) {
	return m.runFn(ctx)
}

type mockChecker struct {
	status, message string
}

func (m mockChecker) CheckReady(context.Context) (string, string) {
	return m.status, m.message
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter собирает router без аутентификации.
func newTestRouter(c *mockCatalog, ing *mockIngestion, sw *mockSweep, maxUpload int64) http.Handler {
	if c == nil {
		c = &mockCatalog{}
	}
	if ing == nil {
		ing = &mockIngestion{}
	}
	if sw == nil {
		sw = &mockSweep{}
	}
	h := NewAPIHandler(NewHealthHandler(map[string]ReadinessChecker{"postgresql": mockChecker{status: "ok"}}), c, ing, sw, maxUpload, testLogger())
	r := chi.NewRouter()
	HandlerFromMux(h, r, Middlewares{})
	return r
}
