package inbox

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/failure"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// fakeIngester — мок Ingester: запоминает вызовы.
// Содержимое без строки заголовка "id," считается отклонённым целиком.
type fakeIngester struct {
	mu      sync.Mutex
	sources []string
	bodies  []string
	seen    map[string]bool
	scans   int

	ingestErr error
	// failFirst — сколько первых вызовов завершаются ingestErr (0 — все)
	failFirst int
	errCalls  int

	// cancelRuns — IngestSource возвращает прерванный итог, источник не запоминается
	cancelRuns bool
}

func newFakeIngester() *fakeIngester {
	return &fakeIngester{seen: map[string]bool{}}
}

func (f *fakeIngester) IngestSource(_ context.Context, r io.Reader, fileName, source string) (*model.IngestionResult, error) {
	data, _ := io.ReadAll(r)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ingestErr != nil && (f.failFirst == 0 || f.errCalls < f.failFirst) {
		f.errCalls++
		return nil, f.ingestErr
	}
	f.sources = append(f.sources, source)
	f.bodies = append(f.bodies, string(data))
	if f.cancelRuns {
		return &model.IngestionResult{FileName: fileName, TotalRecords: 1, CreatedCount: 1, Canceled: true}, nil
	}
	f.seen[source] = true

	if !strings.HasPrefix(string(data), "id,") {
		return nil, failure.New(failure.KindMissingHeader, "csv.header", "отсутствует строка заголовка с именами колонок")
	}
	return &model.IngestionResult{FileName: fileName, TotalRecords: 1, CreatedCount: 1, Success: true}, nil
}

func (f *fakeIngester) SourceSeen(_ context.Context, source string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[source], nil
}

func (f *fakeIngester) MarkInboxScan(_ context.Context, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	return nil
}

func (f *fakeIngester) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sources...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
