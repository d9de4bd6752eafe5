// Пакет inbox — автоматическая загрузка CSV из входящих источников:
// локального каталога (DirWatcher) и бакета Google Cloud Storage (GCSPoller).
package inbox

import (
	"context"
	"io"
	"time"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// Ingester — приёмник файлов. Реализуется service.IngestionService.
type Ingester interface {
	IngestSource(ctx context.Context, r io.Reader, fileName, source string) (*model.IngestionResult, error)
	SourceSeen(ctx context.Context, source string) (bool, error)
	MarkInboxScan(ctx context.Context, t time.Time) error
}
