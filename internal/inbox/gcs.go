package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/failure"
)

// ObjectInfo — описание объекта бакета.
type ObjectInfo struct {
	Name       string
	Generation int64
	Size       int64
	Updated    time.Time
}

// ObjectSource — чтение объектов бакета.
type ObjectSource interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Open(ctx context.Context, name string, generation int64) (io.ReadCloser, error)
}

// GCSBucket — ObjectSource поверх cloud.google.com/go/storage.
type GCSBucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCSBucket создаёт клиент бакета. Без credentialsFile используются
// Application Default Credentials.
func NewGCSBucket(ctx context.Context, bucket, credentialsFile string) (*GCSBucket, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("создание клиента GCS: %w", err)
	}
	return &GCSBucket{client: client, bucket: client.Bucket(bucket)}, nil
}

// List возвращает объекты с префиксом.
func (b *GCSBucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return objects, nil
		}
		if err != nil {
			return nil, fmt.Errorf("список объектов GCS: %w", err)
		}
		objects = append(objects, ObjectInfo{
			Name:       attrs.Name,
			Generation: attrs.Generation,
			Size:       attrs.Size,
			Updated:    attrs.Updated,
		})
	}
}

// Open открывает конкретное поколение объекта.
func (b *GCSBucket) Open(ctx context.Context, name string, generation int64) (io.ReadCloser, error) {
	r, err := b.bucket.Object(name).Generation(generation).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("чтение объекта %s: %w", name, err)
	}
	return r, nil
}

// Close закрывает клиент GCS.
func (b *GCSBucket) Close() error {
	return b.client.Close()
}

// GCSPoller периодически опрашивает бакет и загружает новые *.csv.
// Ключ источника — gs://bucket/name#generation: новое поколение объекта
// загружается заново, уже загруженное пропускается.
type GCSPoller struct {
	source   ObjectSource
	bucket   string
	prefix   string
	interval time.Duration
	ingester Ingester
	now      func() time.Time
	logger   *slog.Logger
}

// DefaultGCSPollInterval — интервал опроса, если задан неположительный.
const DefaultGCSPollInterval = 5 * time.Minute

// NewGCSPoller создаёт поллер бакета.
func NewGCSPoller(
	source ObjectSource,
	bucket, prefix string,
	interval time.Duration,
	ingester Ingester,
	logger *slog.Logger,
) *GCSPoller {
	if interval <= 0 {
		interval = DefaultGCSPollInterval
	}
	return &GCSPoller{
		source:   source,
		bucket:   bucket,
		prefix:   prefix,
		interval: interval,
		ingester: ingester,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "inbox_gcs"), slog.String("bucket", bucket)),
	}
}

// Run опрашивает бакет сразу и затем с интервалом до отмены ctx.
func (p *GCSPoller) Run(ctx context.Context) error {
	p.logger.Info("Опрос бакета GCS запущен",
		slog.String("prefix", p.prefix),
		slog.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.PollOnce(ctx); err != nil {
			p.logger.Error("Ошибка опроса бакета", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			p.logger.Info("Опрос бакета GCS остановлен")
			return nil
		case <-ticker.C:
		}
	}
}

// SourceKey возвращает ключ источника для истории загрузок.
func (p *GCSPoller) SourceKey(obj ObjectInfo) string {
	return fmt.Sprintf("gs://%s/%s#%d", p.bucket, obj.Name, obj.Generation)
}

// PollOnce загружает все ещё не загруженные объекты. Возвращает их количество.
func (p *GCSPoller) PollOnce(ctx context.Context) (int, error) {
	objects, err := p.source.List(ctx, p.prefix)
	if err != nil {
		return 0, err
	}

	ingested := 0
	for _, obj := range objects {
		if ctx.Err() != nil {
			break
		}
		if strings.HasSuffix(obj.Name, "/") || !isCSV(obj.Name) {
			continue
		}

		key := p.SourceKey(obj)
		seen, err := p.ingester.SourceSeen(ctx, key)
		if err != nil {
			return ingested, err
		}
		if seen {
			continue
		}

		if p.ingestObject(ctx, obj, key) {
			ingested++
		}
	}

	if err := p.ingester.MarkInboxScan(ctx, p.now()); err != nil {
		p.logger.Warn("Не удалось обновить время опроса", slog.String("error", err.Error()))
	}
	if ingested > 0 {
		p.logger.Info("Опрос бакета завершён", slog.Int("ingested", ingested))
	}
	return ingested, nil
}

// ingestObject загружает один объект. Отклонённый целиком файл тоже считается
// обработанным: он уже записан в историю и повторно не загружается.
// Прерванная отменой загрузка не считается: объект загрузится при следующем опросе.
func (p *GCSPoller) ingestObject(ctx context.Context, obj ObjectInfo, key string) bool {
	logger := p.logger.With(slog.String("object", obj.Name), slog.Int64("generation", obj.Generation))

	rc, err := p.source.Open(ctx, obj.Name, obj.Generation)
	if err != nil {
		logger.Error("Не удалось открыть объект", slog.String("error", err.Error()))
		return false
	}
	defer rc.Close()

	result, err := p.ingester.IngestSource(ctx, rc, path.Base(obj.Name), key)
	if err != nil && !failure.KindOf(err).FileLevel() {
		logger.Error("Загрузка объекта не выполнена", slog.String("error", err.Error()))
		return false
	}
	if result != nil && result.Canceled {
		logger.Warn("Загрузка объекта прервана", slog.Int("processed", result.TotalRecords))
		return false
	}
	return true
}
