// ingestion.go — загрузка CSV-файлов в каталог (сверка с хранилищем).
//
// Конвейер: ingest.Reader -> Normalizer -> ParseRecord -> Validator -> сверка строки.
// Каждая строка применяется в собственном savepoint общей транзакции, транзакция
// фиксируется один раз после всех строк.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/failure"
	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/ingest"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
)

// Источники файлов для истории загрузок.
const (
	SourceUpload = "upload"
	SourceCLI    = "cli"
)

// Исходы обработки строки (значения label outcome).
const (
	outcomeCreated   = "created"
	outcomeUpdated   = "updated"
	outcomeUnchanged = "unchanged"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// Prometheus метрики загрузки
var (
	ingestRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_ingest_rows_total",
		Help: "Количество обработанных строк CSV по исходу",
	}, []string{"outcome"})

	ingestFilesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_ingest_files_rejected_total",
		Help: "Количество файлов, отклонённых целиком",
	}, []string{"kind"})

	ingestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cm_ingest_duration_seconds",
		Help:    "Длительность загрузки файла в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
)

// IngestionService — загрузка CSV и предварительная проверка файлов.
type IngestionService struct {
	store      repository.Store
	normalizer *ingest.Normalizer
	validator  *ingest.Validator
	cache      *MovieCache
	now        func() time.Time
	logger     *slog.Logger
}

// NewIngestionService создаёт сервис загрузки.
// now задаёт часы (nil — time.Now), cache может быть nil.
func NewIngestionService(
	store repository.Store,
	corrections *ingest.GenreCorrections,
	cache *MovieCache,
	now func() time.Time,
	logger *slog.Logger,
) *IngestionService {
	if now == nil {
		now = time.Now
	}
	return &IngestionService{
		store:      store,
		normalizer: ingest.NewNormalizer(corrections),
		validator:  ingest.NewValidator(now),
		cache:      cache,
		now:        now,
		logger:     logger.With(slog.String("component", "ingestion")),
	}
}

// Ingest загружает загруженный через API файл.
func (s *IngestionService) Ingest(ctx context.Context, r io.Reader, fileName string) (*model.IngestionResult, error) {
	return s.IngestSource(ctx, r, fileName, SourceUpload)
}

// IngestSource загружает CSV из r. fileName используется только в отчётах и логах,
// source — ключ источника в истории загрузок.
//
// Ошибки уровня файла (нечитаемый файл, нет заголовка, нет колонок) возвращаются
// как *failure.Error до обработки первой строки. Ошибки строк собираются в итог.
// Отмена ctx проверяется между строками, обработанные строки остаются зафиксированными.
func (s *IngestionService) IngestSource(
	ctx context.Context,
	r io.Reader,
	fileName string,
	source string,
) (*model.IngestionResult, error) {
	const op = "ingestion.ingest"

	start := s.now()
	logger := s.logger.With(
		slog.String("file_name", fileName),
		slog.String("source", source),
	)
	result := &model.IngestionResult{FileName: fileName, StartedAt: start.UTC()}

	reader := ingest.NewReader(r, logger)
	if _, err := reader.ReadHeader(); err != nil {
		if ctx.Err() != nil {
			// Чтение оборвано отменой: файл не отклонён, источник загрузится повторно
			result.Canceled = true
			result.Finish(s.now())
			result.Success = false
			logger.Warn("Загрузка прервана отменой до заголовка", slog.String("error", err.Error()))
			s.recordRun(ctx, source, result, logger)
			return result, nil
		}
		kind := failure.KindOf(err)
		ingestFilesRejectedTotal.WithLabelValues(kind.String()).Inc()
		logger.Warn("Файл отклонён",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
		result.Errors = []string{failure.DetailOf(err)}
		result.Finish(s.now())
		result.Success = false
		s.recordRun(ctx, source, result, logger)
		return nil, err
	}

	// Запись в хранилище не прерывается отменой ctx: отмена проверяется между строками.
	storeCtx := context.WithoutCancel(ctx)

	err := s.store.InTx(storeCtx, func(tx repository.Store) error {
		for {
			if ctx.Err() != nil {
				result.Canceled = true
				logger.Warn("Загрузка прервана отменой",
					slog.Int("processed", result.TotalRecords),
				)
				return nil
			}

			raw, err := reader.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil && ctx.Err() != nil {
				result.Canceled = true
				logger.Warn("Чтение прервано отменой",
					slog.Int("processed", result.TotalRecords),
				)
				return nil
			}
			if err != nil {
				// Поток оборвался посреди файла: фиксируем уже обработанное
				result.FailedCount++
				result.Errors = append(result.Errors,
					fmt.Sprintf("чтение файла прервано после строки %d", result.TotalRecords+1))
				logger.Error("Ошибка чтения файла", slog.String("error", err.Error()))
				return nil
			}

			result.TotalRecords++
			s.reconcile(storeCtx, tx, raw, result, logger)
		}
	})
	result.SkippedLines = reader.Skipped()
	if err != nil {
		logger.Error("Ошибка фиксации загрузки", slog.String("error", err.Error()))
		return nil, failure.Wrap(failure.KindStore, op, "не удалось сохранить результаты загрузки", err)
	}

	result.Finish(s.now())
	duration := result.CompletedAt.Sub(result.StartedAt)
	ingestDurationSeconds.Observe(duration.Seconds())

	if result.CreatedCount+result.UpdatedCount > 0 {
		s.cache.Purge()
	}
	s.recordRun(ctx, source, result, logger)

	logger.Info("Загрузка завершена",
		slog.Int("total", result.TotalRecords),
		slog.Int("created", result.CreatedCount),
		slog.Int("updated", result.UpdatedCount),
		slog.Int("unchanged", result.UnchangedCount),
		slog.Int("rejected", result.RejectedCount),
		slog.Int("failed", result.FailedCount),
		slog.Int("skipped_lines", result.SkippedLines),
		slog.Bool("success", result.Success),
		slog.Bool("canceled", result.Canceled),
		slog.Duration("duration", duration),
	)
	return result, nil
}

// reconcile обрабатывает одну строку и обновляет итог.
func (s *IngestionService) reconcile(
	ctx context.Context,
	tx repository.Store,
	raw ingest.RawRow,
	result *model.IngestionResult,
	logger *slog.Logger,
) {
	rec := ingest.ParseRecord(s.normalizer.Normalize(raw))

	verdict := s.validator.Validate(rec)
	if !verdict.Valid {
		result.RejectedCount++
		result.Errors = append(result.Errors,
			fmt.Sprintf("строка %d: %s", rec.Line, strings.Join(verdict.Reasons, "; ")))
		ingestRowsTotal.WithLabelValues(outcomeRejected).Inc()
		logger.Debug("Строка отклонена",
			slog.Int("line", rec.Line),
			slog.Any("reasons", verdict.Reasons),
		)
		return
	}

	outcome, err := s.applyRecord(ctx, tx, rec)
	if err != nil {
		outcome = outcomeFailed
		result.FailedCount++
		result.Errors = append(result.Errors,
			fmt.Sprintf("строка %d (Id=%d): %s", rec.Line, rec.MovieID, rowFailureMessage(err)))
		logger.Error("Ошибка записи строки",
			slog.Int("line", rec.Line),
			slog.Int("movie_id", rec.MovieID),
			slog.String("error", err.Error()),
		)
	}

	switch outcome {
	case outcomeCreated:
		result.CreatedCount++
	case outcomeUpdated:
		result.UpdatedCount++
	case outcomeUnchanged:
		result.UnchangedCount++
	}
	ingestRowsTotal.WithLabelValues(outcome).Inc()
}

// applyRecord создаёт, обновляет или оставляет без изменений запись в savepoint.
// Ошибка откатывает только этот savepoint.
func (s *IngestionService) applyRecord(ctx context.Context, tx repository.Store, rec ingest.Record) (string, error) {
	var outcome string
	err := tx.InTx(ctx, func(sp repository.Store) error {
		movies := sp.Movies()

		existing, err := movies.GetByMovieID(ctx, rec.MovieID)
		if errors.Is(err, repository.ErrNotFound) {
			m := movieFromRecord(rec)
			m.ID = uuid.New().String()
			m.CreatedAt = s.now().UTC()
			if err := movies.Create(ctx, m); err != nil {
				return err
			}
			outcome = outcomeCreated
			return nil
		}
		if err != nil {
			return err
		}

		incoming := movieFromRecord(rec)
		if existing.SameContent(incoming) {
			outcome = outcomeUnchanged
			return nil
		}

		existing.Film = incoming.Film
		existing.Genre = incoming.Genre
		existing.Studio = incoming.Studio
		existing.Score = incoming.Score
		existing.Year = incoming.Year
		existing.Touch(s.now())
		if err := movies.Update(ctx, existing); err != nil {
			return err
		}
		outcome = outcomeUpdated
		return nil
	})
	return outcome, err
}

func movieFromRecord(rec ingest.Record) *model.Movie {
	return &model.Movie{
		MovieID: rec.MovieID,
		Film:    rec.Film,
		Genre:   rec.Genre,
		Studio:  rec.Studio,
		Score:   rec.Score,
		Year:    rec.Year,
	}
}

// rowFailureMessage возвращает описание ошибки записи без содержимого строки.
func rowFailureMessage(err error) string {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return "movie_id уже существует"
	case errors.Is(err, repository.ErrInvalidValue):
		return "значение не помещается в ограничения хранилища"
	default:
		return "ошибка записи в хранилище"
	}
}

// recordRun сохраняет итог в историю. Ошибка записи истории только логируется.
func (s *IngestionService) recordRun(ctx context.Context, source string, result *model.IngestionResult, logger *slog.Logger) {
	run := &model.IngestionRun{
		ID:              uuid.New().String(),
		Source:          source,
		IngestionResult: *result,
	}
	if err := s.store.Runs().Create(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("Не удалось записать историю загрузки", slog.String("error", err.Error()))
	}
}

// ValidateFile проверяет файл без записи в хранилище: читаемость, заголовок,
// набор колонок. RecordCount — количество строк данных независимо от их содержимого.
func (s *IngestionService) ValidateFile(ctx context.Context, r io.Reader) *model.FileValidationResult {
	result := &model.FileValidationResult{IsValid: true, Errors: []string{}}

	reader := ingest.NewReader(r, s.logger)
	if _, err := reader.ReadHeader(); err != nil {
		result.IsValid = false
		result.Errors = append(result.Errors, failure.DetailOf(err))
		return result
	}

	count := 0
	for {
		if ctx.Err() != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, "проверка прервана")
			break
		}
		_, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, failure.DetailOf(err))
			break
		}
		count++
	}
	result.RecordCount = count + reader.Skipped()
	return result
}

// ValidateFilePath проверяет файл на диске.
func (s *IngestionService) ValidateFilePath(ctx context.Context, path string) *model.FileValidationResult {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("Файл недоступен для проверки",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return &model.FileValidationResult{Errors: []string{"файл не найден или недоступен для чтения"}}
	}
	defer f.Close()

	if info, err := f.Stat(); err != nil || info.IsDir() {
		return &model.FileValidationResult{Errors: []string{"путь не является файлом"}}
	}
	return s.ValidateFile(ctx, f)
}

// ListRuns возвращает страницу истории загрузок и общее количество.
func (s *IngestionService) ListRuns(ctx context.Context, limit, offset int) ([]*model.IngestionRun, int, error) {
	const op = "ingestion.list_runs"

	runs, err := s.store.Runs().List(ctx, limit, offset)
	if err != nil {
		return nil, 0, storeError(op, err)
	}
	total, err := s.store.Runs().Count(ctx)
	if err != nil {
		return nil, 0, storeError(op, err)
	}
	return runs, total, nil
}

// SourceSeen сообщает, загружался ли уже источник. Прерванные отменой прогоны не считаются.
func (s *IngestionService) SourceSeen(ctx context.Context, source string) (bool, error) {
	seen, err := s.store.Runs().ExistsBySource(ctx, source)
	if err != nil {
		return false, storeError("ingestion.source_seen", err)
	}
	return seen, nil
}

// MarkInboxScan сохраняет время последнего опроса входящих источников.
func (s *IngestionService) MarkInboxScan(ctx context.Context, t time.Time) error {
	if err := s.store.JobState().UpdateLastInboxScanAt(ctx, t.UTC()); err != nil {
		return storeError("ingestion.mark_inbox_scan", err)
	}
	return nil
}
