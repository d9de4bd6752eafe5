package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// IngestionRunRepository — история загрузок CSV (таблица ingestion_runs).
type IngestionRunRepository interface {
	// Create сохраняет итог прогона.
	Create(ctx context.Context, run *model.IngestionRun) error
	// List возвращает прогоны, новые первыми.
	List(ctx context.Context, limit, offset int) ([]*model.IngestionRun, error)
	// Count возвращает общее количество прогонов.
	Count(ctx context.Context) (int, error)
	// ExistsBySource сообщает, загружался ли уже источник. Прерванные прогоны не учитываются.
	ExistsBySource(ctx context.Context, source string) (bool, error)
}

type ingestionRunRepo struct {
	db DBTX
}

// NewIngestionRunRepository создаёт репозиторий истории загрузок.
func NewIngestionRunRepository(db DBTX) IngestionRunRepository {
	return &ingestionRunRepo{db: db}
}

func (r *ingestionRunRepo) Create(ctx context.Context, run *model.IngestionRun) error {
	query := `
		INSERT INTO ingestion_runs (id, source, file_name, total_records, created_count,
			updated_count, unchanged_count, rejected_count, failed_count, skipped_lines,
			errors, success, canceled, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		run.ID, run.Source, run.FileName, run.TotalRecords, run.CreatedCount,
		run.UpdatedCount, run.UnchangedCount, run.RejectedCount, run.FailedCount, run.SkippedLines,
		errs, run.Success, run.Canceled, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: прогон %s уже записан", ErrConflict, run.ID)
		}
		return fmt.Errorf("ошибка записи прогона загрузки: %w", err)
	}
	return nil
}

func (r *ingestionRunRepo) List(ctx context.Context, limit, offset int) ([]*model.IngestionRun, error) {
	query := `
		SELECT id, source, file_name, total_records, created_count, updated_count,
			unchanged_count, rejected_count, failed_count, skipped_lines, errors,
			success, canceled, started_at, completed_at
		FROM ingestion_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории загрузок: %w", err)
	}
	defer rows.Close()

	var result []*model.IngestionRun
	for rows.Next() {
		run := &model.IngestionRun{}
		if err := rows.Scan(
			&run.ID, &run.Source, &run.FileName, &run.TotalRecords, &run.CreatedCount, &run.UpdatedCount,
			&run.UnchangedCount, &run.RejectedCount, &run.FailedCount, &run.SkippedLines, &run.Errors,
			&run.Success, &run.Canceled, &run.StartedAt, &run.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования прогона загрузки: %w", err)
		}
		run.ErrorCount = run.RejectedCount + run.FailedCount
		result = append(result, run)
	}
	return result, rows.Err()
}

func (r *ingestionRunRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM ingestion_runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта прогонов загрузки: %w", err)
	}
	return count, nil
}

func (r *ingestionRunRepo) ExistsBySource(ctx context.Context, source string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ingestion_runs WHERE source = $1 AND NOT canceled)`, source,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки источника загрузки: %w", err)
	}
	return exists, nil
}
