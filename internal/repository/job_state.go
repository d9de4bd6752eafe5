package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// JobStateRepository — интерфейс для таблицы job_state (одна строка).
type JobStateRepository interface {
	// Get возвращает текущее состояние фоновых задач.
	Get(ctx context.Context) (*model.JobState, error)
	// UpdateLastSweepAt обновляет время последней проверки качества данных.
	UpdateLastSweepAt(ctx context.Context, t time.Time) error
	// UpdateLastInboxScanAt обновляет время последнего опроса входящих файлов.
	UpdateLastInboxScanAt(ctx context.Context, t time.Time) error
}

type jobStateRepo struct {
	db DBTX
}

// NewJobStateRepository создаёт репозиторий состояния фоновых задач.
func NewJobStateRepository(db DBTX) JobStateRepository {
	return &jobStateRepo{db: db}
}

func (r *jobStateRepo) Get(ctx context.Context) (*model.JobState, error) {
	query := `
		SELECT id, last_sweep_at, last_inbox_scan_at, created_at, updated_at
		FROM job_state
		WHERE id = 1`

	s := &model.JobState{}
	err := r.db.QueryRow(ctx, query).Scan(
		&s.ID, &s.LastSweepAt, &s.LastInboxScanAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения job_state: %w", err)
	}
	return s, nil
}

func (r *jobStateRepo) UpdateLastSweepAt(ctx context.Context, t time.Time) error {
	if _, err := r.db.Exec(ctx, `UPDATE job_state SET last_sweep_at = $1 WHERE id = 1`, t); err != nil {
		return fmt.Errorf("ошибка обновления last_sweep_at: %w", err)
	}
	return nil
}

func (r *jobStateRepo) UpdateLastInboxScanAt(ctx context.Context, t time.Time) error {
	if _, err := r.db.Exec(ctx, `UPDATE job_state SET last_inbox_scan_at = $1 WHERE id = 1`, t); err != nil {
		return fmt.Errorf("ошибка обновления last_inbox_scan_at: %w", err)
	}
	return nil
}
