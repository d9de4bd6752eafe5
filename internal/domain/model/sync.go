package model

import "time"

// JobState — состояние фоновых задач (одна строка в БД).
// Хранится в таблице job_state (id = 1, всегда одна запись).
type JobState struct {
	// ID — всегда 1
	ID int
	// LastSweepAt — время последней проверки качества данных
	LastSweepAt *time.Time
	// LastInboxScanAt — время последнего опроса входящих файлов
	LastInboxScanAt *time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// SweepResult — итог одного прогона проверки качества данных.
type SweepResult struct {
	// Success — все проходы завершились без ошибок
	Success bool `json:"success"`
	// DuplicatesRemoved — удалено дубликатов (Film, Year)
	DuplicatesRemoved int `json:"duplicates_removed"`
	// ScoresCorrected — исправлено оценок вне диапазона
	ScoresCorrected int `json:"scores_corrected"`
	// YearsCorrected — исправлено годов вне диапазона
	YearsCorrected int `json:"years_corrected"`
	// ErrorMessage — описание ошибок проходов (пусто при успехе)
	ErrorMessage string `json:"error_message,omitempty"`
	// StartedAt — время начала
	StartedAt time.Time `json:"started_at"`
	// CompletedAt — время завершения
	CompletedAt time.Time `json:"completed_at"`
}
