package model

import "time"

// IngestionResult — итог одного прогона загрузки CSV.
type IngestionResult struct {
	// FileName — отображаемое имя файла (только для логов и отчётов)
	FileName string `json:"file_name"`
	// TotalRecords — количество прочитанных строк данных
	TotalRecords int `json:"total_records"`
	// CreatedCount — создано записей
	CreatedCount int `json:"created_count"`
	// UpdatedCount — обновлено записей
	UpdatedCount int `json:"updated_count"`
	// UnchangedCount — строк без изменений (no-op)
	UnchangedCount int `json:"unchanged_count"`
	// RejectedCount — строк, отклонённых валидатором
	RejectedCount int `json:"rejected_count"`
	// FailedCount — строк с ошибкой записи в хранилище
	FailedCount int `json:"failed_count"`
	// ErrorCount — RejectedCount + FailedCount
	ErrorCount int `json:"error_count"`
	// SkippedLines — пропущенных синтаксически битых строк CSV
	SkippedLines int `json:"skipped_lines"`
	// Errors — сообщения об ошибках в порядке строк файла
	Errors []string `json:"errors"`
	// Success — ErrorCount == 0 или хотя бы одна строка создана/обновлена
	Success bool `json:"success"`
	// Canceled — прогон прерван отменой контекста
	Canceled bool `json:"canceled"`
	// StartedAt — время начала
	StartedAt time.Time `json:"started_at"`
	// CompletedAt — время завершения
	CompletedAt time.Time `json:"completed_at"`
}

// Finish вычисляет производные поля итога.
func (r *IngestionResult) Finish(now time.Time) {
	r.ErrorCount = r.RejectedCount + r.FailedCount
	r.Success = r.ErrorCount == 0 || r.CreatedCount+r.UpdatedCount > 0
	r.CompletedAt = now.UTC()
}

// FileValidationResult — результат предварительной проверки файла.
type FileValidationResult struct {
	IsValid     bool     `json:"is_valid"`
	RecordCount int      `json:"record_count"`
	Errors      []string `json:"errors"`
}

// IngestionRun — запись истории загрузок (таблица ingestion_runs).
type IngestionRun struct {
	// ID — UUID прогона
	ID string
	// Source — источник файла (upload, inbox:<path>, gs://bucket/object#generation, cli)
	Source string
	IngestionResult
}
