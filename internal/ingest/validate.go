package ingest

import (
	"fmt"
	"strings"
	"time"
)

// Границы года при загрузке. Верхняя граница — текущий год + YearAheadTolerance.
const (
	MinIngestYear      = 1888
	YearAheadTolerance = 10
)

// Verdict — результат проверки записи.
type Verdict struct {
	Valid bool
	// Reasons — нарушенные правила в порядке проверки, без исходных значений
	Reasons []string
}

// Validator проверяет записи. Все правила независимы, сообщаются все нарушения.
type Validator struct {
	now func() time.Time
}

// NewValidator создаёт валидатор. now задаёт текущее время (nil — time.Now).
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Validate проверяет запись.
func (v *Validator) Validate(rec Record) Verdict {
	var reasons []string
	add := func(f Field, rule string) {
		reasons = append(reasons, f.String()+": "+rule)
	}

	maxYear := v.now().UTC().Year() + YearAheadTolerance

	switch {
	case rec.nonInteger(FieldID):
		add(FieldID, "ожидается целое число")
	case rec.MovieID <= 0:
		add(FieldID, "должно быть больше 0")
	}
	if strings.TrimSpace(rec.Film) == "" {
		add(FieldFilm, "не должно быть пустым")
	}
	if strings.TrimSpace(rec.Genre) == "" {
		add(FieldGenre, "не должно быть пустым")
	}
	if strings.TrimSpace(rec.Studio) == "" {
		add(FieldStudio, "не должно быть пустым")
	}
	switch {
	case rec.nonInteger(FieldScore):
		add(FieldScore, "ожидается целое число")
	case rec.Score < 0 || rec.Score > 100:
		add(FieldScore, "должно быть в диапазоне 0-100")
	}
	switch {
	case rec.nonInteger(FieldYear):
		add(FieldYear, "ожидается целое число")
	case rec.Year < MinIngestYear || rec.Year > maxYear:
		add(FieldYear, fmt.Sprintf("должно быть в диапазоне %d-%d", MinIngestYear, maxYear))
	}

	return Verdict{Valid: len(reasons) == 0, Reasons: reasons}
}
