package ingest

import (
	"strconv"
	"strings"
)

// Record — типизированная строка CSV после нормализации.
type Record struct {
	Line    int
	MovieID int
	Film    string
	Genre   string
	Studio  string
	Score   int
	Year    int

	// NonInteger — числовые колонки, текст которых не является целым числом
	NonInteger []Field
}

// ParseRecord преобразует строку в Record. Пустое числовое поле даёт 0,
// нечисловое — 0 и отметку в NonInteger.
func ParseRecord(row RawRow) Record {
	rec := Record{
		Line:   row.Line,
		Film:   row.Get(FieldFilm),
		Genre:  row.Get(FieldGenre),
		Studio: row.Get(FieldStudio),
	}
	rec.MovieID = rec.parseInt(row, FieldID)
	rec.Score = rec.parseInt(row, FieldScore)
	rec.Year = rec.parseInt(row, FieldYear)
	return rec
}

func (r *Record) parseInt(row RawRow, f Field) int {
	s := strings.TrimSpace(row.Get(f))
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.NonInteger = append(r.NonInteger, f)
		return 0
	}
	return n
}

func (r *Record) nonInteger(f Field) bool {
	for _, x := range r.NonInteger {
		if x == f {
			return true
		}
	}
	return false
}
