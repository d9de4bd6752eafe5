package ingest

import (
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
}

func validRecord() Record {
	return Record{Line: 2, MovieID: 1, Film: "Up", Genre: "Comedy", Studio: "Pixar", Score: 80, Year: 2009}
}

func TestValidate_Valid(t *testing.T) {
	v := NewValidator(fixedNow)
	verdict := v.Validate(validRecord())
	if !verdict.Valid || len(verdict.Reasons) != 0 {
		t.Errorf("Validate() = %+v, ожидалась валидная запись", verdict)
	}
}

func TestValidate_YearBoundaries(t *testing.T) {
	v := NewValidator(fixedNow)

	tests := []struct {
		year  int
		valid bool
	}{
		{1887, false},
		{1888, true},
		{1899, true}, // ниже ограничения API, но допустимо при загрузке
		{2036, true},
		{2037, false},
	}
	for _, tt := range tests {
		rec := validRecord()
		rec.Year = tt.year
		if got := v.Validate(rec).Valid; got != tt.valid {
			t.Errorf("Year=%d: Valid = %v, ожидалось %v", tt.year, got, tt.valid)
		}
	}
}

func TestValidate_ScoreBoundaries(t *testing.T) {
	v := NewValidator(fixedNow)
	for score, valid := range map[int]bool{-1: false, 0: true, 100: true, 101: false} {
		rec := validRecord()
		rec.Score = score
		if got := v.Validate(rec).Valid; got != valid {
			t.Errorf("Score=%d: Valid = %v, ожидалось %v", score, got, valid)
		}
	}
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	v := NewValidator(fixedNow)

	tests := []struct {
		name string
		rec  Record
		want int
	}{
		{"одно нарушение", Record{MovieID: 0, Film: "A", Genre: "B", Studio: "C", Score: 1, Year: 2000}, 1},
		{"три нарушения", Record{MovieID: -5, Film: " ", Genre: "B", Studio: "C", Score: 500, Year: 2000}, 3},
		{"все шесть", Record{MovieID: 0, Score: -1, Year: 1}, 6},
		{
			"нечисловые поля",
			Record{Film: "A", Genre: "B", Studio: "C", NonInteger: []Field{FieldID, FieldScore, FieldYear}},
			3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := v.Validate(tt.rec)
			if verdict.Valid {
				t.Error("Valid = true, ожидалось false")
			}
			if len(verdict.Reasons) != tt.want {
				t.Errorf("причин = %d (%v), ожидалось %d", len(verdict.Reasons), verdict.Reasons, tt.want)
			}
		})
	}
}

func TestValidate_ReasonsDoNotEchoValues(t *testing.T) {
	v := NewValidator(fixedNow)
	rec := validRecord()
	rec.Score = 31337
	rec.Film = ""
	verdict := v.Validate(rec)
	for _, reason := range verdict.Reasons {
		if strings.Contains(reason, "31337") {
			t.Errorf("причина содержит исходное значение: %q", reason)
		}
	}
	if verdict.Reasons[0] != "film: не должно быть пустым" {
		t.Errorf("первая причина = %q", verdict.Reasons[0])
	}
}

func TestParseRecord(t *testing.T) {
	rec := ParseRecord(RawRow{Line: 4, Values: map[Field]string{
		FieldID: "12", FieldFilm: "Heat", FieldGenre: "Crime", FieldStudio: "Warner",
		FieldScore: "", FieldYear: "19x5",
	}})
	if rec.MovieID != 12 || rec.Score != 0 || rec.Year != 0 || rec.Line != 4 {
		t.Errorf("ParseRecord() = %+v", rec)
	}
	if len(rec.NonInteger) != 1 || rec.NonInteger[0] != FieldYear {
		t.Errorf("NonInteger = %v, ожидался [year]", rec.NonInteger)
	}
}
