package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalizer приводит строку CSV к каноническому виду.
// Не имеет состояния кроме таблицы исправлений и безопасен для конкурентного использования.
type Normalizer struct {
	corrections *GenreCorrections
}

// NewNormalizer создаёт нормализатор. corrections может быть nil.
func NewNormalizer(corrections *GenreCorrections) *Normalizer {
	return &Normalizer{corrections: corrections}
}

// Normalize возвращает новую строку: все значения обрезаны и приведены к NFC,
// жанр исправлен по таблице и записан с заглавной буквы.
// Normalize(Normalize(r)) == Normalize(r).
func (n *Normalizer) Normalize(row RawRow) RawRow {
	out := RawRow{Line: row.Line, Values: make(map[Field]string, len(Fields))}
	for _, f := range Fields {
		out.Values[f] = strings.TrimSpace(norm.NFC.String(row.Values[f]))
	}
	out.Values[FieldGenre] = n.NormalizeGenre(out.Values[FieldGenre])
	return out
}

// NormalizeGenre применяет таблицу исправлений, затем регистр "Первая заглавная".
func (n *Normalizer) NormalizeGenre(genre string) string {
	genre = strings.TrimSpace(norm.NFC.String(genre))
	if fixed, ok := n.corrections.Lookup(genre); ok {
		genre = fixed
	}
	return capitalize(genre)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
