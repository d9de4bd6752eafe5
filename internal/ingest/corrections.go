package ingest

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// defaultGenreCorrections — известные опечатки в жанрах (ключи в нижнем регистре).
var defaultGenreCorrections = map[string]string{
	"romence": "Romance",
	"comdy":   "Comedy",
}

// GenreCorrections — неизменяемая таблица исправления жанров.
// Ключи сравниваются без учёта регистра и пробелов по краям.
type GenreCorrections struct {
	m map[string]string
}

// NewGenreCorrections строит таблицу из пар "опечатка → жанр".
// Ключи и значения приводятся к NFC, как и входные строки в Normalize.
// Цепочки исправлений (значение само является ключом другой записи)
// запрещены: иначе повторная нормализация изменила бы результат.
func NewGenreCorrections(entries map[string]string) (*GenreCorrections, error) {
	m := make(map[string]string, len(entries))
	for from, to := range entries {
		key := strings.ToLower(strings.TrimSpace(norm.NFC.String(from)))
		to = strings.TrimSpace(norm.NFC.String(to))
		if key == "" || to == "" {
			return nil, fmt.Errorf("пустое исправление жанра: %q → %q", from, to)
		}
		m[key] = to
	}
	for key, to := range m {
		target := strings.ToLower(to)
		if next, ok := m[target]; ok && target != key && !strings.EqualFold(next, to) {
			return nil, fmt.Errorf("цепочка исправлений жанра: %q → %q → %q", key, to, next)
		}
	}
	return &GenreCorrections{m: m}, nil
}

// DefaultGenreCorrections возвращает встроенную таблицу исправлений.
func DefaultGenreCorrections() *GenreCorrections {
	gc, err := NewGenreCorrections(defaultGenreCorrections)
	if err != nil {
		panic(err)
	}
	return gc
}

// genreCorrectionsFile — формат YAML-файла с дополнительными исправлениями.
//
//	corrections:
//	  scifi: Sci-fi
//	  dramma: Drama
type genreCorrectionsFile struct {
	Corrections map[string]string `yaml:"corrections"`
}

// LoadGenreCorrections читает YAML-файл и объединяет его со встроенной таблицей.
// Записи файла имеют приоритет над встроенными.
func LoadGenreCorrections(path string) (*GenreCorrections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла исправлений жанров: %w", err)
	}

	var file genreCorrectionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("разбор файла исправлений жанров %s: %w", path, err)
	}

	merged := make(map[string]string, len(defaultGenreCorrections)+len(file.Corrections))
	for k, v := range defaultGenreCorrections {
		merged[k] = v
	}
	for k, v := range file.Corrections {
		merged[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return NewGenreCorrections(merged)
}

// Lookup возвращает исправленный жанр.
func (g *GenreCorrections) Lookup(genre string) (string, bool) {
	if g == nil {
		return "", false
	}
	v, ok := g.m[strings.ToLower(norm.NFC.String(genre))]
	return v, ok
}

// Len возвращает количество записей.
func (g *GenreCorrections) Len() int {
	if g == nil {
		return 0
	}
	return len(g.m)
}
