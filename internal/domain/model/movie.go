// Пакет model — доменные модели Catalog Module.
package model

import "time"

// Ограничения сущности Movie на уровне хранения и API.
const (
	// FilmMaxLen — максимальная длина названия фильма.
	FilmMaxLen = 255
	// GenreMaxLen — максимальная длина жанра.
	GenreMaxLen = 100
	// StudioMaxLen — максимальная длина названия студии.
	StudioMaxLen = 150
	// ScoreMin, ScoreMax — допустимый диапазон оценки.
	ScoreMin = 0
	ScoreMax = 100
	// YearMin, YearMax — допустимый диапазон года выпуска для API.
	YearMin = 1900
	YearMax = 2100
)

// Movie — запись каталога фильмов.
// Хранится в таблице movies.
type Movie struct {
	// ID — суррогатный UUID, назначается при создании
	ID string
	// MovieID — бизнес-ключ Id из исходных данных (уникален)
	MovieID int
	// Film — название фильма
	Film string
	// Genre — жанр
	Genre string
	// Studio — студия
	Studio string
	// Score — оценка 0-100
	Score int
	// Year — год выпуска
	Year int
	// CreatedAt — время создания записи (UTC)
	CreatedAt time.Time
	// UpdatedAt — время последнего изменения (nil до первого изменения)
	UpdatedAt *time.Time
}

// SameContent сообщает, совпадают ли все пять изменяемых полей.
func (m *Movie) SameContent(o *Movie) bool {
	return m.Film == o.Film &&
		m.Genre == o.Genre &&
		m.Studio == o.Studio &&
		m.Score == o.Score &&
		m.Year == o.Year
}

// Touch проставляет UpdatedAt, не опуская его ниже CreatedAt.
func (m *Movie) Touch(now time.Time) {
	t := now.UTC()
	if t.Before(m.CreatedAt) {
		t = m.CreatedAt
	}
	m.UpdatedAt = &t
}

// MovieFilter — фильтры списка фильмов.
type MovieFilter struct {
	Genre  *string
	Studio *string
	Year   *int
}

// MovieSummary — краткое описание фильма для статистики.
type MovieSummary struct {
	Film string `json:"film"`
	Year int    `json:"year"`
}

// MovieStats — агрегированная статистика каталога.
type MovieStats struct {
	// Total — общее количество фильмов
	Total int
	// AverageScore — средняя оценка (0, если каталог пуст)
	AverageScore float64
	// Genres — количество фильмов по жанрам
	Genres map[string]int
	// Studios — количество фильмов по студиям
	Studios map[string]int
	// Oldest — самый старый фильм (nil для пустого каталога)
	Oldest *MovieSummary
	// Newest — самый новый фильм (nil для пустого каталога)
	Newest *MovieSummary
}
