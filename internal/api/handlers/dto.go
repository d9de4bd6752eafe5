package handlers

import (
	"time"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// Movie — представление фильма в API.
type Movie struct {
	ID        string     `json:"id"`
	MovieID   int        `json:"movie_id"`
	Film      string     `json:"film"`
	Genre     string     `json:"genre"`
	Studio    string     `json:"studio"`
	Score     int        `json:"score"`
	Year      int        `json:"year"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// ListResponse — страница элементов.
type ListResponse[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func newListResponse[T any](items []T, total, limit, offset int) ListResponse[T] {
	return ListResponse[T]{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// MovieStats — статистика каталога.
type MovieStats struct {
	Total        int                 `json:"total"`
	AverageScore float64             `json:"average_score"`
	Genres       map[string]int      `json:"genres"`
	Studios      map[string]int      `json:"studios"`
	Oldest       *model.MovieSummary `json:"oldest,omitempty"`
	Newest       *model.MovieSummary `json:"newest,omitempty"`
}

// IngestionRun — запись истории загрузок.
type IngestionRun struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	model.IngestionResult
}

// --- Маппинг domain → API ---

func mapMovie(m *model.Movie) Movie {
	return Movie{
		ID:        m.ID,
		MovieID:   m.MovieID,
		Film:      m.Film,
		Genre:     m.Genre,
		Studio:    m.Studio,
		Score:     m.Score,
		Year:      m.Year,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func mapStats(s *model.MovieStats) MovieStats {
	resp := MovieStats{
		Total:        s.Total,
		AverageScore: s.AverageScore,
		Genres:       s.Genres,
		Studios:      s.Studios,
		Oldest:       s.Oldest,
		Newest:       s.Newest,
	}
	if resp.Genres == nil {
		resp.Genres = map[string]int{}
	}
	if resp.Studios == nil {
		resp.Studios = map[string]int{}
	}
	return resp
}

func mapRun(r *model.IngestionRun) IngestionRun {
	run := IngestionRun{ID: r.ID, Source: r.Source, IngestionResult: r.IngestionResult}
	if run.Errors == nil {
		run.Errors = []string{}
	}
	return run
}

func mapValidation(v *model.FileValidationResult) *model.FileValidationResult {
	if v.Errors == nil {
		v.Errors = []string{}
	}
	return v
}
