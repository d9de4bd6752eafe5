// catalog.go — CRUD каталога фильмов по бизнес-ключу movie_id.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/ingest"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
)

// MovieFields — изменяемые поля фильма. Ограничения API строже окна загрузки CSV.
type MovieFields struct {
	Film   string `json:"film" validate:"required,max=255"`
	Genre  string `json:"genre" validate:"required,max=100"`
	Studio string `json:"studio" validate:"required,max=150"`
	Score  int    `json:"score" validate:"gte=0,lte=100"`
	Year   int    `json:"year" validate:"gte=1900,lte=2100"`
}

// MovieInput — данные для создания фильма.
type MovieInput struct {
	MovieID int `json:"movie_id" validate:"gt=0"`
	MovieFields
}

// CatalogService — бизнес-логика каталога.
type CatalogService struct {
	store      repository.Store
	cache      *MovieCache
	normalizer *ingest.Normalizer
	validator  *inputValidator
	now        func() time.Time
	logger     *slog.Logger
}

// NewCatalogService создаёт сервис каталога.
func NewCatalogService(
	store repository.Store,
	corrections *ingest.GenreCorrections,
	cache *MovieCache,
	now func() time.Time,
	logger *slog.Logger,
) *CatalogService {
	if now == nil {
		now = time.Now
	}
	return &CatalogService{
		store:      store,
		cache:      cache,
		normalizer: ingest.NewNormalizer(corrections),
		validator:  newInputValidator(),
		now:        now,
		logger:     logger.With(slog.String("component", "catalog")),
	}
}

// normalize приводит текстовые поля к виду, в котором их сохраняет загрузка CSV.
func (s *CatalogService) normalize(f MovieFields) MovieFields {
	f.Film = strings.TrimSpace(norm.NFC.String(f.Film))
	f.Studio = strings.TrimSpace(norm.NFC.String(f.Studio))
	f.Genre = s.normalizer.NormalizeGenre(norm.NFC.String(f.Genre))
	return f
}

// Create создаёт фильм.
func (s *CatalogService) Create(ctx context.Context, in MovieInput) (*model.Movie, error) {
	const op = "catalog.create"

	in.MovieFields = s.normalize(in.MovieFields)
	if err := s.validator.validate(op, in); err != nil {
		return nil, err
	}

	m := &model.Movie{
		ID:        uuid.New().String(),
		MovieID:   in.MovieID,
		Film:      in.Film,
		Genre:     in.Genre,
		Studio:    in.Studio,
		Score:     in.Score,
		Year:      in.Year,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Movies().Create(ctx, m); err != nil {
		return nil, storeError(op, err)
	}
	s.cache.Delete(m.MovieID)

	s.logger.Info("Фильм создан",
		slog.Int("movie_id", m.MovieID),
		slog.String("id", m.ID),
	)
	return m, nil
}

// Get возвращает фильм по movie_id, сначала из кэша.
func (s *CatalogService) Get(ctx context.Context, movieID int) (*model.Movie, error) {
	if m, ok := s.cache.Get(movieID); ok {
		return m, nil
	}

	m, err := s.store.Movies().GetByMovieID(ctx, movieID)
	if err != nil {
		return nil, storeError("catalog.get", err)
	}
	s.cache.Set(m)
	return m, nil
}

// List возвращает страницу фильмов и общее количество по фильтру.
func (s *CatalogService) List(ctx context.Context, filter model.MovieFilter, limit, offset int) ([]*model.Movie, int, error) {
	const op = "catalog.list"

	movies, err := s.store.Movies().List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, storeError(op, err)
	}
	total, err := s.store.Movies().Count(ctx, filter)
	if err != nil {
		return nil, 0, storeError(op, err)
	}
	return movies, total, nil
}

// Update перезаписывает изменяемые поля фильма. Если поля не изменились,
// запись не трогается и updated_at не меняется.
func (s *CatalogService) Update(ctx context.Context, movieID int, fields MovieFields) (*model.Movie, error) {
	const op = "catalog.update"

	fields = s.normalize(fields)
	if err := s.validator.validate(op, fields); err != nil {
		return nil, err
	}

	movies := s.store.Movies()
	m, err := movies.GetByMovieID(ctx, movieID)
	if err != nil {
		return nil, storeError(op, err)
	}

	incoming := &model.Movie{
		Film: fields.Film, Genre: fields.Genre, Studio: fields.Studio,
		Score: fields.Score, Year: fields.Year,
	}
	if m.SameContent(incoming) {
		return m, nil
	}

	m.Film = fields.Film
	m.Genre = fields.Genre
	m.Studio = fields.Studio
	m.Score = fields.Score
	m.Year = fields.Year
	m.Touch(s.now())
	if err := movies.Update(ctx, m); err != nil {
		return nil, storeError(op, err)
	}
	s.cache.Delete(movieID)

	s.logger.Info("Фильм обновлён", slog.Int("movie_id", movieID))
	return m, nil
}

// Delete удаляет фильм по movie_id.
func (s *CatalogService) Delete(ctx context.Context, movieID int) error {
	if err := s.store.Movies().DeleteByMovieID(ctx, movieID); err != nil {
		return storeError("catalog.delete", err)
	}
	s.cache.Delete(movieID)

	s.logger.Info("Фильм удалён", slog.Int("movie_id", movieID))
	return nil
}

// Stats возвращает статистику каталога.
func (s *CatalogService) Stats(ctx context.Context) (*model.MovieStats, error) {
	stats, err := s.store.Movies().Stats(ctx)
	if err != nil {
		return nil, storeError("catalog.stats", err)
	}
	return stats, nil
}
