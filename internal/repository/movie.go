package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// MovieRepository — интерфейс CRUD для таблицы movies.
type MovieRepository interface {
	// Create создаёт фильм. ErrConflict — movie_id уже существует.
	Create(ctx context.Context, m *model.Movie) error
	// GetByMovieID возвращает фильм по бизнес-ключу.
	GetByMovieID(ctx context.Context, movieID int) (*model.Movie, error)
	// List возвращает страницу фильмов с фильтрами, по возрастанию movie_id.
	List(ctx context.Context, filter model.MovieFilter, limit, offset int) ([]*model.Movie, error)
	// Count возвращает количество фильмов с фильтрами.
	Count(ctx context.Context, filter model.MovieFilter) (int, error)
	// ListAll возвращает все фильмы по возрастанию movie_id.
	ListAll(ctx context.Context) ([]*model.Movie, error)
	// Update перезаписывает все изменяемые поля и updated_at по UUID.
	Update(ctx context.Context, m *model.Movie) error
	// DeleteByMovieID удаляет фильм по бизнес-ключу.
	DeleteByMovieID(ctx context.Context, movieID int) error
	// DeleteByIDs удаляет фильмы по UUID, возвращает количество удалённых.
	DeleteByIDs(ctx context.Context, ids []string) (int, error)
	// Stats возвращает агрегированную статистику.
	Stats(ctx context.Context) (*model.MovieStats, error)
}

type movieRepo struct {
	db DBTX
}

// NewMovieRepository создаёт репозиторий фильмов.
func NewMovieRepository(db DBTX) MovieRepository {
	return &movieRepo{db: db}
}

const movieColumns = `id, movie_id, film, genre, studio, score, year, created_at, updated_at`

func scanMovie(row pgx.Row) (*model.Movie, error) {
	m := &model.Movie{}
	err := row.Scan(&m.ID, &m.MovieID, &m.Film, &m.Genre, &m.Studio,
		&m.Score, &m.Year, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *movieRepo) Create(ctx context.Context, m *model.Movie) error {
	query := `
		INSERT INTO movies (id, movie_id, film, genre, studio, score, year, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		m.ID, m.MovieID, m.Film, m.Genre, m.Studio, m.Score, m.Year, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: movie_id %d уже существует", ErrConflict, m.MovieID)
		}
		if isDataViolation(err) {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return fmt.Errorf("ошибка создания фильма: %w", err)
	}
	return nil
}

func (r *movieRepo) GetByMovieID(ctx context.Context, movieID int) (*model.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE movie_id = $1`

	m, err := scanMovie(r.db.QueryRow(ctx, query, movieID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения фильма: %w", err)
	}
	return m, nil
}

// buildFilter строит WHERE и аргументы для фильтров списка.
func buildFilter(filter model.MovieFilter) (string, []any) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.Genre != nil {
		conditions = append(conditions, fmt.Sprintf("lower(genre) = lower($%d)", argNum))
		args = append(args, *filter.Genre)
		argNum++
	}
	if filter.Studio != nil {
		conditions = append(conditions, fmt.Sprintf("lower(studio) = lower($%d)", argNum))
		args = append(args, *filter.Studio)
		argNum++
	}
	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("year = $%d", argNum))
		args = append(args, *filter.Year)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *movieRepo) List(ctx context.Context, filter model.MovieFilter, limit, offset int) ([]*model.Movie, error) {
	where, args := buildFilter(filter)
	query := fmt.Sprintf(`
		SELECT %s
		FROM movies
		%s
		ORDER BY movie_id
		LIMIT $%d OFFSET $%d`, movieColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	return r.queryMovies(ctx, query, args...)
}

func (r *movieRepo) Count(ctx context.Context, filter model.MovieFilter) (int, error) {
	where, args := buildFilter(filter)
	var count int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM movies "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта фильмов: %w", err)
	}
	return count, nil
}

func (r *movieRepo) ListAll(ctx context.Context) ([]*model.Movie, error) {
	return r.queryMovies(ctx, `SELECT `+movieColumns+` FROM movies ORDER BY movie_id`)
}

func (r *movieRepo) queryMovies(ctx context.Context, query string, args ...any) ([]*model.Movie, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка фильмов: %w", err)
	}
	defer rows.Close()

	var result []*model.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования фильма: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (r *movieRepo) Update(ctx context.Context, m *model.Movie) error {
	query := `
		UPDATE movies
		SET movie_id = $2, film = $3, genre = $4, studio = $5, score = $6, year = $7, updated_at = $8
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		m.ID, m.MovieID, m.Film, m.Genre, m.Studio, m.Score, m.Year, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: movie_id %d уже существует", ErrConflict, m.MovieID)
		}
		if isDataViolation(err) {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return fmt.Errorf("ошибка обновления фильма: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *movieRepo) DeleteByMovieID(ctx context.Context, movieID int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM movies WHERE movie_id = $1`, movieID)
	if err != nil {
		return fmt.Errorf("ошибка удаления фильма: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *movieRepo) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM movies WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления фильмов: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *movieRepo) Stats(ctx context.Context) (*model.MovieStats, error) {
	stats := &model.MovieStats{
		Genres:  make(map[string]int),
		Studios: make(map[string]int),
	}

	err := r.db.QueryRow(ctx,
		`SELECT count(*), COALESCE(avg(score), 0)::float8 FROM movies`,
	).Scan(&stats.Total, &stats.AverageScore)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	if stats.Total == 0 {
		return stats, nil
	}

	if err := r.countBy(ctx, "genre", stats.Genres); err != nil {
		return nil, err
	}
	if err := r.countBy(ctx, "studio", stats.Studios); err != nil {
		return nil, err
	}

	stats.Oldest, err = r.summary(ctx, "year ASC, movie_id ASC")
	if err != nil {
		return nil, err
	}
	stats.Newest, err = r.summary(ctx, "year DESC, movie_id ASC")
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// countBy заполняет dst количеством фильмов по колонке (genre или studio).
func (r *movieRepo) countBy(ctx context.Context, column string, dst map[string]int) error {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %[1]s, count(*) FROM movies GROUP BY %[1]s`, column))
	if err != nil {
		return fmt.Errorf("ошибка группировки по %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("ошибка сканирования группы %s: %w", column, err)
		}
		dst[key] = n
	}
	return rows.Err()
}

func (r *movieRepo) summary(ctx context.Context, order string) (*model.MovieSummary, error) {
	s := &model.MovieSummary{}
	err := r.db.QueryRow(ctx, `SELECT film, year FROM movies ORDER BY `+order+` LIMIT 1`).Scan(&s.Film, &s.Year)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения фильма для статистики: %w", err)
	}
	return s, nil
}
