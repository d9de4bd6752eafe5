package service

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
)

// memData — состояние in-memory хранилища.
type memData struct {
	movies map[string]*model.Movie // по ID
	runs   []*model.IngestionRun
	state  model.JobState
}

func (d *memData) clone() *memData {
	cp := &memData{
		movies: make(map[string]*model.Movie, len(d.movies)),
		runs:   slices.Clone(d.runs),
		state:  d.state,
	}
	for id, m := range d.movies {
		c := *m
		cp.movies[id] = &c
	}
	return cp
}

// memStore — in-memory реализация repository.Store.
// InTx делает снимок состояния и восстанавливает его при ошибке fn.
type memStore struct {
	mu   *sync.Mutex
	data *memData

	// failOn — перехват операций: op = create, update, delete, list
	failOn func(op string, m *model.Movie) error
	// commits — количество успешных InTx верхнего уровня
	commits int
	depth   int
}

func newMemStore() *memStore {
	return &memStore{
		mu:   &sync.Mutex{},
		data: &memData{movies: make(map[string]*model.Movie), state: model.JobState{ID: 1}},
	}
}

func (s *memStore) Movies() repository.MovieRepository       { return &memMovies{s: s} }
func (s *memStore) Runs() repository.IngestionRunRepository  { return &memRuns{s: s} }
func (s *memStore) JobState() repository.JobStateRepository { return &memJobState{s: s} }

func (s *memStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	snapshot := s.data.clone()
	s.depth++
	s.mu.Unlock()

	err := fn(s)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.depth--
	if err != nil {
		s.data = snapshot
		return err
	}
	if s.depth == 0 {
		s.commits++
	}
	return nil
}

func (s *memStore) hook(op string, m *model.Movie) error {
	if s.failOn == nil {
		return nil
	}
	return s.failOn(op, m)
}

// seed добавляет фильмы напрямую, минуя проверки.
func (s *memStore) seed(movies ...*model.Movie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range movies {
		if m.ID == "" {
			m.ID = fmt.Sprintf("seed-%d-%d", m.MovieID, i)
		}
		c := *m
		s.data.movies[m.ID] = &c
	}
}

// sorted возвращает копии всех фильмов по возрастанию movie_id.
func (s *memStore) sorted() []*model.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Movie, 0, len(s.data.movies))
	for _, m := range s.data.movies {
		c := *m
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *model.Movie) int { return cmp.Compare(a.MovieID, b.MovieID) })
	return out
}

func (s *memStore) byMovieID(movieID int) *model.Movie {
	for _, m := range s.sorted() {
		if m.MovieID == movieID {
			return m
		}
	}
	return nil
}

type memMovies struct{ s *memStore }

func (r *memMovies) Create(_ context.Context, m *model.Movie) error {
	if err := r.s.hook("create", m); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.data.movies {
		if x.MovieID == m.MovieID {
			return repository.ErrConflict
		}
	}
	c := *m
	r.s.data.movies[m.ID] = &c
	return nil
}

func (r *memMovies) GetByMovieID(_ context.Context, movieID int) (*model.Movie, error) {
	if m := r.s.byMovieID(movieID); m != nil {
		return m, nil
	}
	return nil, repository.ErrNotFound
}

func matches(m *model.Movie, f model.MovieFilter) bool {
	if f.Genre != nil && !strings.EqualFold(m.Genre, *f.Genre) {
		return false
	}
	if f.Studio != nil && !strings.EqualFold(m.Studio, *f.Studio) {
		return false
	}
	return f.Year == nil || m.Year == *f.Year
}

func (r *memMovies) List(_ context.Context, f model.MovieFilter, limit, offset int) ([]*model.Movie, error) {
	var out []*model.Movie
	for _, m := range r.s.sorted() {
		if matches(m, f) {
			out = append(out, m)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(len(out), offset+limit)], nil
}

func (r *memMovies) Count(ctx context.Context, f model.MovieFilter) (int, error) {
	all, _ := r.List(ctx, f, 1<<30, 0)
	return len(all), nil
}

func (r *memMovies) ListAll(_ context.Context) ([]*model.Movie, error) {
	if err := r.s.hook("list", nil); err != nil {
		return nil, err
	}
	return r.s.sorted(), nil
}

func (r *memMovies) Update(_ context.Context, m *model.Movie) error {
	if err := r.s.hook("update", m); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.movies[m.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *m
	r.s.data.movies[m.ID] = &c
	return nil
}

func (r *memMovies) DeleteByMovieID(_ context.Context, movieID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, m := range r.s.data.movies {
		if m.MovieID == movieID {
			delete(r.s.data.movies, id)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memMovies) DeleteByIDs(_ context.Context, ids []string) (int, error) {
	if err := r.s.hook("delete", nil); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := r.s.data.movies[id]; ok {
			delete(r.s.data.movies, id)
			n++
		}
	}
	return n, nil
}

func (r *memMovies) Stats(_ context.Context) (*model.MovieStats, error) {
	stats := &model.MovieStats{Genres: map[string]int{}, Studios: map[string]int{}}
	all := r.s.sorted()
	sum := 0
	for _, m := range all {
		stats.Total++
		sum += m.Score
		stats.Genres[m.Genre]++
		stats.Studios[m.Studio]++
		if stats.Oldest == nil || m.Year < stats.Oldest.Year {
			stats.Oldest = &model.MovieSummary{Film: m.Film, Year: m.Year}
		}
		if stats.Newest == nil || m.Year > stats.Newest.Year {
			stats.Newest = &model.MovieSummary{Film: m.Film, Year: m.Year}
		}
	}
	if stats.Total > 0 {
		stats.AverageScore = float64(sum) / float64(stats.Total)
	}
	return stats, nil
}

type memRuns struct{ s *memStore }

func (r *memRuns) Create(_ context.Context, run *model.IngestionRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *run
	r.s.data.runs = append(r.s.data.runs, &c)
	return nil
}

func (r *memRuns) List(_ context.Context, limit, offset int) ([]*model.IngestionRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	runs := slices.Clone(r.s.data.runs)
	slices.Reverse(runs)
	if offset >= len(runs) {
		return nil, nil
	}
	return runs[offset:min(len(runs), offset+limit)], nil
}

func (r *memRuns) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.data.runs), nil
}

func (r *memRuns) ExistsBySource(_ context.Context, source string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, run := range r.s.data.runs {
		if run.Source == source && !run.Canceled {
			return true, nil
		}
	}
	return false, nil
}

type memJobState struct{ s *memStore }

func (r *memJobState) Get(_ context.Context) (*model.JobState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.data.state
	return &st, nil
}

func (r *memJobState) UpdateLastSweepAt(_ context.Context, t time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.state.LastSweepAt = &t
	return nil
}

func (r *memJobState) UpdateLastInboxScanAt(_ context.Context, t time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.state.LastInboxScanAt = &t
	return nil
}

// fixedNow — часы тестов: 14 октября 2026.
func fixedNow() time.Time {
	return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
