// sweep.go — фоновая проверка качества данных каталога.
//
// Проверка выполняет три независимых прохода по всему каталогу:
//  1. Схлопывание дубликатов (Film, Year): остаётся запись с наименьшим movie_id
//  2. Приведение оценки к диапазону 0-100
//  3. Приведение года к диапазону 1888..текущий год
//
// Каждый проход выполняется в своей транзакции и либо фиксируется целиком,
// либо откатывается. Ошибка одного прохода не останавливает остальные.
// Запускается как горутина с периодическим тикером (CM_SWEEP_INTERVAL).
package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
	"github.com/bigkaa/goartstore/catalog-module/internal/repository"
)

// Границы исправлений проверки качества.
const (
	SweepMinScore = 0
	SweepMaxScore = 100
	SweepMinYear  = 1888

	// DefaultSweepInterval — интервал, если задан неположительный.
	DefaultSweepInterval = 24 * time.Hour
)

// Prometheus метрики проверки качества
var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_sweep_runs_total",
		Help: "Общее количество запусков проверки качества данных",
	}, []string{"status"})

	sweepCorrectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_sweep_corrections_total",
		Help: "Количество исправлений проверки качества по типу",
	}, []string{"type"})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cm_sweep_duration_seconds",
		Help:    "Длительность проверки качества данных в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// sweepPass — один проход проверки. Возвращает количество исправлений.
type sweepPass struct {
	name string
	run  func(ctx context.Context, movies repository.MovieRepository, now time.Time) (int, error)
}

// SweepService — сервис проверки качества данных.
type SweepService struct {
	store      repository.Store
	cache      *MovieCache
	interval   time.Duration
	runOnStart bool
	now        func() time.Time
	logger     *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweepService создаёт сервис проверки качества данных.
// now задаёт часы (nil — time.Now), cache может быть nil.
func NewSweepService(
	store repository.Store,
	cache *MovieCache,
	interval time.Duration,
	runOnStart bool,
	now func() time.Time,
	logger *slog.Logger,
) *SweepService {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SweepService{
		store:      store,
		cache:      cache,
		interval:   interval,
		runOnStart: runOnStart,
		now:        now,
		logger:     logger.With(slog.String("component", "sweep")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (s *SweepService) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(sweepCtx)

	s.logger.Info("Проверка качества данных запущена",
		slog.String("interval", s.interval.String()),
		slog.Bool("run_on_start", s.runOnStart),
	)
}

// Stop останавливает фоновый процесс и дожидается текущего прохода.
func (s *SweepService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Проверка качества данных остановлена")
}

// run — основной цикл фоновой горутины.
func (s *SweepService) run(ctx context.Context) {
	defer s.wg.Done()

	if s.runOnStart {
		s.runScheduled(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *SweepService) runScheduled(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Warn("Плановая проверка пропущена", slog.String("error", err.Error()))
	}
}

// RunOnce выполняет одну проверку. Если проверка уже идёт — ErrSweepInProgress.
// Проходы не прерываются отменой ctx.
func (s *SweepService) RunOnce(ctx context.Context) (*model.SweepResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	now := s.now().UTC()
	result := &model.SweepResult{Success: true, StartedAt: now}

	s.logger.Debug("Проверка качества данных начата")

	passes := []struct {
		sweepPass
		dst *int
	}{
		{sweepPass{"duplicates", removeDuplicates}, &result.DuplicatesRemoved},
		{sweepPass{"scores", clampScores}, &result.ScoresCorrected},
		{sweepPass{"years", clampYears}, &result.YearsCorrected},
	}

	var failed []string
	for _, p := range passes {
		n, err := s.runPass(ctx, p.sweepPass, now)
		if err != nil {
			failed = append(failed, p.name)
			continue
		}
		*p.dst = n
		sweepCorrectionsTotal.WithLabelValues(p.name).Add(float64(n))
	}

	if len(failed) > 0 {
		result.Success = false
		result.ErrorMessage = "проходы завершились ошибкой: " + strings.Join(failed, ", ")
	}
	result.CompletedAt = s.now().UTC()

	if err := s.store.JobState().UpdateLastSweepAt(ctx, result.CompletedAt); err != nil {
		s.logger.Error("Не удалось обновить время последней проверки", slog.String("error", err.Error()))
	}
	if result.DuplicatesRemoved+result.ScoresCorrected+result.YearsCorrected > 0 {
		s.cache.Purge()
	}

	status := "success"
	if !result.Success {
		status = "failed"
	}
	duration := result.CompletedAt.Sub(result.StartedAt)
	sweepRunsTotal.WithLabelValues(status).Inc()
	sweepDurationSeconds.Observe(duration.Seconds())

	s.logger.Info("Проверка качества данных завершена",
		slog.Int("duplicates_removed", result.DuplicatesRemoved),
		slog.Int("scores_corrected", result.ScoresCorrected),
		slog.Int("years_corrected", result.YearsCorrected),
		slog.Bool("success", result.Success),
		slog.Duration("duration", duration),
	)
	return result, nil
}

// CheckReady сообщает "degraded", если проверка не выполнялась дольше двух интервалов.
// Недоступность БД здесь не считается провалом: её отражает проверка postgresql.
func (s *SweepService) CheckReady(ctx context.Context) (status string, message string) {
	state, err := s.store.JobState().Get(ctx)
	if err != nil {
		return "degraded", "состояние проверки недоступно"
	}
	if state.LastSweepAt == nil {
		return "ok", "проверка ещё не выполнялась"
	}

	age := s.now().Sub(*state.LastSweepAt)
	if age > 2*s.interval {
		return "degraded", fmt.Sprintf("последняя проверка %s назад", age.Truncate(time.Second))
	}
	return "ok", "последняя проверка " + state.LastSweepAt.UTC().Format(time.RFC3339)
}

// runPass выполняет проход в отдельной транзакции.
func (s *SweepService) runPass(ctx context.Context, p sweepPass, now time.Time) (int, error) {
	var n int
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		n, err = p.run(ctx, tx.Movies(), now)
		return err
	})
	if err != nil {
		s.logger.Error("Проход проверки завершился ошибкой",
			slog.String("pass", p.name),
			slog.String("error", err.Error()),
		)
		return 0, err
	}
	return n, nil
}

type duplicateKey struct {
	film string
	year int
}

// removeDuplicates оставляет в каждой группе (Film, Year) запись с наименьшим
// movie_id, отмечает её изменённой и удаляет остальные.
func removeDuplicates(ctx context.Context, movies repository.MovieRepository, now time.Time) (int, error) {
	all, err := movies.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	groups := make(map[duplicateKey][]*model.Movie)
	var order []duplicateKey
	for _, m := range all {
		k := duplicateKey{film: m.Film, year: m.Year}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], m)
	}

	removed := 0
	for _, k := range order {
		group := groups[k]
		if len(group) < 2 {
			continue
		}
		slices.SortFunc(group, func(a, b *model.Movie) int {
			return cmp.Compare(a.MovieID, b.MovieID)
		})

		keep := group[0]
		keep.Touch(now)
		if err := movies.Update(ctx, keep); err != nil {
			return 0, err
		}

		ids := make([]string, 0, len(group)-1)
		for _, m := range group[1:] {
			ids = append(ids, m.ID)
		}
		n, err := movies.DeleteByIDs(ctx, ids)
		if err != nil {
			return 0, err
		}
		removed += n
	}
	return removed, nil
}

// clampScores приводит оценку к диапазону 0-100.
func clampScores(ctx context.Context, movies repository.MovieRepository, now time.Time) (int, error) {
	return clampField(ctx, movies, now, func(m *model.Movie) bool {
		c := max(SweepMinScore, min(SweepMaxScore, m.Score))
		if c == m.Score {
			return false
		}
		m.Score = c
		return true
	})
}

// clampYears приводит год к диапазону 1888..текущий год.
func clampYears(ctx context.Context, movies repository.MovieRepository, now time.Time) (int, error) {
	current := now.Year()
	return clampField(ctx, movies, now, func(m *model.Movie) bool {
		c := max(SweepMinYear, min(current, m.Year))
		if c == m.Year {
			return false
		}
		m.Year = c
		return true
	})
}

// clampField применяет fix ко всем записям и сохраняет изменённые.
func clampField(
	ctx context.Context,
	movies repository.MovieRepository,
	now time.Time,
	fix func(m *model.Movie) bool,
) (int, error) {
	all, err := movies.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	corrected := 0
	for _, m := range all {
		if !fix(m) {
			continue
		}
		m.Touch(now)
		if err := movies.Update(ctx, m); err != nil {
			return 0, err
		}
		corrected++
	}
	return corrected, nil
}
