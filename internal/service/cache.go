// cache.go — LRU-кэш фильмов по бизнес-ключу с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш фильмов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша фильмов.",
	})
)

// MovieCache — кэш фильмов по movie_id. Экземпляр на процесс.
// Все методы допускают nil-получатель (кэш выключен).
type MovieCache struct {
	cache *expirable.LRU[int, *model.Movie]
}

// NewMovieCache создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewMovieCache(maxSize int, ttl time.Duration) *MovieCache {
	return &MovieCache{cache: expirable.NewLRU[int, *model.Movie](maxSize, nil, ttl)}
}

// Get возвращает копию фильма из кэша.
func (c *MovieCache) Get(movieID int) (*model.Movie, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.cache.Get(movieID)
	if ok {
		cacheHitsTotal.Inc()
		cp := *val
		return &cp, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *MovieCache) Set(m *model.Movie) {
	if c == nil {
		return
	}
	cp := *m
	c.cache.Add(m.MovieID, &cp)
}

// Delete удаляет запись из кэша.
func (c *MovieCache) Delete(movieID int) {
	if c == nil {
		return
	}
	c.cache.Remove(movieID)
}

// Purge очищает кэш целиком (после загрузки файла или проверки качества).
func (c *MovieCache) Purge() {
	if c == nil {
		return
	}
	c.cache.Purge()
}

// Len возвращает количество записей в кэше.
func (c *MovieCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
