// ratelimit.go — ограничение частоты запросов по ключу клиента (token bucket).
package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"

	apierrors "github.com/bigkaa/goartstore/catalog-module/internal/api/errors"
)

// KeyedRateLimiter хранит отдельный лимитер на каждый ключ.
type KeyedRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewKeyedRateLimiter создаёт лимитер: rps запросов в секунду, burst — размер всплеска.
func NewKeyedRateLimiter(rps float64, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    max(burst, 1),
	}
}

// Allow сообщает, разрешён ли запрос для ключа, не блокируясь.
func (k *KeyedRateLimiter) Allow(key string) bool {
	return k.limiter(key).Allow()
}

func (k *KeyedRateLimiter) limiter(key string) *rate.Limiter {
	k.mu.RLock()
	l, ok := k.limiters[key]
	k.mu.RUnlock()
	if ok {
		return l
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if l, ok = k.limiters[key]; ok {
		return l
	}
	l = rate.NewLimiter(k.limit, k.burst)
	k.limiters[key] = l
	return l
}

// Middleware отклоняет запросы сверх лимита с 429.
// Ключ — sub из JWT, без аутентификации — IP клиента.
func (k *KeyedRateLimiter) Middleware() func(http.Handler) http.Handler {
	retryAfter := "1"
	if k.limit > 0 && k.limit < 1 {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / float64(k.limit))))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !k.Allow(clientKey(r)) {
				w.Header().Set("Retry-After", retryAfter)
				apierrors.TooManyRequests(w, "Превышен лимит загрузок, повторите позже")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if sub := SubjectFromContext(r.Context()); sub != "" {
		return "sub:" + sub
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
