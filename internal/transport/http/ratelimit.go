package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/asquebay/simple-shop-service/internal/metrics"

	"golang.org/x/time/rate"
)

// через сколько простоя клиент забывается
const visitorIdleTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter ограничивает частоту запросов отдельно для каждого клиента
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	limit   rate.Limit
	burst   int
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewRateLimiter создаёт ограничитель: rps запросов в секунду с запасом burst
func NewRateLimiter(rps float64, burst int, m *metrics.Metrics, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Allow сообщает, можно ли обработать ещё один запрос клиента
func (l *RateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[client] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

// Middleware отвечает 429, если клиент превысил лимит
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		if !l.Allow(client) {
			l.metrics.Throttled()
			l.log.Debug("request throttled", slog.String("client", client), slog.String("path", r.URL.Path))

			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": "too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup удаляет клиентов, которые давно не присылали запросов
func (l *RateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-visitorIdleTTL)
	for client, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, client)
		}
	}
}

// Run периодически чистит простаивающих клиентов до отмены ctx
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
