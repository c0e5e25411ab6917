package api

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/dedupe"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

// HeaderIdempotencyKey marks a POST as safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

// MetricsMiddleware records request count and latency per route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		metrics.RecordHTTPRequest(route, r.Method, wrapped.statusCode, time.Since(start).Seconds())
		if wrapped.statusCode >= http.StatusInternalServerError {
			metrics.RecordErrorByComponent("http", "server_error")
		}
	})
}

// HeaderIdempotentReplay is set on responses replayed from an earlier request.
const HeaderIdempotentReplay = "Idempotent-Replayed"

// Idempotent runs a request once per Idempotency-Key and person. A repeated
// key is answered with the stored response of the first request. Keys of
// requests that did not succeed are released so a corrected retry runs.
func (s *Server) Idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(HeaderIdempotencyKey)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, _ := IdentityFrom(r.Context())
		key := dedupe.Key(id.PersonID, r.Method+" "+r.URL.Path, raw)
		if s.deps.Deduper.SeenAndRecord(r.Context(), key) {
			resp, ok := s.deps.Deduper.Response(r.Context(), key)
			if !ok {
				s.writeError(w, r, ErrInFlight)
				return
			}
			metrics.RecordIdempotentReplay()
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set(HeaderIdempotentReplay, "true")
			w.WriteHeader(resp.Status)
			_, _ = w.Write(resp.Body)
			return
		}
		completed := false
		defer func() {
			if !completed {
				s.deps.Deduper.Unrecord(r.Context(), key)
			}
		}()
		rec := &recordingWriter{responseWriter: responseWriter{ResponseWriter: w, statusCode: http.StatusOK}}
		next.ServeHTTP(rec, r)
		if rec.statusCode >= 200 && rec.statusCode <= 299 {
			s.deps.Deduper.Complete(r.Context(), key, dedupe.Response{Status: rec.statusCode, Body: rec.body.Bytes()})
			completed = true
		}
	})
}

// SubmitLimit applies the per-person submission rate.
func (s *Server) SubmitLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFrom(r.Context())
		if !s.limiters.get(id.PersonID).Allow() {
			s.writeError(w, r, ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limiters holds one token bucket per person. Idle buckets are pruned once
// the map grows past maxLimiters.
type limiters struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	m     map[string]*limiterEntry
}

type limiterEntry struct {
	l    *rate.Limiter
	seen time.Time
}

const (
	maxLimiters = 10_000
	limiterIdle = 10 * time.Minute
)

func newLimiters(limit rate.Limit, burst int) *limiters {
	return &limiters{limit: limit, burst: burst, m: make(map[string]*limiterEntry)}
}

func (l *limiters) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if e, ok := l.m[key]; ok {
		e.seen = now
		return e.l
	}
	if len(l.m) >= maxLimiters {
		for k, e := range l.m {
			if now.Sub(e.seen) > limiterIdle {
				delete(l.m, k)
			}
		}
	}
	e := &limiterEntry{l: rate.NewLimiter(l.limit, l.burst), seen: now}
	l.m[key] = e
	return e.l
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// recordingWriter keeps a copy of the body for idempotent replays.
type recordingWriter struct {
	responseWriter
	body bytes.Buffer
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.responseWriter.Write(b)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// Hijack hands the connection to the websocket upgrader.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
