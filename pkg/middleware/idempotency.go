package middleware

import (
	"bytes"
	"context"
	"net/http"
	apperrors "roomly/pkg/errors"
	httputil "roomly/pkg/http"
	"roomly/pkg/logger"
	"sync"
	"time"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// pendingTTL bounds how long a reservation made by a request that never
// finished keeps blocking its key.
const pendingTTL = 2 * time.Minute

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool)
	// Reserve marks key as in flight. It reports false when a response is
	// already cached or another request holds the key.
	Reserve(ctx context.Context, key string) bool
	// Release drops an in-flight mark without caching a response.
	Release(ctx context.Context, key string)
	Set(ctx context.Context, key string, response *CachedResponse)
	Stop() // Stop cleanup goroutines and release resources
}

type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

type InMemoryIdempotencyStore struct {
	mu       sync.RWMutex
	store    map[string]*CachedResponse
	pending  map[string]time.Time
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		store:   make(map[string]*CachedResponse),
		pending: make(map[string]time.Time),
		ttl:     ttl,
		stopCh: make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *InMemoryIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, bool) {
	s.mu.RLock()
	response, exists := s.store[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(response.CreatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.store, key)
		s.mu.Unlock()
		return nil, false
	}

	return response, true
}

func (s *InMemoryIdempotencyStore) Reserve(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if response, ok := s.store[key]; ok && time.Since(response.CreatedAt) <= s.ttl {
		return false
	}
	if since, ok := s.pending[key]; ok && time.Since(since) <= pendingTTL {
		return false
	}
	s.pending[key] = time.Now()
	return true
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

func (s *InMemoryIdempotencyStore) Set(_ context.Context, key string, response *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response.CreatedAt = time.Now()
	s.store[key] = response
	delete(s.pending, key)
}

func (s *InMemoryIdempotencyStore) cleanup() {
	interval := s.ttl
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key, response := range s.store {
				if time.Since(response.CreatedAt) > s.ttl {
					delete(s.store, key)
				}
			}
			for key, since := range s.pending {
				if time.Since(since) > pendingTTL {
					delete(s.pending, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	cached     bool
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key on the same method and path. A repeat that arrives while
// the first request is still running gets 409.
func Idempotency(store IdempotencyStore, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := idempotencyKey(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if cached, found := store.Get(r.Context(), key); found {
				log.Debug("Replaying idempotent response",
					"request_id", RequestIDFromContext(r.Context()),
					"idempotency_key", r.Header.Get(IdempotencyKeyHeader),
				)
				replayCachedResponse(w, cached)
				return
			}

			if !store.Reserve(r.Context(), key) {
				if cached, found := store.Get(r.Context(), key); found {
					replayCachedResponse(w, cached)
					return
				}
				log.Warn("Idempotent request already in progress",
					"request_id", RequestIDFromContext(r.Context()),
					"idempotency_key", r.Header.Get(IdempotencyKeyHeader),
				)
				_ = httputil.WriteError(w, apperrors.Conflict("A request with this Idempotency-Key is already in progress"))
				return
			}

			capture := &responseCapture{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			ctx := context.WithoutCancel(r.Context())
			defer func() {
				if !capture.cached {
					store.Release(ctx, key)
				}
			}()
			next.ServeHTTP(capture, r)

			if shouldCacheResponse(capture.statusCode) {
				store.Set(ctx, key, &CachedResponse{
					StatusCode: capture.statusCode,
					Headers:    w.Header().Clone(),
					Body:       capture.body.Bytes(),
				})
				capture.cached = true
			}
		})
	}
}

func idempotencyKey(r *http.Request) string {
	value := r.Header.Get(IdempotencyKeyHeader)
	if value == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return ""
	}
	return r.Method + " " + r.URL.Path + " " + value
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		if key == RequestIDHeader {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func shouldCacheResponse(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
