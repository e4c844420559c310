package middleware

import (
	"bytes"
	"context"
	"net/http"
	apperrors "roomly/pkg/errors"
	httputil "roomly/pkg/http"
	"sync"
	"time"
)

// timeoutWriter buffers the handler's response behind its own header map.
// Nothing reaches the real writer until the handler returns in time, so a
// handler still running after the deadline never touches shared state.
type timeoutWriter struct {
	mu          sync.Mutex
	header      http.Header
	body        bytes.Buffer
	statusCode  int
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.header
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.statusCode = code
	tw.wroteHeader = true
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.statusCode = http.StatusOK
		tw.wroteHeader = true
	}
	return tw.body.Write(b)
}

// flush copies the buffered response to w. The handler has returned, so the
// header map is no longer in use.
func (tw *timeoutWriter) flush(w http.ResponseWriter) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	dst := w.Header()
	for key, values := range tw.header {
		dst[key] = values
	}
	if !tw.wroteHeader {
		tw.statusCode = http.StatusOK
	}
	w.WriteHeader(tw.statusCode)
	_, _ = w.Write(tw.body.Bytes())
}

func RequestTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)

			tw := &timeoutWriter{header: w.Header().Clone()}

			done := make(chan struct{})
			panicCh := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicCh <- p
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case <-done:
				tw.flush(w)
			case p := <-panicCh:
				panic(p)
			case <-ctx.Done():
				tw.mu.Lock()
				tw.timedOut = true
				tw.mu.Unlock()
				_ = httputil.WriteError(w, apperrors.Timeout("Request timed out"))
			}
		})
	}
}
