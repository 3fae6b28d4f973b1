package middleware

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

// timeoutWriter tracks whether the handler managed to write anything before
// the deadline, so the 504 is only sent on a truly empty response.
type timeoutWriter struct {
	http.ResponseWriter
	wrote atomic.Bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.wrote.Store(true)
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.wrote.Store(true)
	return tw.ResponseWriter.Write(b)
}

// Timeout bounds each request with a deadline. Handlers that respect their
// context return early on their own; if the deadline passes before anything
// was written, the client gets a 504 instead of a hung connection.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{ResponseWriter: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				<-done
				if !tw.wrote.Load() {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timed out"}`))
				}
			}
		})
	}
}
