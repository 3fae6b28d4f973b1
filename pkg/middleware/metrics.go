// Package middleware provides reusable HTTP middleware for Prometheus
// metrics and request timeouts on the admin server.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/metrics"
)

// codeCapture remembers the first status code a handler writes. Implicit
// 200s (a Write with no prior WriteHeader) are counted as such.
type codeCapture struct {
	http.ResponseWriter
	code int
}

func (cc *codeCapture) WriteHeader(code int) {
	if cc.code == 0 {
		cc.code = code
	}
	cc.ResponseWriter.WriteHeader(code)
}

func (cc *codeCapture) Write(b []byte) (int, error) {
	if cc.code == 0 {
		cc.code = http.StatusOK
	}
	return cc.ResponseWriter.Write(b)
}

// Metrics instruments each request with a count by method/path/status, a
// latency histogram, and an in-flight gauge. The admin mux has a fixed,
// tiny route set, so raw paths are safe as label values here.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			start := time.Now()
			cc := &codeCapture{ResponseWriter: w}

			next.ServeHTTP(cc, r)

			m.HTTPRequestsInFlight.Dec()
			if cc.code == 0 {
				cc.code = http.StatusOK
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, fmt.Sprint(cc.code)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}
