// Package tracing is a minimal span model for correlating log lines across a
// request: a trace ID threaded through context plus timed, attributed spans
// emitted as structured logs. It is not an OpenTelemetry exporter; the
// dashboards read these straight out of the log pipeline.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
)

type ctxKey struct{}

// Span is one timed operation within a trace.
type Span struct {
	Name    string
	TraceID string
	SpanID  string
	Parent  string
	Start   time.Time

	mu    sync.Mutex
	attrs []any
}

// StartSpan opens a root span. An empty traceID gets a fresh random one, so
// callers at the edge can just pass whatever the request carried.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	if traceID == "" {
		traceID = newID()
	}
	s := &Span{
		Name:    name,
		TraceID: traceID,
		SpanID:  newID(),
		Start:   time.Now(),
	}
	return context.WithValue(ctx, ctxKey{}, s), s
}

// StartChildSpan opens a span under the one stored in ctx, inheriting its
// trace ID. With no parent in ctx it behaves like StartSpan with a fresh
// trace.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name, "")
	}
	s := &Span{
		Name:    name,
		TraceID: parent.TraceID,
		SpanID:  newID(),
		Parent:  parent.SpanID,
		Start:   time.Now(),
	}
	return context.WithValue(ctx, ctxKey{}, s), s
}

// SpanFromContext returns the current span, or nil outside a trace.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(ctxKey{}).(*Span)
	return s
}

// SetAttr attaches a key/value pair that End will include in the emitted log
// line.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, key, value)
}

// End stamps the duration and emits the span.
func (s *Span) End() {
	elapsed := time.Since(s.Start)
	s.mu.Lock()
	fields := append([]any{
		"trace_id", s.TraceID,
		"span_id", s.SpanID,
		"duration_ms", float64(elapsed.Microseconds()) / 1000,
	}, s.attrs...)
	s.mu.Unlock()
	if s.Parent != "" {
		fields = append(fields, "parent_id", s.Parent)
	}
	logger.WithComponent("trace").Info(s.Name, fields...)
}

func newID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("150405.000")))
	}
	return hex.EncodeToString(b[:])
}
