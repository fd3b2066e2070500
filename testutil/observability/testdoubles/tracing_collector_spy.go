package testdoubles

import (
	"context"
	"sync"

	"github.com/eventrica/eventric-stream/eventstore"
)

// SpySpanContext implements eventstore.SpanContext for testing tracing functionality.
type SpySpanContext struct {
	name       string
	status     string
	attributes map[string]string
	finished   bool
	mu         sync.Mutex
}

// SetStatus implements the SpanContext interface.
func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// AddAttribute implements the SpanContext interface.
func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}
	c.attributes[key] = value
}

// GetName returns the span name for test assertions.
func (c *SpySpanContext) GetName() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.name
}

// GetStatus returns the current span status for test assertions.
func (c *SpySpanContext) GetStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// GetAttributes returns a copy of all span attributes for test assertions.
func (c *SpySpanContext) GetAttributes() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return copyLabels(c.attributes)
}

// IsFinished reports whether FinishSpan was called for this span.
func (c *SpySpanContext) IsFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.finished
}

// TracingCollectorSpy is a TracingCollector implementation that captures
// started and finished spans for testing.
type TracingCollectorSpy struct {
	spans       []*SpySpanContext
	mu          sync.Mutex
	recordCalls bool
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
// Set recordCalls to true to capture all spans for inspection in tests.
func NewTracingCollectorSpy(recordCalls bool) *TracingCollectorSpy {
	return &TracingCollectorSpy{
		spans:       make([]*SpySpanContext, 0),
		recordCalls: recordCalls,
	}
}

// StartSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, eventstore.SpanContext) {

	span := &SpySpanContext{
		name:       name,
		attributes: copyLabels(attrs),
	}

	if s.recordCalls {
		s.mu.Lock()
		s.spans = append(s.spans, span)
		s.mu.Unlock()
	}

	return ctx, span
}

// FinishSpan implements the TracingCollector interface.
func (s *TracingCollectorSpy) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpySpanContext)
	if !ok {
		return
	}

	span.SetStatus(status)
	for key, value := range attrs {
		span.AddAttribute(key, value)
	}

	span.mu.Lock()
	span.finished = true
	span.mu.Unlock()
}

// GetSpans returns all captured spans for test assertions.
func (s *TracingCollectorSpy) GetSpans() []*SpySpanContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*SpySpanContext(nil), s.spans...)
}

// FindSpan returns the first captured span with the given name.
func (s *TracingCollectorSpy) FindSpan(name string) (*SpySpanContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, span := range s.spans {
		if span.GetName() == name {
			return span, true
		}
	}

	return nil, false
}

// Reset clears all captured spans.
func (s *TracingCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spans = s.spans[:0]
}
