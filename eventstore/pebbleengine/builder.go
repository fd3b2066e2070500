package pebbleengine

import (
	"errors"
	"os"
	"time"

	"github.com/eventrica/eventric-stream/eventstore"
)

var (
	// ErrEmptyStoragePath is returned when a non-temporary stream is built
	// without a storage path.
	ErrEmptyStoragePath = errors.New("storage path must not be empty")
)

// StreamBuilder configures and opens a Stream. Obtain one with
// NewStreamBuilder, chain the With* methods, then call Open.
type StreamBuilder struct {
	path       string
	temporary  bool
	syncWrites bool
	clock      func() time.Time

	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector
}

// NewStreamBuilder creates a StreamBuilder for the given storage directory.
// The directory is created if it does not exist. Sync writes are the default:
// an acknowledged append survives a process crash or power loss.
func NewStreamBuilder(path string) *StreamBuilder {
	return &StreamBuilder{
		path:       path,
		syncWrites: true,
		clock:      time.Now,
	}
}

// Temporary marks the storage as ephemeral: it is removed when the stream is
// closed. When the builder was created with an empty path, a fresh directory
// is created under the system temp directory on Open.
func (b *StreamBuilder) Temporary() *StreamBuilder {
	b.temporary = true
	return b
}

// WithSyncWrites sets the default durability for appends: true fsyncs the
// write-ahead log before an append returns, false lets the storage engine
// group-commit. The per-call context durability level overrides this default.
func (b *StreamBuilder) WithSyncWrites(syncWrites bool) *StreamBuilder {
	b.syncWrites = syncWrites
	return b
}

// WithClock sets the clock used to assign RecordedAt timestamps. Intended for
// tests; defaults to time.Now.
func (b *StreamBuilder) WithClock(clock func() time.Time) *StreamBuilder {
	if clock != nil {
		b.clock = clock
	}
	return b
}

// WithLogger sets the logger for the Stream.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: storage operations with execution timing (development use)
// Info level: Event counts, durations, concurrency conflicts (production-safe)
// Warn level: Non-critical issues like truncated records during recovery
// Error level: Critical failures that cause operation failures.
func (b *StreamBuilder) WithLogger(logger eventstore.Logger) *StreamBuilder {
	b.logger = logger
	return b
}

// WithContextualLogger sets the contextual logger for the Stream.
// The contextual logger will receive log messages with context information including
// automatic trace/span correlation when tracing is enabled, enabling unified observability.
func (b *StreamBuilder) WithContextualLogger(logger eventstore.ContextualLogger) *StreamBuilder {
	b.contextualLogger = logger
	return b
}

// WithMetrics sets the metrics collector for the Stream.
// The metrics collector will receive performance and operational metrics including
// append/query durations, event counts, concurrency conflicts, and storage errors.
func (b *StreamBuilder) WithMetrics(collector eventstore.MetricsCollector) *StreamBuilder {
	b.metricsCollector = collector
	return b
}

// WithTracing sets the tracing collector for the Stream.
// The tracing collector will receive distributed tracing information including
// span creation for append/query operations, context propagation, and error tracking.
func (b *StreamBuilder) WithTracing(collector eventstore.TracingCollector) *StreamBuilder {
	b.tracingCollector = collector
	return b
}

// Open opens (or creates) the storage, runs crash recovery to establish the
// tail, and returns the ready Stream.
func (b *StreamBuilder) Open() (*Stream, error) {
	if b.path == "" {
		if !b.temporary {
			return nil, errors.Join(eventstore.ErrOpeningStreamFailed, ErrEmptyStoragePath)
		}

		tempDir, tempErr := os.MkdirTemp("", "eventric-stream-*")
		if tempErr != nil {
			return nil, errors.Join(eventstore.ErrOpeningStreamFailed, tempErr)
		}
		b.path = tempDir
	}

	return open(b)
}
