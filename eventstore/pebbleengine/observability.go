package pebbleengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/eventrica/eventric-stream/eventstore"
)

const (
	logMsgStreamOpened        = "stream opened"
	logMsgStreamClosed        = "stream closed"
	logMsgTruncatedRecord     = "truncated invalid record during recovery"
	logMsgOrphanRecord        = "dropped orphan record beyond tail checkpoint"
	logMsgEventsAppended      = "events appended"
	logMsgQueryCompleted      = "query completed"
	logMsgQueryFailed         = "query failed"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgBatchCommitFailed   = "batch commit failed during event append"
	logMsgOperation           = "eventstore operation: "

	logAttrError          = "error"
	logAttrPath           = "path"
	logAttrTail           = "tail"
	logAttrPosition       = "position"
	logAttrEventCount     = "event_count"
	logAttrDurationMS     = "duration_ms"
	logAttrConditionIndex = "condition_index"
	logAttrMatchedAt      = "matched_at"

	operationAppend = "append"
	operationQuery  = "query"

	statusSuccess = "success"
	statusError   = "error"

	metricAppendDuration       = "eventstore_append_duration"
	metricQueryDuration        = "eventstore_query_duration"
	metricEventsAppended       = "eventstore_events_appended"
	metricEventsQueried        = "eventstore_events_queried"
	metricStorageErrors        = "eventstore_storage_errors"
	metricConcurrencyConflicts = "eventstore_concurrency_conflicts"

	spanNameAppend = "eventstore.append"
	spanNameQuery  = "eventstore.query"

	spanAttrOperation   = "operation"
	spanAttrErrorType   = "error_type"
	spanAttrEventCount  = "event_count"
	spanAttrEventType   = "event_type"
	spanAttrTail        = "tail"
	spanAttrDurationMS  = "duration_ms"
	spanAttrFromPos     = "from_position"
	spanAttrToPos       = "to_position"
	spanAttrExpectedPos = "expected_after_position"

	errorTypeValidation          = "validation_error"
	errorTypeStorage             = "storage_error"
	errorTypeCorruption          = "corruption"
	errorTypeConcurrencyConflict = "concurrency_conflict"
	errorTypeStreamClosed        = "stream_closed"
	errorTypeCanceled            = "canceled"
)

// logOperation logs operational information at info level if a logger is configured.
func (s *Stream) logOperation(action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues at warn level if a logger is configured.
func (s *Stream) logWarn(message string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(message, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (s *Stream) logError(message string, err error, args ...any) {
	if s.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		s.logger.Error(message, allArgs...)
	}
}

// logOperationContext logs operational information with context correlation.
func (s *Stream) logOperationContext(ctx context.Context, action string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logErrorContext logs error information with context correlation.
func (s *Stream) logErrorContext(ctx context.Context, message string, err error, args ...any) {
	if s.contextualLogger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (s *Stream) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordDurationMetricsContext records duration metrics with context if the collector supports it.
func (s *Stream) recordDurationMetricsContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	operation, status string,
) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextualCollector, ok := s.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
	} else {
		s.metricsCollector.RecordDuration(metricName, duration, labels)
	}
}

// recordValueMetricsContext records value metrics with context if the collector supports it.
func (s *Stream) recordValueMetricsContext(
	ctx context.Context,
	metricName string,
	value float64,
	operation, status string,
) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextualCollector, ok := s.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metricName, value, labels)
	} else {
		s.metricsCollector.RecordValue(metricName, value, labels)
	}
}

// recordErrorMetricsContext records error metrics with context if the collector supports it.
func (s *Stream) recordErrorMetricsContext(ctx context.Context, operation, errorType string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := s.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricStorageErrors, labels)
	} else {
		s.metricsCollector.IncrementCounter(metricStorageErrors, labels)
	}
}

// recordConcurrencyConflictMetrics records concurrency conflict metrics if a collector is configured.
func (s *Stream) recordConcurrencyConflictMetrics(operation string) {
	if s.metricsCollector != nil {
		labels := map[string]string{
			spanAttrOperation: operation,
			"conflict_type":   "concurrency",
		}
		s.metricsCollector.IncrementCounter(metricConcurrencyConflicts, labels)
	}
}

// startTraceSpan starts a tracing span if a tracing collector is configured.
func (s *Stream) startTraceSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, eventstore.SpanContext) {
	if s.tracingCollector != nil {
		return s.tracingCollector.StartSpan(ctx, name, attrs)
	}

	return ctx, nil
}

// finishTraceSpan finishes a tracing span if a tracing collector is configured.
func (s *Stream) finishTraceSpan(span eventstore.SpanContext, status string, attrs map[string]string) {
	if s.tracingCollector != nil && span != nil {
		s.tracingCollector.FinishSpan(span, status, attrs)
	}
}

// === Tracing Observer Pattern ===
// These observers simplify tracing span management by encapsulating lifecycle complexity.

// appendTracingObserver encapsulates tracing span lifecycle management for append operations.
type appendTracingObserver struct {
	stream *Stream
	span   eventstore.SpanContext
}

// queryTracingObserver encapsulates tracing span lifecycle management for query operations.
type queryTracingObserver struct {
	stream *Stream
	span   eventstore.SpanContext
}

// startAppendTracing creates a new tracing observer for append operations.
func (s *Stream) startAppendTracing(
	ctx context.Context,
	events eventstore.StorableEvents,
) (*appendTracingObserver, context.Context) {

	attrs := map[string]string{
		spanAttrOperation:  operationAppend,
		spanAttrEventCount: fmt.Sprintf("%d", len(events)),
	}

	if len(events) > 0 {
		attrs[spanAttrEventType] = events[0].EventType
	}

	newCtx, span := s.startTraceSpan(ctx, spanNameAppend, attrs)

	return &appendTracingObserver{stream: s, span: span}, newCtx
}

// startQueryTracing creates a new tracing observer for query operations.
func (s *Stream) startQueryTracing(ctx context.Context) (*queryTracingObserver, context.Context) {
	attrs := map[string]string{
		spanAttrOperation: operationQuery,
	}

	newCtx, span := s.startTraceSpan(ctx, spanNameQuery, attrs)

	return &queryTracingObserver{stream: s, span: span}, newCtx
}

// finishSuccess completes the append tracing span for successful operations.
func (ato *appendTracingObserver) finishSuccess(assigned eventstore.PositionRange, duration time.Duration) {
	if ato.span == nil {
		return
	}

	ato.span.SetStatus(statusSuccess)
	ato.span.AddAttribute(spanAttrFromPos, fmt.Sprintf("%d", assigned.From))
	ato.span.AddAttribute(spanAttrToPos, fmt.Sprintf("%d", assigned.To))
	ato.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", ato.stream.toMilliseconds(duration)))

	ato.stream.finishTraceSpan(ato.span, statusSuccess, map[string]string{
		spanAttrFromPos: fmt.Sprintf("%d", assigned.From),
		spanAttrToPos:   fmt.Sprintf("%d", assigned.To),
	})
}

// finishError completes the append tracing span with error details.
func (ato *appendTracingObserver) finishError(errorType string, duration time.Duration) {
	if ato.span == nil {
		return
	}

	ato.span.SetStatus(statusError)
	ato.span.AddAttribute(spanAttrErrorType, errorType)

	if duration > 0 {
		ato.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", ato.stream.toMilliseconds(duration)))
	}

	ato.stream.finishTraceSpan(ato.span, statusError, map[string]string{spanAttrErrorType: errorType})
}

// finishSuccess completes the query tracing span for successful operations.
func (qto *queryTracingObserver) finishSuccess(
	events eventstore.SequencedEvents,
	tail eventstore.Position,
	duration time.Duration,
) {
	if qto.span == nil {
		return
	}

	qto.span.SetStatus(statusSuccess)
	qto.span.AddAttribute(spanAttrEventCount, fmt.Sprintf("%d", len(events)))
	qto.span.AddAttribute(spanAttrTail, fmt.Sprintf("%d", tail))
	qto.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", qto.stream.toMilliseconds(duration)))

	qto.stream.finishTraceSpan(qto.span, statusSuccess, map[string]string{
		spanAttrEventCount: fmt.Sprintf("%d", len(events)),
		spanAttrTail:       fmt.Sprintf("%d", tail),
	})
}

// finishError completes the query tracing span with error details.
func (qto *queryTracingObserver) finishError(errorType string, duration time.Duration) {
	if qto.span == nil {
		return
	}

	qto.span.SetStatus(statusError)
	qto.span.AddAttribute(spanAttrErrorType, errorType)

	if duration > 0 {
		qto.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", qto.stream.toMilliseconds(duration)))
	}

	qto.stream.finishTraceSpan(qto.span, statusError, map[string]string{spanAttrErrorType: errorType})
}

// === Metrics Observer Pattern ===
// These observers simplify the metrics collection by encapsulating recording complexity.

// appendMetricsObserver encapsulates the metrics collection for append operations.
type appendMetricsObserver struct {
	stream *Stream
	ctx    context.Context
}

// queryMetricsObserver encapsulates the metrics collection for query operations.
type queryMetricsObserver struct {
	stream *Stream
	ctx    context.Context
}

// startAppendMetrics creates a new metrics observer for append operations.
func (s *Stream) startAppendMetrics(ctx context.Context) *appendMetricsObserver {
	return &appendMetricsObserver{stream: s, ctx: ctx}
}

// startQueryMetrics creates a new metrics observer for query operations.
func (s *Stream) startQueryMetrics(ctx context.Context) *queryMetricsObserver {
	return &queryMetricsObserver{stream: s, ctx: ctx}
}

// recordSuccess records all metrics for a successful append operation.
func (amo *appendMetricsObserver) recordSuccess(eventCount int, duration time.Duration) {
	amo.stream.recordDurationMetricsContext(amo.ctx, metricAppendDuration, duration, operationAppend, statusSuccess)
	amo.stream.recordValueMetricsContext(amo.ctx, metricEventsAppended, float64(eventCount), operationAppend, statusSuccess)
}

// recordError records all metrics for a failed append operation.
func (amo *appendMetricsObserver) recordError(errorType string, duration time.Duration) {
	amo.stream.recordDurationMetricsContext(amo.ctx, metricAppendDuration, duration, operationAppend, statusError)
	amo.stream.recordErrorMetricsContext(amo.ctx, operationAppend, errorType)
}

// recordConcurrencyConflict records metrics for concurrency conflicts during append operations.
func (amo *appendMetricsObserver) recordConcurrencyConflict() {
	amo.stream.recordConcurrencyConflictMetrics(operationAppend)
}

// recordSuccess records all metrics for a successful query operation.
func (qmo *queryMetricsObserver) recordSuccess(events eventstore.SequencedEvents, duration time.Duration) {
	qmo.stream.recordDurationMetricsContext(qmo.ctx, metricQueryDuration, duration, operationQuery, statusSuccess)
	qmo.stream.recordValueMetricsContext(qmo.ctx, metricEventsQueried, float64(len(events)), operationQuery, statusSuccess)
}

// recordError records all metrics for a failed query operation.
func (qmo *queryMetricsObserver) recordError(errorType string, duration time.Duration) {
	qmo.stream.recordDurationMetricsContext(qmo.ctx, metricQueryDuration, duration, operationQuery, statusError)
	qmo.stream.recordErrorMetricsContext(qmo.ctx, operationQuery, errorType)
}
