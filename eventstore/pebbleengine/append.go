package pebbleengine

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine/internal/records"
)

// Append atomically commits the given events onto the stream, assigning them
// the next contiguous positions, respecting the given consistency boundaries.
//
// Each condition is checked against the committed log: if any event with a
// position higher than the condition's After matches the condition's filter,
// the whole append is rejected with ErrConcurrencyConflict and storage is
// untouched. The filters should be the same ones used for the Query before
// making the business decision, with After set to the tail that query
// returned.
//
// Either every event is committed or none is; readers never observe a partial
// batch. Durability per call follows the context durability level, falling
// back to the builder's sync-writes default.
func (s *Stream) Append(
	ctx context.Context,
	events eventstore.StorableEvents,
	conditions ...eventstore.AppendCondition,
) (eventstore.PositionRange, error) {

	start := time.Now()
	tracing, ctx := s.startAppendTracing(ctx, events)
	metrics := s.startAppendMetrics(ctx)

	var empty eventstore.PositionRange

	if validateErr := s.validateAppendInput(events, conditions); validateErr != nil {
		tracing.finishError(errorTypeValidation, time.Since(start))
		metrics.recordError(errorTypeValidation, time.Since(start))

		return empty, validateErr
	}

	s.mu.Lock()

	// Checked under the writer lock: Close drains writers holding the same
	// lock before it closes the database.
	if s.closed.Load() {
		s.mu.Unlock()
		tracing.finishError(errorTypeStreamClosed, time.Since(start))
		metrics.recordError(errorTypeStreamClosed, time.Since(start))

		return empty, eventstore.ErrStreamClosed
	}

	if conflictErr := s.checkConditions(ctx, conditions); conflictErr != nil {
		s.mu.Unlock()
		duration := time.Since(start)

		if errors.Is(conflictErr, eventstore.ErrConcurrencyConflict) {
			conflictArgs := []any{logAttrError, conflictErr.Error()}

			var conflict *eventstore.ConflictError
			if errors.As(conflictErr, &conflict) {
				conflictArgs = append(conflictArgs,
					logAttrConditionIndex, conflict.ConditionIndex,
					logAttrMatchedAt, conflict.MatchedAt,
				)
			}

			s.logOperation(logMsgConcurrencyConflict, conflictArgs...)
			s.logOperationContext(ctx, logMsgConcurrencyConflict, conflictArgs...)
			metrics.recordConcurrencyConflict()
			metrics.recordError(errorTypeConcurrencyConflict, duration)
			tracing.finishError(errorTypeConcurrencyConflict, duration)
		} else {
			s.logError(logMsgBatchCommitFailed, conflictErr)
			metrics.recordError(classifyError(conflictErr), duration)
			tracing.finishError(classifyError(conflictErr), duration)
		}

		return empty, conflictErr
	}

	assigned, commitErr := s.commitEvents(ctx, events)
	s.mu.Unlock()

	duration := time.Since(start)

	if commitErr != nil {
		s.logError(logMsgBatchCommitFailed, commitErr, logAttrEventCount, len(events))
		s.logErrorContext(ctx, logMsgBatchCommitFailed, commitErr, logAttrEventCount, len(events))
		metrics.recordError(classifyError(commitErr), duration)
		tracing.finishError(classifyError(commitErr), duration)

		return empty, commitErr
	}

	s.notifyAppend()

	s.logOperation(
		logMsgEventsAppended,
		logAttrEventCount, len(events),
		logAttrPosition, assigned.To,
		logAttrDurationMS, s.toMilliseconds(duration),
	)
	s.logOperationContext(ctx,
		logMsgEventsAppended,
		logAttrEventCount, len(events),
		logAttrPosition, assigned.To,
		logAttrDurationMS, s.toMilliseconds(duration),
	)
	metrics.recordSuccess(len(events), duration)
	tracing.finishSuccess(assigned, duration)

	return assigned, nil
}

// validateAppendInput rejects malformed events and incoherent conditions
// before any storage is touched.
func (s *Stream) validateAppendInput(
	events eventstore.StorableEvents,
	conditions []eventstore.AppendCondition,
) error {

	if len(events) == 0 {
		return eventstore.ErrNoEventsToAppend
	}

	for _, event := range events {
		if _, buildErr := eventstore.BuildStorableEvent(event.EventType, event.Tags, event.Payload); buildErr != nil {
			return buildErr
		}
	}

	for _, condition := range conditions {
		if validateErr := condition.Validate(); validateErr != nil {
			return validateErr
		}
	}

	return nil
}

// checkConditions scans the committed log for boundary violations. Must be
// called with s.mu held so no append can commit between the scan and our own
// commit.
func (s *Stream) checkConditions(ctx context.Context, conditions []eventstore.AppendCondition) error {
	tail := s.tail.Load()

	for index, condition := range conditions {
		matchedAt, matched, scanErr := s.findConditionViolation(condition, tail)
		if scanErr != nil {
			return scanErr
		}

		if matched {
			return eventstore.ConflictOnCondition(index, matchedAt)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	return nil
}

// findConditionViolation scans the positions (condition.After, tail] for an
// event matching the condition's filter and returns the first match.
func (s *Stream) findConditionViolation(
	condition eventstore.AppendCondition,
	tail uint64,
) (eventstore.Position, bool, error) {

	after := condition.After()
	if after >= tail {
		// Nothing was committed since the caller observed the stream.
		return eventstore.ZeroPosition, false, nil
	}

	filter := condition.FailIfMatches()

	lower := after
	if filter.PositionHigherThan() > lower {
		lower = filter.PositionHigherThan()
	}

	upperExclusive := tail + 1
	if notHigherThan := filter.PositionNotHigherThan(); notHigherThan != eventstore.ZeroPosition && notHigherThan < tail {
		upperExclusive = notHigherThan + 1
	}

	iter, iterErr := s.db.NewIter(&pebble.IterOptions{
		LowerBound: records.EventKey(lower + 1),
		UpperBound: records.EventKey(upperExclusive),
	})
	if iterErr != nil {
		return eventstore.ZeroPosition, false, errors.Join(eventstore.ErrAppendingEventsFailed, iterErr)
	}

	for iter.First(); iter.Valid(); iter.Next() {
		event, decodeErr := s.sequencedEventFromRecord(iter.Key(), iter.Value(), false)
		if decodeErr != nil {
			_ = iter.Close()
			return eventstore.ZeroPosition, false, decodeErr
		}

		if filter.Matches(event) {
			matchedAt := event.Position
			if closeErr := iter.Close(); closeErr != nil {
				return eventstore.ZeroPosition, false, errors.Join(eventstore.ErrAppendingEventsFailed, closeErr)
			}

			return matchedAt, true, nil
		}
	}

	if iterErr := errors.Join(iter.Error(), iter.Close()); iterErr != nil {
		return eventstore.ZeroPosition, false, errors.Join(eventstore.ErrAppendingEventsFailed, iterErr)
	}

	return eventstore.ZeroPosition, false, nil
}

// commitEvents encodes the events into one batch together with the tail
// checkpoint and any new type registrations, and commits it atomically. Must
// be called with s.mu held.
func (s *Stream) commitEvents(
	ctx context.Context,
	events eventstore.StorableEvents,
) (eventstore.PositionRange, error) {

	var empty eventstore.PositionRange

	tail := s.tail.Load()
	recordedAt := s.clock().UTC().UnixNano()

	batch := s.db.NewBatch()
	defer func() { _ = batch.Close() }()

	var pending []typeAllocation

	for offset, event := range events {
		typeID, staged, stageErr := s.registry.stage(batch, event.EventType, pending)
		if stageErr != nil {
			return empty, stageErr
		}
		pending = staged

		tags := make([]string, len(event.Tags))
		for i, tag := range event.Tags {
			tags[i] = tag.String()
		}

		record := records.EncodeRecord(records.Header{
			TypeID:     typeID,
			RecordedAt: recordedAt,
			Tags:       tags,
		}, event.Payload)

		position := tail + uint64(offset) + 1
		if setErr := batch.Set(records.EventKey(position), record, nil); setErr != nil {
			return empty, errors.Join(eventstore.ErrAppendingEventsFailed, setErr)
		}
	}

	newTail := tail + uint64(len(events))

	var tailValue [8]byte
	binary.BigEndian.PutUint64(tailValue[:], newTail)
	if setErr := batch.Set(records.TailKey(), tailValue[:], nil); setErr != nil {
		return empty, errors.Join(eventstore.ErrAppendingEventsFailed, setErr)
	}

	if commitErr := batch.Commit(s.writeOptions(ctx)); commitErr != nil {
		return empty, errors.Join(eventstore.ErrAppendingEventsFailed, commitErr)
	}

	s.registry.apply(pending)
	s.tail.Store(newTail)

	return eventstore.PositionRange{From: tail + 1, To: newTail}, nil
}

// classifyError maps an error to the error type label used in metrics and spans.
func classifyError(err error) string {
	switch {
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		return errorTypeConcurrencyConflict
	case errors.Is(err, eventstore.ErrCorruptRecord):
		return errorTypeCorruption
	case errors.Is(err, eventstore.ErrStreamClosed):
		return errorTypeStreamClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errorTypeCanceled
	default:
		return errorTypeStorage
	}
}
