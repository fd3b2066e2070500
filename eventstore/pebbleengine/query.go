package pebbleengine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine/internal/records"
)

// Cursor is a lazy iterator over committed events matching a filter, in
// position order. It operates on a consistent snapshot taken when the scan
// started: appends committed afterwards are not visible, and no lock is held
// while iterating.
//
// Usage:
//
//	cursor := stream.Scan(ctx, filter)
//	defer cursor.Close()
//	for cursor.Next() {
//		event := cursor.Event()
//		// ...
//	}
//	if err := cursor.Err(); err != nil {
//		// handle error
//	}
type Cursor struct {
	ctx    context.Context
	stream *Stream
	snap   *pebble.Snapshot
	iter   *pebble.Iterator
	filter eventstore.Filter

	current      eventstore.SequencedEvent
	expectedNext uint64
	started      bool
	closed       bool
	err          error
}

// Scan starts a lazy scan over all committed events matching the filter. The
// returned cursor must be closed. An invalid filter or a closed stream
// surfaces through Cursor.Err on the first Next.
func (s *Stream) Scan(ctx context.Context, filter eventstore.Filter) *Cursor {
	if s.closed.Load() {
		return &Cursor{err: eventstore.ErrStreamClosed}
	}

	if validateErr := filter.Validate(); validateErr != nil {
		return &Cursor{err: validateErr}
	}

	snap := s.db.NewSnapshot()

	cursor, cursorErr := s.newCursor(ctx, filter, snap)
	if cursorErr != nil {
		_ = snap.Close()
		return &Cursor{err: cursorErr}
	}

	return cursor
}

// newCursor builds a cursor iterating the given snapshot. The caller owns the
// snapshot on error, the cursor owns it on success.
func (s *Stream) newCursor(
	ctx context.Context,
	filter eventstore.Filter,
	snap *pebble.Snapshot,
) (*Cursor, error) {

	lowerBound := records.EventKey(filter.PositionHigherThan() + 1)

	upperBound := records.EventKeyUpperBound()
	if notHigherThan := filter.PositionNotHigherThan(); notHigherThan != eventstore.ZeroPosition {
		upperBound = records.EventKey(notHigherThan + 1)
	}

	iter, iterErr := snap.NewIter(&pebble.IterOptions{
		LowerBound: lowerBound,
		UpperBound: upperBound,
	})
	if iterErr != nil {
		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, iterErr)
	}

	return &Cursor{
		ctx:    ctx,
		stream: s,
		snap:   snap,
		iter:   iter,
		filter: filter,
	}, nil
}

// Next advances the cursor to the next matching event. It returns false when
// the scan is exhausted or failed; Err distinguishes the two.
func (c *Cursor) Next() bool {
	if c.err != nil || c.closed {
		return false
	}

	if ctxErr := c.ctx.Err(); ctxErr != nil {
		c.err = ctxErr
		return false
	}

	var valid bool
	if !c.started {
		valid = c.iter.First()
		c.started = true
	} else {
		valid = c.iter.Next()
	}

	for valid {
		position := records.PositionFromEventKey(c.iter.Key())
		c.verifyContiguity(position)

		event, decodeErr := c.stream.sequencedEventFromRecord(c.iter.Key(), c.iter.Value(), false)
		if decodeErr != nil {
			c.err = decodeErr
			return false
		}

		if c.filter.Matches(event) {
			event, decodeErr = c.stream.sequencedEventFromRecord(c.iter.Key(), c.iter.Value(), true)
			if decodeErr != nil {
				c.err = decodeErr
				return false
			}

			c.current = event

			return true
		}

		valid = c.iter.Next()
	}

	if iterErr := c.iter.Error(); iterErr != nil {
		c.err = errors.Join(eventstore.ErrQueryingEventsFailed, iterErr)
	}

	return false
}

// verifyContiguity panics on a gap in the committed prefix: positions are
// gap-free by construction, so a hole means the storage violated an internal
// invariant and continuing would silently skip events.
func (c *Cursor) verifyContiguity(position uint64) {
	if c.expectedNext != 0 && position != c.expectedNext {
		panic(fmt.Sprintf(
			"event log invariant violated: expected position %d, found %d",
			c.expectedNext, position,
		))
	}

	c.expectedNext = position + 1
}

// Event returns the event the cursor is positioned on. Only valid after Next
// returned true.
func (c *Cursor) Event() eventstore.SequencedEvent {
	return c.current
}

// Err returns the first error encountered by the scan, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the cursor's iterator and snapshot. It is safe to call
// multiple times.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.iter == nil {
		return nil
	}

	closeErr := errors.Join(c.iter.Close(), c.snap.Close())
	if closeErr != nil {
		return errors.Join(eventstore.ErrQueryingEventsFailed, closeErr)
	}

	return nil
}

// Query retrieves all committed events matching the filter, in position
// order, together with the stream tail observed at query time. The tail is
// the After to use in an append condition so the append fails if anything
// relevant was committed after this query.
func (s *Stream) Query(ctx context.Context, filter eventstore.Filter) (
	eventstore.SequencedEvents,
	eventstore.Position,
	error,
) {

	start := time.Now()
	tracing, ctx := s.startQueryTracing(ctx)
	metrics := s.startQueryMetrics(ctx)

	var empty eventstore.SequencedEvents

	if s.closed.Load() {
		tracing.finishError(errorTypeStreamClosed, time.Since(start))
		metrics.recordError(errorTypeStreamClosed, time.Since(start))

		return empty, eventstore.ZeroPosition, eventstore.ErrStreamClosed
	}

	if validateErr := filter.Validate(); validateErr != nil {
		tracing.finishError(errorTypeValidation, time.Since(start))
		metrics.recordError(errorTypeValidation, time.Since(start))

		return empty, eventstore.ZeroPosition, validateErr
	}

	snap := s.db.NewSnapshot()

	tail, tailErr := s.tailFromSnapshot(snap)
	if tailErr != nil {
		_ = snap.Close()
		wrapped := errors.Join(eventstore.ErrQueryingEventsFailed, tailErr)
		s.logError(logMsgQueryFailed, wrapped)
		tracing.finishError(errorTypeStorage, time.Since(start))
		metrics.recordError(errorTypeStorage, time.Since(start))

		return empty, eventstore.ZeroPosition, wrapped
	}

	cursor, cursorErr := s.newCursor(ctx, filter, snap)
	if cursorErr != nil {
		_ = snap.Close()
		tracing.finishError(errorTypeStorage, time.Since(start))
		metrics.recordError(errorTypeStorage, time.Since(start))

		return empty, eventstore.ZeroPosition, cursorErr
	}

	events := make(eventstore.SequencedEvents, 0)
	for cursor.Next() {
		events = append(events, cursor.Event())
	}

	scanErr := errors.Join(cursor.Err(), cursor.Close())
	duration := time.Since(start)

	if scanErr != nil {
		s.logError(logMsgQueryFailed, scanErr)
		s.logErrorContext(ctx, logMsgQueryFailed, scanErr)
		errorType := classifyError(scanErr)
		tracing.finishError(errorType, duration)
		metrics.recordError(errorType, duration)

		return empty, eventstore.ZeroPosition, scanErr
	}

	s.logOperation(
		logMsgQueryCompleted,
		logAttrEventCount, len(events),
		logAttrDurationMS, s.toMilliseconds(duration),
	)
	s.logOperationContext(ctx,
		logMsgQueryCompleted,
		logAttrEventCount, len(events),
		logAttrDurationMS, s.toMilliseconds(duration),
	)
	metrics.recordSuccess(events, duration)
	tracing.finishSuccess(events, tail, duration)

	return events, tail, nil
}

// tailFromSnapshot reads the tail checkpoint from the same snapshot the query
// iterates, so the returned tail is consistent with the returned events.
func (s *Stream) tailFromSnapshot(snap *pebble.Snapshot) (eventstore.Position, error) {
	raw, closer, getErr := snap.Get(records.TailKey())
	if errors.Is(getErr, pebble.ErrNotFound) {
		return eventstore.ZeroPosition, nil
	}
	if getErr != nil {
		return eventstore.ZeroPosition, getErr
	}

	var tail eventstore.Position
	if len(raw) >= 8 {
		tail = binary.BigEndian.Uint64(raw[:8])
	}

	if closeErr := closer.Close(); closeErr != nil {
		return eventstore.ZeroPosition, closeErr
	}

	return tail, nil
}
