package pebbleengine

import (
	"context"

	"github.com/eventrica/eventric-stream/eventstore"
)

// WaitForAppend blocks until the stream tail moves past the given position
// and returns the new tail. It returns immediately when the tail is already
// higher. Cancellation of the context or closing the stream unblocks the
// wait with the respective error.
//
// Intended for followers (projections, subscribers) which drain the log with
// Scan and then wait for more instead of polling.
func (s *Stream) WaitForAppend(ctx context.Context, after eventstore.Position) (eventstore.Position, error) {
	for {
		if s.closed.Load() {
			return eventstore.ZeroPosition, eventstore.ErrStreamClosed
		}

		if tail := s.tail.Load(); tail > after {
			return tail, nil
		}

		notified := s.appendNotified()

		// Re-check after subscribing so an append between the check above and
		// the subscription cannot be missed.
		if tail := s.tail.Load(); tail > after {
			return tail, nil
		}

		select {
		case <-notified:
		case <-s.done:
			return eventstore.ZeroPosition, eventstore.ErrStreamClosed
		case <-ctx.Done():
			return eventstore.ZeroPosition, ctx.Err()
		}
	}
}
