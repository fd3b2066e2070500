package eventstore

import (
	"errors"
	"fmt"
)

// Position is the monotonic, gap-free sequence number identifying an event's
// place in a stream. Positions start at 1; ZeroPosition means "no events" or
// "before the first event" depending on context.
type Position = uint64

// ZeroPosition is the empty sentinel: the tail of an empty stream, and the
// "from the very beginning" lower bound for conditions and filters.
const ZeroPosition Position = 0

// PositionRange is the inclusive range of positions assigned to a successfully
// appended batch of events.
type PositionRange struct {
	From Position
	To   Position
}

// Len returns how many positions the range covers.
func (r PositionRange) Len() int {
	if r.To < r.From {
		return 0
	}

	return int(r.To - r.From + 1)
}

var ErrConcurrencyConflict = errors.New("concurrency conflict, an append condition was violated")
var ErrCorruptRecord = errors.New("stored record is corrupt")
var ErrStreamClosed = errors.New("stream is closed")
var ErrNoEventsToAppend = errors.New("no events supplied to append")
var ErrInvalidFilter = errors.New("filter is invalid")
var ErrTypeRegistryExhausted = errors.New("event type registry has no ids left")

var ErrOpeningStreamFailed = errors.New("opening stream failed")
var ErrClosingStreamFailed = errors.New("closing stream failed")
var ErrAppendingEventsFailed = errors.New("appending events failed")
var ErrQueryingEventsFailed = errors.New("querying events failed")

// ConflictError reports a violated AppendCondition: which of the supplied
// conditions matched and the position of the first matching event, so callers
// holding several conditions can tell which boundary moved. It unwraps to
// ErrConcurrencyConflict.
type ConflictError struct {
	ConditionIndex int
	MatchedAt      Position
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: condition %d matched event at position %d",
		ErrConcurrencyConflict, e.ConditionIndex, e.MatchedAt)
}

func (e *ConflictError) Unwrap() error {
	return ErrConcurrencyConflict
}

// ConflictOnCondition builds the ConflictError for a violated condition.
func ConflictOnCondition(conditionIndex int, matchedAt Position) error {
	return &ConflictError{ConditionIndex: conditionIndex, MatchedAt: matchedAt}
}
