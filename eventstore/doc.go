// Package eventstore provides core abstractions and types for event sourcing
// with dynamic consistency boundaries.
//
// This package defines the fundamental interfaces and types used by event
// store engines, including filters, storable events, append conditions, and
// common error definitions.
//
// Events are stored in a single totally ordered log; there are no named
// streams. Consistency boundaries are declared per append as queries over
// event content:
//   - Event types
//   - Tags (opaque labels, by convention "key:value")
//   - Position ranges and recorded-at time ranges
//
// Key types:
//   - Filter: Defines criteria for querying events
//   - AppendCondition: A filter plus an "after" position; the append is
//     rejected if any newer committed event matches the filter
//   - StorableEvent: Represents an event that can be stored and retrieved
//   - SequencedEvent: An event read back with its assigned position
//
// Common usage pattern:
//
//	// Query the events this decision depends on
//	filter := eventstore.BuildEventFilter().
//		Matching().
//		AnyEventTypeOf("Deposited", "Withdrawn").
//		AndAnyTagOf(eventstore.KV("account", accountID)).
//		Finalize()
//
//	events, tail, err := stream.Query(ctx, filter)
//	if err != nil {
//		// handle error
//	}
//
//	// Append, failing if anything relevant happened since the query
//	newEvent, _ := eventstore.BuildStorableEvent("Withdrawn", tags, payload)
//	_, err = stream.Append(ctx, eventstore.StorableEvents{newEvent},
//		eventstore.FailIfEventsMatchAfter(filter, tail))
//	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
//		// re-query and retry the decision
//	}
package eventstore
