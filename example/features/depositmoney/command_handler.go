package depositmoney

import (
	"context"
	"errors"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/example/shared/shell"
)

const maxRetries = 3

// EventStore defines the interface needed by the CommandHandler for event
// store operations.
type EventStore interface {
	Query(ctx context.Context, filter eventstore.Filter) (
		eventstore.SequencedEvents,
		eventstore.Position,
		error,
	)
	Append(
		ctx context.Context,
		events eventstore.StorableEvents,
		conditions ...eventstore.AppendCondition,
	) (eventstore.PositionRange, error)
}

// CommandHandler orchestrates the complete command processing workflow:
// Query -> Decide -> Append, with the append guarded by a condition over the
// same filter the query used.
type CommandHandler struct {
	eventStore EventStore
}

// NewCommandHandler creates a new CommandHandler with the provided EventStore dependency.
func NewCommandHandler(eventStore EventStore) CommandHandler {
	return CommandHandler{eventStore: eventStore}
}

// Handle executes the deposit money use case.
func (h CommandHandler) Handle(ctx context.Context, command Command) error {
	filter := shell.AccountHistoryFilter(command.AccountID.String())

	for attempt := 0; attempt < maxRetries; attempt++ {
		sequencedEvents, tail, queryErr := h.eventStore.Query(ctx, filter)
		if queryErr != nil {
			return queryErr
		}

		history, unmarshalErr := shell.DomainEventsFrom(sequencedEvents)
		if unmarshalErr != nil {
			return unmarshalErr
		}

		newEvents, decideErr := Decide(history, command)
		if decideErr != nil {
			return decideErr
		}

		if len(newEvents) == 0 {
			return nil // idempotent no-op
		}

		storableEvents, marshalErr := shell.StorableEventsFrom(newEvents)
		if marshalErr != nil {
			return marshalErr
		}

		_, appendErr := h.eventStore.Append(ctx, storableEvents,
			eventstore.FailIfEventsMatchAfter(filter, tail))
		if appendErr == nil {
			return nil
		}

		if !errors.Is(appendErr, eventstore.ErrConcurrencyConflict) {
			return appendErr
		}

		// The boundary moved, decide again on the fresh history.
	}

	return eventstore.ErrConcurrencyConflict
}
