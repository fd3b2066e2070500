// Package shell connects the pure domain model to the event store: it maps
// domain events to storable events and back, and builds the filters that
// define each use case's consistency boundary.
package shell

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/example/shared/core"
)

var ErrUnknownEventType = errors.New("unknown event type")

var marshaler = jsoniter.ConfigFastest

// AccountTag builds the tag that scopes an event to one account.
func AccountTag(accountID string) eventstore.Tag {
	return eventstore.KV("account", accountID)
}

// StorableEventFrom serializes a domain event into a StorableEvent tagged with
// the account it belongs to.
func StorableEventFrom(event core.DomainEvent) (eventstore.StorableEvent, error) {
	payload, marshalErr := marshaler.Marshal(event)
	if marshalErr != nil {
		return eventstore.StorableEvent{}, marshalErr
	}

	var accountID string
	switch e := event.(type) {
	case core.AccountOpened:
		accountID = e.AccountID
	case core.MoneyDeposited:
		accountID = e.AccountID
	case core.MoneyWithdrawn:
		accountID = e.AccountID
	default:
		return eventstore.StorableEvent{}, fmt.Errorf("%w: %s", ErrUnknownEventType, event.EventType())
	}

	return eventstore.BuildStorableEvent(
		event.EventType(),
		[]eventstore.Tag{AccountTag(accountID)},
		payload,
	)
}

// StorableEventsFrom serializes multiple domain events.
func StorableEventsFrom(events core.DomainEvents) (eventstore.StorableEvents, error) {
	storableEvents := make(eventstore.StorableEvents, 0, len(events))

	for _, event := range events {
		storableEvent, err := StorableEventFrom(event)
		if err != nil {
			return nil, err
		}

		storableEvents = append(storableEvents, storableEvent)
	}

	return storableEvents, nil
}

// DomainEventFrom deserializes a queried event back into a domain event.
func DomainEventFrom(event eventstore.SequencedEvent) (core.DomainEvent, error) {
	switch event.EventType {
	case core.AccountOpenedEventType:
		var domainEvent core.AccountOpened
		if err := marshaler.Unmarshal(event.Payload, &domainEvent); err != nil {
			return nil, err
		}

		return domainEvent, nil

	case core.MoneyDepositedEventType:
		var domainEvent core.MoneyDeposited
		if err := marshaler.Unmarshal(event.Payload, &domainEvent); err != nil {
			return nil, err
		}

		return domainEvent, nil

	case core.MoneyWithdrawnEventType:
		var domainEvent core.MoneyWithdrawn
		if err := marshaler.Unmarshal(event.Payload, &domainEvent); err != nil {
			return nil, err
		}

		return domainEvent, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, event.EventType)
	}
}

// DomainEventsFrom deserializes multiple queried events.
func DomainEventsFrom(events eventstore.SequencedEvents) (core.DomainEvents, error) {
	domainEvents := make(core.DomainEvents, 0, len(events))

	for _, event := range events {
		domainEvent, err := DomainEventFrom(event)
		if err != nil {
			return nil, err
		}

		domainEvents = append(domainEvents, domainEvent)
	}

	return domainEvents, nil
}

// AccountHistoryFilter matches every event of one account. It is both the
// query for projecting the account's state and the consistency boundary of
// commands deciding on that state.
func AccountHistoryFilter(accountID string) eventstore.Filter {
	return eventstore.BuildEventFilter().
		Matching().
		AnyEventTypeOf(
			core.AccountOpenedEventType,
			core.MoneyDepositedEventType,
			core.MoneyWithdrawnEventType,
		).
		AndAnyTagOf(AccountTag(accountID)).
		Finalize()
}
