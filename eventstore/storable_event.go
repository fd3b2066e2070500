package eventstore

import (
	"errors"
	"time"
)

var ErrInvalidEventType = errors.New("event type must be non-empty with no surrounding whitespace or control characters")

// StorableEvents is an alias type for a slice of StorableEvent.
type StorableEvents = []StorableEvent

// StorableEvent is a DTO (data transfer object) used by the EventStore to
// append events. It is built on scalars to be completely agnostic of the
// implementation of Domain Events in the client code: the payload is an opaque
// byte sequence which the store persists verbatim and never inspects.
//
// While its properties are exported, it should only be constructed with the
// supplied factory methods:
//   - BuildStorableEvent
//   - BuildStorableEventWithoutTags
type StorableEvent struct {
	EventType string
	Tags      []Tag
	Payload   []byte
}

// BuildStorableEvent is a factory method for StorableEvent.
//
// The event type name is validated like a tag (non-empty, no surrounding
// whitespace, no control characters); tags must all be valid and non-zero.
// An event may carry zero or more tags; the payload may be empty.
func BuildStorableEvent(eventType string, tags []Tag, payload []byte) (StorableEvent, error) {
	if !isValidLabel(eventType) {
		return StorableEvent{}, ErrInvalidEventType
	}

	for _, tag := range tags {
		if tag.IsZero() {
			return StorableEvent{}, ErrInvalidTag
		}
	}

	return StorableEvent{
		EventType: eventType,
		Tags:      tags,
		Payload:   payload,
	}, nil
}

// BuildStorableEventWithoutTags is a factory method for StorableEvent for
// events which carry no tags.
func BuildStorableEventWithoutTags(eventType string, payload []byte) (StorableEvent, error) {
	return BuildStorableEvent(eventType, nil, payload)
}

// SequencedEvents is an alias type for a slice of SequencedEvent.
type SequencedEvents = []SequencedEvent

// SequencedEvent is an event read back from a stream. Position and RecordedAt
// are assigned by the store at commit time; the rest is the StorableEvent as
// appended. Events are immutable: the same position always yields the same
// event.
//
// RecordedAt is for observability only, it never takes part in ordering or
// consistency decisions.
type SequencedEvent struct {
	Position   Position
	EventType  string
	Tags       []Tag
	Payload    []byte
	RecordedAt time.Time
}

// HasTag reports whether the event carries the given tag.
func (e SequencedEvent) HasTag(tag Tag) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}

	return false
}
