// Package core contains the pure domain model of the example: domain events
// and the business rules that decide on them. Nothing in this package knows
// about storage, serialization or the event store.
package core

// DomainEvent is implemented by all domain events of the example domain.
type DomainEvent interface {
	EventType() string
}

// DomainEvents is an alias type for a slice of DomainEvent.
type DomainEvents = []DomainEvent
