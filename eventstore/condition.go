package eventstore

// AppendCondition is the consistency boundary of a conditional append: the
// append must be rejected if any already-committed event with position greater
// than After matches FailIfMatches.
//
// After is typically the tail the caller observed when it queried the stream
// to make its decision, so the condition reads as "reject if anything relevant
// happened since I looked".
type AppendCondition struct {
	failIfMatches Filter
	after         Position
}

// FailIfEventsMatch builds an AppendCondition which rejects the append if any
// event in the whole stream matches the given filter.
func FailIfEventsMatch(failIfMatches Filter) AppendCondition {
	return AppendCondition{failIfMatches: failIfMatches, after: ZeroPosition}
}

// FailIfEventsMatchAfter builds an AppendCondition which rejects the append if
// any event with a position higher than after matches the given filter.
func FailIfEventsMatchAfter(failIfMatches Filter, after Position) AppendCondition {
	return AppendCondition{failIfMatches: failIfMatches, after: after}
}

// FailIfMatches returns the condition's filter.
func (c AppendCondition) FailIfMatches() Filter {
	return c.failIfMatches
}

// After returns the position up to which the caller has already observed the
// stream; only events beyond it can violate the condition.
func (c AppendCondition) After() Position {
	return c.after
}

// Validate rejects conditions whose filter is incoherent.
func (c AppendCondition) Validate() error {
	return c.failIfMatches.Validate()
}
