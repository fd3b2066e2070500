package eventstore

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"
	"time"
)

/***** Filter *****/

// Filter is the structured query predicate over (event type, tags) which both
// Stream queries and append conditions are expressed in. A Filter with no
// items matches every event; position and recorded-at bounds restrict the
// range of the stream that is considered.
type Filter struct {
	items                 []FilterItem
	positionHigherThan    Position
	positionNotHigherThan Position
	recordedFrom          time.Time
	recordedUntil         time.Time
}

func (f Filter) Items() []FilterItem {
	return f.items
}

// PositionHigherThan is the exclusive lower position bound; ZeroPosition means
// "from the very beginning".
func (f Filter) PositionHigherThan() Position {
	return f.positionHigherThan
}

// PositionNotHigherThan is the inclusive upper position bound; ZeroPosition
// means unbounded.
func (f Filter) PositionNotHigherThan() Position {
	return f.positionNotHigherThan
}

func (f Filter) RecordedFrom() time.Time {
	return f.recordedFrom
}

func (f Filter) RecordedUntil() time.Time {
	return f.recordedUntil
}

// Validate reports whether the filter's bounds are coherent. A filter whose
// position bounds exclude every position, or whose time bounds are inverted,
// is rejected before any storage is touched.
func (f Filter) Validate() error {
	if f.positionNotHigherThan != ZeroPosition && f.positionHigherThan >= f.positionNotHigherThan {
		return ErrInvalidFilter
	}

	if !f.recordedFrom.IsZero() && !f.recordedUntil.IsZero() && f.recordedFrom.After(f.recordedUntil) {
		return ErrInvalidFilter
	}

	return nil
}

// Hash returns a deterministic content hash of the filter in the form
// "sha256:<hex>". Two filters built from the same inputs hash identically
// because the builder sanitizes (sorts, dedupes) event types and tags.
// The hash identifies the filter a snapshot was computed with.
func (f Filter) Hash() string {
	h := sha256.New()

	writeStr := func(s string) {
		_ = binary.Write(h, binary.BigEndian, uint32(len(s)))
		_, _ = h.Write([]byte(s))
	}

	_ = binary.Write(h, binary.BigEndian, uint32(len(f.items)))

	for _, item := range f.items {
		_ = binary.Write(h, binary.BigEndian, uint32(len(item.eventTypes)))
		for _, eventType := range item.eventTypes {
			writeStr(eventType)
		}

		_ = binary.Write(h, binary.BigEndian, uint32(len(item.tags)))
		for _, tag := range item.tags {
			writeStr(tag.value)
		}

		_ = binary.Write(h, binary.BigEndian, item.allTagsMustMatch)
	}

	_ = binary.Write(h, binary.BigEndian, f.positionHigherThan)
	_ = binary.Write(h, binary.BigEndian, f.positionNotHigherThan)
	_ = binary.Write(h, binary.BigEndian, f.recordedFrom.UnixNano())
	_ = binary.Write(h, binary.BigEndian, f.recordedUntil.UnixNano())

	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

/***** Matching *****/

// Matches reports whether the given event satisfies this filter: it must lie
// within the position and recorded-at bounds, and satisfy at least one
// FilterItem (an empty item list matches any event). Matching is purely
// structural over (type, tags); payload bytes are never inspected.
func (f Filter) Matches(event SequencedEvent) bool {
	if event.Position <= f.positionHigherThan {
		return false
	}

	if f.positionNotHigherThan != ZeroPosition && event.Position > f.positionNotHigherThan {
		return false
	}

	if !f.recordedFrom.IsZero() && event.RecordedAt.Before(f.recordedFrom) {
		return false
	}

	if !f.recordedUntil.IsZero() && event.RecordedAt.After(f.recordedUntil) {
		return false
	}

	return f.matchesItems(event.EventType, event.Tags)
}

// MatchesTypeAndTags applies only the (type, tags) part of the filter,
// ignoring position and time bounds. Engines use this when the bounds are
// already enforced by the storage scan itself.
func (f Filter) MatchesTypeAndTags(eventType string, tags []Tag) bool {
	return f.matchesItems(eventType, tags)
}

func (f Filter) matchesItems(eventType string, tags []Tag) bool {
	if len(f.items) == 0 {
		return true
	}

	for _, item := range f.items {
		if item.matches(eventType, tags) {
			return true
		}
	}

	return false
}

/***** FilterItem *****/

// FilterItem is one OR-combined clause of a Filter: the event type must be one
// of EventTypes (if any are given) AND the tag clause must hold (if tags are
// given). With AllTagsMustMatch the event's tag set must contain every listed
// tag; otherwise one shared tag suffices.
type FilterItem struct {
	eventTypes       []string
	tags             []Tag
	allTagsMustMatch bool
}

func (fi FilterItem) EventTypes() []string {
	return fi.eventTypes
}

func (fi FilterItem) Tags() []Tag {
	return fi.tags
}

func (fi FilterItem) AllTagsMustMatch() bool {
	return fi.allTagsMustMatch
}

func (fi FilterItem) matches(eventType string, tags []Tag) bool {
	if len(fi.eventTypes) > 0 && !slices.Contains(fi.eventTypes, eventType) {
		return false
	}

	if len(fi.tags) == 0 {
		return true
	}

	if fi.allTagsMustMatch {
		for _, required := range fi.tags {
			if !containsTag(tags, required) {
				return false
			}
		}

		return true
	}

	for _, wanted := range fi.tags {
		if containsTag(tags, wanted) {
			return true
		}
	}

	return false
}

func containsTag(tags []Tag, tag Tag) bool {
	return slices.Contains(tags, tag)
}

/***** FilterBuilder *****/

// FilterBuilder builds a generic event filter to be used both for querying a
// stream and inside append conditions. It is designed to only allow "useful"
// filter combinations for event-sourced workflows:
//
//   - empty filter (any event)
//   - (eventType OR eventType...)
//   - (tag), (tag OR tag...), (tag AND tag...)
//   - ((eventType OR eventType...) AND (tag...))
//   - ((eventType AND tag) OR (eventType AND tag)...) -> multiple FilterItem(s)
//
// plus optional position bounds and recorded-at time bounds.
type FilterBuilder interface {
	// Matching starts a new FilterItem.
	Matching() EmptyFilterItemBuilder

	// MatchingAnyEvent directly creates an empty Filter which matches every event.
	MatchingAnyEvent() Filter

	// WithPositionHigherThan sets the exclusive lower position bound.
	WithPositionHigherThan(position Position) CompletedFilterBuilder

	// WithPositionNotHigherThan sets the inclusive upper position bound.
	WithPositionNotHigherThan(position Position) CompletedFilterBuilder

	// RecordedFrom sets the inclusive lower recorded-at bound.
	RecordedFrom(from time.Time) CompletedFilterBuilder

	// RecordedUntil sets the inclusive upper recorded-at bound.
	RecordedUntil(until time.Time) CompletedFilterBuilder
}

// CompletedFilterBuilder is the stage reached once at least one bound or one
// complete FilterItem is present; more bounds or items may be added, or the
// Filter finalized.
type CompletedFilterBuilder interface {
	Matching() EmptyFilterItemBuilder

	WithPositionHigherThan(position Position) CompletedFilterBuilder
	WithPositionNotHigherThan(position Position) CompletedFilterBuilder
	RecordedFrom(from time.Time) CompletedFilterBuilder
	RecordedUntil(until time.Time) CompletedFilterBuilder

	// AndRecordedUntil adds the upper time bound to a lower one.
	AndRecordedUntil(until time.Time) CompletedFilterBuilder

	// Finalize returns the built Filter.
	Finalize() Filter
}

type EmptyFilterItemBuilder interface {
	// AnyEventTypeOf adds one or multiple event types to the current FilterItem.
	//
	// It sanitizes the input:
	//	- removing empty event types ("")
	//	- sorting the event types
	//	- removing duplicate event types
	AnyEventTypeOf(eventType string, eventTypes ...string) FilterItemBuilderLackingTags

	// AnyTagOf adds one or multiple Tag(s) to the current FilterItem, of which
	// any single one matching suffices.
	//
	// It sanitizes the input:
	//	- removing zero Tag(s)
	//	- sorting the Tag(s)
	//	- removing duplicate Tag(s)
	AnyTagOf(tag Tag, tags ...Tag) FilterItemBuilderLackingEventTypes

	// AllTagsOf adds one or multiple Tag(s) to the current FilterItem, all of
	// which an event's tag set must contain.
	AllTagsOf(tag Tag, tags ...Tag) FilterItemBuilderLackingEventTypes
}

type FilterItemBuilderLackingTags interface {
	// AndAnyTagOf adds one or multiple Tag(s) to the current FilterItem, of
	// which any single one matching suffices.
	AndAnyTagOf(tag Tag, tags ...Tag) CompletedFilterItemBuilder

	// AndAllTagsOf adds one or multiple Tag(s) to the current FilterItem, all
	// of which an event's tag set must contain.
	AndAllTagsOf(tag Tag, tags ...Tag) CompletedFilterItemBuilder

	// OrMatching finalizes the current FilterItem and starts a new one.
	OrMatching() EmptyFilterItemBuilder

	WithPositionHigherThan(position Position) CompletedFilterBuilder
	WithPositionNotHigherThan(position Position) CompletedFilterBuilder
	RecordedFrom(from time.Time) CompletedFilterBuilder
	RecordedUntil(until time.Time) CompletedFilterBuilder

	// Finalize returns the Filter once it has at least one FilterItem with at
	// least one event type OR one Tag.
	Finalize() Filter
}

type FilterItemBuilderLackingEventTypes interface {
	// AndAnyEventTypeOf adds one or multiple event types to the current FilterItem.
	AndAnyEventTypeOf(eventType string, eventTypes ...string) CompletedFilterItemBuilder

	// OrMatching finalizes the current FilterItem and starts a new one.
	OrMatching() EmptyFilterItemBuilder

	WithPositionHigherThan(position Position) CompletedFilterBuilder
	WithPositionNotHigherThan(position Position) CompletedFilterBuilder
	RecordedFrom(from time.Time) CompletedFilterBuilder
	RecordedUntil(until time.Time) CompletedFilterBuilder

	// Finalize returns the Filter once it has at least one FilterItem with at
	// least one event type OR one Tag.
	Finalize() Filter
}

type CompletedFilterItemBuilder interface {
	// OrMatching finalizes the current FilterItem and starts a new one.
	OrMatching() EmptyFilterItemBuilder

	WithPositionHigherThan(position Position) CompletedFilterBuilder
	WithPositionNotHigherThan(position Position) CompletedFilterBuilder
	RecordedFrom(from time.Time) CompletedFilterBuilder
	RecordedUntil(until time.Time) CompletedFilterBuilder

	// Finalize returns the Filter once it has at least one FilterItem with at
	// least one event type OR one Tag.
	Finalize() Filter
}

// filterBuilder implements all the interfaces of FilterBuilder.
type filterBuilder struct {
	filter            Filter
	currentFilterItem FilterItem
	itemInProgress    bool
}

// BuildEventFilter creates a FilterBuilder which must eventually be finalized
// with Finalize() or MatchingAnyEvent().
func BuildEventFilter() FilterBuilder {
	return filterBuilder{}
}

// Matching starts a new FilterItem.
func (fb filterBuilder) Matching() EmptyFilterItemBuilder {
	fb.currentFilterItem = FilterItem{}
	fb.itemInProgress = true

	return fb
}

// MatchingAnyEvent directly creates an empty filter.
func (fb filterBuilder) MatchingAnyEvent() Filter {
	return fb.filter
}

// AnyEventTypeOf adds one or multiple event types to the current FilterItem
// expecting ANY event type to match.
func (fb filterBuilder) AnyEventTypeOf(eventType string, eventTypes ...string) FilterItemBuilderLackingTags {
	fb.currentFilterItem.eventTypes = append(
		fb.currentFilterItem.eventTypes,
		fb.sanitizeEventTypes(eventType, eventTypes...)...,
	)

	return fb
}

// AndAnyEventTypeOf adds one or multiple event types to the current FilterItem
// expecting ANY event type to match.
func (fb filterBuilder) AndAnyEventTypeOf(eventType string, eventTypes ...string) CompletedFilterItemBuilder {
	fb.currentFilterItem.eventTypes = append(
		fb.currentFilterItem.eventTypes,
		fb.sanitizeEventTypes(eventType, eventTypes...)...,
	)

	return fb
}

func (fb filterBuilder) sanitizeEventTypes(eventType string, eventTypes ...string) []string {
	allEventTypes := append([]string{eventType}, eventTypes...)
	allEventTypes = slices.DeleteFunc(
		allEventTypes,
		func(e string) bool {
			return e == ""
		})
	slices.Sort(allEventTypes)
	allEventTypes = slices.Compact(allEventTypes)
	allEventTypes = slices.Clip(allEventTypes)

	return allEventTypes
}

// AnyTagOf adds one or multiple Tag(s) to the current FilterItem expecting ANY
// tag to match.
func (fb filterBuilder) AnyTagOf(tag Tag, tags ...Tag) FilterItemBuilderLackingEventTypes {
	fb.currentFilterItem.tags = append(
		fb.currentFilterItem.tags,
		fb.sanitizeTags(tag, tags...)...,
	)

	return fb
}

// AndAnyTagOf adds one or multiple Tag(s) to the current FilterItem expecting
// ANY tag to match.
func (fb filterBuilder) AndAnyTagOf(tag Tag, tags ...Tag) CompletedFilterItemBuilder {
	fb.currentFilterItem.tags = append(
		fb.currentFilterItem.tags,
		fb.sanitizeTags(tag, tags...)...,
	)

	return fb
}

// AllTagsOf adds one or multiple Tag(s) to the current FilterItem expecting
// ALL tags to be contained in the event's tag set.
func (fb filterBuilder) AllTagsOf(tag Tag, tags ...Tag) FilterItemBuilderLackingEventTypes {
	fb.currentFilterItem.allTagsMustMatch = true

	fb.currentFilterItem.tags = append(
		fb.currentFilterItem.tags,
		fb.sanitizeTags(tag, tags...)...,
	)

	return fb
}

// AndAllTagsOf adds one or multiple Tag(s) to the current FilterItem expecting
// ALL tags to be contained in the event's tag set.
func (fb filterBuilder) AndAllTagsOf(tag Tag, tags ...Tag) CompletedFilterItemBuilder {
	fb.currentFilterItem.allTagsMustMatch = true

	fb.currentFilterItem.tags = append(
		fb.currentFilterItem.tags,
		fb.sanitizeTags(tag, tags...)...,
	)

	return fb
}

func (fb filterBuilder) sanitizeTags(tag Tag, tags ...Tag) []Tag {
	allTags := append([]Tag{tag}, tags...)
	allTags = slices.DeleteFunc(allTags, func(t Tag) bool { return t.IsZero() })
	slices.SortFunc(
		allTags,
		func(a, b Tag) int {
			if a.value > b.value {
				return 1
			}

			if a.value < b.value {
				return -1
			}

			return 0
		})

	allTags = slices.Compact(allTags)
	allTags = slices.Clip(allTags)

	return allTags
}

// OrMatching finalizes the current FilterItem and starts a new one.
func (fb filterBuilder) OrMatching() EmptyFilterItemBuilder {
	fb.filter.items = append(fb.filter.items, fb.currentFilterItem)
	fb.currentFilterItem = FilterItem{}

	return fb
}

// WithPositionHigherThan sets the exclusive lower position bound.
func (fb filterBuilder) WithPositionHigherThan(position Position) CompletedFilterBuilder {
	fb = fb.finalizeCurrentItem()
	fb.filter.positionHigherThan = position

	return fb
}

// WithPositionNotHigherThan sets the inclusive upper position bound.
func (fb filterBuilder) WithPositionNotHigherThan(position Position) CompletedFilterBuilder {
	fb = fb.finalizeCurrentItem()
	fb.filter.positionNotHigherThan = position

	return fb
}

// RecordedFrom sets the inclusive lower recorded-at bound.
func (fb filterBuilder) RecordedFrom(from time.Time) CompletedFilterBuilder {
	fb = fb.finalizeCurrentItem()
	fb.filter.recordedFrom = from

	return fb
}

// RecordedUntil sets the inclusive upper recorded-at bound.
func (fb filterBuilder) RecordedUntil(until time.Time) CompletedFilterBuilder {
	fb = fb.finalizeCurrentItem()
	fb.filter.recordedUntil = until

	return fb
}

// AndRecordedUntil sets the inclusive upper recorded-at bound.
func (fb filterBuilder) AndRecordedUntil(until time.Time) CompletedFilterBuilder {
	fb.filter.recordedUntil = until

	return fb
}

func (fb filterBuilder) finalizeCurrentItem() filterBuilder {
	if fb.itemInProgress {
		fb.filter.items = append(fb.filter.items, fb.currentFilterItem)
		fb.currentFilterItem = FilterItem{}
		fb.itemInProgress = false
	}

	return fb
}

// Finalize returns the built Filter.
func (fb filterBuilder) Finalize() Filter {
	fb = fb.finalizeCurrentItem()

	return fb.filter
}
