package helper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine"
)

// Event types of the bank-account fixture domain used across engine tests.
const (
	DepositedEventType = "Deposited"
	WithdrawnEventType = "Withdrawn"
	OpenedEventType    = "AccountOpened"
)

// GivenUniqueID generates a unique account id for test isolation.
func GivenUniqueID(t testing.TB) uuid.UUID {
	accountID, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return accountID
}

// AccountTag builds the tag that scopes an event to one account.
func AccountTag(accountID uuid.UUID) eventstore.Tag {
	return eventstore.KV("account", accountID.String())
}

// FixtureDeposited builds a Deposited event for the given account.
func FixtureDeposited(t testing.TB, accountID uuid.UUID, amount int) eventstore.StorableEvent {
	event, err := eventstore.BuildStorableEvent(
		DepositedEventType,
		[]eventstore.Tag{AccountTag(accountID)},
		[]byte(fmt.Sprintf(`{"amount":%d}`, amount)),
	)
	require.NoError(t, err, "error in arranging test data")

	return event
}

// FixtureWithdrawn builds a Withdrawn event for the given account.
func FixtureWithdrawn(t testing.TB, accountID uuid.UUID, amount int) eventstore.StorableEvent {
	event, err := eventstore.BuildStorableEvent(
		WithdrawnEventType,
		[]eventstore.Tag{AccountTag(accountID)},
		[]byte(fmt.Sprintf(`{"amount":%d}`, amount)),
	)
	require.NoError(t, err, "error in arranging test data")

	return event
}

// FilterAccountActivity matches all balance-relevant events of one account.
func FilterAccountActivity(accountID uuid.UUID) eventstore.Filter {
	return eventstore.BuildEventFilter().
		Matching().
		AnyEventTypeOf(DepositedEventType, WithdrawnEventType).
		AndAnyTagOf(AccountTag(accountID)).
		Finalize()
}

// QueryTailBeforeAppend queries the filter and returns the tail to use as the
// After position of an append condition.
func QueryTailBeforeAppend(
	t testing.TB,
	ctx context.Context,
	stream *pebbleengine.Stream,
	filter eventstore.Filter,
) eventstore.Position {

	_, tail, err := stream.Query(ctx, filter)
	assert.NoError(t, err, "error in arranging test data")

	return tail
}

// CreateTemporaryStream opens a stream on a fresh temp directory, registered
// for cleanup when the test finishes.
func CreateTemporaryStream(t testing.TB) *pebbleengine.Stream {
	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).Open()
	require.NoError(t, err, "error in opening test stream")

	t.Cleanup(func() {
		_ = stream.Close()
	})

	return stream
}

// CreateTemporaryStreamWithClock opens a stream whose RecordedAt timestamps
// come from the given clock.
func CreateTemporaryStreamWithClock(t testing.TB, clock func() time.Time) *pebbleengine.Stream {
	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).WithClock(clock).Open()
	require.NoError(t, err, "error in opening test stream")

	t.Cleanup(func() {
		_ = stream.Close()
	})

	return stream
}
