package pebbleengine_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine/internal/records"
	"github.com/eventrica/eventric-stream/testutil/pebbleengine/helper"
)

// seedStream appends count deposits and closes the stream, leaving the
// storage directory behind for direct manipulation.
func seedStream(t *testing.T, path string, count int) {
	t.Helper()

	ctx := context.Background()
	stream, err := pebbleengine.NewStreamBuilder(path).Open()
	require.NoError(t, err)

	accountID := helper.GivenUniqueID(t)
	for i := 0; i < count; i++ {
		_, appendErr := stream.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 10*(i+1))})
		require.NoError(t, appendErr)
	}

	require.NoError(t, stream.Close())
}

// mutateStorage opens the raw Pebble database and applies fn.
func mutateStorage(t *testing.T, path string, fn func(db *pebble.DB)) {
	t.Helper()

	db, err := pebble.Open(path, &pebble.Options{})
	require.NoError(t, err)

	fn(db)

	require.NoError(t, db.Close())
}

func Test_Open_When_TailRecordIsCorrupt_ItTruncatesToTheLastValidRecord(t *testing.T) {
	// arrange
	path := t.TempDir()
	seedStream(t, path, 3)

	mutateStorage(t, path, func(db *pebble.DB) {
		require.NoError(t, db.Set(records.EventKey(3), []byte("garbage"), pebble.Sync))
	})

	// act
	stream, err := pebbleengine.NewStreamBuilder(path).Open()

	// assert
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	assert.Equal(t, eventstore.Position(2), stream.Tail())

	events, _, queryErr := stream.Query(context.Background(), eventstore.BuildEventFilter().MatchingAnyEvent())
	require.NoError(t, queryErr)
	assert.Len(t, events, 2)
}

func Test_Open_When_OrphanRecordsExistBeyondTheTailCheckpoint_ItDropsThem(t *testing.T) {
	// arrange
	path := t.TempDir()
	seedStream(t, path, 2)

	mutateStorage(t, path, func(db *pebble.DB) {
		// simulate a torn write: a record beyond the committed tail
		require.NoError(t, db.Set(records.EventKey(3), []byte("torn write"), pebble.Sync))
	})

	// act
	stream, err := pebbleengine.NewStreamBuilder(path).Open()

	// assert
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	assert.Equal(t, eventstore.Position(2), stream.Tail())

	// the next append reuses position 3 cleanly
	accountID := helper.GivenUniqueID(t)
	assigned, appendErr := stream.Append(context.Background(),
		eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 100)})
	require.NoError(t, appendErr)
	assert.Equal(t, eventstore.Position(3), assigned.To)

	events, _, queryErr := stream.Query(context.Background(), eventstore.BuildEventFilter().MatchingAnyEvent())
	require.NoError(t, queryErr)
	assert.Len(t, events, 3)
}

func Test_Open_When_EveryRecordIsCorrupt_ItRecoversToAnEmptyStream(t *testing.T) {
	// arrange
	path := t.TempDir()
	seedStream(t, path, 2)

	mutateStorage(t, path, func(db *pebble.DB) {
		require.NoError(t, db.Set(records.EventKey(1), []byte("x"), pebble.Sync))
		require.NoError(t, db.Set(records.EventKey(2), []byte("y"), pebble.Sync))
	})

	// act
	stream, err := pebbleengine.NewStreamBuilder(path).Open()

	// assert
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	assert.True(t, stream.IsEmpty())
	assert.Equal(t, eventstore.ZeroPosition, stream.Tail())
}

func Test_Scan_When_TheCommittedPrefixHasAGap_ItPanics(t *testing.T) {
	// arrange
	path := t.TempDir()
	seedStream(t, path, 3)

	mutateStorage(t, path, func(db *pebble.DB) {
		// a hole inside the committed prefix violates the gap-free invariant
		require.NoError(t, db.Delete(records.EventKey(2), pebble.Sync))
	})

	stream, err := pebbleengine.NewStreamBuilder(path).Open()
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	// act + assert
	assert.Panics(t, func() {
		cursor := stream.Scan(context.Background(), eventstore.BuildEventFilter().MatchingAnyEvent())
		defer func() { _ = cursor.Close() }()

		for cursor.Next() { //nolint:revive // draining the cursor is the point
		}
	})
}

func Test_Open_AfterTruncation_RewritesTheTailCheckpoint(t *testing.T) {
	// arrange
	path := t.TempDir()
	seedStream(t, path, 3)

	mutateStorage(t, path, func(db *pebble.DB) {
		require.NoError(t, db.Set(records.EventKey(3), []byte("garbage"), pebble.Sync))
	})

	stream, err := pebbleengine.NewStreamBuilder(path).Open()
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	// act: the truncated tail must be durable, not re-derived per open
	mutateStorage(t, path, func(db *pebble.DB) {
		raw, closer, getErr := db.Get(records.TailKey())
		require.NoError(t, getErr)
		assert.Equal(t, uint64(2), binary.BigEndian.Uint64(raw))
		require.NoError(t, closer.Close())
	})
}
