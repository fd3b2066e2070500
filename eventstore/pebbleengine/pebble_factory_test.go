package pebbleengine_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine"
	"github.com/eventrica/eventric-stream/testutil/pebbleengine/helper"
)

func Test_Open_When_PathIsEmptyAndStorageIsNotTemporary_ItFails(t *testing.T) {
	// act
	_, err := pebbleengine.NewStreamBuilder("").Open()

	// assert
	assert.ErrorIs(t, err, eventstore.ErrOpeningStreamFailed)
	assert.ErrorIs(t, err, pebbleengine.ErrEmptyStoragePath)
}

func Test_Open_TemporaryStream_RemovesItsStorageOnClose(t *testing.T) {
	// setup
	ctx := context.Background()
	path := t.TempDir() + "/scratch"

	stream, err := pebbleengine.NewStreamBuilder(path).Temporary().Open()
	require.NoError(t, err)

	// arrange
	accountID := helper.GivenUniqueID(t)
	_, appendErr := stream.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 100)})
	require.NoError(t, appendErr)

	// act
	require.NoError(t, stream.Close())

	// assert
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func Test_Open_TemporaryStream_WithoutPath_CreatesItsOwnDirectory(t *testing.T) {
	// act
	stream, err := pebbleengine.NewStreamBuilder("").Temporary().Open()

	// assert
	require.NoError(t, err)
	assert.True(t, stream.IsEmpty())
	assert.NoError(t, stream.Close())
}

func Test_Reopen_RestoresTailAndEvents(t *testing.T) {
	// setup
	ctx := context.Background()
	path := t.TempDir()
	accountID := helper.GivenUniqueID(t)

	// arrange
	stream, err := pebbleengine.NewStreamBuilder(path).Open()
	require.NoError(t, err)

	_, appendErr := stream.Append(ctx, eventstore.StorableEvents{
		helper.FixtureDeposited(t, accountID, 100),
		helper.FixtureWithdrawn(t, accountID, 25),
	})
	require.NoError(t, appendErr)
	require.NoError(t, stream.Close())

	// act
	reopened, reopenErr := pebbleengine.NewStreamBuilder(path).Open()
	require.NoError(t, reopenErr)
	defer func() { _ = reopened.Close() }()

	// assert
	assert.Equal(t, eventstore.Position(2), reopened.Tail())

	events, tail, queryErr := reopened.Query(ctx, helper.FilterAccountActivity(accountID))
	require.NoError(t, queryErr)
	assert.Equal(t, eventstore.Position(2), tail)
	require.Len(t, events, 2)
	assert.Equal(t, helper.DepositedEventType, events[0].EventType)
	assert.Equal(t, helper.WithdrawnEventType, events[1].EventType)
	assert.JSONEq(t, `{"amount":25}`, string(events[1].Payload))
}

func Test_Reopen_ContinuesPositionNumberingWithoutGaps(t *testing.T) {
	// setup
	ctx := context.Background()
	path := t.TempDir()
	accountID := helper.GivenUniqueID(t)

	// arrange
	stream, err := pebbleengine.NewStreamBuilder(path).Open()
	require.NoError(t, err)

	_, appendErr := stream.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 1)})
	require.NoError(t, appendErr)
	require.NoError(t, stream.Close())

	reopened, reopenErr := pebbleengine.NewStreamBuilder(path).Open()
	require.NoError(t, reopenErr)
	defer func() { _ = reopened.Close() }()

	// act
	assigned, secondAppendErr := reopened.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 2)})

	// assert
	require.NoError(t, secondAppendErr)
	assert.Equal(t, eventstore.Position(2), assigned.From)
	assert.Equal(t, eventstore.Position(2), assigned.To)
}
