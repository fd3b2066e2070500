package pebbleengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine"
	"github.com/eventrica/eventric-stream/testutil/pebbleengine/helper"
)

func Test_Checkpoint_OfAnUnknownConsumer_IsZeroPosition(t *testing.T) {
	// setup
	ctx := context.Background()
	stream := helper.CreateTemporaryStream(t)

	// act
	position, err := stream.Checkpoint(ctx, "balance-projection")

	// assert
	require.NoError(t, err)
	assert.Equal(t, eventstore.ZeroPosition, position)
}

func Test_CommitCheckpoint_StoresThePosition(t *testing.T) {
	// setup
	ctx := context.Background()
	stream := helper.CreateTemporaryStream(t)

	// act
	require.NoError(t, stream.CommitCheckpoint(ctx, "balance-projection", 7))

	// assert
	position, err := stream.Checkpoint(ctx, "balance-projection")
	require.NoError(t, err)
	assert.Equal(t, eventstore.Position(7), position)
}

func Test_CommitCheckpoint_IsMonotonic(t *testing.T) {
	// setup
	ctx := context.Background()
	stream := helper.CreateTemporaryStream(t)

	// arrange
	require.NoError(t, stream.CommitCheckpoint(ctx, "balance-projection", 7))

	// act: a replayed lower commit must not move the checkpoint backwards
	require.NoError(t, stream.CommitCheckpoint(ctx, "balance-projection", 3))
	require.NoError(t, stream.CommitCheckpoint(ctx, "balance-projection", 7))

	// assert
	position, err := stream.Checkpoint(ctx, "balance-projection")
	require.NoError(t, err)
	assert.Equal(t, eventstore.Position(7), position)
}

func Test_CommitCheckpoint_When_NameIsEmpty_ItFails(t *testing.T) {
	// setup
	ctx := context.Background()
	stream := helper.CreateTemporaryStream(t)

	// act + assert
	assert.ErrorIs(t, stream.CommitCheckpoint(ctx, "", 1), pebbleengine.ErrEmptyCheckpointName)

	_, err := stream.Checkpoint(ctx, "")
	assert.ErrorIs(t, err, pebbleengine.ErrEmptyCheckpointName)
}

func Test_Checkpoints_AreIsolatedPerConsumer_AndSurviveReopen(t *testing.T) {
	// setup
	ctx := context.Background()
	path := t.TempDir()

	stream, err := pebbleengine.NewStreamBuilder(path).Open()
	require.NoError(t, err)

	// arrange
	require.NoError(t, stream.CommitCheckpoint(ctx, "balance-projection", 7))
	require.NoError(t, stream.CommitCheckpoint(ctx, "audit-export", 3))
	require.NoError(t, stream.Close())

	// act
	reopened, reopenErr := pebbleengine.NewStreamBuilder(path).Open()
	require.NoError(t, reopenErr)
	defer func() { _ = reopened.Close() }()

	// assert
	balance, balanceErr := reopened.Checkpoint(ctx, "balance-projection")
	require.NoError(t, balanceErr)
	assert.Equal(t, eventstore.Position(7), balance)

	audit, auditErr := reopened.Checkpoint(ctx, "audit-export")
	require.NoError(t, auditErr)
	assert.Equal(t, eventstore.Position(3), audit)
}
