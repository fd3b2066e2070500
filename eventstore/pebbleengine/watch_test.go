package pebbleengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/testutil/pebbleengine/helper"
)

func Test_WaitForAppend_ReturnsImmediately_WhenTheTailIsAlreadyHigher(t *testing.T) {
	// setup
	ctx := context.Background()
	stream := helper.CreateTemporaryStream(t)

	// arrange
	accountID := helper.GivenUniqueID(t)
	_, err := stream.Append(ctx, eventstore.StorableEvents{helper.FixtureDeposited(t, accountID, 100)})
	require.NoError(t, err)

	// act
	tail, waitErr := stream.WaitForAppend(ctx, eventstore.ZeroPosition)

	// assert
	require.NoError(t, waitErr)
	assert.Equal(t, eventstore.Position(1), tail)
}

func Test_WaitForAppend_WakesUp_WhenAnAppendCommits(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream := helper.CreateTemporaryStream(t)

	accountID := helper.GivenUniqueID(t)
	event := helper.FixtureDeposited(t, accountID, 100)

	type waitResult struct {
		tail eventstore.Position
		err  error
	}
	resultCh := make(chan waitResult, 1)

	// act
	go func() {
		tail, waitErr := stream.WaitForAppend(ctx, eventstore.ZeroPosition)
		resultCh <- waitResult{tail: tail, err: waitErr}
	}()

	time.Sleep(50 * time.Millisecond) // let the waiter subscribe

	_, appendErr := stream.Append(ctx, eventstore.StorableEvents{event})
	require.NoError(t, appendErr)

	// assert
	result := <-resultCh
	require.NoError(t, result.err)
	assert.Equal(t, eventstore.Position(1), result.tail)
}

func Test_WaitForAppend_When_TheContextEnds_ItReturnsTheContextError(t *testing.T) {
	// setup
	stream := helper.CreateTemporaryStream(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// act
	_, err := stream.WaitForAppend(ctx, eventstore.ZeroPosition)

	// assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_WaitForAppend_When_TheStreamIsClosed_ItReturnsErrStreamClosed(t *testing.T) {
	// setup
	ctx := context.Background()
	stream := helper.CreateTemporaryStream(t)

	errCh := make(chan error, 1)

	// act
	go func() {
		_, waitErr := stream.WaitForAppend(ctx, eventstore.ZeroPosition)
		errCh <- waitErr
	}()

	time.Sleep(50 * time.Millisecond) // let the waiter subscribe
	require.NoError(t, stream.Close())

	// assert
	assert.ErrorIs(t, <-errCh, eventstore.ErrStreamClosed)
}
