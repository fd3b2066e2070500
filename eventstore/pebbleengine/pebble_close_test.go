package pebbleengine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine"
	"github.com/eventrica/eventric-stream/testutil/pebbleengine/helper"
)

func Test_Close_WithConcurrentAppends_FailsThemWithStreamClosed(t *testing.T) {
	// setup
	ctx := context.Background()

	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).Open()
	require.NoError(t, err)

	// arrange
	accountID := helper.GivenUniqueID(t)
	event := helper.FixtureDeposited(t, accountID, 100)

	// act: hammer the stream with appends while it is being closed
	var wg sync.WaitGroup
	results := make([]error, 4)

	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for {
				if _, appendErr := stream.Append(ctx, eventstore.StorableEvents{event}); appendErr != nil {
					results[slot] = appendErr
					return
				}
			}
		}(i)
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, stream.Close())
	wg.Wait()

	// assert: every racing append fails cleanly, none may panic on the
	// closed database
	for _, result := range results {
		assert.ErrorIs(t, result, eventstore.ErrStreamClosed)
	}
}

func Test_Close_WithConcurrentCheckpointCommits_FailsThemWithStreamClosed(t *testing.T) {
	// setup
	ctx := context.Background()

	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).Open()
	require.NoError(t, err)

	// act
	var wg sync.WaitGroup
	results := make([]error, 4)

	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for position := eventstore.Position(1); ; position++ {
				if commitErr := stream.CommitCheckpoint(ctx, "reader", position); commitErr != nil {
					results[slot] = commitErr
					return
				}
			}
		}(i)
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, stream.Close())
	wg.Wait()

	// assert
	for _, result := range results {
		assert.ErrorIs(t, result, eventstore.ErrStreamClosed)
	}
}
