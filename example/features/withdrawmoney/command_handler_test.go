package withdrawmoney_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrica/eventric-stream/eventstore/pebbleengine"
	"github.com/eventrica/eventric-stream/example/features/withdrawmoney"
	"github.com/eventrica/eventric-stream/example/shared/core"
	"github.com/eventrica/eventric-stream/example/shared/shell"
)

func givenOpenAccountWithBalance(
	t *testing.T,
	ctx context.Context,
	stream *pebbleengine.Stream,
	balance int64,
) uuid.UUID {

	accountID := uuid.Must(uuid.NewV7())

	storableEvents, err := shell.StorableEventsFrom(core.DomainEvents{
		core.BuildAccountOpened(accountID, "Jane Doe"),
		core.BuildMoneyDeposited(accountID, balance),
	})
	require.NoError(t, err, "error in arranging test data")

	_, err = stream.Append(ctx, storableEvents)
	require.NoError(t, err, "error in arranging test data")

	return accountID
}

func Test_CommandHandler_WithdrawsMoney(t *testing.T) {
	// setup
	ctx := context.Background()
	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	// arrange
	accountID := givenOpenAccountWithBalance(t, ctx, stream, 100)
	handler := withdrawmoney.NewCommandHandler(stream)

	// act
	handleErr := handler.Handle(ctx, withdrawmoney.BuildCommand(accountID, 80))

	// assert
	require.NoError(t, handleErr)

	events, _, queryErr := stream.Query(ctx, shell.AccountHistoryFilter(accountID.String()))
	require.NoError(t, queryErr)
	require.Len(t, events, 3)
	assert.Equal(t, core.MoneyWithdrawnEventType, events[2].EventType)
}

func Test_CommandHandler_ConcurrentWithdrawals_OnlyOneSucceeds(t *testing.T) {
	// setup
	ctx := context.Background()
	stream, err := pebbleengine.NewStreamBuilder(t.TempDir()).Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	// arrange: a balance that fits one withdrawal of 80, not two
	accountID := givenOpenAccountWithBalance(t, ctx, stream, 100)
	handler := withdrawmoney.NewCommandHandler(stream)

	// act
	var wg sync.WaitGroup
	results := make([]error, 2)

	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = handler.Handle(ctx, withdrawmoney.BuildCommand(accountID, 80))
		}(i)
	}
	wg.Wait()

	// assert: exactly one succeeded, the other was rejected by the balance
	// rule after its conflict retry
	var succeeded, rejected int
	for _, result := range results {
		switch {
		case result == nil:
			succeeded++
		case assert.ErrorIs(t, result, withdrawmoney.ErrInsufficientBalance):
			rejected++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	events, _, queryErr := stream.Query(ctx, shell.AccountHistoryFilter(accountID.String()))
	require.NoError(t, queryErr)
	assert.Len(t, events, 3, "exactly one MoneyWithdrawn must have been committed")
}
