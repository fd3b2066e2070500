package withdrawmoney_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrica/eventric-stream/example/features/withdrawmoney"
	"github.com/eventrica/eventric-stream/example/shared/core"
)

func Test_Decide_GeneratesMoneyWithdrawn_WhenTheBalanceSuffices(t *testing.T) {
	// arrange
	accountID := uuid.Must(uuid.NewV7())
	history := core.DomainEvents{
		core.BuildAccountOpened(accountID, "Jane Doe"),
		core.BuildMoneyDeposited(accountID, 100),
	}

	// act
	newEvents, err := withdrawmoney.Decide(history, withdrawmoney.BuildCommand(accountID, 80))

	// assert
	require.NoError(t, err)
	require.Len(t, newEvents, 1)
	withdrawn, ok := newEvents[0].(core.MoneyWithdrawn)
	require.True(t, ok)
	assert.Equal(t, int64(80), withdrawn.Amount)
}

func Test_Decide_Fails_WhenTheBalanceIsInsufficient(t *testing.T) {
	// arrange
	accountID := uuid.Must(uuid.NewV7())
	history := core.DomainEvents{
		core.BuildAccountOpened(accountID, "Jane Doe"),
		core.BuildMoneyDeposited(accountID, 100),
		core.BuildMoneyWithdrawn(accountID, 80),
	}

	// act
	_, err := withdrawmoney.Decide(history, withdrawmoney.BuildCommand(accountID, 80))

	// assert
	assert.ErrorIs(t, err, withdrawmoney.ErrInsufficientBalance)
}

func Test_Decide_Fails_WhenTheAccountIsNotOpen(t *testing.T) {
	// arrange
	accountID := uuid.Must(uuid.NewV7())
	otherAccountID := uuid.Must(uuid.NewV7())
	history := core.DomainEvents{
		core.BuildAccountOpened(otherAccountID, "Someone Else"),
		core.BuildMoneyDeposited(otherAccountID, 100),
	}

	// act
	_, err := withdrawmoney.Decide(history, withdrawmoney.BuildCommand(accountID, 10))

	// assert
	assert.ErrorIs(t, err, withdrawmoney.ErrAccountNotOpen)
}

func Test_Decide_Fails_WhenTheAmountIsNotPositive(t *testing.T) {
	// arrange
	accountID := uuid.Must(uuid.NewV7())

	// act
	_, err := withdrawmoney.Decide(core.DomainEvents{}, withdrawmoney.BuildCommand(accountID, 0))

	// assert
	assert.ErrorIs(t, err, withdrawmoney.ErrInvalidAmount)
}
