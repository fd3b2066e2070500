package withdrawmoney

import (
	"errors"

	"github.com/eventrica/eventric-stream/example/shared/core"
)

var ErrAccountNotOpen = errors.New("account is not open")
var ErrInvalidAmount = errors.New("amount must be positive")
var ErrInsufficientBalance = errors.New("insufficient balance")

// state represents the current state projected from the event history.
type state struct {
	accountIsOpen bool
	balance       int64
}

// Decide implements the business logic for withdrawing money. It is a pure
// function: given the account's event history and the command, it returns the
// events to append, or an error.
//
// The balance rule is exactly what makes the consistency boundary matter: two
// concurrent withdrawals may each see enough balance, but only the first may
// commit. The command handler enforces that with an append condition over the
// same history this function decided on.
//
// Business Rules:
//   GIVEN: An account with AccountID
//   WHEN: WithdrawMoney command is received
//   THEN: MoneyWithdrawn event is generated
//   ERROR: ErrAccountNotOpen if no AccountOpened event exists
//   ERROR: ErrInvalidAmount if the amount is not positive
//   ERROR: ErrInsufficientBalance if the balance would go negative
func Decide(history core.DomainEvents, command Command) (core.DomainEvents, error) {
	if command.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	s := project(history, command.AccountID.String())

	if !s.accountIsOpen {
		return nil, ErrAccountNotOpen
	}

	if s.balance < command.Amount {
		return nil, ErrInsufficientBalance
	}

	return core.DomainEvents{
		core.BuildMoneyWithdrawn(command.AccountID, command.Amount),
	}, nil
}

// project builds the current state by replaying all events from the history.
func project(history core.DomainEvents, accountID string) state {
	s := state{}

	for _, event := range history {
		switch e := event.(type) {
		case core.AccountOpened:
			if e.AccountID == accountID {
				s.accountIsOpen = true
			}

		case core.MoneyDeposited:
			if e.AccountID == accountID {
				s.balance += e.Amount
			}

		case core.MoneyWithdrawn:
			if e.AccountID == accountID {
				s.balance -= e.Amount
			}
		}
	}

	return s
}
