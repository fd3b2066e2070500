package depositmoney

import (
	"errors"

	"github.com/eventrica/eventric-stream/example/shared/core"
)

var ErrAccountNotOpen = errors.New("account is not open")
var ErrInvalidAmount = errors.New("amount must be positive")

// state represents the current state projected from the event history.
type state struct {
	accountIsOpen bool
}

// Decide implements the business logic for depositing money. It is a pure
// function: given the account's event history and the command, it returns the
// events to append, or an error.
//
// Business Rules:
//   GIVEN: An account with AccountID
//   WHEN: DepositMoney command is received
//   THEN: MoneyDeposited event is generated
//   ERROR: ErrAccountNotOpen if no AccountOpened event exists
//   ERROR: ErrInvalidAmount if the amount is not positive
func Decide(history core.DomainEvents, command Command) (core.DomainEvents, error) {
	if command.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	s := project(history, command.AccountID.String())

	if !s.accountIsOpen {
		return nil, ErrAccountNotOpen
	}

	return core.DomainEvents{
		core.BuildMoneyDeposited(command.AccountID, command.Amount),
	}, nil
}

// project builds the current state by replaying all events from the history.
func project(history core.DomainEvents, accountID string) state {
	s := state{}

	for _, event := range history {
		if e, ok := event.(core.AccountOpened); ok && e.AccountID == accountID {
			s.accountIsOpen = true
		}
	}

	return s
}
