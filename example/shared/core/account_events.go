package core

import (
	"github.com/google/uuid"
)

const (
	AccountOpenedEventType  = "AccountOpened"
	MoneyDepositedEventType = "MoneyDeposited"
	MoneyWithdrawnEventType = "MoneyWithdrawn"
)

// AccountOpened records that a bank account was opened.
type AccountOpened struct {
	AccountID string
	Owner     string
}

// MoneyDeposited records that money was deposited into an account.
// Amount is in cents.
type MoneyDeposited struct {
	AccountID string
	Amount    int64
}

// MoneyWithdrawn records that money was withdrawn from an account.
// Amount is in cents.
type MoneyWithdrawn struct {
	AccountID string
	Amount    int64
}

// BuildAccountOpened creates an AccountOpened event.
func BuildAccountOpened(accountID uuid.UUID, owner string) AccountOpened {
	return AccountOpened{
		AccountID: accountID.String(),
		Owner:     owner,
	}
}

// BuildMoneyDeposited creates a MoneyDeposited event.
func BuildMoneyDeposited(accountID uuid.UUID, amount int64) MoneyDeposited {
	return MoneyDeposited{
		AccountID: accountID.String(),
		Amount:    amount,
	}
}

// BuildMoneyWithdrawn creates a MoneyWithdrawn event.
func BuildMoneyWithdrawn(accountID uuid.UUID, amount int64) MoneyWithdrawn {
	return MoneyWithdrawn{
		AccountID: accountID.String(),
		Amount:    amount,
	}
}

// EventType implements the DomainEvent interface.
func (e AccountOpened) EventType() string {
	return AccountOpenedEventType
}

// EventType implements the DomainEvent interface.
func (e MoneyDeposited) EventType() string {
	return MoneyDepositedEventType
}

// EventType implements the DomainEvent interface.
func (e MoneyWithdrawn) EventType() string {
	return MoneyWithdrawnEventType
}
