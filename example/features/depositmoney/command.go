package depositmoney

import (
	"github.com/google/uuid"
)

// Command represents the intent to deposit money into an account.
type Command struct {
	AccountID uuid.UUID
	Amount    int64
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(accountID uuid.UUID, amount int64) Command {
	return Command{
		AccountID: accountID,
		Amount:    amount,
	}
}
