// Quickstart demonstrates the query / decide / append cycle against an
// embedded stream: open an account, deposit, then race two withdrawals that
// each only fit the balance once. One of them loses its consistency boundary
// and retries against the fresh history, where the balance rule rejects it.
package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/eventrica/eventric-stream/eventstore"
	"github.com/eventrica/eventric-stream/eventstore/pebbleengine"
	"github.com/eventrica/eventric-stream/example/features/depositmoney"
	"github.com/eventrica/eventric-stream/example/features/withdrawmoney"
	"github.com/eventrica/eventric-stream/example/shared/core"
	"github.com/eventrica/eventric-stream/example/shared/shell"
)

func main() {
	ctx := context.Background()

	stream, err := pebbleengine.NewStreamBuilder("").Temporary().Open()
	if err != nil {
		log.Fatalf("opening stream: %s", err)
	}
	defer func() { _ = stream.Close() }()

	accountID, err := uuid.NewV7()
	if err != nil {
		log.Fatalf("generating account id: %s", err)
	}

	if err = openAccount(ctx, stream, accountID); err != nil {
		log.Fatalf("opening account: %s", err)
	}

	depositHandler := depositmoney.NewCommandHandler(stream)
	withdrawHandler := withdrawmoney.NewCommandHandler(stream)

	if err = depositHandler.Handle(ctx, depositmoney.BuildCommand(accountID, 100)); err != nil {
		log.Fatalf("depositing: %s", err)
	}

	// Two concurrent withdrawals of 80 against a balance of 100: at most one
	// can succeed, the other must fail with ErrInsufficientBalance after its
	// conflict retry.
	var wg sync.WaitGroup
	results := make([]error, 2)

	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = withdrawHandler.Handle(ctx, withdrawmoney.BuildCommand(accountID, 80))
		}(i)
	}
	wg.Wait()

	for slot, result := range results {
		if result == nil {
			fmt.Printf("withdrawal %d: succeeded\n", slot)
		} else {
			fmt.Printf("withdrawal %d: %s\n", slot, result)
		}
	}

	events, tail, err := stream.Query(ctx, shell.AccountHistoryFilter(accountID.String()))
	if err != nil {
		log.Fatalf("querying history: %s", err)
	}

	fmt.Printf("account history has %d events, stream tail is %d\n", len(events), tail)
}

// openAccount appends the AccountOpened event, guarded against the account
// already existing.
func openAccount(ctx context.Context, stream *pebbleengine.Stream, accountID uuid.UUID) error {
	storableEvent, err := shell.StorableEventFrom(core.BuildAccountOpened(accountID, "Jane Doe"))
	if err != nil {
		return err
	}

	existsFilter := eventstore.BuildEventFilter().
		Matching().
		AnyEventTypeOf(core.AccountOpenedEventType).
		AndAnyTagOf(shell.AccountTag(accountID.String())).
		Finalize()

	_, err = stream.Append(ctx,
		eventstore.StorableEvents{storableEvent},
		eventstore.FailIfEventsMatch(existsFilter))

	return err
}
