package transfers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/qahub/rewards/internal/app/domain/account"
	"github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/storage"
	"github.com/qahub/rewards/internal/app/storage/memory"
)

func seedAccount(t *testing.T, store *memory.Store, name string, balance int64) account.Account {
	t.Helper()
	ctx := context.Background()
	acct, err := store.CreateAccount(ctx, account.Account{DisplayName: name})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if balance > 0 {
		err := store.WithinTx(ctx, func(tx storage.Tx) error {
			return tx.SetBalance(ctx, acct.ID, balance)
		})
		if err != nil {
			t.Fatalf("seed balance: %v", err)
		}
	}
	return acct
}

func TestTransfer(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	a := seedAccount(t, store, "a", 15)
	b := seedAccount(t, store, "b", 0)

	senderBal, recipientBal, err := svc.Transfer(ctx, a.ID, b.ID, 10)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if senderBal != 5 || recipientBal != 10 {
		t.Fatalf("unexpected balances: sender=%d recipient=%d", senderBal, recipientBal)
	}

	sent, _ := store.ListEntriesByAccount(ctx, a.ID, 10, 0)
	received, _ := store.ListEntriesByAccount(ctx, b.ID, 10, 0)
	if len(sent) != 1 || sent[0].Reason != ledger.ReasonTransferSent || sent[0].Delta != -10 {
		t.Fatalf("unexpected sender entry: %+v", sent)
	}
	if sent[0].FromAccount == nil || *sent[0].FromAccount != b.ID {
		t.Fatalf("sender entry counterparty wrong: %+v", sent[0])
	}
	if len(received) != 1 || received[0].Reason != ledger.ReasonTransferReceived || received[0].Delta != 10 {
		t.Fatalf("unexpected recipient entry: %+v", received)
	}
	if received[0].FromAccount == nil || *received[0].FromAccount != a.ID {
		t.Fatalf("recipient entry counterparty wrong: %+v", received[0])
	}
}

func TestTransferRetentionFloor(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	// Exactly 10 points: the floor requires strictly more before any
	// transfer, however small.
	a := seedAccount(t, store, "a", 10)
	b := seedAccount(t, store, "b", 0)

	if _, _, err := svc.Transfer(ctx, a.ID, b.ID, 1); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	got, _ := store.GetAccount(ctx, a.ID)
	if got.Balance != 10 {
		t.Fatalf("rejected transfer moved points: %d", got.Balance)
	}
	entries, _ := store.ListEntriesByAccount(ctx, a.ID, 10, 0)
	if len(entries) != 0 {
		t.Fatalf("rejected transfer wrote entries: %+v", entries)
	}
}

func TestTransferValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	a := seedAccount(t, store, "a", 20)
	b := seedAccount(t, store, "b", 0)

	cases := []struct {
		name     string
		from, to string
		amount   int64
		want     error
	}{
		{"blank from", "", b.ID, 5, ledger.ErrValidation},
		{"blank to", a.ID, "", 5, ledger.ErrValidation},
		{"self transfer", a.ID, a.ID, 5, ledger.ErrValidation},
		{"zero amount", a.ID, b.ID, 0, ledger.ErrValidation},
		{"negative amount", a.ID, b.ID, -3, ledger.ErrValidation},
		{"missing sender", "ghost", b.ID, 5, ledger.ErrNotFound},
		{"missing recipient", a.ID, "ghost", 5, ledger.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := svc.Transfer(ctx, tc.from, tc.to, tc.amount); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	// Balance 12 and four concurrent transfers of 4: the first leaves 8,
	// below the retention floor, so exactly one may succeed.
	a := seedAccount(t, store, "a", 12)
	b := seedAccount(t, store, "b", 0)

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Transfer(ctx, a.ID, b.ID, 4)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 3 {
		t.Fatalf("expected 1 success and 3 rejections, got %d/%d", ok, rejected)
	}

	sender, _ := store.GetAccount(ctx, a.ID)
	recipient, _ := store.GetAccount(ctx, b.ID)
	if sender.Balance != 8 || recipient.Balance != 4 {
		t.Fatalf("unexpected final balances: %d/%d", sender.Balance, recipient.Balance)
	}
	if sender.Balance < 0 {
		t.Fatalf("balance went negative")
	}
}
