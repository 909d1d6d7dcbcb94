package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/storage/memory"
)

func TestService(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	acct, err := svc.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if acct.ID == "" {
		t.Fatalf("expected id to be generated")
	}
	if acct.Balance != 0 {
		t.Fatalf("new accounts must start at zero, got %d", acct.Balance)
	}

	got, err := svc.Get(ctx, acct.ID)
	if err != nil || got.DisplayName != "alice" {
		t.Fatalf("get: %+v (%v)", got, err)
	}

	if _, err := svc.Create(ctx, "  "); !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Get(ctx, "ghost"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
