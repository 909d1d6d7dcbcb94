package milestones

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/qahub/rewards/internal/app/domain/account"
	"github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/services/awards"
	"github.com/qahub/rewards/internal/app/storage"
	"github.com/qahub/rewards/internal/app/storage/memory"
)

func postAnswer(t *testing.T, store *memory.Store, name string) (account.Account, string) {
	t.Helper()
	ctx := context.Background()
	acct, err := store.CreateAccount(ctx, account.Account{DisplayName: name})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := awards.New(store, nil).AwardForAnswerPosted(ctx, acct.ID, "a1", "q1"); err != nil {
		t.Fatalf("post answer: %v", err)
	}
	return acct, "a1"
}

func TestCrossingUpAwardsOnce(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	acct, answerID := postAnswer(t, store, "alice")

	tr, err := svc.HandleVoteChange(ctx, "q1", answerID, 4, 5)
	if err != nil {
		t.Fatalf("vote change: %v", err)
	}
	if tr != TransitionAwarded {
		t.Fatalf("expected award, got %s", tr)
	}

	got, _ := store.GetAccount(ctx, acct.ID)
	if got.Balance != 10 {
		t.Fatalf("expected balance 10 after post+bonus, got %d", got.Balance)
	}
	st, _ := store.GetRewardState(ctx, answerID)
	if !st.MilestoneAwarded || st.NetUpvotes != 5 {
		t.Fatalf("unexpected state: %+v", st)
	}

	// Duplicate trigger is a safe no-op.
	awarded, err := svc.CheckAndAward(ctx, "q1", answerID)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if awarded {
		t.Fatalf("double award")
	}
	got, _ = store.GetAccount(ctx, acct.ID)
	if got.Balance != 10 {
		t.Fatalf("balance changed by no-op: %d", got.Balance)
	}
}

func TestCrossingDownRevokes(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	acct, answerID := postAnswer(t, store, "bob")
	if _, err := svc.HandleVoteChange(ctx, "q1", answerID, 4, 5); err != nil {
		t.Fatalf("award: %v", err)
	}

	tr, err := svc.HandleVoteChange(ctx, "q1", answerID, 5, 4)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if tr != TransitionRevoked {
		t.Fatalf("expected revoke, got %s", tr)
	}

	got, _ := store.GetAccount(ctx, acct.ID)
	if got.Balance != 5 {
		t.Fatalf("expected balance back to 5, got %d", got.Balance)
	}
	st, _ := store.GetRewardState(ctx, answerID)
	if st.MilestoneAwarded {
		t.Fatalf("flag not cleared")
	}

	entries, _ := store.ListEntriesByAccount(ctx, acct.ID, 10, 0)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Reason != ledger.ReasonMilestoneRevoked || entries[0].Delta != -5 {
		t.Fatalf("unexpected revoke entry: %+v", entries[0])
	}

	// Revoking again is a no-op.
	revoked, err := svc.Revoke(ctx, "q1", answerID)
	if err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if revoked {
		t.Fatalf("double revoke")
	}
}

func TestRevokeClampsAtBalance(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	acct, answerID := postAnswer(t, store, "carol")
	if _, err := svc.HandleVoteChange(ctx, "q1", answerID, 4, 5); err != nil {
		t.Fatalf("award: %v", err)
	}
	// Owner spends down to 2 before the crossing-down trigger.
	err := store.WithinTx(ctx, func(tx storage.Tx) error {
		return tx.SetBalance(ctx, acct.ID, 2)
	})
	if err != nil {
		t.Fatalf("set balance: %v", err)
	}

	if _, err := svc.HandleVoteChange(ctx, "q1", answerID, 5, 3); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, _ := store.GetAccount(ctx, acct.ID)
	if got.Balance != 0 {
		t.Fatalf("expected clamp to 0, got %d", got.Balance)
	}
	entries, _ := store.ListEntriesByAccount(ctx, acct.ID, 1, 0)
	if entries[0].Delta != -2 {
		t.Fatalf("expected clamped -2 entry, got %+v", entries[0])
	}
}

func TestNonCrossingChangeOnlyUpdatesTally(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	acct, answerID := postAnswer(t, store, "dave")

	tr, err := svc.HandleVoteChange(ctx, "q1", answerID, 2, 3)
	if err != nil {
		t.Fatalf("vote change: %v", err)
	}
	if tr != TransitionNone {
		t.Fatalf("unexpected transition %s", tr)
	}
	st, _ := store.GetRewardState(ctx, answerID)
	if st.NetUpvotes != 3 || st.MilestoneAwarded {
		t.Fatalf("unexpected state: %+v", st)
	}
	got, _ := store.GetAccount(ctx, acct.ID)
	if got.Balance != 5 {
		t.Fatalf("balance changed without crossing: %d", got.Balance)
	}
}

func TestConcurrentTriggersAwardExactlyOnce(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	acct, answerID := postAnswer(t, store, "erin")

	var wg sync.WaitGroup
	awardedCount := make(chan Transition, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := svc.HandleVoteChange(ctx, "q1", answerID, 4, 5)
			if err != nil {
				t.Errorf("vote change: %v", err)
				return
			}
			awardedCount <- tr
		}()
	}
	wg.Wait()
	close(awardedCount)

	awards := 0
	for tr := range awardedCount {
		if tr == TransitionAwarded {
			awards++
		}
	}
	if awards != 1 {
		t.Fatalf("expected exactly one award, got %d", awards)
	}
	got, _ := store.GetAccount(ctx, acct.ID)
	if got.Balance != 10 {
		t.Fatalf("expected balance 10, got %d", got.Balance)
	}
}

func TestValidationAndMissingAnswer(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, nil)
	ctx := context.Background()

	if _, err := svc.CheckAndAward(ctx, "", "a1"); !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.CheckAndAward(ctx, "q1", "ghost"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
