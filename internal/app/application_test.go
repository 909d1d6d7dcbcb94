package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qahub/rewards/internal/app/services/milestones"
)

// The full reward cycle returns an account to its starting balance: post
// (+5), milestone (+5), revoke (-5), removal deduction (-5).
func TestRewardRoundTrip(t *testing.T) {
	application, err := New(Stores{}, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, application.Start(ctx))
	defer application.Stop(ctx)

	acct, err := application.Accounts.Create(ctx, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 0, acct.Balance)

	balance, err := application.Awards.AwardForAnswerPosted(ctx, acct.ID, "a1", "q1")
	require.NoError(t, err)
	require.EqualValues(t, 5, balance)

	tr, err := application.Milestones.HandleVoteChange(ctx, "q1", "a1", 4, 5)
	require.NoError(t, err)
	require.Equal(t, milestones.TransitionAwarded, tr)

	tr, err = application.Milestones.HandleVoteChange(ctx, "q1", "a1", 5, 4)
	require.NoError(t, err)
	require.Equal(t, milestones.TransitionRevoked, tr)

	balance, err = application.Awards.DeductForAnswerRemoval(ctx, acct.ID, "a1", "q1")
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)

	// The audit trail reconciles with the final balance.
	lines, err := application.Ledger.History(ctx, acct.ID, 100, 1)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	var sum int64
	for _, line := range lines {
		sum += line.Delta
	}
	require.EqualValues(t, 0, sum)
}

// Deleting an answer that still holds the milestone claws back both rewards
// in one entry, clamped at the owner's remaining balance.
func TestRemovalWhileMilestoneHeld(t *testing.T) {
	application, err := New(Stores{}, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	acct, err := application.Accounts.Create(ctx, "bob")
	require.NoError(t, err)

	_, err = application.Awards.AwardForAnswerPosted(ctx, acct.ID, "a1", "q1")
	require.NoError(t, err)
	_, err = application.Milestones.HandleVoteChange(ctx, "q1", "a1", 4, 6)
	require.NoError(t, err)

	balance, err := application.Awards.DeductForAnswerRemoval(ctx, acct.ID, "a1", "q1")
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)

	lines, err := application.Ledger.History(ctx, acct.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.EqualValues(t, -10, lines[0].Delta)
}
