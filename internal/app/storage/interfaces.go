// Package storage defines the persistence contracts for the reward ledger.
package storage

import (
	"context"

	"github.com/qahub/rewards/internal/app/domain/account"
	"github.com/qahub/rewards/internal/app/domain/answer"
	"github.com/qahub/rewards/internal/app/domain/ledger"
)

// Store is the full persistence surface. Reads outside WithinTx observe the
// latest committed state; every balance mutation must go through WithinTx.
type Store interface {
	// CreateAccount persists a new account. A blank ID is generated.
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	// GetAccount returns a committed account snapshot.
	GetAccount(ctx context.Context, id string) (account.Account, error)
	// GetRewardState returns the committed reward state for an answer.
	GetRewardState(ctx context.Context, answerID string) (answer.RewardState, error)
	// ListEntriesByAccount returns entries attributed to the account
	// (ToAccount), newest first, paginated by limit/offset.
	ListEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]ledger.Entry, error)
	// WithinTx runs fn as one atomic unit. If fn returns an error, or the
	// commit fails, no staged effect becomes observable. Store-level
	// conflicts are reported as ledger.ErrTransactionAborted.
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the write surface available inside an atomic unit. Reads through Tx
// lock the row (or equivalent) so concurrent units serialize instead of
// interleaving into lost updates.
type Tx interface {
	AccountForUpdate(ctx context.Context, id string) (account.Account, error)
	SetBalance(ctx context.Context, id string, balance int64) error
	AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error)
	RewardStateForUpdate(ctx context.Context, answerID string) (answer.RewardState, error)
	PutRewardState(ctx context.Context, st answer.RewardState) error
	UpdateRewardState(ctx context.Context, st answer.RewardState) error
	DeleteRewardState(ctx context.Context, answerID string) error
}
