package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qahub/rewards/internal/app/domain/account"
	"github.com/qahub/rewards/internal/app/domain/answer"
	"github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. Transactions stage their writes and apply them on commit, so
// an aborted unit leaves no trace.
type Store struct {
	mu       sync.Mutex
	accounts map[string]account.Account
	rewards  map[string]answer.RewardState
	entries  []ledger.Entry
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]account.Account),
		rewards:  make(map[string]answer.RewardState),
	}
}

func (s *Store) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct.ID == "" {
		acct.ID = uuid.NewString()
	} else if _, exists := s.accounts[acct.ID]; exists {
		return account.Account{}, fmt.Errorf("account %s already exists", acct.ID)
	}

	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	s.accounts[acct.ID] = acct
	return acct, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	return acct, nil
}

func (s *Store) GetRewardState(_ context.Context, answerID string) (answer.RewardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rewards[answerID]
	if !ok {
		return answer.RewardState{}, fmt.Errorf("answer %s: %w", answerID, ledger.ErrNotFound)
	}
	return st, nil
}

func (s *Store) ListEntriesByAccount(_ context.Context, accountID string, limit, offset int) ([]ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Entries are appended in creation order; walk backwards for newest first.
	var matched []ledger.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ToAccount == accountID {
			matched = append(matched, s.entries[i])
		}
	}

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]ledger.Entry, len(matched))
	copy(out, matched)
	return out, nil
}

// WithinTx serializes all atomic units behind the store mutex. Staged writes
// become visible only after fn returns nil.
func (s *Store) WithinTx(_ context.Context, fn func(storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		accounts: make(map[string]account.Account),
		rewards:  make(map[string]answer.RewardState),
		deleted:  make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memTx stages writes against the parent store. Reads observe staged state
// first, then the committed maps.
type memTx struct {
	store    *Store
	accounts map[string]account.Account
	rewards  map[string]answer.RewardState
	deleted  map[string]bool
	appended []ledger.Entry
}

var _ storage.Tx = (*memTx)(nil)

func (t *memTx) AccountForUpdate(_ context.Context, id string) (account.Account, error) {
	if acct, ok := t.accounts[id]; ok {
		return acct, nil
	}
	acct, ok := t.store.accounts[id]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	return acct, nil
}

func (t *memTx) SetBalance(ctx context.Context, id string, balance int64) error {
	if balance < 0 {
		return fmt.Errorf("account %s: negative balance %d: %w", id, balance, ledger.ErrTransactionAborted)
	}
	acct, err := t.AccountForUpdate(ctx, id)
	if err != nil {
		return err
	}
	acct.Balance = balance
	acct.UpdatedAt = time.Now().UTC()
	t.accounts[id] = acct
	return nil
}

func (t *memTx) AppendEntry(_ context.Context, entry ledger.Entry) (ledger.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	t.appended = append(t.appended, entry)
	return entry, nil
}

func (t *memTx) RewardStateForUpdate(_ context.Context, answerID string) (answer.RewardState, error) {
	if t.deleted[answerID] {
		return answer.RewardState{}, fmt.Errorf("answer %s: %w", answerID, ledger.ErrNotFound)
	}
	if st, ok := t.rewards[answerID]; ok {
		return st, nil
	}
	st, ok := t.store.rewards[answerID]
	if !ok {
		return answer.RewardState{}, fmt.Errorf("answer %s: %w", answerID, ledger.ErrNotFound)
	}
	return st, nil
}

func (t *memTx) PutRewardState(_ context.Context, st answer.RewardState) error {
	if !t.deleted[st.AnswerID] {
		if _, exists := t.rewards[st.AnswerID]; exists {
			return fmt.Errorf("answer %s already tracked", st.AnswerID)
		}
		if _, exists := t.store.rewards[st.AnswerID]; exists {
			return fmt.Errorf("answer %s already tracked", st.AnswerID)
		}
	}
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	delete(t.deleted, st.AnswerID)
	t.rewards[st.AnswerID] = st
	return nil
}

func (t *memTx) UpdateRewardState(ctx context.Context, st answer.RewardState) error {
	existing, err := t.RewardStateForUpdate(ctx, st.AnswerID)
	if err != nil {
		return err
	}
	st.CreatedAt = existing.CreatedAt
	st.UpdatedAt = time.Now().UTC()
	t.rewards[st.AnswerID] = st
	return nil
}

func (t *memTx) DeleteRewardState(ctx context.Context, answerID string) error {
	if _, err := t.RewardStateForUpdate(ctx, answerID); err != nil {
		return err
	}
	delete(t.rewards, answerID)
	t.deleted[answerID] = true
	return nil
}

func (t *memTx) commit() {
	for id, acct := range t.accounts {
		t.store.accounts[id] = acct
	}
	for id, st := range t.rewards {
		t.store.rewards[id] = st
	}
	for id := range t.deleted {
		delete(t.store.rewards, id)
	}
	t.store.entries = append(t.store.entries, t.appended...)
}
