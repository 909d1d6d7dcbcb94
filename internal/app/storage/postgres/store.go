// Package postgres implements the storage interfaces on PostgreSQL using
// database/sql with row-level locking for the atomic units.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/qahub/rewards/internal/app/domain/account"
	"github.com/qahub/rewards/internal/app/domain/answer"
	"github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/storage"
)

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, display_name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, acct.ID, acct.DisplayName, acct.Balance, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, display_name, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id), id)
}

func (s *Store) GetRewardState(ctx context.Context, answerID string) (answer.RewardState, error) {
	return scanRewardState(s.db.QueryRowContext(ctx, `
		SELECT answer_id, question_id, owner_account, net_upvotes, milestone_awarded, created_at, updated_at
		FROM answer_rewards
		WHERE answer_id = $1
	`, answerID), answerID)
}

func (s *Store) ListEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_account, to_account, delta, reason, related_answer, related_question, created_at
		FROM ledger_entries
		WHERE to_account = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e    ledger.Entry
			from sql.NullString
		)
		if err := rows.Scan(&e.ID, &from, &e.ToAccount, &e.Delta, &e.Reason,
			&e.RelatedAnswer, &e.RelatedQuestion, &e.CreatedAt); err != nil {
			return nil, err
		}
		if from.Valid {
			e.FromAccount = &from.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// WithinTx runs fn inside a database transaction. Row locks taken through the
// Tx reads serialize concurrent units; conflicts and commit failures surface
// as ledger.ErrTransactionAborted.
func (s *Store) WithinTx(ctx context.Context, fn func(storage.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %v: %w", err, ledger.ErrTransactionAborted)
	}

	if err := fn(&pgTx{tx: dbTx}); err != nil {
		_ = dbTx.Rollback()
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit: %v: %w", err, ledger.ErrTransactionAborted)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

var _ storage.Tx = (*pgTx)(nil)

func (t *pgTx) AccountForUpdate(ctx context.Context, id string) (account.Account, error) {
	return scanAccount(t.tx.QueryRowContext(ctx, `
		SELECT id, display_name, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id), id)
}

func (t *pgTx) SetBalance(ctx context.Context, id string, balance int64) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $2, updated_at = $3
		WHERE id = $1
	`, id, balance, time.Now().UTC())
	if err != nil {
		return txErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

func (t *pgTx) AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var from sql.NullString
	if entry.FromAccount != nil {
		from = sql.NullString{String: *entry.FromAccount, Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, from_account, to_account, delta, reason, related_answer, related_question, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, from, entry.ToAccount, entry.Delta, string(entry.Reason),
		entry.RelatedAnswer, entry.RelatedQuestion, entry.CreatedAt)
	if err != nil {
		return ledger.Entry{}, txErr(err)
	}
	return entry, nil
}

func (t *pgTx) RewardStateForUpdate(ctx context.Context, answerID string) (answer.RewardState, error) {
	return scanRewardState(t.tx.QueryRowContext(ctx, `
		SELECT answer_id, question_id, owner_account, net_upvotes, milestone_awarded, created_at, updated_at
		FROM answer_rewards
		WHERE answer_id = $1
		FOR UPDATE
	`, answerID), answerID)
}

func (t *pgTx) PutRewardState(ctx context.Context, st answer.RewardState) error {
	now := time.Now().UTC()
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO answer_rewards (answer_id, question_id, owner_account, net_upvotes, milestone_awarded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, st.AnswerID, st.QuestionID, st.OwnerAccount, st.NetUpvotes, st.MilestoneAwarded, now, now)
	return txErr(err)
}

func (t *pgTx) UpdateRewardState(ctx context.Context, st answer.RewardState) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE answer_rewards
		SET net_upvotes = $2, milestone_awarded = $3, updated_at = $4
		WHERE answer_id = $1
	`, st.AnswerID, st.NetUpvotes, st.MilestoneAwarded, time.Now().UTC())
	if err != nil {
		return txErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("answer %s: %w", st.AnswerID, ledger.ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeleteRewardState(ctx context.Context, answerID string) error {
	result, err := t.tx.ExecContext(ctx, `
		DELETE FROM answer_rewards
		WHERE answer_id = $1
	`, answerID)
	if err != nil {
		return txErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("answer %s: %w", answerID, ledger.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, id string) (account.Account, error) {
	var acct account.Account
	err := row.Scan(&acct.ID, &acct.DisplayName, &acct.Balance, &acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

func scanRewardState(row rowScanner, answerID string) (answer.RewardState, error) {
	var st answer.RewardState
	err := row.Scan(&st.AnswerID, &st.QuestionID, &st.OwnerAccount,
		&st.NetUpvotes, &st.MilestoneAwarded, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return answer.RewardState{}, fmt.Errorf("answer %s: %w", answerID, ledger.ErrNotFound)
	}
	if err != nil {
		return answer.RewardState{}, err
	}
	return st, nil
}

// txErr maps driver failures inside an atomic unit onto the shared taxonomy.
// Serialization and deadlock SQLSTATEs are retryable conflicts; everything
// else is still an abort from the caller's point of view.
func txErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("conflict: %v: %w", err, ledger.ErrTransactionAborted)
		case "23514": // balance CHECK violation
			return fmt.Errorf("balance constraint: %v: %w", err, ledger.ErrTransactionAborted)
		}
	}
	return fmt.Errorf("%v: %w", err, ledger.ErrTransactionAborted)
}
