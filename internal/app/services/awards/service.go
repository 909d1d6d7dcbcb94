// Package awards implements the fixed-size point deltas tied to the answer
// lifecycle, plus the credit/debit primitives shared with the milestone
// tracker.
package awards

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qahub/rewards/internal/app/domain/answer"
	"github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/metrics"
	"github.com/qahub/rewards/internal/app/storage"
	"github.com/qahub/rewards/pkg/logger"
)

// Service applies lifecycle rewards against the ledger store.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New constructs an award service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("awards")
	}
	return &Service{store: store, log: log}
}

// AwardForAnswerPosted credits the post reward and starts milestone tracking
// for the answer, all in one atomic unit. Returns the new balance.
//
// Callers treat a failure here as non-fatal for the surrounding "post an
// answer" action: log it, do not propagate to the end user.
func (s *Service) AwardForAnswerPosted(ctx context.Context, accountID, answerID, questionID string) (int64, error) {
	if err := requireIDs(accountID, answerID, questionID); err != nil {
		return 0, err
	}

	var balance int64
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		balance, err = Credit(ctx, tx, accountID, ledger.PostReward, ledger.Entry{
			ToAccount:       accountID,
			Reason:          ledger.ReasonAnswerPosted,
			RelatedAnswer:   answerID,
			RelatedQuestion: questionID,
		})
		if err != nil {
			return err
		}
		return tx.PutRewardState(ctx, answer.RewardState{
			AnswerID:     answerID,
			QuestionID:   questionID,
			OwnerAccount: accountID,
		})
	})
	if err != nil {
		return 0, err
	}

	s.log.WithField("account_id", accountID).
		WithField("answer_id", answerID).
		WithField("balance", balance).
		Info("answer post reward credited")
	return balance, nil
}

// DeductForAnswerRemoval claws back the post reward, plus the milestone bonus
// if the answer still held it, clamped so the balance never goes negative.
// The answer's reward record is consumed in the same atomic unit. Returns the
// new balance.
func (s *Service) DeductForAnswerRemoval(ctx context.Context, accountID, answerID, questionID string) (int64, error) {
	if err := requireIDs(accountID, answerID, questionID); err != nil {
		return 0, err
	}

	var balance int64
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		total := ledger.PostReward

		st, err := tx.RewardStateForUpdate(ctx, answerID)
		switch {
		case err == nil:
			if st.MilestoneAwarded {
				total += ledger.MilestoneBonus
			}
		case isNotFound(err):
			// Answer was never tracked; claw back the base reward only.
		default:
			return err
		}

		_, balance, err = DebitClamped(ctx, tx, accountID, total, ledger.Entry{
			ToAccount:       accountID,
			Reason:          ledger.ReasonAnswerDeleted,
			RelatedAnswer:   answerID,
			RelatedQuestion: questionID,
		})
		if err != nil {
			return err
		}

		if st.AnswerID != "" {
			return tx.DeleteRewardState(ctx, answerID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.WithField("account_id", accountID).
		WithField("answer_id", answerID).
		WithField("balance", balance).
		Info("answer removal deduction applied")
	return balance, nil
}

// Credit applies a positive delta to an account and appends the matching
// ledger entry in the same unit. Entry.Delta is filled from amount.
func Credit(ctx context.Context, tx storage.Tx, accountID string, amount int64, entry ledger.Entry) (int64, error) {
	acct, err := tx.AccountForUpdate(ctx, accountID)
	if err != nil {
		return 0, err
	}
	newBalance := acct.Balance + amount
	if err := tx.SetBalance(ctx, accountID, newBalance); err != nil {
		return 0, err
	}
	entry.Delta = amount
	if _, err := tx.AppendEntry(ctx, entry); err != nil {
		return 0, err
	}
	metrics.RecordEntry(string(entry.Reason))
	return newBalance, nil
}

// DebitClamped removes min(amount, balance) from an account and appends a
// ledger entry carrying the actual (negative) delta. Returns the clamped
// amount and the new balance.
func DebitClamped(ctx context.Context, tx storage.Tx, accountID string, amount int64, entry ledger.Entry) (actual, newBalance int64, err error) {
	acct, err := tx.AccountForUpdate(ctx, accountID)
	if err != nil {
		return 0, 0, err
	}
	actual = amount
	if actual > acct.Balance {
		actual = acct.Balance
	}
	newBalance = acct.Balance - actual
	if err := tx.SetBalance(ctx, accountID, newBalance); err != nil {
		return 0, 0, err
	}
	entry.Delta = -actual
	if _, err := tx.AppendEntry(ctx, entry); err != nil {
		return 0, 0, err
	}
	metrics.RecordEntry(string(entry.Reason))
	return actual, newBalance, nil
}

func requireIDs(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("blank identifier: %w", ledger.ErrValidation)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound)
}
