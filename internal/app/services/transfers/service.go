// Package transfers executes peer-to-peer point movement between accounts.
package transfers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qahub/rewards/internal/app/domain/account"
	"github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/events"
	"github.com/qahub/rewards/internal/app/metrics"
	"github.com/qahub/rewards/internal/app/storage"
	"github.com/qahub/rewards/pkg/logger"
)

// Service moves points between two accounts atomically.
type Service struct {
	store  storage.Store
	events events.Publisher
	log    *logger.Logger
}

// New constructs a transfer service. A nil publisher disables events.
func New(store storage.Store, publisher events.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("transfers")
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{store: store, events: publisher, log: log}
}

// Transfer debits the sender and credits the recipient in one atomic unit,
// writing one ledger entry per side. The sender's pre-transfer balance must
// strictly exceed the retention floor and cover the amount. Returns both
// updated balances.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount int64) (senderBalance, recipientBalance int64, err error) {
	if strings.TrimSpace(fromID) == "" || strings.TrimSpace(toID) == "" {
		return 0, 0, fmt.Errorf("blank account id: %w", ledger.ErrValidation)
	}
	if fromID == toID {
		return 0, 0, fmt.Errorf("self-transfer: %w", ledger.ErrValidation)
	}
	if amount < 1 {
		return 0, 0, fmt.Errorf("amount must be at least 1: %w", ledger.ErrValidation)
	}

	err = s.store.WithinTx(ctx, func(tx storage.Tx) error {
		// Lock both rows in ID order so concurrent transfers between the
		// same pair cannot deadlock.
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}
		locked := make(map[string]account.Account, 2)
		for _, id := range []string{first, second} {
			acct, err := tx.AccountForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = acct
		}
		sender, recipient := locked[fromID], locked[toID]

		if sender.Balance <= ledger.TransferMinRetained {
			return fmt.Errorf("balance %d does not exceed the %d point floor: %w",
				sender.Balance, ledger.TransferMinRetained, ledger.ErrInsufficientFunds)
		}
		if amount > sender.Balance {
			return fmt.Errorf("amount %d exceeds balance %d: %w",
				amount, sender.Balance, ledger.ErrInsufficientFunds)
		}

		senderBalance = sender.Balance - amount
		recipientBalance = recipient.Balance + amount
		if err := tx.SetBalance(ctx, fromID, senderBalance); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, toID, recipientBalance); err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.AppendEntry(ctx, ledger.Entry{
			FromAccount: &toID,
			ToAccount:   fromID,
			Delta:       -amount,
			Reason:      ledger.ReasonTransferSent,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		_, err := tx.AppendEntry(ctx, ledger.Entry{
			FromAccount: &fromID,
			ToAccount:   toID,
			Delta:       amount,
			Reason:      ledger.ReasonTransferReceived,
			CreatedAt:   now,
		})
		return err
	})
	if err != nil {
		status := "error"
		if isRejected(err) {
			status = "rejected"
		}
		metrics.RecordTransfer(status)
		return 0, 0, err
	}

	metrics.RecordTransfer("ok")
	metrics.RecordEntry(string(ledger.ReasonTransferSent))
	metrics.RecordEntry(string(ledger.ReasonTransferReceived))
	s.log.WithField("from", fromID).
		WithField("to", toID).
		WithField("amount", amount).
		Info("transfer completed")

	if pubErr := s.events.Publish(ctx, events.TopicTransferCompleted, events.TransferCompleted{
		FromAccount:      fromID,
		ToAccount:        toID,
		Amount:           amount,
		SenderBalance:    senderBalance,
		RecipientBalance: recipientBalance,
		OccurredAt:       time.Now().UTC(),
	}); pubErr != nil {
		s.log.WithError(pubErr).Warn("transfer event publish failed")
	}

	return senderBalance, recipientBalance, nil
}

func isRejected(err error) bool {
	return errors.Is(err, ledger.ErrInsufficientFunds) ||
		errors.Is(err, ledger.ErrValidation) ||
		errors.Is(err, ledger.ErrNotFound)
}
