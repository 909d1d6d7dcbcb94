// Package accounts handles registration-time account creation and lookup.
package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/qahub/rewards/internal/app/domain/account"
	"github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/storage"
	"github.com/qahub/rewards/pkg/logger"
)

// Service manages account records. Balances start at zero and are only ever
// mutated by the reward engines.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New constructs an account service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{store: store, log: log}
}

// Create registers a new account with a zero balance.
func (s *Service) Create(ctx context.Context, displayName string) (account.Account, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return account.Account{}, fmt.Errorf("display name is required: %w", ledger.ErrValidation)
	}

	acct, err := s.store.CreateAccount(ctx, account.Account{DisplayName: displayName})
	if err != nil {
		return account.Account{}, err
	}
	s.log.WithField("account_id", acct.ID).Info("account created")
	return acct, nil
}

// Get returns an account by ID.
func (s *Service) Get(ctx context.Context, id string) (account.Account, error) {
	if strings.TrimSpace(id) == "" {
		return account.Account{}, fmt.Errorf("blank account id: %w", ledger.ErrValidation)
	}
	return s.store.GetAccount(ctx, id)
}
