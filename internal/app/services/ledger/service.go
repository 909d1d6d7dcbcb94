// Package ledger exposes the read-only balance and history queries.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qahub/rewards/internal/app/domain/account"
	domain "github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/storage"
	"github.com/qahub/rewards/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// StatementLine is one history row prepared for display: the counterparty is
// resolved to a name, "system" for platform-originated rewards.
type StatementLine struct {
	ID          string        `json:"id"`
	Counterpart string        `json:"counterpart"`
	Delta       int64         `json:"delta"`
	Reason      domain.Reason `json:"reason"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Service answers balance and history queries. Pure reads, no transaction.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New constructs the query service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{store: store, log: log}
}

// Balance returns the account with its current balance.
func (s *Service) Balance(ctx context.Context, accountID string) (account.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return account.Account{}, fmt.Errorf("blank account id: %w", domain.ErrValidation)
	}
	return s.store.GetAccount(ctx, accountID)
}

// History returns the account's ledger entries newest first. Page is
// 1-based; limit is clamped to [1, 100] with a default of 20.
func (s *Service) History(ctx context.Context, accountID string, limit, page int) ([]StatementLine, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("blank account id: %w", domain.ErrValidation)
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page < 1 {
		page = 1
	}

	entries, err := s.store.ListEntriesByAccount(ctx, accountID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	lines := make([]StatementLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, StatementLine{
			ID:          e.ID,
			Counterpart: s.counterpart(ctx, names, e.FromAccount),
			Delta:       e.Delta,
			Reason:      e.Reason,
			CreatedAt:   e.CreatedAt,
		})
	}
	return lines, nil
}

func (s *Service) counterpart(ctx context.Context, cache map[string]string, id *string) string {
	if id == nil {
		return "system"
	}
	if name, ok := cache[*id]; ok {
		return name
	}
	name := *id
	if acct, err := s.store.GetAccount(ctx, *id); err == nil && acct.DisplayName != "" {
		name = acct.DisplayName
	}
	cache[*id] = name
	return name
}
