// Package app wires the reward ledger services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/qahub/rewards/internal/app/events"
	"github.com/qahub/rewards/internal/app/services/accounts"
	"github.com/qahub/rewards/internal/app/services/awards"
	ledgersvc "github.com/qahub/rewards/internal/app/services/ledger"
	"github.com/qahub/rewards/internal/app/services/milestones"
	"github.com/qahub/rewards/internal/app/services/transfers"
	"github.com/qahub/rewards/internal/app/storage"
	"github.com/qahub/rewards/internal/app/storage/memory"
	"github.com/qahub/rewards/internal/app/system"
	"github.com/qahub/rewards/pkg/logger"
)

// Stores encapsulates persistence dependencies. A nil store defaults to the
// in-memory implementation.
type Stores struct {
	Data storage.Store
}

// Application ties the reward engines together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Accounts   *accounts.Service
	Awards     *awards.Service
	Milestones *milestones.Service
	Transfers  *transfers.Service
	Ledger     *ledgersvc.Service
}

// New builds a fully initialised application with the provided stores. A nil
// publisher disables domain events.
func New(stores Stores, publisher events.Publisher, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Data == nil {
		stores.Data = memory.New()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}

	manager := system.NewManager()
	for _, name := range []string{"accounts", "awards", "milestones", "transfers", "ledger"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Accounts:   accounts.New(stores.Data, log),
		Awards:     awards.New(stores.Data, log),
		Milestones: milestones.New(stores.Data, publisher, log),
		Transfers:  transfers.New(stores.Data, publisher, log),
		Ledger:     ledgersvc.New(stores.Data, log),
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
