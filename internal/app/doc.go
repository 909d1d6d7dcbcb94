// Package app composes the reward ledger into a running application.
//
// It is a composition layer, not a business logic layer: services under
// internal/app/services/ own the rules, this package wires them to storage,
// events and metrics and manages their lifecycle.
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── account/        # Accounts and balances
//	│   ├── answer/         # Per-answer reward state
//	│   └── ledger/         # Ledger entries, reasons, tariffs, errors
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go   # Store and Tx contracts
//	│   ├── memory/         # In-memory implementation for tests
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic (accounts, awards, milestones,
//	│                       # transfers, ledger queries)
//	├── httpapi/            # HTTP handlers, routing, middleware
//	├── events/             # Event publishing (Kafka or no-op)
//	├── metrics/            # Prometheus collectors
//	└── system/             # Service lifecycle management
//
// Dependency direction: cmd/server -> internal/app -> services -> storage.
// Services never import httpapi; httpapi never touches storage directly.
package app
