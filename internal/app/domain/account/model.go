package account

import "time"

// Account holds the point balance for a single user of the platform. The
// balance is owned exclusively by the ledger engines; nothing else writes it.
type Account struct {
	ID          string
	DisplayName string
	Balance     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
