package ledger

import "errors"

// Error taxonomy shared by the reward engines. Services wrap these with
// context via fmt.Errorf("...: %w", ...); callers match with errors.Is.
var (
	// ErrValidation marks malformed identifiers, non-positive amounts and
	// self-transfers. Raised before any mutation is attempted.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing account or answer reward record.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds marks a transfer rejected by the balance rules.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransactionAborted marks a store-level conflict or I/O failure that
	// rolled an atomic unit back with zero effect.
	ErrTransactionAborted = errors.New("transaction aborted")
)
