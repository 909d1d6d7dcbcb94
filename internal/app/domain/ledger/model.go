// Package ledger defines the append-only audit log for point-affecting events
// and the shared error taxonomy of the reward engines.
package ledger

import "time"

// Reason classifies what a ledger entry records.
type Reason string

const (
	ReasonAnswerPosted     Reason = "answer_posted"
	ReasonUpvoteMilestone  Reason = "upvote_milestone"
	ReasonMilestoneRevoked Reason = "upvote_milestone_revoked"
	ReasonAnswerDeleted    Reason = "answer_deleted"
	ReasonTransferSent     Reason = "transfer_sent"
	ReasonTransferReceived Reason = "transfer_received"
)

// Valid reports whether the reason is one of the known values.
func (r Reason) Valid() bool {
	switch r {
	case ReasonAnswerPosted, ReasonUpvoteMilestone, ReasonMilestoneRevoked,
		ReasonAnswerDeleted, ReasonTransferSent, ReasonTransferReceived:
		return true
	}
	return false
}

// Entry is one immutable row of the audit log. ToAccount is always the
// account whose balance the row changed; FromAccount is the counterparty for
// transfer rows and nil for system-originated rows.
type Entry struct {
	ID              string
	FromAccount     *string
	ToAccount       string
	Delta           int64
	Reason          Reason
	RelatedAnswer   string
	RelatedQuestion string
	CreatedAt       time.Time
}
