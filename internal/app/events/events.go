// Package events defines the domain events emitted after an atomic unit
// commits, and the publisher abstraction used to deliver them.
package events

import (
	"context"
	"time"
)

// Topics carrying reward ledger events.
const (
	TopicTransferCompleted = "transfer.completed"
	TopicMilestoneAwarded  = "milestone.awarded"
	TopicMilestoneRevoked  = "milestone.revoked"
)

// Publisher delivers an event to a topic. Delivery is best-effort: callers
// log failures and never roll back the committed operation.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Noop discards all events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

// TransferCompleted is emitted after a peer-to-peer transfer commits.
type TransferCompleted struct {
	FromAccount      string    `json:"from_account"`
	ToAccount        string    `json:"to_account"`
	Amount           int64     `json:"amount"`
	SenderBalance    int64     `json:"sender_balance"`
	RecipientBalance int64     `json:"recipient_balance"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// MilestoneAwarded is emitted when an answer crosses the upvote milestone.
type MilestoneAwarded struct {
	QuestionID   string    `json:"question_id"`
	AnswerID     string    `json:"answer_id"`
	OwnerAccount string    `json:"owner_account"`
	Bonus        int64     `json:"bonus"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// MilestoneRevoked is emitted when a previously awarded answer falls back
// below the milestone. Amount is the clamped claw-back actually applied.
type MilestoneRevoked struct {
	QuestionID   string    `json:"question_id"`
	AnswerID     string    `json:"answer_id"`
	OwnerAccount string    `json:"owner_account"`
	Amount       int64     `json:"amount"`
	OccurredAt   time.Time `json:"occurred_at"`
}
