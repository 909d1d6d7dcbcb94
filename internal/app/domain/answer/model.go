package answer

import "time"

// RewardState tracks the milestone bonus for a single answer: the latest net
// upvote tally reported by the vote collaborator and whether the bonus is
// currently held. The flag is a two-state machine, not a counter.
type RewardState struct {
	AnswerID         string
	QuestionID       string
	OwnerAccount     string
	NetUpvotes       int
	MilestoneAwarded bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
