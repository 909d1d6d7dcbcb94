package ledger

// Point tariff of the reward system.
const (
	// PostReward is credited when an answer is posted.
	PostReward int64 = 5
	// MilestoneBonus is credited when an answer crosses the upvote
	// milestone, and clawed back (clamped) when it falls below again.
	MilestoneBonus int64 = 5
	// TransferMinRetained is the floor a sender's pre-transfer balance must
	// strictly exceed before any transfer is allowed.
	TransferMinRetained int64 = 10
)

// MilestoneThreshold is the net upvote tally at which the bonus is held.
const MilestoneThreshold = 5
