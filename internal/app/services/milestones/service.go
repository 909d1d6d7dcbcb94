// Package milestones converts net-upvote threshold crossings into the
// reversible milestone bonus. The per-answer flag is a two-state machine
// guarded by the store transaction, so racing triggers serialize and
// duplicates become no-ops.
package milestones

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qahub/rewards/internal/app/domain/answer"
	"github.com/qahub/rewards/internal/app/domain/ledger"
	"github.com/qahub/rewards/internal/app/events"
	"github.com/qahub/rewards/internal/app/metrics"
	"github.com/qahub/rewards/internal/app/services/awards"
	"github.com/qahub/rewards/internal/app/storage"
	"github.com/qahub/rewards/pkg/logger"
)

// Transition reports what a vote change did to the milestone state.
type Transition string

const (
	TransitionNone    Transition = "none"
	TransitionAwarded Transition = "awarded"
	TransitionRevoked Transition = "revoked"
)

// Service tracks the milestone state machine per answer.
type Service struct {
	store  storage.Store
	events events.Publisher
	log    *logger.Logger
}

// New constructs a milestone tracker. A nil publisher disables events.
func New(store storage.Store, publisher events.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("milestones")
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{store: store, events: publisher, log: log}
}

// HandleVoteChange is the entry point for the vote-mutation collaborator,
// called once per persisted vote toggle with the net tally immediately
// before and after it. The new tally and any resulting award or revoke
// commit in one atomic unit.
func (s *Service) HandleVoteChange(ctx context.Context, questionID, answerID string, before, after int) (Transition, error) {
	if err := requireIDs(questionID, answerID); err != nil {
		return TransitionNone, err
	}

	up := before < ledger.MilestoneThreshold && after >= ledger.MilestoneThreshold
	down := before >= ledger.MilestoneThreshold && after < ledger.MilestoneThreshold

	return s.transition(ctx, questionID, answerID, &after, up, down)
}

// CheckAndAward awards the bonus if the answer's current tally has reached
// the threshold and the bonus is not already held. Idempotent: a second call
// while awarded returns false with no side effects.
func (s *Service) CheckAndAward(ctx context.Context, questionID, answerID string) (bool, error) {
	if err := requireIDs(questionID, answerID); err != nil {
		return false, err
	}
	tr, err := s.transition(ctx, questionID, answerID, nil, true, false)
	return tr == TransitionAwarded, err
}

// Revoke claws the bonus back (clamped at the owner's balance) if the
// answer's current tally is below the threshold and the bonus is held.
func (s *Service) Revoke(ctx context.Context, questionID, answerID string) (bool, error) {
	if err := requireIDs(questionID, answerID); err != nil {
		return false, err
	}
	tr, err := s.transition(ctx, questionID, answerID, nil, false, true)
	return tr == TransitionRevoked, err
}

func (s *Service) transition(ctx context.Context, questionID, answerID string, tally *int, allowAward, allowRevoke bool) (Transition, error) {
	result := TransitionNone
	var (
		st      answer.RewardState
		clawed  int64
		balance int64
	)

	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		st, err = tx.RewardStateForUpdate(ctx, answerID)
		if err != nil {
			return err
		}
		if tally != nil {
			st.NetUpvotes = *tally
		}

		switch {
		case allowAward && st.NetUpvotes >= ledger.MilestoneThreshold && !st.MilestoneAwarded:
			balance, err = awards.Credit(ctx, tx, st.OwnerAccount, ledger.MilestoneBonus, ledger.Entry{
				ToAccount:       st.OwnerAccount,
				Reason:          ledger.ReasonUpvoteMilestone,
				RelatedAnswer:   answerID,
				RelatedQuestion: questionID,
			})
			if err != nil {
				return err
			}
			st.MilestoneAwarded = true
			result = TransitionAwarded

		case allowRevoke && st.NetUpvotes < ledger.MilestoneThreshold && st.MilestoneAwarded:
			clawed, balance, err = awards.DebitClamped(ctx, tx, st.OwnerAccount, ledger.MilestoneBonus, ledger.Entry{
				ToAccount:       st.OwnerAccount,
				Reason:          ledger.ReasonMilestoneRevoked,
				RelatedAnswer:   answerID,
				RelatedQuestion: questionID,
			})
			if err != nil {
				return err
			}
			st.MilestoneAwarded = false
			result = TransitionRevoked
		}

		return tx.UpdateRewardState(ctx, st)
	})
	if err != nil {
		return TransitionNone, err
	}

	switch result {
	case TransitionAwarded:
		metrics.RecordMilestone(string(TransitionAwarded))
		s.log.WithField("answer_id", answerID).
			WithField("owner", st.OwnerAccount).
			WithField("balance", balance).
			Info("milestone bonus awarded")
		s.publish(ctx, events.TopicMilestoneAwarded, events.MilestoneAwarded{
			QuestionID:   questionID,
			AnswerID:     answerID,
			OwnerAccount: st.OwnerAccount,
			Bonus:        ledger.MilestoneBonus,
			OccurredAt:   time.Now().UTC(),
		})
	case TransitionRevoked:
		metrics.RecordMilestone(string(TransitionRevoked))
		s.log.WithField("answer_id", answerID).
			WithField("owner", st.OwnerAccount).
			WithField("amount", clawed).
			Info("milestone bonus revoked")
		s.publish(ctx, events.TopicMilestoneRevoked, events.MilestoneRevoked{
			QuestionID:   questionID,
			AnswerID:     answerID,
			OwnerAccount: st.OwnerAccount,
			Amount:       clawed,
			OccurredAt:   time.Now().UTC(),
		})
	}

	return result, nil
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.events.Publish(ctx, topic, event); err != nil {
		s.log.WithError(err).WithField("topic", topic).Warn("event publish failed")
	}
}

func requireIDs(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("blank identifier: %w", ledger.ErrValidation)
		}
	}
	return nil
}
