package models

import (
	"time"

	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
)

// Params bound the scoring engine. Copied from config once at startup and
// passed by value; a later config change never rewrites history.
type Params struct {
	BaseScore    int64
	MinScore     int64
	MaxScore     int64
	DecayRateBps int64
}

// DefaultParams matches the product defaults: scores in [0,1000], everyone
// starts at 500, decay of 0.1% of current score per elapsed day.
var DefaultParams = Params{
	BaseScore:    500,
	MinScore:     0,
	MaxScore:     1000,
	DecayRateBps: 10,
}

// Bounds on the free-text fields of a reputation challenge.
const (
	MaxChallengeReasonLen = 256
	MaxChallengeURILen    = 256
)

// Score is the aggregate root for an identity's reputation.
//
// Invariants:
//   - MinScore <= Value <= MaxScore after every operation, decay included
//   - Tier is always TierFor(Value); it is never set independently
//   - counters and cumulative totals only grow
type Score struct {
	IdentityID         id.IdentityID `json:"identity_id"`
	Value              int64         `json:"score"`
	Tier               Tier          `json:"tier"`
	PositiveEvents     uint64        `json:"positive_events"`
	NegativeEvents     uint64        `json:"negative_events"`
	PointsEarned       uint64        `json:"points_earned"`
	PointsLost         uint64        `json:"points_lost"`
	ChallengesReceived uint64        `json:"challenges_received"`
	ChallengesWon      uint64        `json:"challenges_won"`
	LastDecayAt        time.Time     `json:"last_decay_at"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func NewScore(identityID id.IdentityID, params Params, now time.Time) (*Score, error) {
	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "score requires an identity")
	}
	if params.MinScore > params.MaxScore || params.BaseScore < params.MinScore || params.BaseScore > params.MaxScore {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "score bounds are inconsistent")
	}
	return &Score{
		IdentityID:  identityID,
		Value:       params.BaseScore,
		Tier:        TierFor(params.BaseScore),
		LastDecayAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyEvent adds the event's point delta, clamps to bounds, updates the
// counters and recomputes the tier. Returns the applied delta (pre-clamp).
func (s *Score) ApplyEvent(eventType EventType, params Params, now time.Time) (int64, error) {
	delta, err := eventType.Delta()
	if err != nil {
		return 0, err
	}

	s.Value = clamp(s.Value+delta, params.MinScore, params.MaxScore)
	if delta >= 0 {
		s.PositiveEvents++
		s.PointsEarned += uint64(delta)
	} else {
		s.NegativeEvents++
		s.PointsLost += uint64(-delta)
	}
	s.Tier = TierFor(s.Value)
	s.UpdatedAt = now
	return delta, nil
}

// ApplyDecay reduces the score by floor(score*rate/10000*days) and stamps the
// decay window. Decay never raises the score; callers pass days elapsed since
// LastDecayAt, not since creation, so repeating a window does not double-bill.
func (s *Score) ApplyDecay(daysElapsed int64, params Params, now time.Time) (int64, error) {
	if daysElapsed < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "days elapsed cannot be negative")
	}
	if daysElapsed == 0 {
		return 0, nil
	}

	decay := s.Value * params.DecayRateBps * daysElapsed / 10_000
	s.Value = clamp(s.Value-decay, params.MinScore, params.MaxScore)
	s.Tier = TierFor(s.Value)
	s.LastDecayAt = now
	s.UpdatedAt = now
	return decay, nil
}

// RecordChallenge notes a dispute opened against this score. The score
// itself moves only at resolution.
func (s *Score) RecordChallenge(now time.Time) {
	s.ChallengesReceived++
	s.UpdatedAt = now
}

// ResolveChallenge settles a dispute. A challenge the identity wins bumps
// the win counter and leaves the score alone; a lost one costs the penalty,
// clamped at the floor.
func (s *Score) ResolveChallenge(won bool, penalty int64, params Params, now time.Time) error {
	if penalty < 0 {
		return dErrors.New(dErrors.CodeValidation, "challenge penalty cannot be negative")
	}
	if won {
		s.ChallengesWon++
	} else {
		s.Value = clamp(s.Value-penalty, params.MinScore, params.MaxScore)
		s.Tier = TierFor(s.Value)
		s.PointsLost += uint64(penalty)
	}
	s.UpdatedAt = now
	return nil
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
