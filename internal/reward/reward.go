// CLAUDE:SUMMARY Reward & reputation rules — decimal reward computation, outcome deltas, 0..100 clamping, atomic application through the store
package reward

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"github.com/hazyhaar/proofmine/internal/db"
)

const (
	AcceptedDelta = 5
	RejectedDelta = -2
	FailedDelta   = -1

	FailedReason = "Verification failed"
)

// Change is a requested reputation adjustment.
type Change struct {
	EventType string
	Delta     int
	Reason    string
}

// ForVerdict returns the change for a completed verification.
func ForVerdict(isValid bool, feedback string) Change {
	if isValid {
		return Change{EventType: db.EventSubmissionAccepted, Delta: AcceptedDelta, Reason: feedback}
	}
	return Change{EventType: db.EventSubmissionRejected, Delta: RejectedDelta, Reason: feedback}
}

// ForFailure returns the change for a verification that failed.
func ForFailure() Change {
	return Change{EventType: db.EventSubmissionRejected, Delta: FailedDelta, Reason: FailedReason}
}

// Compute returns rewardPerSubmission * aiScore. The score is used as given.
// Non-finite inputs yield 0.
func Compute(rewardPerSubmission, aiScore float64) float64 {
	if !finite(rewardPerSubmission) || !finite(aiScore) {
		return 0
	}
	r := decimal.NewFromFloat(rewardPerSubmission).Mul(decimal.NewFromFloat(aiScore))
	f, _ := r.Float64()
	return f
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Clamp returns old+delta bounded to the reputation range.
func Clamp(old, delta int) int {
	return min(max(old+delta, db.MinReputation), db.MaxReputation)
}

// Store is the part of db.Store the engine writes through.
type Store interface {
	ApplyReputation(ctx context.Context, c db.ReputationChange) (*db.ReputationEvent, error)
}

// Engine applies rewards and reputation changes.
type Engine struct {
	store      Store
	clampScore bool
	logger     *slog.Logger
}

type Option func(*Engine)

// WithScoreClamp bounds the judge score to [0,1] before computing rewards.
func WithScoreClamp(on bool) Option {
	return func(e *Engine) { e.clampScore = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Reward computes the reward for a score. Out-of-range scores are logged
// and, unless score clamping is on, passed through unchanged.
func (e *Engine) Reward(rewardPerSubmission, aiScore float64) float64 {
	if !finite(aiScore) {
		e.logger.Warn("judge score is not finite, no reward", "score", aiScore)
		return 0
	}
	if aiScore < 0 || aiScore > 1 {
		e.logger.Warn("judge score outside [0,1]", "score", aiScore, "clamped", e.clampScore)
		if e.clampScore {
			aiScore = min(max(aiScore, 0), 1)
		}
	}
	return Compute(rewardPerSubmission, aiScore)
}

// Apply records change for the user in one atomic storage step and returns
// the stored event with old and new scores.
func (e *Engine) Apply(ctx context.Context, userID, submissionID string, change Change) (*db.ReputationEvent, error) {
	ev, err := e.store.ApplyReputation(ctx, db.ReputationChange{
		UserID:       userID,
		SubmissionID: submissionID,
		EventType:    change.EventType,
		Reason:       change.Reason,
		Delta:        change.Delta,
		Next:         func(old int) int { return Clamp(old, change.Delta) },
	})
	if err != nil {
		return nil, fmt.Errorf("applying reputation %+d to %s: %w", change.Delta, userID, err)
	}
	return ev, nil
}
