// CLAUDE:SUMMARY Submission lifecycle — pending insert, one verification per submission, terminal write, reward and reputation, audit trail
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/proofmine/internal/db"
	"github.com/hazyhaar/proofmine/internal/reward"
	"github.com/hazyhaar/proofmine/internal/verify"
	"github.com/hazyhaar/proofmine/pkg/audit"
)

var (
	ErrTaskClosed = errors.New("task is not accepting submissions")
	ErrTaskFull   = db.ErrTaskFull
)

// Observer receives pipeline measurements. The metrics package implements it.
type Observer interface {
	ObserveVerification(mode, outcome string, d time.Duration)
	ObserveReputation(eventType string)
	ObserveReward(amount float64)
}

type nopObserver struct{}

func (nopObserver) ObserveVerification(string, string, time.Duration) {}
func (nopObserver) ObserveReputation(string)                          {}
func (nopObserver) ObserveReward(float64)                             {}

// Input is a miner's submission for a task.
type Input struct {
	TaskID string
	UserID string
	Data   map[string]any
}

// Outcome is the terminal state reached by one submission. Err is set,
// and Result nil, when verification failed.
type Outcome struct {
	Submission *db.Submission
	Result     *verify.Result
	Reputation *db.ReputationEvent
	Err        error
}

func (o *Outcome) Failed() bool { return o.Err != nil }

type Manager struct {
	store    db.Store
	verifier verify.Verifier
	rewards  *reward.Engine
	audit    audit.Logger
	observer Observer
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Manager)

func WithAudit(l audit.Logger) Option { return func(m *Manager) { m.audit = l } }

func WithObserver(o Observer) Option { return func(m *Manager) { m.observer = o } }

// WithTimeout sets the judge budget for every verification.
func WithTimeout(d time.Duration) Option { return func(m *Manager) { m.timeout = d } }

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(store db.Store, verifier verify.Verifier, rewards *reward.Engine, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		verifier: verifier,
		rewards:  rewards,
		audit:    audit.Nop{},
		observer: nopObserver{},
		timeout:  verify.DefaultTimeout,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Mode() string { return m.verifier.Mode() }

// Submit records a pending submission and drives it to a terminal state.
func (m *Manager) Submit(ctx context.Context, in Input) (*Outcome, error) {
	task, err := m.store.GetTask(ctx, in.TaskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", in.TaskID, err)
	}
	if task.Status != db.TaskStatusActive {
		return nil, ErrTaskClosed
	}
	if task.MaxSubmissions != nil && task.CurrentSubmissionCount >= *task.MaxSubmissions {
		return nil, ErrTaskFull
	}

	sub := &db.Submission{TaskID: task.ID, UserID: in.UserID, SubmissionData: in.Data}
	if err := m.store.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}
	m.logger.Info("submission received", "submission_id", sub.ID, "task_id", task.ID, "user_id", in.UserID)

	return m.drive(ctx, task, sub)
}

// Verify drives a submission that is still pending, e.g. one left behind
// by a crash. A terminal submission yields db.ErrAlreadyTerminal and the
// judge is not consulted.
func (m *Manager) Verify(ctx context.Context, submissionID string) (*Outcome, error) {
	sub, err := m.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Terminal() {
		return nil, db.ErrAlreadyTerminal
	}
	task, err := m.store.GetTask(ctx, sub.TaskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", sub.TaskID, err)
	}
	return m.drive(ctx, task, sub)
}

func (m *Manager) drive(ctx context.Context, task *db.Task, sub *db.Submission) (*Outcome, error) {
	start := m.now()
	res, verr := m.verifier.Verify(ctx, verify.Request{
		SubmissionID: sub.ID,
		TaskID:       task.ID,
		TaskType:     task.TaskType,
		Instructions: task.Instructions,
		MinerOutput:  sub.SubmissionData,
		Criteria:     task.VerificationCriteria,
		Timeout:      m.timeout,
	})
	elapsed := m.now().Sub(start)

	// The terminal write must land even if the caller went away while the
	// judge was thinking.
	ctx = context.WithoutCancel(ctx)

	if verr != nil {
		m.observer.ObserveVerification(m.verifier.Mode(), "failed", elapsed)
		return m.fail(ctx, sub, verr, elapsed)
	}
	m.observer.ObserveVerification(m.verifier.Mode(), outcomeLabel(res.IsValid), elapsed)
	return m.complete(ctx, task, sub, res)
}

func (m *Manager) complete(ctx context.Context, task *db.Task, sub *db.Submission, res *verify.Result) (*Outcome, error) {
	amount := m.rewards.Reward(task.RewardPerSubmission, res.AIScore)

	done, err := m.store.CompleteSubmission(ctx, db.Completion{
		SubmissionID:       sub.ID,
		AIScore:            res.AIScore,
		IsValid:            res.IsValid,
		Feedback:           res.Feedback,
		RewardEarned:       amount,
		ModelUsed:          res.ModelUsed,
		VerificationTimeMs: res.ExecutionTimeMs,
		VerificationMode:   res.Mode,
		VerifiedAt:         res.VerifiedAt,
	})
	if err != nil {
		m.logger.Error("completing submission", "submission_id", sub.ID, "error", err)
		return nil, fmt.Errorf("completing submission %s: %w", sub.ID, err)
	}
	m.observer.ObserveReward(amount)

	out := &Outcome{Submission: done, Result: res}
	m.audit.LogAsync(&audit.Entry{
		Action:     "submission.completed",
		Transport:  audit.TransportFrom(ctx),
		UserID:     sub.UserID,
		SubjectID:  sub.ID,
		Parameters: fmt.Sprintf(`{"task_id":%q}`, task.ID),
		Result:     fmt.Sprintf(`{"is_valid":%t,"ai_score":%g,"reward":%g}`, res.IsValid, res.AIScore, amount),
		DurationMs: res.ExecutionTimeMs,
	})

	ev, err := m.rewards.Apply(ctx, sub.UserID, sub.ID, reward.ForVerdict(res.IsValid, res.Feedback))
	if err != nil {
		m.logger.Error("reputation update failed", "submission_id", sub.ID, "error", err)
		return out, err
	}
	m.observer.ObserveReputation(ev.EventType)
	out.Reputation = ev

	m.logger.Info("submission completed",
		"submission_id", sub.ID, "task_id", task.ID, "user_id", sub.UserID,
		"is_valid", res.IsValid, "ai_score", res.AIScore, "reward", amount,
		"reputation", ev.NewScore)
	return out, nil
}

func (m *Manager) fail(ctx context.Context, sub *db.Submission, verr error, elapsed time.Duration) (*Outcome, error) {
	cause := verr
	var ve *verify.VerificationError
	if errors.As(verr, &ve) {
		cause = ve.Err
	}

	failed, err := m.store.FailSubmission(ctx, db.Failure{
		SubmissionID:     sub.ID,
		Feedback:         "Verification error: " + cause.Error(),
		VerificationMode: m.verifier.Mode(),
		VerifiedAt:       m.now().UTC(),
	})
	if err != nil {
		m.logger.Error("failing submission", "submission_id", sub.ID, "error", err)
		return nil, fmt.Errorf("failing submission %s: %w", sub.ID, err)
	}

	out := &Outcome{Submission: failed, Err: verr}
	m.audit.LogAsync(&audit.Entry{
		Action:     "submission.failed",
		Transport:  audit.TransportFrom(ctx),
		UserID:     sub.UserID,
		SubjectID:  sub.ID,
		Parameters: fmt.Sprintf(`{"task_id":%q}`, sub.TaskID),
		Error:      cause.Error(),
		DurationMs: elapsed.Milliseconds(),
	})

	ev, err := m.rewards.Apply(ctx, sub.UserID, sub.ID, reward.ForFailure())
	if err != nil {
		m.logger.Error("reputation update failed", "submission_id", sub.ID, "error", err)
		return out, err
	}
	m.observer.ObserveReputation(ev.EventType)
	out.Reputation = ev

	m.logger.Warn("submission failed verification",
		"submission_id", sub.ID, "task_id", sub.TaskID, "user_id", sub.UserID, "error", cause)
	return out, nil
}

func outcomeLabel(valid bool) string {
	if valid {
		return "accepted"
	}
	return "rejected"
}
