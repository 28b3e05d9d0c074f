// CLAUDE:SUMMARY Verification pipeline — prompt, single judge call, two-stage verdict parse, post-hoc timeout check, typed failures
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	ModeLive = "live"
	ModeMock = "mock"
)

// Request is everything needed to judge one submission.
type Request struct {
	SubmissionID string
	TaskID       string
	TaskType     string
	Instructions map[string]any
	MinerOutput  any
	Criteria     map[string]any
	Timeout      time.Duration
}

// Result is the outcome of a successful verification. It is built once and
// never modified.
type Result struct {
	SubmissionID    string    `json:"submission_id"`
	TaskID          string    `json:"task_id"`
	IsValid         bool      `json:"is_valid"`
	AIScore         float64   `json:"ai_score"`
	Feedback        string    `json:"feedback"`
	ModelUsed       string    `json:"model_used"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Mode            string    `json:"verification_mode"`
	VerifiedAt      time.Time `json:"verified_at"`
}

// Verifier turns a Request into a Result or a *VerificationError.
type Verifier interface {
	Verify(ctx context.Context, req Request) (*Result, error)
	Mode() string
}

// Orchestrator is the live Verifier backed by the external judge. It never
// retries and never converts a failure into a result.
type Orchestrator struct {
	judge  *JudgeClient
	now    func() time.Time
	logger *slog.Logger
}

func NewOrchestrator(judge *JudgeClient, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{judge: judge, now: judge.now, logger: logger}
}

func (o *Orchestrator) Mode() string { return ModeLive }

func (o *Orchestrator) Verify(ctx context.Context, req Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fail := func(err error) (*Result, error) {
		o.logger.Warn("verification failed",
			"submission_id", req.SubmissionID, "task_id", req.TaskID, "error", err)
		return nil, &VerificationError{SubmissionID: req.SubmissionID, Err: err}
	}

	start := o.now()
	prompt := BuildPrompt(req.TaskType, req.Instructions, req.MinerOutput, req.Criteria)

	reply, err := o.judge.Ask(ctx, prompt, timeout)
	if err != nil {
		return fail(err)
	}

	verdict, err := ParseVerdict(reply.Text)
	if err != nil {
		return fail(err)
	}

	elapsed := o.now().Sub(start)
	if elapsed > timeout {
		return fail(fmt.Errorf("%w: verification took %dms, budget %dms", ErrJudgeTimeout, elapsed.Milliseconds(), timeout.Milliseconds()))
	}

	return &Result{
		SubmissionID:    req.SubmissionID,
		TaskID:          req.TaskID,
		IsValid:         verdict.IsValid,
		AIScore:         verdict.Score,
		Feedback:        verdict.Feedback,
		ModelUsed:       reply.Model,
		ExecutionTimeMs: elapsed.Milliseconds(),
		Mode:            ModeLive,
		VerifiedAt:      o.now().UTC(),
	}, nil
}
