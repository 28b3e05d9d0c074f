package db

import (
	"context"
	"fmt"
)

// Err is a sentinel storage error.
type Err string

func (e Err) Error() string { return string(e) }

const (
	ErrNotFound        = Err("not found")
	ErrAlreadyTerminal = Err("submission already in a terminal state")
	ErrConflict        = Err("conflict")
	ErrTaskFull        = Err("task reached its submission limit")
)

// Store is the persistence collaborator of the mining pipeline. The two
// terminal transitions and ApplyReputation are atomic in every backend.
type Store interface {
	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	ListActiveTasks(ctx context.Context, limit, offset int) ([]*Task, error)
	UpdateTaskStatus(ctx context.Context, id, status string) error

	GetOrCreateUser(ctx context.Context, wallet string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByWallet(ctx context.Context, wallet string) (*User, error)

	// CreateSubmission inserts s as pending. Completed and pending
	// submissions together never exceed the task's max_submissions: once
	// they reach it, CreateSubmission fails with ErrTaskFull.
	CreateSubmission(ctx context.Context, s *Submission) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	ListSubmissions(ctx context.Context, f SubmissionFilter) ([]*Submission, error)

	// CompleteSubmission moves a pending submission to completed, bumps the
	// task's submission count by one and credits the user's totals.
	CompleteSubmission(ctx context.Context, c Completion) (*Submission, error)
	// FailSubmission moves a pending submission to failed. Counts are untouched.
	FailSubmission(ctx context.Context, f Failure) (*Submission, error)

	// ApplyReputation reads the user's score, writes Next(old) and appends
	// the event in one atomic step.
	ApplyReputation(ctx context.Context, c ReputationChange) (*ReputationEvent, error)
	ListReputationEvents(ctx context.Context, userID string, limit, offset int) ([]*ReputationEvent, error)

	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver string
	Path   string
	DSN    string
}

// OpenStore opens the backend named by opts.Driver.
func OpenStore(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "sqlite":
		return Open(opts.Path)
	case "postgres":
		return OpenPostgres(ctx, opts.DSN)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
