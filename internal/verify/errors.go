package verify

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrJudgeUnavailable is returned when the judge cannot be reached or
	// answers with an error.
	ErrJudgeUnavailable = errors.New("judge unavailable")
	// ErrJudgeTimeout is returned when a judge call returned after its budget.
	ErrJudgeTimeout = errors.New("judge timeout")
	// ErrUnparsableVerdict is returned when no verdict object can be
	// extracted from the judge's text.
	ErrUnparsableVerdict = errors.New("unparsable verdict")
)

// UnparsableVerdictError carries the raw judge text that failed to parse.
type UnparsableVerdictError struct {
	Raw string
	Err error
}

func (e *UnparsableVerdictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v (raw: %q)", ErrUnparsableVerdict, e.Err, snippet(e.Raw, 120))
	}
	return fmt.Sprintf("%v (raw: %q)", ErrUnparsableVerdict, snippet(e.Raw, 120))
}

func (e *UnparsableVerdictError) Is(target error) bool { return target == ErrUnparsableVerdict }

func (e *UnparsableVerdictError) Unwrap() error { return e.Err }

// VerificationError is the umbrella error for a failed verification of one
// submission. Its message is what gets persisted as the failure reason.
type VerificationError struct {
	SubmissionID string
	Err          error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %v", e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// snippet cuts s to at most n bytes without splitting a rune.
func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
