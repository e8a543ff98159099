package engine

import (
	"errors"
	"fmt"
)

// ===== ENGINE ERRORS =====

var (
	// Governance rejections. Non-fatal: the attempt stays open so the
	// learner can read the message and exit.
	ErrAttemptsExhausted = errors.New("maximum attempts exhausted")

	// Lifecycle errors
	ErrAttemptNotActive        = errors.New("attempt is not active")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrSubmissionInFlight      = errors.New("submission already in flight")
	ErrPauseNotAllowed         = errors.New("pausing is not allowed for this quiz")
)

// CooldownError rejects a submission while the retake cooldown is still
// running. WaitMinutes is rounded up so the message never understates the
// remaining wait.
type CooldownError struct {
	WaitMinutes int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("retake not yet available: try again in %d minute(s)", e.WaitMinutes)
}

// SubmissionError wraps a transient failure from the submission collaborator.
// The attempt stays resumable and may be resubmitted.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsGovernanceRejection reports whether err is one of the attempt-governor
// rejections (exhausted attempts or active cooldown).
func IsGovernanceRejection(err error) bool {
	var ce *CooldownError
	return errors.Is(err, ErrAttemptsExhausted) || errors.As(err, &ce)
}

// IsSubmissionFailure reports whether err is a transient submission failure
// after which the attempt may be resubmitted.
func IsSubmissionFailure(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}
