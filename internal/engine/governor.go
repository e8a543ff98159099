package engine

import (
	"math"
	"time"

	"github.com/quizforge/quiz-engine/internal/models"
)

// CanSubmit decides whether a new submission is permitted given the attempt
// history. It runs immediately before scoring, not at attempt start, so an
// attempt that straddles a cooldown boundary is judged at submit time.
//
// Returns nil when permitted, ErrAttemptsExhausted when the max-attempts cap
// is reached, or a *CooldownError while the retake window is still closed.
func CanSubmit(summary models.AttemptsSummary, settings models.QuizSettings, now time.Time) error {
	if settings.MaxAttempts > 0 && len(summary.Attempts) >= settings.MaxAttempts {
		return ErrAttemptsExhausted
	}

	if summary.NextAttemptAvailableAt != nil && summary.NextAttemptAvailableAt.After(now) {
		wait := summary.NextAttemptAvailableAt.Sub(now)
		return &CooldownError{
			WaitMinutes: int(math.Ceil(wait.Minutes())),
		}
	}

	return nil
}
