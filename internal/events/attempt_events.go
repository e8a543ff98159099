package events

import "time"

type AttemptEventType string

const (
	AttemptSubmitted AttemptEventType = "attempt.submitted"
	AttemptExpired   AttemptEventType = "attempt.expired"
)

// AttemptEvent is published after a submission has been persisted, so
// downstream consumers (notifications, analytics) can react without being in
// the submit path.
type AttemptEvent struct {
	ID        string           `json:"id"`
	Type      AttemptEventType `json:"type"`
	QuizID    string           `json:"quiz_id"`
	StudentID string           `json:"student_id"`

	AttemptID  uint    `json:"attempt_id"`
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
	EndReason  string  `json:"end_reason"`

	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}
