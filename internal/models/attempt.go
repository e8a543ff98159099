package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	AttemptEndReasonSubmitted = "submitted"
	AttemptEndReasonTimeout   = "time_out"
)

// QuestionResult is the per-question detail of a scored attempt. Index refers
// to the shuffled presentation order; OriginalIndex to the source question
// list. PointsEarned may be fractional under partial credit or negative under
// negative marking.
type QuestionResult struct {
	Index         int            `json:"index"`
	OriginalIndex int            `json:"original_index"`
	Submitted     datatypes.JSON `json:"submitted"`
	Answered      bool           `json:"answered"`
	IsCorrect     bool           `json:"is_correct"`
	PointsEarned  float64        `json:"points_earned"`

	// Populated only when the quiz settings allow revealing them.
	CorrectAnswer datatypes.JSON `json:"correct_answer,omitempty"`
	Explanation   *string        `json:"explanation,omitempty"`
}

// AttemptRecord is one historical submission.
type AttemptRecord struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	QuizID    string `json:"quiz_id" gorm:"not null;index;size:64"`
	StudentID string `json:"student_id" gorm:"not null;index;size:64"`

	SubmittedAt time.Time `json:"submitted_at"`

	// Scoring
	Score       float64 `json:"score"`
	TotalPoints float64 `json:"total_points"`
	Percentage  float64 `json:"percentage"`
	Passed      bool    `json:"passed"`

	// Tallies
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`

	TimeSpentSeconds int    `json:"time_spent_seconds"`
	EndReason        string `json:"end_reason" gorm:"size:32"`

	Results []QuestionResult `json:"results" gorm:"serializer:json;type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

func (AttemptRecord) TableName() string {
	return "attempt_records"
}

// UnlimitedAttempts marks RemainingAttempts when no cap is configured.
const UnlimitedAttempts = -1

// AttemptsSummary is a derived view over the ordered attempt history of one
// learner/quiz pair. It is produced by the attempts collaborator and only
// replaced by re-fetch, never mutated in place.
type AttemptsSummary struct {
	Attempts               []AttemptRecord `json:"attempts"`
	BestScorePercentage    float64         `json:"best_score_percentage"`
	RemainingAttempts      int             `json:"remaining_attempts"`
	CanRetake              bool            `json:"can_retake"`
	NextAttemptAvailableAt *time.Time      `json:"next_attempt_available_at,omitempty"`
}

// EmptySummary is the "not yet attempted" state: unlimited remaining
// attempts and no cooldown.
func EmptySummary() AttemptsSummary {
	return AttemptsSummary{
		Attempts:          []AttemptRecord{},
		RemainingAttempts: UnlimitedAttempts,
		CanRetake:         true,
	}
}
