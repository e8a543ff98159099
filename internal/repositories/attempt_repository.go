package repositories

import (
	"context"
	"errors"

	"github.com/quizforge/quiz-engine/internal/models"
	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("record not found")

// IsNotFoundError checks if error represents a "not found" condition.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

type AttemptFilters struct {
	QuizID    *string `json:"quiz_id"`
	StudentID *string `json:"student_id"`
	Passed    *bool   `json:"passed"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
}

// AttemptStats aggregates submitted attempts for one quiz.
type AttemptStats struct {
	TotalAttempts  int64   `json:"total_attempts"`
	UniqueStudents int64   `json:"unique_students"`
	AverageScore   float64 `json:"average_score"`
	PassRate       float64 `json:"pass_rate"`
}

// AttemptRepository persists submitted attempt records.
type AttemptRepository interface {
	Create(ctx context.Context, record *models.AttemptRecord) error
	GetByID(ctx context.Context, id uint) (*models.AttemptRecord, error)

	// GetByQuizAndStudent returns the learner's history for one quiz,
	// ordered by submission time ascending.
	GetByQuizAndStudent(ctx context.Context, quizID, studentID string) ([]*models.AttemptRecord, error)
	CountByQuizAndStudent(ctx context.Context, quizID, studentID string) (int, error)

	List(ctx context.Context, filters AttemptFilters) ([]*models.AttemptRecord, int64, error)
	GetStats(ctx context.Context, quizID string) (*AttemptStats, error)
}
