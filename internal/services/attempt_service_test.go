package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/quizforge/quiz-engine/internal/engine"
	"github.com/quizforge/quiz-engine/internal/events"
	"github.com/quizforge/quiz-engine/internal/models"
	"github.com/quizforge/quiz-engine/internal/repositories"
	"github.com/quizforge/quiz-engine/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryAttemptRepository is an in-memory AttemptRepository for tests.
type memoryAttemptRepository struct {
	records   []*models.AttemptRecord
	createErr error
	nextID    uint
}

func newMemoryAttemptRepository() *memoryAttemptRepository {
	return &memoryAttemptRepository{nextID: 1}
}

func (r *memoryAttemptRepository) Create(ctx context.Context, record *models.AttemptRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	record.ID = r.nextID
	r.nextID++
	stored := *record
	r.records = append(r.records, &stored)
	return nil
}

func (r *memoryAttemptRepository) GetByID(ctx context.Context, id uint) (*models.AttemptRecord, error) {
	for _, record := range r.records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, repositories.ErrRecordNotFound
}

func (r *memoryAttemptRepository) GetByQuizAndStudent(ctx context.Context, quizID, studentID string) ([]*models.AttemptRecord, error) {
	var out []*models.AttemptRecord
	for _, record := range r.records {
		if record.QuizID == quizID && record.StudentID == studentID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *memoryAttemptRepository) CountByQuizAndStudent(ctx context.Context, quizID, studentID string) (int, error) {
	records, _ := r.GetByQuizAndStudent(ctx, quizID, studentID)
	return len(records), nil
}

func (r *memoryAttemptRepository) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.AttemptRecord, int64, error) {
	var out []*models.AttemptRecord
	for _, record := range r.records {
		if filters.QuizID != nil && record.QuizID != *filters.QuizID {
			continue
		}
		if filters.StudentID != nil && record.StudentID != *filters.StudentID {
			continue
		}
		out = append(out, record)
	}
	return out, int64(len(out)), nil
}

func (r *memoryAttemptRepository) GetStats(ctx context.Context, quizID string) (*repositories.AttemptStats, error) {
	return &repositories.AttemptStats{TotalAttempts: int64(len(r.records))}, nil
}

func newTestService(repo repositories.AttemptRepository, publisher events.EventPublisher) AttemptService {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAttemptService(repo, nil, publisher, logger, utils.NewValidator())
}

func testQuestions() []models.Question {
	return []models.Question{
		{
			Text:          "What is the capital of France?",
			Type:          models.SingleChoice,
			AnswerOptions: []string{"Berlin", "Paris", "Madrid"},
			Key:           models.SingleChoiceAnswer{Selected: 1},
			Points:        10,
		},
		{
			Text:   "Name the chemical symbol for gold.",
			Type:   models.ShortAnswer,
			Key:    models.TextAnswer{Text: "Au"},
			Points: 10,
		},
	}
}

func startRequest() *StartAttemptRequest {
	return &StartAttemptRequest{
		QuizID:    "quiz-1",
		StudentID: "student-1",
		Questions: testQuestions(),
		Settings:  models.QuizSettings{},
	}
}

func TestAttemptService_StartAndSubmit(t *testing.T) {
	repo := newMemoryAttemptRepository()
	publisher := events.NewMockEventPublisher()
	service := newTestService(repo, publisher)
	ctx := context.Background()

	resp, err := service.Start(ctx, startRequest())
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)
	assert.Len(t, resp.Questions, 2)
	assert.Equal(t, 2, resp.Progress.TotalQuestions)

	// Answer the single-choice question with the option index that carries
	// the correct text in this session's shuffled order.
	correct := 0
	for i, opt := range resp.Questions[0].AnswerOptions {
		if opt == "Paris" {
			correct = i
		}
	}
	err = service.SetAnswer(ctx, resp.SessionID, &SubmitAnswerRequest{
		Index:  0,
		Answer: []byte(fmt.Sprintf(`{"selected":%d}`, correct)),
	})
	require.NoError(t, err)

	err = service.SetAnswer(ctx, resp.SessionID, &SubmitAnswerRequest{
		Index:  1,
		Answer: []byte(`{"text":"au"}`),
	})
	require.NoError(t, err)

	record, err := service.Submit(ctx, resp.SessionID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 20.0, record.Score)
	assert.Equal(t, 100.0, record.Percentage)
	assert.True(t, record.Passed)
	assert.Equal(t, models.AttemptEndReasonSubmitted, record.EndReason)

	// Persisted and published.
	require.Len(t, repo.records, 1)
	require.Len(t, publisher.Events, 1)
	assert.Equal(t, events.AttemptSubmitted, publisher.Events[0].Type)
	assert.Equal(t, "quiz-1", publisher.Events[0].QuizID)
	assert.True(t, publisher.Events[0].Passed)
}

func TestAttemptService_SessionNotFound(t *testing.T) {
	service := newTestService(newMemoryAttemptRepository(), events.NewMockEventPublisher())
	ctx := context.Background()

	err := service.Navigate(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = service.Submit(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAttemptService_ValidationRejectsEmptyRequest(t *testing.T) {
	service := newTestService(newMemoryAttemptRepository(), events.NewMockEventPublisher())

	_, err := service.Start(context.Background(), &StartAttemptRequest{})
	assert.Error(t, err)
}

func TestAttemptService_InvalidAnswerPayload(t *testing.T) {
	service := newTestService(newMemoryAttemptRepository(), events.NewMockEventPublisher())
	ctx := context.Background()

	resp, err := service.Start(ctx, startRequest())
	require.NoError(t, err)

	err = service.SetAnswer(ctx, resp.SessionID, &SubmitAnswerRequest{
		Index:  0,
		Answer: []byte(`{"selected":"not-a-number"}`),
	})
	assert.Error(t, err)
}

func TestSubmitAnswerRequest_BindsNestedAnswerJSON(t *testing.T) {
	// The wire payload carries the answer as a nested JSON object, the way
	// the HTTP surface binds it.
	var req SubmitAnswerRequest
	require.NoError(t, json.Unmarshal([]byte(`{"index":0,"answer":{"selected":1}}`), &req))
	assert.Equal(t, 0, req.Index)
	assert.JSONEq(t, `{"selected":1}`, string(req.Answer))

	service := newTestService(newMemoryAttemptRepository(), events.NewMockEventPublisher())
	ctx := context.Background()

	resp, err := service.Start(ctx, startRequest())
	require.NoError(t, err)

	require.NoError(t, service.SetAnswer(ctx, resp.SessionID, &req))
	assert.Equal(t, 1, mustProgress(t, service, resp.SessionID).AnsweredCount)
}

func mustProgress(t *testing.T, service AttemptService, sessionID string) *engine.Progress {
	t.Helper()
	progress, err := service.Progress(context.Background(), sessionID)
	require.NoError(t, err)
	return progress
}

func TestAttemptService_SubmitFailureLeavesSessionResumable(t *testing.T) {
	repo := newMemoryAttemptRepository()
	repo.createErr = errors.New("db down")
	service := newTestService(repo, events.NewMockEventPublisher())
	ctx := context.Background()

	resp, err := service.Start(ctx, startRequest())
	require.NoError(t, err)

	_, err = service.Submit(ctx, resp.SessionID)
	require.Error(t, err)

	// The session survives the failure and a later submission succeeds.
	repo.createErr = nil
	record, err := service.Submit(ctx, resp.SessionID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Len(t, repo.records, 1)
}

func TestAttemptService_MaxAttemptsEnforcedOnSecondRun(t *testing.T) {
	repo := newMemoryAttemptRepository()
	service := newTestService(repo, events.NewMockEventPublisher())
	ctx := context.Background()

	req := startRequest()
	req.Settings.MaxAttempts = 1

	resp, err := service.Start(ctx, req)
	require.NoError(t, err)
	_, err = service.Submit(ctx, resp.SessionID)
	require.NoError(t, err)

	// Second attempt starts (history is advisory at start), but the governor
	// rejects its submission.
	resp2, err := service.Start(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, resp2.Summary.RemainingAttempts)

	_, err = service.Submit(ctx, resp2.SessionID)
	require.Error(t, err)
	assert.Len(t, repo.records, 1)
}

func TestAttemptService_ExitRemovesSession(t *testing.T) {
	service := newTestService(newMemoryAttemptRepository(), events.NewMockEventPublisher())
	ctx := context.Background()

	resp, err := service.Start(ctx, startRequest())
	require.NoError(t, err)

	require.NoError(t, service.Exit(ctx, resp.SessionID))
	assert.ErrorIs(t, service.Exit(ctx, resp.SessionID), ErrSessionNotFound)
}

func TestAttemptService_TimeoutEventType(t *testing.T) {
	repo := newMemoryAttemptRepository()
	publisher := events.NewMockEventPublisher()
	service := newTestService(repo, publisher)
	ctx := context.Background()

	req := startRequest()
	req.Settings.TimeLimitSeconds = 2

	resp, err := service.Start(ctx, req)
	require.NoError(t, err)

	require.NoError(t, service.Tick(ctx, resp.SessionID, 1))
	require.NoError(t, service.Tick(ctx, resp.SessionID, 1))

	require.Len(t, repo.records, 1)
	assert.Equal(t, models.AttemptEndReasonTimeout, repo.records[0].EndReason)
	require.Len(t, publisher.Events, 1)
	assert.Equal(t, events.AttemptExpired, publisher.Events[0].Type)
}

func TestDeriveSummary(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty history", func(t *testing.T) {
		summary := DeriveSummary(nil, models.QuizSettings{}, now)
		assert.Empty(t, summary.Attempts)
		assert.Equal(t, models.UnlimitedAttempts, summary.RemainingAttempts)
		assert.True(t, summary.CanRetake)
		assert.Nil(t, summary.NextAttemptAvailableAt)
	})

	t.Run("best score and remaining attempts", func(t *testing.T) {
		records := []*models.AttemptRecord{
			{Percentage: 55, SubmittedAt: now.Add(-2 * time.Hour)},
			{Percentage: 80, SubmittedAt: now.Add(-time.Hour)},
		}
		summary := DeriveSummary(records, models.QuizSettings{MaxAttempts: 3}, now)
		assert.Equal(t, 80.0, summary.BestScorePercentage)
		assert.Equal(t, 1, summary.RemainingAttempts)
		assert.True(t, summary.CanRetake)
	})

	t.Run("exhausted attempts", func(t *testing.T) {
		records := []*models.AttemptRecord{
			{Percentage: 55, SubmittedAt: now.Add(-time.Hour)},
		}
		summary := DeriveSummary(records, models.QuizSettings{MaxAttempts: 1}, now)
		assert.Equal(t, 0, summary.RemainingAttempts)
		assert.False(t, summary.CanRetake)
	})

	t.Run("cooldown still open", func(t *testing.T) {
		records := []*models.AttemptRecord{
			{Percentage: 55, SubmittedAt: now.Add(-5 * time.Minute)},
		}
		summary := DeriveSummary(records, models.QuizSettings{RetakeDelayMinutes: 30}, now)
		require.NotNil(t, summary.NextAttemptAvailableAt)
		assert.Equal(t, now.Add(25*time.Minute), *summary.NextAttemptAvailableAt)
		assert.False(t, summary.CanRetake)
	})

	t.Run("cooldown elapsed", func(t *testing.T) {
		records := []*models.AttemptRecord{
			{Percentage: 55, SubmittedAt: now.Add(-time.Hour)},
		}
		summary := DeriveSummary(records, models.QuizSettings{RetakeDelayMinutes: 30}, now)
		assert.Nil(t, summary.NextAttemptAvailableAt)
		assert.True(t, summary.CanRetake)
	})
}
