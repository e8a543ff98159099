package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/quizforge/quiz-engine/internal/cache"
	"github.com/quizforge/quiz-engine/internal/engine"
	"github.com/quizforge/quiz-engine/internal/events"
	"github.com/quizforge/quiz-engine/internal/models"
	"github.com/quizforge/quiz-engine/internal/repositories"
	"github.com/quizforge/quiz-engine/internal/utils"
)

// ===== REQUEST / RESPONSE TYPES =====

type StartAttemptRequest struct {
	QuizID    string              `json:"quiz_id" validate:"required"`
	StudentID string              `json:"student_id" validate:"required"`
	Questions []models.Question   `json:"questions" validate:"required,min=1,dive"`
	Settings  models.QuizSettings `json:"settings"`
}

type StartAttemptResponse struct {
	SessionID string                    `json:"session_id"`
	Questions []models.ShuffledQuestion `json:"questions"`
	Progress  engine.Progress           `json:"progress"`
	Summary   models.AttemptsSummary    `json:"summary"`
}

type SubmitAnswerRequest struct {
	Index  int             `json:"index" validate:"min=0"`
	Answer json.RawMessage `json:"answer"`
}

// AttemptService drives live quiz attempts: it hosts one engine per session
// and wires the engine's collaborators from the persistence, cache and event
// layers.
type AttemptService interface {
	Start(ctx context.Context, req *StartAttemptRequest) (*StartAttemptResponse, error)
	SetAnswer(ctx context.Context, sessionID string, req *SubmitAnswerRequest) error
	ToggleReview(ctx context.Context, sessionID string, index int) (bool, error)
	Navigate(ctx context.Context, sessionID string, index int) error
	Pause(ctx context.Context, sessionID string) error
	Resume(ctx context.Context, sessionID string) error
	Tick(ctx context.Context, sessionID string, elapsed int) error
	Submit(ctx context.Context, sessionID string) (*models.AttemptRecord, error)
	Progress(ctx context.Context, sessionID string) (*engine.Progress, error)
	Exit(ctx context.Context, sessionID string) error
	History(ctx context.Context, quizID, studentID string, settings models.QuizSettings) (models.AttemptsSummary, error)
}

type attemptSession struct {
	engine    *engine.Engine
	questions []models.ShuffledQuestion
	result    *models.AttemptRecord
	createdAt time.Time
}

type attemptService struct {
	mu       sync.RWMutex
	sessions map[string]*attemptSession

	repo      repositories.AttemptRepository
	cache     cache.SummaryCache
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *utils.Validator
}

func NewAttemptService(
	repo repositories.AttemptRepository,
	summaryCache cache.SummaryCache,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *utils.Validator,
) AttemptService {
	return &attemptService{
		sessions:  make(map[string]*attemptSession),
		repo:      repo,
		cache:     summaryCache,
		publisher: publisher,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest) (*StartAttemptResponse, error) {
	s.logger.Info("Starting quiz attempt",
		"quiz_id", req.QuizID,
		"student_id", req.StudentID,
		"questions", len(req.Questions))

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if len(req.Questions) == 0 {
		return nil, ErrQuizHasNoQuestions
	}

	sessionID := watermill.NewUUID()
	session := &attemptSession{createdAt: time.Now()}

	eng := engine.New(engine.Config{
		QuizID:    req.QuizID,
		StudentID: req.StudentID,
		Questions: req.Questions,
		Settings:  req.Settings,
		Fetcher:   &summaryProvider{repo: s.repo, cache: s.cache, settings: req.Settings, logger: s.logger},
		Submitter: &attemptSink{repo: s.repo, cache: s.cache, publisher: s.publisher, logger: s.logger},
		OnComplete: func(record *models.AttemptRecord) {
			session.result = record
		},
		Logger: s.logger,
	})
	session.engine = eng

	if err := eng.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start attempt: %w", err)
	}
	session.questions = eng.Questions()

	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()

	return &StartAttemptResponse{
		SessionID: sessionID,
		Questions: session.questions,
		Progress:  eng.Progress(),
		Summary:   eng.Summary(),
	}, nil
}

func (s *attemptService) SetAnswer(ctx context.Context, sessionID string, req *SubmitAnswerRequest) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if req.Index < 0 || req.Index >= len(session.questions) {
		return fmt.Errorf("question index %d out of range", req.Index)
	}

	answer, err := models.UnmarshalAnswer(session.questions[req.Index].Type, req.Answer)
	if err != nil {
		return fmt.Errorf("invalid answer payload: %w", err)
	}
	return session.engine.SetAnswer(req.Index, answer)
}

func (s *attemptService) ToggleReview(ctx context.Context, sessionID string, index int) (bool, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return false, err
	}
	return session.engine.ToggleReview(index)
}

func (s *attemptService) Navigate(ctx context.Context, sessionID string, index int) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	return session.engine.Navigate(index)
}

func (s *attemptService) Pause(ctx context.Context, sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	return session.engine.Pause()
}

func (s *attemptService) Resume(ctx context.Context, sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	return session.engine.Resume()
}

func (s *attemptService) Tick(ctx context.Context, sessionID string, elapsed int) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	return session.engine.Tick(ctx, elapsed)
}

func (s *attemptService) Submit(ctx context.Context, sessionID string) (*models.AttemptRecord, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.engine.Submit(ctx); err != nil {
		return nil, err
	}
	return session.result, nil
}

func (s *attemptService) Progress(ctx context.Context, sessionID string) (*engine.Progress, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	progress := session.engine.Progress()
	return &progress, nil
}

func (s *attemptService) Exit(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.engine.Exit()
	return nil
}

func (s *attemptService) History(ctx context.Context, quizID, studentID string, settings models.QuizSettings) (models.AttemptsSummary, error) {
	provider := &summaryProvider{repo: s.repo, cache: s.cache, settings: settings, logger: s.logger}
	return provider.FetchSummary(ctx, quizID, studentID)
}

func (s *attemptService) session(sessionID string) (*attemptSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ===== ENGINE COLLABORATORS =====

// summaryProvider derives an AttemptsSummary from the persisted history,
// with a cache in front of the repository query.
type summaryProvider struct {
	repo     repositories.AttemptRepository
	cache    cache.SummaryCache
	settings models.QuizSettings
	logger   *slog.Logger
}

func (p *summaryProvider) FetchSummary(ctx context.Context, quizID, studentID string) (models.AttemptsSummary, error) {
	if p.cache != nil {
		cached, err := p.cache.Get(ctx, quizID, studentID)
		if err != nil {
			p.logger.Warn("summary cache read failed", "quiz_id", quizID, "error", err)
		} else if cached != nil {
			return *cached, nil
		}
	}

	records, err := p.repo.GetByQuizAndStudent(ctx, quizID, studentID)
	if err != nil {
		return models.AttemptsSummary{}, fmt.Errorf("failed to load attempt history: %w", err)
	}

	summary := DeriveSummary(records, p.settings, time.Now())

	if p.cache != nil {
		if err := p.cache.Set(ctx, quizID, studentID, summary); err != nil {
			p.logger.Warn("summary cache write failed", "quiz_id", quizID, "error", err)
		}
	}
	return summary, nil
}

// attemptSink persists a submitted record, invalidates the cached summary
// and publishes the attempt event. Event publish failures are logged, not
// surfaced: the submission has already been persisted.
type attemptSink struct {
	repo      repositories.AttemptRepository
	cache     cache.SummaryCache
	publisher events.EventPublisher
	logger    *slog.Logger
}

func (s *attemptSink) SubmitAttempt(ctx context.Context, record *models.AttemptRecord) error {
	if err := s.repo.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to persist attempt: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, record.QuizID, record.StudentID); err != nil {
			s.logger.Warn("summary cache invalidation failed", "quiz_id", record.QuizID, "error", err)
		}
	}

	if s.publisher != nil {
		eventType := events.AttemptSubmitted
		if record.EndReason == models.AttemptEndReasonTimeout {
			eventType = events.AttemptExpired
		}
		event := &events.AttemptEvent{
			Type:       eventType,
			QuizID:     record.QuizID,
			StudentID:  record.StudentID,
			AttemptID:  record.ID,
			Score:      record.Score,
			Percentage: record.Percentage,
			Passed:     record.Passed,
			EndReason:  record.EndReason,
			Source:     "quiz-engine",
		}
		if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
			s.logger.Error("Failed to publish attempt event",
				"quiz_id", record.QuizID,
				"error", err)
		}
	}

	return nil
}

// DeriveSummary computes the governed view over a learner's attempt history.
// The cooldown window opens after the most recent submission and lasts
// RetakeDelayMinutes; NextAttemptAvailableAt is present only while the
// window is still closed.
func DeriveSummary(records []*models.AttemptRecord, settings models.QuizSettings, now time.Time) models.AttemptsSummary {
	summary := models.EmptySummary()

	for _, record := range records {
		summary.Attempts = append(summary.Attempts, *record)
		if record.Percentage > summary.BestScorePercentage {
			summary.BestScorePercentage = record.Percentage
		}
	}

	if settings.MaxAttempts > 0 {
		remaining := settings.MaxAttempts - len(summary.Attempts)
		if remaining < 0 {
			remaining = 0
		}
		summary.RemainingAttempts = remaining
	}

	if settings.RetakeDelayMinutes > 0 && len(summary.Attempts) > 0 {
		last := summary.Attempts[len(summary.Attempts)-1].SubmittedAt
		next := last.Add(time.Duration(settings.RetakeDelayMinutes) * time.Minute)
		if next.After(now) {
			summary.NextAttemptAvailableAt = &next
		}
	}

	summary.CanRetake = summary.RemainingAttempts != 0 && summary.NextAttemptAvailableAt == nil
	return summary
}
