package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/quizforge/quiz-engine/internal/models"
)

// SummaryFetcher is the attempts-history collaborator. A failure is treated
// as "no history" rather than blocking the attempt.
type SummaryFetcher interface {
	FetchSummary(ctx context.Context, quizID, studentID string) (models.AttemptsSummary, error)
}

// AttemptSubmitter persists a finished attempt. Failures are transient: the
// attempt stays open and may be resubmitted.
type AttemptSubmitter interface {
	SubmitAttempt(ctx context.Context, record *models.AttemptRecord) error
}

// Config wires one attempt. Fetcher and Submitter are optional; without a
// submitter the result is only handed to the completion callback.
type Config struct {
	QuizID    string
	StudentID string
	Questions []models.Question
	Settings  models.QuizSettings

	Fetcher   SummaryFetcher
	Submitter AttemptSubmitter

	// OnComplete receives the final record once a submission round-trip
	// succeeds. OnExit fires when the learner abandons without submitting.
	OnComplete func(*models.AttemptRecord)
	OnExit     func()

	Logger *slog.Logger
	Rand   *rand.Rand

	// now is overridable in tests.
	Now func() time.Time
}

// Progress is the read-only snapshot exposed to the embedding surface.
type Progress struct {
	TotalQuestions           int        `json:"total_questions"`
	AnsweredCount            int        `json:"answered_count"`
	CurrentIndex             int        `json:"current_index"`
	SessionRemainingSeconds  int        `json:"session_remaining_seconds"`
	QuestionRemainingSeconds int        `json:"question_remaining_seconds"`
	TimerState               string     `json:"timer_state"`
	ReviewFlags              []int      `json:"review_flags"`
	Submitted                bool       `json:"submitted"`
	BestScorePercentage      float64    `json:"best_score_percentage"`
	RemainingAttempts        int        `json:"remaining_attempts"`
	NextAttemptAvailableAt   *time.Time `json:"next_attempt_available_at,omitempty"`
}

// Engine owns the state of one quiz attempt: the shuffled question order, the
// answer store, review flags, both timers and the submit lifecycle. All
// methods are serialized; the only blocking points are the collaborator
// calls, during which the engine state is not held locked.
type Engine struct {
	mu sync.Mutex

	quizID    string
	studentID string
	source    []models.Question
	settings  models.QuizSettings

	shuffled []models.ShuffledQuestion
	answers  *AnswerStore
	flags    *ReviewFlags
	timer    *TimerController
	summary  models.AttemptsSummary

	current   int
	startedAt time.Time

	inflight  bool
	submitted bool
	tornDown  bool

	fetcher    SummaryFetcher
	submitter  AttemptSubmitter
	onComplete func(*models.AttemptRecord)
	onExit     func()

	logger *slog.Logger
	rng    *rand.Rand
	now    func() time.Time
}

func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = NewShuffleSource()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		quizID:     cfg.QuizID,
		studentID:  cfg.StudentID,
		source:     cfg.Questions,
		settings:   cfg.Settings,
		answers:    NewAnswerStore(0),
		flags:      NewReviewFlags(),
		summary:    models.EmptySummary(),
		fetcher:    cfg.Fetcher,
		submitter:  cfg.Submitter,
		onComplete: cfg.OnComplete,
		onExit:     cfg.OnExit,
		logger:     logger,
		rng:        rng,
		now:        now,
	}
}

// Start begins the attempt: fetches the attempt history, shuffles the
// questions, sizes the answer store and starts the timers.
//
// A summary fetch failure is logged and degrades to an empty history; it
// never blocks the attempt.
func (e *Engine) Start(ctx context.Context) error {
	summary := models.EmptySummary()
	if e.fetcher != nil {
		fetched, err := e.fetcher.FetchSummary(ctx, e.quizID, e.studentID)
		if err != nil {
			e.logger.Warn("attempts summary fetch failed, proceeding without history",
				"quiz_id", e.quizID,
				"student_id", e.studentID,
				"error", err)
		} else {
			summary = fetched
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tornDown {
		return ErrAttemptNotActive
	}

	e.summary = summary
	e.shuffled = Shuffle(e.source, e.settings, e.rng)
	e.answers.Reset(len(e.shuffled))
	e.flags.Clear()
	e.current = 0
	e.startedAt = e.now()
	e.timer = NewTimerController(
		e.settings.TimeLimitSeconds,
		e.settings.TimeLimitPerQuestionSeconds,
		e.settings.AllowPause,
	)
	e.timer.Start()

	e.logger.Info("quiz attempt started",
		"quiz_id", e.quizID,
		"student_id", e.studentID,
		"questions", len(e.shuffled))

	return nil
}

// Questions returns the shuffled presentation order for this attempt.
func (e *Engine) Questions() []models.ShuffledQuestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.ShuffledQuestion, len(e.shuffled))
	copy(out, e.shuffled)
	return out
}

// SetAnswer records the learner response for the shuffled question index.
func (e *Engine) SetAnswer(index int, answer models.Answer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureActive(); err != nil {
		return err
	}
	if !e.answers.Set(index, answer) {
		return fmt.Errorf("question index %d out of range", index)
	}
	return nil
}

// ToggleReview flips the review flag for a question and returns the new state.
func (e *Engine) ToggleReview(index int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureActive(); err != nil {
		return false, err
	}
	if index < 0 || index >= len(e.shuffled) {
		return false, fmt.Errorf("question index %d out of range", index)
	}
	return e.flags.Toggle(index), nil
}

// Navigate moves to another question. The per-question countdown resets to
// its configured value regardless of how much time remained.
func (e *Engine) Navigate(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureActive(); err != nil {
		return err
	}
	if index < 0 || index >= len(e.shuffled) {
		return fmt.Errorf("question index %d out of range", index)
	}
	e.current = index
	e.timer.ResetQuestionTimer()
	return nil
}

// Pause suspends both countdowns when the quiz allows it.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer == nil {
		return ErrAttemptNotActive
	}
	return e.timer.Pause()
}

// Resume continues a paused attempt.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer == nil {
		return ErrAttemptNotActive
	}
	return e.timer.Resume()
}

// Tick advances the clock by elapsed seconds. Session expiry forces exactly
// one automatic submission; per-question expiry advances to the next question
// except on the last one, where only the session timer can end the attempt.
func (e *Engine) Tick(ctx context.Context, elapsed int) error {
	e.mu.Lock()
	if e.timer == nil || e.tornDown || e.submitted {
		e.mu.Unlock()
		return nil
	}

	result := e.timer.Tick(elapsed)

	if result.QuestionExpired && e.current < len(e.shuffled)-1 {
		e.current++
	}
	e.mu.Unlock()

	if result.SessionExpired {
		e.logger.Info("session timer expired, forcing submission",
			"quiz_id", e.quizID,
			"student_id", e.studentID)
		return e.submit(ctx, models.AttemptEndReasonTimeout)
	}
	return nil
}

// Submit performs a manual submission.
func (e *Engine) Submit(ctx context.Context) error {
	return e.submit(ctx, models.AttemptEndReasonSubmitted)
}

// PreviewScore runs the scorer over the current answers without submitting.
func (e *Engine) PreviewScore() models.AttemptRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildRecord(models.AttemptEndReasonSubmitted)
}

// submit runs the full sequence: in-flight guard, governor check, scorer,
// collaborator round-trip. The governor always runs before the scorer. The
// engine is not locked while the collaborator is awaited.
func (e *Engine) submit(ctx context.Context, endReason string) error {
	e.mu.Lock()

	if e.tornDown {
		e.mu.Unlock()
		return ErrAttemptNotActive
	}
	if e.submitted {
		e.mu.Unlock()
		return ErrAttemptAlreadySubmitted
	}
	if e.inflight {
		// A submission round-trip is already running; this request is a no-op.
		e.mu.Unlock()
		return ErrSubmissionInFlight
	}

	if err := CanSubmit(e.summary, e.settings, e.now()); err != nil {
		e.mu.Unlock()
		e.logger.Warn("submission rejected by attempt governor",
			"quiz_id", e.quizID,
			"student_id", e.studentID,
			"reason", err)
		return err
	}

	record := e.buildRecord(endReason)
	e.inflight = true
	e.mu.Unlock()

	if e.submitter != nil {
		if err := e.submitter.SubmitAttempt(ctx, &record); err != nil {
			e.mu.Lock()
			e.inflight = false
			e.mu.Unlock()
			e.logger.Error("attempt submission failed, attempt stays resumable",
				"quiz_id", e.quizID,
				"student_id", e.studentID,
				"error", err)
			return &SubmissionError{Err: err}
		}
	}

	e.mu.Lock()
	e.inflight = false
	if e.tornDown {
		// The engine was torn down while the submission was in flight; the
		// result is discarded.
		e.mu.Unlock()
		return nil
	}
	e.submitted = true
	e.timer.Complete()
	e.mu.Unlock()

	e.refreshSummary(ctx)

	e.logger.Info("quiz attempt submitted",
		"quiz_id", e.quizID,
		"student_id", e.studentID,
		"score", record.Score,
		"percentage", record.Percentage,
		"end_reason", endReason)

	if e.onComplete != nil {
		e.onComplete(&record)
	}
	return nil
}

// buildRecord scores the current answers. Caller holds the lock.
func (e *Engine) buildRecord(endReason string) models.AttemptRecord {
	now := e.now()
	record := Score(e.shuffled, e.answers.Snapshot(), e.settings, int(now.Sub(e.startedAt).Seconds()), now)
	record.QuizID = e.quizID
	record.StudentID = e.studentID
	record.EndReason = endReason
	return record
}

func (e *Engine) refreshSummary(ctx context.Context) {
	if e.fetcher == nil {
		return
	}
	fetched, err := e.fetcher.FetchSummary(ctx, e.quizID, e.studentID)
	if err != nil {
		e.logger.Warn("attempts summary refresh failed",
			"quiz_id", e.quizID,
			"error", err)
		return
	}
	e.mu.Lock()
	e.summary = fetched
	e.mu.Unlock()
}

// Progress returns a display snapshot of the attempt.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := Progress{
		TotalQuestions:         len(e.shuffled),
		AnsweredCount:          e.answers.AnsweredCount(),
		CurrentIndex:           e.current,
		ReviewFlags:            e.flags.Indices(),
		Submitted:              e.submitted,
		BestScorePercentage:    e.summary.BestScorePercentage,
		RemainingAttempts:      e.summary.RemainingAttempts,
		NextAttemptAvailableAt: e.summary.NextAttemptAvailableAt,
	}
	if e.timer != nil {
		p.SessionRemainingSeconds, p.QuestionRemainingSeconds = e.timer.Remaining()
		p.TimerState = e.timer.State().String()
	}
	return p
}

// Summary returns the last fetched attempt history.
func (e *Engine) Summary() models.AttemptsSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

// Exit abandons the attempt without submitting and tears the engine down.
func (e *Engine) Exit() {
	e.mu.Lock()
	abandoned := !e.submitted && !e.tornDown
	e.mu.Unlock()

	e.Teardown()

	if abandoned && e.onExit != nil {
		e.onExit()
	}
}

// Teardown stops both timers and marks the engine dead. An in-flight
// submission is not cancelled but its result will be discarded.
func (e *Engine) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tornDown {
		return
	}
	e.tornDown = true
	if e.timer != nil && !e.submitted {
		e.timer.Complete()
	}
}

func (e *Engine) ensureActive() error {
	if e.tornDown || e.timer == nil {
		return ErrAttemptNotActive
	}
	if e.submitted {
		return ErrAttemptAlreadySubmitted
	}
	if e.timer.State() == TimerExpired {
		return ErrAttemptNotActive
	}
	return nil
}
