package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/quizforge/quiz-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	summary models.AttemptsSummary
	err     error
	calls   int
}

func (f *stubFetcher) FetchSummary(ctx context.Context, quizID, studentID string) (models.AttemptsSummary, error) {
	f.calls++
	return f.summary, f.err
}

type stubSubmitter struct {
	err     error
	records []*models.AttemptRecord
}

func (s *stubSubmitter) SubmitAttempt(ctx context.Context, record *models.AttemptRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.QuizID == "" {
		cfg.QuizID = "quiz-1"
	}
	if cfg.StudentID == "" {
		cfg.StudentID = "student-1"
	}
	if cfg.Questions == nil {
		cfg.Questions = sampleQuestions()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	return New(cfg)
}

func TestEngine_StartSizesStore(t *testing.T) {
	eng := newTestEngine(t, Config{})
	require.NoError(t, eng.Start(context.Background()))

	progress := eng.Progress()
	assert.Equal(t, 4, progress.TotalQuestions)
	assert.Equal(t, 0, progress.AnsweredCount)
	assert.Equal(t, 0, progress.CurrentIndex)
	assert.Equal(t, "running", progress.TimerState)
}

func TestEngine_SubmitLifecycle(t *testing.T) {
	submitter := &stubSubmitter{}
	var completed *models.AttemptRecord
	eng := newTestEngine(t, Config{
		Submitter:  submitter,
		OnComplete: func(r *models.AttemptRecord) { completed = r },
	})
	require.NoError(t, eng.Start(context.Background()))

	require.NoError(t, eng.SetAnswer(0, models.SingleChoiceAnswer{Selected: 0}))
	require.NoError(t, eng.Submit(context.Background()))

	require.Len(t, submitter.records, 1)
	record := submitter.records[0]
	assert.Equal(t, "quiz-1", record.QuizID)
	assert.Equal(t, models.AttemptEndReasonSubmitted, record.EndReason)
	assert.Equal(t, 3, record.Unanswered)

	require.NotNil(t, completed)
	assert.Equal(t, record, completed)

	// Second submission is rejected, state stays consistent.
	assert.ErrorIs(t, eng.Submit(context.Background()), ErrAttemptAlreadySubmitted)
	assert.ErrorIs(t, eng.SetAnswer(1, models.SingleChoiceAnswer{Selected: 0}), ErrAttemptAlreadySubmitted)
	assert.Equal(t, "completed", eng.Progress().TimerState)
}

func TestEngine_GovernorRejectionSkipsScorer(t *testing.T) {
	submitter := &stubSubmitter{}
	fetcher := &stubFetcher{summary: models.AttemptsSummary{
		Attempts: []models.AttemptRecord{{}, {}},
	}}
	eng := newTestEngine(t, Config{
		Settings:  models.QuizSettings{MaxAttempts: 2},
		Fetcher:   fetcher,
		Submitter: submitter,
	})
	require.NoError(t, eng.Start(context.Background()))

	err := eng.Submit(context.Background())

	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Empty(t, submitter.records, "no record may be produced when governance rejects")

	// The attempt remains active: the learner can still edit and exit.
	assert.NoError(t, eng.SetAnswer(0, models.SingleChoiceAnswer{Selected: 1}))
}

func TestEngine_CooldownRejection(t *testing.T) {
	next := time.Now().Add(10 * time.Minute)
	fetcher := &stubFetcher{summary: models.AttemptsSummary{NextAttemptAvailableAt: &next}}
	eng := newTestEngine(t, Config{Fetcher: fetcher})
	require.NoError(t, eng.Start(context.Background()))

	err := eng.Submit(context.Background())

	var ce *CooldownError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 10, ce.WaitMinutes)
}

func TestEngine_SubmissionFailureLeavesAttemptResumable(t *testing.T) {
	submitter := &stubSubmitter{err: errors.New("network down")}
	eng := newTestEngine(t, Config{Submitter: submitter})
	require.NoError(t, eng.Start(context.Background()))

	err := eng.Submit(context.Background())

	assert.True(t, IsSubmissionFailure(err))
	assert.False(t, eng.Progress().Submitted)

	// Resubmission succeeds after the transient failure clears.
	submitter.err = nil
	assert.NoError(t, eng.Submit(context.Background()))
	assert.True(t, eng.Progress().Submitted)
}

func TestEngine_AutoSubmitOnSessionExpiry(t *testing.T) {
	submitter := &stubSubmitter{}
	eng := newTestEngine(t, Config{
		Settings:  models.QuizSettings{TimeLimitSeconds: 2},
		Submitter: submitter,
	})
	require.NoError(t, eng.Start(context.Background()))

	require.NoError(t, eng.Tick(context.Background(), 1))
	assert.Empty(t, submitter.records)

	require.NoError(t, eng.Tick(context.Background(), 1))
	require.Len(t, submitter.records, 1)
	assert.Equal(t, models.AttemptEndReasonTimeout, submitter.records[0].EndReason)

	// A forced extra tick must not produce a second submission.
	require.NoError(t, eng.Tick(context.Background(), 1))
	assert.Len(t, submitter.records, 1)
}

func TestEngine_PerQuestionExpiryAdvances(t *testing.T) {
	eng := newTestEngine(t, Config{
		Settings: models.QuizSettings{TimeLimitPerQuestionSeconds: 5},
	})
	require.NoError(t, eng.Start(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, eng.Tick(context.Background(), 1))
	}

	progress := eng.Progress()
	assert.Equal(t, 1, progress.CurrentIndex)
	assert.Equal(t, 5, progress.QuestionRemainingSeconds)
}

func TestEngine_PerQuestionExpiryOnLastQuestion(t *testing.T) {
	eng := newTestEngine(t, Config{
		Settings: models.QuizSettings{TimeLimitPerQuestionSeconds: 2},
	})
	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Navigate(3))

	for i := 0; i < 10; i++ {
		require.NoError(t, eng.Tick(context.Background(), 1))
	}

	// Expiry on the last question neither advances nor submits.
	progress := eng.Progress()
	assert.Equal(t, 3, progress.CurrentIndex)
	assert.False(t, progress.Submitted)
}

func TestEngine_NavigateResetsQuestionTimer(t *testing.T) {
	eng := newTestEngine(t, Config{
		Settings: models.QuizSettings{TimeLimitPerQuestionSeconds: 10},
	})
	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Tick(context.Background(), 6))

	assert.Equal(t, 4, eng.Progress().QuestionRemainingSeconds)

	require.NoError(t, eng.Navigate(2))
	assert.Equal(t, 10, eng.Progress().QuestionRemainingSeconds)
}

func TestEngine_SummaryFetchFailureFailsOpen(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("service unavailable")}
	submitter := &stubSubmitter{}
	eng := newTestEngine(t, Config{
		Settings:  models.QuizSettings{MaxAttempts: 1},
		Fetcher:   fetcher,
		Submitter: submitter,
	})

	require.NoError(t, eng.Start(context.Background()))
	assert.NoError(t, eng.Submit(context.Background()), "degrades to empty history, no restriction applied")
	assert.Len(t, submitter.records, 1)
}

func TestEngine_SummaryRefreshAfterSubmit(t *testing.T) {
	fetcher := &stubFetcher{summary: models.EmptySummary()}
	eng := newTestEngine(t, Config{Fetcher: fetcher, Submitter: &stubSubmitter{}})
	require.NoError(t, eng.Start(context.Background()))
	require.Equal(t, 1, fetcher.calls)

	fetcher.summary = models.AttemptsSummary{BestScorePercentage: 75, RemainingAttempts: 1}
	require.NoError(t, eng.Submit(context.Background()))

	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, 75.0, eng.Progress().BestScorePercentage)
}

func TestEngine_ExitInvokesCallbackOnce(t *testing.T) {
	exits := 0
	eng := newTestEngine(t, Config{OnExit: func() { exits++ }})
	require.NoError(t, eng.Start(context.Background()))

	eng.Exit()
	eng.Exit()

	assert.Equal(t, 1, exits)
	assert.ErrorIs(t, eng.SetAnswer(0, models.SingleChoiceAnswer{Selected: 0}), ErrAttemptNotActive)
}

func TestEngine_NoExitCallbackAfterSubmit(t *testing.T) {
	exits := 0
	eng := newTestEngine(t, Config{Submitter: &stubSubmitter{}, OnExit: func() { exits++ }})
	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Submit(context.Background()))

	eng.Exit()
	assert.Equal(t, 0, exits)
}

func TestEngine_SubmitAfterExitIsRejected(t *testing.T) {
	submitter := &stubSubmitter{}
	eng := newTestEngine(t, Config{Submitter: submitter})
	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.SetAnswer(0, models.SingleChoiceAnswer{Selected: 0}))

	eng.Exit()

	// An abandoned attempt is over: nothing may be scored or persisted.
	assert.ErrorIs(t, eng.Submit(context.Background()), ErrAttemptNotActive)
	assert.Empty(t, submitter.records)
}

func TestEngine_SubmitAfterTeardownIsRejected(t *testing.T) {
	submitter := &stubSubmitter{}
	eng := newTestEngine(t, Config{Submitter: submitter})
	require.NoError(t, eng.Start(context.Background()))

	eng.Teardown()

	assert.ErrorIs(t, eng.Submit(context.Background()), ErrAttemptNotActive)
	assert.Empty(t, submitter.records)
}

func TestEngine_TeardownStopsTimers(t *testing.T) {
	submitter := &stubSubmitter{}
	eng := newTestEngine(t, Config{
		Settings:  models.QuizSettings{TimeLimitSeconds: 1},
		Submitter: submitter,
	})
	require.NoError(t, eng.Start(context.Background()))

	eng.Teardown()
	require.NoError(t, eng.Tick(context.Background(), 5))

	assert.Empty(t, submitter.records, "no auto-submit after teardown")
}

func TestEngine_ReviewFlags(t *testing.T) {
	eng := newTestEngine(t, Config{})
	require.NoError(t, eng.Start(context.Background()))

	flagged, err := eng.ToggleReview(2)
	require.NoError(t, err)
	assert.True(t, flagged)
	assert.Equal(t, []int{2}, eng.Progress().ReviewFlags)

	flagged, err = eng.ToggleReview(2)
	require.NoError(t, err)
	assert.False(t, flagged)
	assert.Empty(t, eng.Progress().ReviewFlags)

	_, err = eng.ToggleReview(99)
	assert.Error(t, err)
}

func TestEngine_PauseRespectsSetting(t *testing.T) {
	eng := newTestEngine(t, Config{Settings: models.QuizSettings{TimeLimitSeconds: 60}})
	require.NoError(t, eng.Start(context.Background()))
	assert.ErrorIs(t, eng.Pause(), ErrPauseNotAllowed)

	eng = newTestEngine(t, Config{Settings: models.QuizSettings{TimeLimitSeconds: 60, AllowPause: true}})
	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Pause())
	require.NoError(t, eng.Tick(context.Background(), 30))
	assert.Equal(t, 60, eng.Progress().SessionRemainingSeconds)
	require.NoError(t, eng.Resume())
}
