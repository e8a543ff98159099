package engine

// TimerState is the lifecycle of the attempt countdowns.
//
//	Idle -> Running -> {Paused, Expired, Completed}
//	Paused -> Running
//
// Expired and Completed are terminal: further ticks are ignored.
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerPaused
	TimerExpired
	TimerCompleted
)

func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "idle"
	case TimerRunning:
		return "running"
	case TimerPaused:
		return "paused"
	case TimerExpired:
		return "expired"
	case TimerCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// TickResult reports what a clock tick caused. SessionExpired is raised
// exactly once per attempt; QuestionExpired every time the per-question
// counter reaches zero.
type TickResult struct {
	SessionExpired  bool
	QuestionExpired bool
}

// TimerController holds the two independent 1 Hz countdowns: the quiz-wide
// session timer and the per-question timer. It is a pure tick reducer driven
// by an external clock, so expiry behavior is testable without wall-clock
// waits. A limit of 0 disables the corresponding countdown.
type TimerController struct {
	state TimerState

	sessionLimit  int
	questionLimit int

	sessionRemaining  int
	questionRemaining int

	allowPause bool
}

func NewTimerController(sessionLimit, questionLimit int, allowPause bool) *TimerController {
	return &TimerController{
		state:             TimerIdle,
		sessionLimit:      sessionLimit,
		questionLimit:     questionLimit,
		sessionRemaining:  sessionLimit,
		questionRemaining: questionLimit,
		allowPause:        allowPause,
	}
}

func (t *TimerController) State() TimerState {
	return t.state
}

// Remaining returns the seconds left on the session and per-question
// countdowns. Zero means expired or no limit configured.
func (t *TimerController) Remaining() (session, question int) {
	return t.sessionRemaining, t.questionRemaining
}

// Start moves Idle to Running. Starting an already-running controller is a
// no-op.
func (t *TimerController) Start() {
	if t.state == TimerIdle {
		t.state = TimerRunning
	}
}

// Pause suspends both countdowns. Only valid while running and only when
// the quiz allows pausing.
func (t *TimerController) Pause() error {
	if !t.allowPause {
		return ErrPauseNotAllowed
	}
	if t.state != TimerRunning {
		return ErrAttemptNotActive
	}
	t.state = TimerPaused
	return nil
}

// Resume continues a paused controller.
func (t *TimerController) Resume() error {
	if t.state != TimerPaused {
		return ErrAttemptNotActive
	}
	t.state = TimerRunning
	return nil
}

// Complete marks the attempt as submitted before expiry. Terminal.
func (t *TimerController) Complete() {
	if t.state == TimerRunning || t.state == TimerPaused || t.state == TimerIdle {
		t.state = TimerCompleted
	}
}

// ResetQuestionTimer restores the per-question countdown to its configured
// value, regardless of how much time remained. Called on manual navigation.
func (t *TimerController) ResetQuestionTimer() {
	t.questionRemaining = t.questionLimit
}

// Tick advances both countdowns by elapsed seconds. While paused, expired or
// completed nothing decrements. Session expiry transitions to Expired and is
// reported exactly once even if Tick is re-entered afterwards; the caller is
// responsible for triggering the forced submission. Question expiry resets
// the per-question counter and reports it so the caller can advance.
func (t *TimerController) Tick(elapsed int) TickResult {
	var result TickResult

	if t.state != TimerRunning || elapsed <= 0 {
		return result
	}

	if t.sessionLimit > 0 {
		t.sessionRemaining -= elapsed
		if t.sessionRemaining <= 0 {
			t.sessionRemaining = 0
			t.state = TimerExpired
			result.SessionExpired = true
			return result
		}
	}

	if t.questionLimit > 0 {
		t.questionRemaining -= elapsed
		if t.questionRemaining <= 0 {
			t.questionRemaining = t.questionLimit
			result.QuestionExpired = true
		}
	}

	return result
}
