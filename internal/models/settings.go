package models

const (
	DefaultPassingPercentage = 60

	// NegativeMarkingPenalty is the fraction of a question's points deducted
	// for a wrong (but answered) response when negative marking is on.
	NegativeMarkingPenalty = 0.25
)

// QuizSettings configures one attempt. Supplied at attempt start and
// immutable for the lifetime of the attempt.
type QuizSettings struct {
	// Time settings (seconds, 0 = no limit)
	TimeLimitSeconds            int `json:"time_limit_seconds" validate:"min=0"`
	TimeLimitPerQuestionSeconds int `json:"time_limit_per_question_seconds" validate:"min=0"`

	// Question display settings
	RandomizeQuestions bool `json:"randomize_questions"`
	RandomizeAnswers   bool `json:"randomize_answers"`
	AllowPause         bool `json:"allow_pause"`

	// Attempt settings
	MaxAttempts        int `json:"max_attempts" validate:"min=0"` // 0 = unlimited
	RetakeDelayMinutes int `json:"retake_delay_minutes" validate:"min=0"`

	// Scoring settings
	PassingPercentage           float64 `json:"passing_percentage" validate:"min=0,max=100"`
	PartialCreditForMultiSelect bool    `json:"partial_credit_for_multi_select"`
	NegativeMarkingEnabled      bool    `json:"negative_marking_enabled"`

	// Result settings
	RevealCorrectAnswers bool `json:"reveal_correct_answers"`
	RevealExplanations   bool `json:"reveal_explanations"`
}

// EffectivePassingPercentage returns the configured passing threshold,
// defaulting to 60 when unset.
func (s QuizSettings) EffectivePassingPercentage() float64 {
	if s.PassingPercentage > 0 {
		return s.PassingPercentage
	}
	return DefaultPassingPercentage
}
