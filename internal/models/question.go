package models

import "encoding/json"

type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	TrueFalse    QuestionType = "true_false"
	MultiSelect  QuestionType = "multi_select"
	FillInBlank  QuestionType = "fill_blank"
	ShortAnswer  QuestionType = "short_answer"
	Matching     QuestionType = "matching"
	Ordering     QuestionType = "ordering"
	Essay        QuestionType = "essay"
)

// HasShuffleableOptions reports whether the options of this question type are
// interchangeable choices. Matching and ordering options encode structural
// meaning and must keep their positions; free-text types have no options.
func (t QuestionType) HasShuffleableOptions() bool {
	switch t {
	case SingleChoice, TrueFalse, MultiSelect:
		return true
	default:
		return false
	}
}

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

const DefaultQuestionPoints = 10

// Question is one item of a quiz. Immutable once an attempt has started.
type Question struct {
	Text          string           `json:"text" validate:"required,min=1"`
	Type          QuestionType     `json:"type" validate:"required,question_type"`
	AnswerOptions []string         `json:"answer_options"`
	Key           Answer           `json:"key"`
	Points        float64          `json:"points" validate:"gt=0"`
	Explanation   *string          `json:"explanation,omitempty"`
	Difficulty    *DifficultyLevel `json:"difficulty,omitempty" validate:"omitempty,difficulty_level"`
}

// UnmarshalJSON decodes the answer key into the concrete shape dictated by
// the question type.
func (q *Question) UnmarshalJSON(data []byte) error {
	type alias Question
	aux := struct {
		Key json.RawMessage `json:"key"`
		*alias
	}{alias: (*alias)(q)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	key, err := UnmarshalAnswer(q.Type, aux.Key)
	if err != nil {
		return err
	}
	q.Key = key
	return nil
}

// EffectivePoints returns the question's point value, falling back to the
// default when the author left it unset.
func (q Question) EffectivePoints() float64 {
	if q.Points > 0 {
		return q.Points
	}
	return DefaultQuestionPoints
}

// ShuffledQuestion is a Question whose answer options and key have been
// remapped to a presentation order for one attempt. OriginalIndex points back
// into the source question list.
type ShuffledQuestion struct {
	Question
	OriginalIndex int `json:"original_index"`
}
