package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Answer is the learner response for a single question. It is a closed union:
// exactly one concrete type per question shape, so the scorer can switch
// exhaustively and a new question type is a compile-time change.
//
// An unanswered slot is represented by a nil Answer, never by a zero value.
type Answer interface {
	isAnswer()
}

type SingleChoiceAnswer struct {
	Selected int `json:"selected"`
}

type TrueFalseAnswer struct {
	Selected int `json:"selected"` // option index, 0 = true / 1 = false by convention
}

type MultiSelectAnswer struct {
	Selected []int `json:"selected"`
}

// TextAnswer covers fill-blank and short-answer responses.
type TextAnswer struct {
	Text string `json:"text"`
}

type MatchingAnswer struct {
	Pairs map[int]int `json:"pairs"` // left option index -> right option index
}

type OrderingAnswer struct {
	Order []int `json:"order"` // option indices in submitted order
}

type EssayAnswer struct {
	Text string `json:"text"`
}

func (SingleChoiceAnswer) isAnswer() {}
func (TrueFalseAnswer) isAnswer()    {}
func (MultiSelectAnswer) isAnswer()  {}
func (TextAnswer) isAnswer()         {}
func (MatchingAnswer) isAnswer()     {}
func (OrderingAnswer) isAnswer()     {}
func (EssayAnswer) isAnswer()        {}

// MarshalAnswer encodes an answer as JSON for transport and JSONB storage.
// A nil answer (unanswered) encodes as JSON null.
func MarshalAnswer(a Answer) (datatypes.JSON, error) {
	if a == nil {
		return datatypes.JSON("null"), nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}
	return data, nil
}

// UnmarshalAnswer decodes an answer payload into the concrete shape for the
// given question type. Empty and null payloads decode to nil (unanswered).
func UnmarshalAnswer(qt QuestionType, data []byte) (Answer, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	switch qt {
	case SingleChoice:
		var a SingleChoiceAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("invalid single-choice answer: %w", err)
		}
		return a, nil
	case TrueFalse:
		var a TrueFalseAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("invalid true/false answer: %w", err)
		}
		return a, nil
	case MultiSelect:
		var a MultiSelectAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("invalid multi-select answer: %w", err)
		}
		return a, nil
	case FillInBlank, ShortAnswer:
		var a TextAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("invalid text answer: %w", err)
		}
		return a, nil
	case Matching:
		var a MatchingAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("invalid matching answer: %w", err)
		}
		return a, nil
	case Ordering:
		var a OrderingAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("invalid ordering answer: %w", err)
		}
		return a, nil
	case Essay:
		var a EssayAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("invalid essay answer: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown question type %q", qt)
	}
}

// IsBlank reports whether an answer should count as not answered: nil, or a
// free-text response that trims to the empty string.
func IsBlank(a Answer) bool {
	switch v := a.(type) {
	case nil:
		return true
	case TextAnswer:
		return trimmed(v.Text) == ""
	case EssayAnswer:
		return trimmed(v.Text) == ""
	default:
		return false
	}
}
