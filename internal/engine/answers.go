package engine

import (
	"sort"

	"github.com/quizforge/quiz-engine/internal/models"
)

// AnswerStore holds the learner's current answer per shuffled question
// index. A nil slot means unanswered; setting a zero-value answer (false,
// empty selection) is a real answer and is kept distinct.
type AnswerStore struct {
	answers []models.Answer
}

// NewAnswerStore creates a store sized to the shuffled question count with
// every slot unanswered.
func NewAnswerStore(size int) *AnswerStore {
	return &AnswerStore{answers: make([]models.Answer, size)}
}

// Reset re-sizes the store for a new attempt and clears every slot.
func (s *AnswerStore) Reset(size int) {
	s.answers = make([]models.Answer, size)
}

// Set overwrites the slot at index. Shape checking is left to the editing
// surface; the scorer handles any shape defensively.
func (s *AnswerStore) Set(index int, answer models.Answer) bool {
	if index < 0 || index >= len(s.answers) {
		return false
	}
	s.answers[index] = answer
	return true
}

// Get returns the answer at index, nil when unanswered or out of range.
func (s *AnswerStore) Get(index int) models.Answer {
	if index < 0 || index >= len(s.answers) {
		return nil
	}
	return s.answers[index]
}

// Len returns the number of slots.
func (s *AnswerStore) Len() int {
	return len(s.answers)
}

// AnsweredCount returns the number of slots whose value is neither nil nor a
// blank free-text response.
func (s *AnswerStore) AnsweredCount() int {
	count := 0
	for _, a := range s.answers {
		if !models.IsBlank(a) {
			count++
		}
	}
	return count
}

// Snapshot returns a copy of the current answers, aligned with the shuffled
// question order.
func (s *AnswerStore) Snapshot() []models.Answer {
	out := make([]models.Answer, len(s.answers))
	copy(out, s.answers)
	return out
}

// ReviewFlags is the set of question indices the learner marked for later
// review. Independent of answers and scoring.
type ReviewFlags struct {
	flags map[int]bool
}

func NewReviewFlags() *ReviewFlags {
	return &ReviewFlags{flags: make(map[int]bool)}
}

// Toggle flips the flag for index and returns the new state.
func (f *ReviewFlags) Toggle(index int) bool {
	if f.flags[index] {
		delete(f.flags, index)
		return false
	}
	f.flags[index] = true
	return true
}

func (f *ReviewFlags) IsFlagged(index int) bool {
	return f.flags[index]
}

// Indices returns the flagged indices in ascending order.
func (f *ReviewFlags) Indices() []int {
	out := make([]int, 0, len(f.flags))
	for idx := range f.flags {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Clear drops all flags (new attempt).
func (f *ReviewFlags) Clear() {
	f.flags = make(map[int]bool)
}
