package engine

import (
	"math/rand"
	"time"

	"github.com/quizforge/quiz-engine/internal/models"
)

// Shuffle produces the presentation order for one attempt. The input slice is
// never modified; every call derives from the original question list, so
// toggling a randomization flag re-shuffles from scratch instead of
// compounding permutations.
//
// Randomness comes from the supplied source so shuffles are reproducible in
// tests with a fixed seed.
func Shuffle(questions []models.Question, settings models.QuizSettings, r *rand.Rand) []models.ShuffledQuestion {
	shuffled := make([]models.ShuffledQuestion, len(questions))
	for i, q := range questions {
		shuffled[i] = models.ShuffledQuestion{Question: q, OriginalIndex: i}
	}

	if settings.RandomizeQuestions {
		// Fisher-Yates over the whole question sequence; options and keys
		// travel with their question.
		for i := len(shuffled) - 1; i > 0; i-- {
			j := r.Intn(i + 1)
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		}
	}

	if settings.RandomizeAnswers {
		for i := range shuffled {
			if shuffled[i].Type.HasShuffleableOptions() {
				shuffleOptions(&shuffled[i], r)
			}
		}
	}

	return shuffled
}

// NewShuffleSource returns a time-seeded random source for production use.
func NewShuffleSource() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// shuffleOptions permutes a question's answer options uniformly at random and
// remaps the answer key to the new positions. The multiset of option texts is
// unchanged and the option that was correct stays correct.
func shuffleOptions(q *models.ShuffledQuestion, r *rand.Rand) {
	n := len(q.AnswerOptions)
	if n < 2 {
		return
	}

	perm := r.Perm(n)

	options := make([]string, n)
	newIndex := make([]int, n) // old position -> new position
	for newPos, oldPos := range perm {
		options[newPos] = q.AnswerOptions[oldPos]
		newIndex[oldPos] = newPos
	}
	q.AnswerOptions = options

	switch key := q.Key.(type) {
	case models.SingleChoiceAnswer:
		q.Key = models.SingleChoiceAnswer{Selected: remapIndex(key.Selected, newIndex)}
	case models.TrueFalseAnswer:
		q.Key = models.TrueFalseAnswer{Selected: remapIndex(key.Selected, newIndex)}
	case models.MultiSelectAnswer:
		selected := make([]int, len(key.Selected))
		for i, idx := range key.Selected {
			selected[i] = remapIndex(idx, newIndex)
		}
		q.Key = models.MultiSelectAnswer{Selected: selected}
	}
}

func remapIndex(idx int, newIndex []int) int {
	if idx < 0 || idx >= len(newIndex) {
		return idx
	}
	return newIndex[idx]
}
