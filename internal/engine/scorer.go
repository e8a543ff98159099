package engine

import (
	"math"
	"time"

	"github.com/quizforge/quiz-engine/internal/models"
)

// Score computes the full result of an attempt. It is pure: no side effects,
// and identical inputs always produce identical records, so it can be called
// speculatively for preview scoring.
//
// Unanswered questions never contribute to the correct/incorrect tallies and
// never incur the negative-marking penalty.
func Score(questions []models.ShuffledQuestion, answers []models.Answer, settings models.QuizSettings, timeSpentSeconds int, submittedAt time.Time) models.AttemptRecord {
	record := models.AttemptRecord{
		SubmittedAt:      submittedAt,
		TimeSpentSeconds: timeSpentSeconds,
		Results:          make([]models.QuestionResult, len(questions)),
	}

	for i, q := range questions {
		var submitted models.Answer
		if i < len(answers) {
			submitted = answers[i]
		}

		result := scoreQuestion(q, submitted, settings)
		result.Index = i
		result.OriginalIndex = q.OriginalIndex

		if settings.RevealCorrectAnswers {
			if key, err := models.MarshalAnswer(q.Key); err == nil {
				result.CorrectAnswer = key
			}
		}
		if settings.RevealExplanations {
			result.Explanation = q.Explanation
		}

		record.TotalPoints += q.EffectivePoints()
		record.Score += result.PointsEarned
		switch {
		case !result.Answered:
			record.Unanswered++
		case result.IsCorrect:
			record.Correct++
		default:
			record.Incorrect++
		}

		record.Results[i] = result
	}

	if record.TotalPoints > 0 {
		record.Percentage = math.Round(100 * record.Score / record.TotalPoints)
	}
	record.Passed = record.Percentage >= settings.EffectivePassingPercentage()

	return record
}

func scoreQuestion(q models.ShuffledQuestion, submitted models.Answer, settings models.QuizSettings) models.QuestionResult {
	result := models.QuestionResult{}

	payload, err := models.MarshalAnswer(submitted)
	if err == nil {
		result.Submitted = payload
	}

	if models.IsBlank(submitted) {
		return result
	}
	result.Answered = true

	points := q.EffectivePoints()

	switch q.Type {
	case models.SingleChoice:
		result.IsCorrect = indexMatch(submitted, q.Key)
	case models.TrueFalse:
		result.IsCorrect = indexMatch(submitted, q.Key)
	case models.MultiSelect:
		sub, okSub := submitted.(models.MultiSelectAnswer)
		key, okKey := q.Key.(models.MultiSelectAnswer)
		if okSub && okKey {
			overlap := intersectionSize(sub.Selected, key.Selected)
			exact := overlap == len(key.Selected) && len(indexSet(sub.Selected)) == len(indexSet(key.Selected))
			result.IsCorrect = exact && len(key.Selected) > 0
			if !result.IsCorrect && settings.PartialCreditForMultiSelect && len(key.Selected) > 0 {
				result.PointsEarned = float64(overlap) / float64(len(key.Selected)) * points
				return result
			}
		}
	case models.FillInBlank, models.ShortAnswer:
		sub, okSub := submitted.(models.TextAnswer)
		key, okKey := q.Key.(models.TextAnswer)
		result.IsCorrect = okSub && okKey && models.NormalizeText(sub.Text) == models.NormalizeText(key.Text)
	case models.Matching:
		sub, okSub := submitted.(models.MatchingAnswer)
		key, okKey := q.Key.(models.MatchingAnswer)
		result.IsCorrect = okSub && okKey && pairsEqual(sub.Pairs, key.Pairs)
	case models.Ordering:
		sub, okSub := submitted.(models.OrderingAnswer)
		key, okKey := q.Key.(models.OrderingAnswer)
		result.IsCorrect = okSub && okKey && sequenceEqual(sub.Order, key.Order)
	case models.Essay:
		// Essays require manual grading: never auto-correct, never penalized.
		return result
	}

	if result.IsCorrect {
		result.PointsEarned = points
	} else if settings.NegativeMarkingEnabled {
		result.PointsEarned = -models.NegativeMarkingPenalty * points
	}

	return result
}

// indexMatch compares single-index answers defensively: any unexpected shape
// scores as incorrect rather than panicking.
func indexMatch(submitted, key models.Answer) bool {
	subIdx, ok := selectedIndex(submitted)
	if !ok {
		return false
	}
	keyIdx, ok := selectedIndex(key)
	if !ok {
		return false
	}
	return subIdx == keyIdx
}

func selectedIndex(a models.Answer) (int, bool) {
	switch v := a.(type) {
	case models.SingleChoiceAnswer:
		return v.Selected, true
	case models.TrueFalseAnswer:
		return v.Selected, true
	default:
		return 0, false
	}
}

func indexSet(indices []int) map[int]bool {
	set := make(map[int]bool, len(indices))
	for _, idx := range indices {
		set[idx] = true
	}
	return set
}

func intersectionSize(submitted, correct []int) int {
	correctSet := indexSet(correct)
	seen := make(map[int]bool, len(submitted))
	count := 0
	for _, idx := range submitted {
		if correctSet[idx] && !seen[idx] {
			seen[idx] = true
			count++
		}
	}
	return count
}

func pairsEqual(a, b map[int]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func sequenceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
