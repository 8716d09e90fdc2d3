package session

import (
	"math"

	"github.com/aulaviva/quizengine/internal/model"
)

// Grade scores answers against an immutable question snapshot. It is a pure
// function: grading the same snapshot and answers any number of times yields
// an identical result. An answer referencing an option id absent from the
// snapshot scores as incorrect for that question, never as an error.
//
// ScorePercent rounds half away from zero; the passing comparison is >=.
// Both are deliberate, fixed constants of the engine.
func Grade(questions []model.QuizQuestion, answers map[string]string, passingScorePercent int) model.QuizAttemptResult {
	var earned, total int
	for _, q := range questions {
		total += q.Points
		optionID, ok := answers[q.ID]
		if !ok {
			continue
		}
		for _, o := range q.Options {
			if o.ID == optionID && o.IsCorrect {
				earned += q.Points
				break
			}
		}
	}

	score := 0
	if total > 0 {
		score = int(math.Round(100 * float64(earned) / float64(total)))
	}
	return model.QuizAttemptResult{
		ScorePercent: score,
		Passed:       score >= passingScorePercent,
		EarnedPoints: earned,
		TotalPoints:  total,
	}
}
