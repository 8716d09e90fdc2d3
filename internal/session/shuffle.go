package session

import (
	"math/rand"

	"github.com/aulaviva/quizengine/internal/model"
)

// ShuffleQuestions returns a fresh uniform permutation of qs with
// presentation positions reassigned. The input slice is never mutated; each
// element is deep-copied so the result is safe to hand to a session snapshot.
func ShuffleQuestions(qs []model.QuizQuestion) []model.QuizQuestion {
	out := make([]model.QuizQuestion, len(qs))
	for i := range qs {
		out[i] = qs[i].Clone()
	}
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	for i := range out {
		out[i].Position = i
	}
	return out
}

// ShuffleOptions returns a fresh uniform permutation of opts with positions
// reassigned, leaving the input untouched. Each invocation produces an
// independent permutation.
func ShuffleOptions(opts []model.QuizOption) []model.QuizOption {
	out := make([]model.QuizOption, len(opts))
	copy(out, opts)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	for i := range out {
		out[i].Position = i
	}
	return out
}
