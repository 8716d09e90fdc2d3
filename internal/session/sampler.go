package session

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/aulaviva/quizengine/internal/bank"
	"github.com/aulaviva/quizengine/internal/model"
)

// Draw samples up to count questions uniformly at random, without
// replacement, from the bank subset matching the filter. When fewer than
// count questions qualify it returns all of them and insufficient = true; it
// never pads with repeats or placeholders. The read is a point-in-time
// snapshot, not transactional against concurrent catalog edits.
func Draw(ctx context.Context, b bank.Bank, count int, f bank.Filter) ([]model.QuizQuestion, bool, error) {
	if count <= 0 {
		return nil, false, fmt.Errorf("draw count must be positive, got %d", count)
	}
	qs, err := b.Query(ctx, f)
	if err != nil {
		return nil, false, fmt.Errorf("query question bank: %w", err)
	}

	pool := make([]model.QuizQuestion, len(qs))
	copy(pool, qs)
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	if len(pool) < count {
		return pool, true, nil
	}
	return pool[:count], false, nil
}
