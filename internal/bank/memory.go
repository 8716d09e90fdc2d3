package bank

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aulaviva/quizengine/internal/model"
)

// Memory is an in-memory Bank and QuizStore for tests and embedded use.
// Reads return deep copies so callers can never reach into stored state.
type Memory struct {
	mu        sync.RWMutex
	questions map[string]model.QuizQuestion
	quizzes   map[string]model.Quiz
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		questions: map[string]model.QuizQuestion{},
		quizzes:   map[string]model.Quiz{},
	}
}

func (m *Memory) Create(ctx context.Context, q model.QuizQuestion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[q.ID]; ok {
		return fmt.Errorf("question %s already exists", q.ID)
	}
	m.questions[q.ID] = q.Clone()
	return nil
}

func (m *Memory) CreateMany(ctx context.Context, qs []model.QuizQuestion) BulkResult {
	return bulkCreate(ctx, m, qs)
}

func (m *Memory) Get(ctx context.Context, id string) (model.QuizQuestion, error) {
	if err := ctx.Err(); err != nil {
		return model.QuizQuestion{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return model.QuizQuestion{}, ErrNotFound
	}
	return q.Clone(), nil
}

func (m *Memory) Update(ctx context.Context, q model.QuizQuestion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[q.ID]; !ok {
		return ErrNotFound
	}
	m.questions[q.ID] = q.Clone()
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return ErrNotFound
	}
	delete(m.questions, id)
	return nil
}

func (m *Memory) Query(ctx context.Context, f Filter) ([]model.QuizQuestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.QuizQuestion
	for _, q := range m.questions {
		if matches(q, f) {
			out = append(out, q.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) PutQuiz(ctx context.Context, qz model.Quiz) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[qz.ID] = qz
	return nil
}

func (m *Memory) GetQuiz(ctx context.Context, id string) (model.Quiz, error) {
	if err := ctx.Err(); err != nil {
		return model.Quiz{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	qz, ok := m.quizzes[id]
	if !ok {
		return model.Quiz{}, ErrNotFound
	}
	return qz, nil
}
