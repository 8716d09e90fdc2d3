package bank

import (
	"context"
	"errors"

	"github.com/aulaviva/quizengine/internal/model"
)

// ErrNotFound is returned when a question or quiz id is absent from the
// catalog.
var ErrNotFound = errors.New("not found")

// Filter narrows a catalog query. Zero-valued fields match everything.
type Filter struct {
	Scope      model.Scope
	Difficulty model.Difficulty
	ExcludeIDs []string
}

// ItemError attributes a bulk-import failure to its item index.
type ItemError struct {
	Index int   `json:"index"`
	Err   error `json:"-"`
}

// BulkResult aggregates a CreateMany outcome. Earlier successful writes are
// never rolled back when later items fail.
type BulkResult struct {
	Succeeded int
	Failed    []ItemError
}

// Bank is the catalog collaborator contract. The engine depends only on this
// interface, not on the storage behind it, so sampling, validation and
// grading are testable without a live backing store.
type Bank interface {
	Create(ctx context.Context, q model.QuizQuestion) error
	// CreateMany processes items sequentially and independently, continuing
	// past individual failures.
	CreateMany(ctx context.Context, qs []model.QuizQuestion) BulkResult
	Get(ctx context.Context, id string) (model.QuizQuestion, error)
	Update(ctx context.Context, q model.QuizQuestion) error
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, f Filter) ([]model.QuizQuestion, error)
}

// QuizStore persists authored quizzes (fixed question lists or pool
// parameters plus passing score).
type QuizStore interface {
	PutQuiz(ctx context.Context, qz model.Quiz) error
	GetQuiz(ctx context.Context, id string) (model.Quiz, error)
}

// bulkCreate implements the sequential per-item CreateMany loop shared by
// all Bank implementations.
func bulkCreate(ctx context.Context, b Bank, qs []model.QuizQuestion) BulkResult {
	var res BulkResult
	for i, q := range qs {
		if err := b.Create(ctx, q); err != nil {
			res.Failed = append(res.Failed, ItemError{Index: i, Err: err})
			continue
		}
		res.Succeeded++
	}
	return res
}

// matches reports whether a question satisfies a filter.
func matches(q model.QuizQuestion, f Filter) bool {
	if f.Scope.CourseID != "" && q.Scope.CourseID != f.Scope.CourseID {
		return false
	}
	if f.Scope.ModuleID != "" && q.Scope.ModuleID != f.Scope.ModuleID {
		return false
	}
	if f.Scope.LessonID != "" && q.Scope.LessonID != f.Scope.LessonID {
		return false
	}
	if f.Difficulty != "" && q.Difficulty != f.Difficulty {
		return false
	}
	for _, id := range f.ExcludeIDs {
		if q.ID == id {
			return false
		}
	}
	return true
}
