package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/aulaviva/quizengine/internal/model"
)

// AttemptHistory is the attempt-history collaborator contract.
type AttemptHistory interface {
	// LatestAttempt returns the learner's most recent attempt at a quiz, or
	// nil when there is none.
	LatestAttempt(ctx context.Context, learnerID, quizID string) (*model.AttemptRecord, error)
}

// Criterion selects which question ids a failed attempt excludes from the
// next draw. The collaborator contract only exposes answered ids, so the
// supported criteria are seen (every id from the attempt) and none.
type Criterion string

const (
	// CriterionSeen excludes every question id from the latest failed
	// attempt, including ones answered correctly. This forces breadth of
	// coverage across retries.
	CriterionSeen Criterion = "seen"
	// CriterionNone disables retry exclusion.
	CriterionNone Criterion = "none"
)

// ParseCriterion validates a criterion name.
func ParseCriterion(s string) (Criterion, error) {
	switch Criterion(s) {
	case CriterionSeen, CriterionNone:
		return Criterion(s), nil
	case "":
		return CriterionSeen, nil
	}
	return "", fmt.Errorf("unknown retry exclusion criterion %q", s)
}

// RetryExclusionPolicy derives the sampling exclusion set from a learner's
// latest failed pool-quiz attempt. Fixed quizzes are unaffected: their
// question set is authored, not sampled.
type RetryExclusionPolicy struct {
	History   AttemptHistory
	Criterion Criterion
}

// ExcludeIDs returns the question ids to exclude from the next draw for this
// learner and quiz. Passed attempts and missing history yield no exclusions.
func (p RetryExclusionPolicy) ExcludeIDs(ctx context.Context, learnerID string, quiz model.Quiz) ([]string, error) {
	if quiz.Kind != model.QuizPool || p.Criterion == CriterionNone || p.History == nil {
		return nil, nil
	}
	rec, err := p.History.LatestAttempt(ctx, learnerID, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch latest attempt: %w", err)
	}
	if rec == nil || rec.Passed {
		return nil, nil
	}
	return rec.AnsweredQuestionIDs, nil
}

// MemoryHistory is an in-memory AttemptHistory that records evaluation
// outcomes as they are submitted.
type MemoryHistory struct {
	mu     sync.RWMutex
	latest map[string]model.AttemptRecord
}

// NewMemoryHistory creates an empty attempt history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{latest: map[string]model.AttemptRecord{}}
}

func historyKey(learnerID, quizID string) string {
	return learnerID + "\x00" + quizID
}

// Record stores the learner's latest attempt at a quiz.
func (h *MemoryHistory) Record(learnerID, quizID string, rec model.AttemptRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[historyKey(learnerID, quizID)] = rec
}

func (h *MemoryHistory) LatestAttempt(_ context.Context, learnerID, quizID string) (*model.AttemptRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.latest[historyKey(learnerID, quizID)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
