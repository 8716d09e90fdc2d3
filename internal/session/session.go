package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aulaviva/quizengine/internal/model"
)

// Status represents the session state machine: created -> answering ->
// submitted | abandoned. Submitted and abandoned are terminal.
type Status string

const (
	StatusCreated   Status = "created"
	StatusAnswering Status = "answering"
	StatusSubmitted Status = "submitted"
	StatusAbandoned Status = "abandoned"
)

var (
	// ErrSessionClosed is returned on any mutation of a terminal session.
	ErrSessionClosed = errors.New("session already submitted or abandoned")
	// ErrUnknownQuestion is returned when an answer targets a question id
	// absent from the session snapshot.
	ErrUnknownQuestion = errors.New("question not in session snapshot")
	// ErrNotFound is returned by the manager for unknown session ids.
	ErrNotFound = errors.New("session not found")
)

// Session is an ephemeral, mode-tagged snapshot of questions presented to a
// learner. The snapshot is frozen and shuffled at creation and never re-reads
// the catalog, so concurrent catalog edits cannot change an open session's
// scoring. Mode is immutable once set.
type Session struct {
	ID                  string
	QuizID              string
	LearnerID           string
	Mode                model.Mode
	PassingScorePercent int
	Insufficient        bool
	StartedAt           time.Time

	mu        sync.Mutex
	status    Status
	questions []model.QuizQuestion
	answers   map[string]string
	result    *model.QuizAttemptResult
}

// New creates a session, snapshotting and shuffling the given questions.
// Question order and each question's option order get independent fresh
// permutations.
func New(quiz model.Quiz, learnerID string, mode model.Mode, questions []model.QuizQuestion, insufficient bool) *Session {
	snapshot := ShuffleQuestions(questions)
	for i := range snapshot {
		snapshot[i].Options = ShuffleOptions(snapshot[i].Options)
	}
	return &Session{
		ID:                  uuid.NewString(),
		QuizID:              quiz.ID,
		LearnerID:           learnerID,
		Mode:                mode,
		PassingScorePercent: quiz.PassingScorePercent,
		Insufficient:        insufficient,
		StartedAt:           time.Now(),
		status:              StatusCreated,
		questions:           snapshot,
		answers:             map[string]string{},
	}
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Questions returns a deep copy of the snapshot in presentation order.
func (s *Session) Questions() []model.QuizQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.QuizQuestion, len(s.questions))
	for i := range s.questions {
		out[i] = s.questions[i].Clone()
	}
	return out
}

// Answer records or overwrites the learner's answer for one question.
func (s *Session) Answer(questionID, optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusSubmitted || s.status == StatusAbandoned {
		return ErrSessionClosed
	}
	found := false
	for i := range s.questions {
		if s.questions[i].ID == questionID {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownQuestion
	}
	s.answers[questionID] = optionID
	s.status = StatusAnswering
	return nil
}

// Submit grades the session against its snapshot and moves it to the
// terminal submitted state.
func (s *Session) Submit() (model.QuizAttemptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusSubmitted || s.status == StatusAbandoned {
		return model.QuizAttemptResult{}, ErrSessionClosed
	}
	res := Grade(s.questions, s.answers, s.PassingScorePercent)
	s.result = &res
	s.status = StatusSubmitted
	return res, nil
}

// Abandon moves the session to the terminal abandoned state. No grading, no
// side effects.
func (s *Session) Abandon() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusSubmitted || s.status == StatusAbandoned {
		return ErrSessionClosed
	}
	s.status = StatusAbandoned
	return nil
}

// Result returns the graded result of a submitted session.
func (s *Session) Result() (model.QuizAttemptResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return model.QuizAttemptResult{}, false
	}
	return *s.result, true
}

// AnsweredQuestionIDs returns the ids of questions the learner answered.
func (s *Session) AnsweredQuestionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.answers))
	for id := range s.answers {
		ids = append(ids, id)
	}
	return ids
}

// QuestionIDs returns the ids of every question presented in the snapshot.
func (s *Session) QuestionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.questions))
	for i := range s.questions {
		ids = append(ids, s.questions[i].ID)
	}
	return ids
}

// Manager holds live sessions. Sessions are ephemeral: they exist only here,
// never in the catalog, and are removed on submit or abandon.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: map[string]*Session{}}
}

// Put registers a session.
func (m *Manager) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove destroys a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
