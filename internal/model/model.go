package model

import "time"

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid reports whether d is one of the known difficulty levels.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Mode tags an assessment session. Practice sessions grant no rewards or
// progress in the surrounding platform; only evaluation outcomes do.
type Mode string

const (
	ModePractice   Mode = "practice"
	ModeEvaluation Mode = "evaluation"
)

// IsValid reports whether m is a known session mode.
func (m Mode) IsValid() bool {
	return m == ModePractice || m == ModeEvaluation
}

// Scope is the course/module/lesson filter applied when querying or sampling
// the question bank. Empty fields match everything.
type Scope struct {
	CourseID string `json:"course_id,omitempty"`
	ModuleID string `json:"module_id,omitempty"`
	LessonID string `json:"lesson_id,omitempty"`
}

// QuizOption is one answer choice of a question.
type QuizOption struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
	Position   int    `json:"position"`
}

// QuizQuestion is a validated catalog question. Post-validation, exactly one
// option has IsCorrect set; evaluation-mode grading relies on that.
type QuizQuestion struct {
	ID         string       `json:"id"`
	Scope      Scope        `json:"scope"`
	Text       string       `json:"text"`
	Position   int          `json:"position"`
	Points     int          `json:"points"`
	Difficulty Difficulty   `json:"difficulty"`
	ImageURL   string       `json:"image_url,omitempty"`
	Options    []QuizOption `json:"options"`
}

// CorrectOption returns the option flagged correct, or nil.
func (q QuizQuestion) CorrectOption() *QuizOption {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the question. Session snapshots use it so that
// catalog edits cannot reach into an open session.
func (q QuizQuestion) Clone() QuizQuestion {
	out := q
	out.Options = make([]QuizOption, len(q.Options))
	copy(out.Options, q.Options)
	return out
}

// QuizKind distinguishes author-ordered quizzes from pool quizzes whose
// question set is sampled at session start.
type QuizKind string

const (
	QuizFixed QuizKind = "fixed"
	QuizPool  QuizKind = "pool"
)

// Quiz describes an assessment. A fixed quiz carries an explicit ordered
// question id list; a pool quiz carries sampling parameters instead.
type Quiz struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Kind                QuizKind   `json:"kind"`
	Scope               Scope      `json:"scope"`
	PassingScorePercent int        `json:"passing_score_percent"`
	QuestionIDs         []string   `json:"question_ids,omitempty"` // fixed only
	TargetCount         int        `json:"target_count,omitempty"` // pool only
	DifficultyFilter    Difficulty `json:"difficulty_filter,omitempty"`
}

// QuizAttemptResult is the graded outcome of a submitted session. It is
// purely derived: re-grading the same snapshot and answers reproduces it.
type QuizAttemptResult struct {
	ScorePercent int  `json:"score_percent"`
	Passed       bool `json:"passed"`
	EarnedPoints int  `json:"earned_points"`
	TotalPoints  int  `json:"total_points"`
}

// AttemptRecord is what the attempt-history collaborator exposes about a
// learner's latest attempt at a quiz.
type AttemptRecord struct {
	Passed              bool      `json:"passed"`
	AnsweredQuestionIDs []string  `json:"answered_question_ids"`
	CompletedAt         time.Time `json:"completed_at"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	DefaultPoolSize int    // question count when a pool quiz has no target
	RetryExclusion  string // "seen" or "none"
	AllowedOrigins  []string
}
