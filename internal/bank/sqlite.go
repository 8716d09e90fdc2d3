package bank

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aulaviva/quizengine/internal/model"

	_ "modernc.org/sqlite"
)

// SQLite is a Bank and QuizStore backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite-backed catalog at the given path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quiz_questions (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL DEFAULT '',
		module_id TEXT NOT NULL DEFAULT '',
		lesson_id TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		points INTEGER NOT NULL DEFAULT 1,
		difficulty TEXT NOT NULL DEFAULT 'medium',
		image_url TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS quiz_options (
		id TEXT PRIMARY KEY,
		question_id TEXT NOT NULL,
		text TEXT NOT NULL,
		is_correct INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (question_id) REFERENCES quiz_questions(id)
	);
	CREATE INDEX IF NOT EXISTS idx_quiz_options_question ON quiz_options(question_id);

	CREATE TABLE IF NOT EXISTS quizzes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		course_id TEXT NOT NULL DEFAULT '',
		module_id TEXT NOT NULL DEFAULT '',
		lesson_id TEXT NOT NULL DEFAULT '',
		passing_score INTEGER NOT NULL DEFAULT 0,
		target_count INTEGER NOT NULL DEFAULT 0,
		difficulty_filter TEXT NOT NULL DEFAULT '',
		question_ids TEXT NOT NULL DEFAULT '[]'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Create stores a question and its options atomically.
func (s *SQLite) Create(ctx context.Context, q model.QuizQuestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO quiz_questions (id, course_id, module_id, lesson_id, text, position, points, difficulty, image_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Scope.CourseID, q.Scope.ModuleID, q.Scope.LessonID,
		q.Text, q.Position, q.Points, q.Difficulty, q.ImageURL,
	)
	if err != nil {
		return err
	}
	if err := insertOptions(ctx, tx, q); err != nil {
		return err
	}
	return tx.Commit()
}

func insertOptions(ctx context.Context, tx *sql.Tx, q model.QuizQuestion) error {
	for _, o := range q.Options {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO quiz_options (id, question_id, text, is_correct, position) VALUES (?, ?, ?, ?, ?)`,
			o.ID, q.ID, o.Text, o.IsCorrect, o.Position,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) CreateMany(ctx context.Context, qs []model.QuizQuestion) BulkResult {
	return bulkCreate(ctx, s, qs)
}

// Get returns a question with its options ordered by position.
func (s *SQLite) Get(ctx context.Context, id string) (model.QuizQuestion, error) {
	var q model.QuizQuestion
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, module_id, lesson_id, text, position, points, difficulty, image_url
		 FROM quiz_questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.Scope.CourseID, &q.Scope.ModuleID, &q.Scope.LessonID,
		&q.Text, &q.Position, &q.Points, &q.Difficulty, &q.ImageURL)
	if err == sql.ErrNoRows {
		return model.QuizQuestion{}, ErrNotFound
	}
	if err != nil {
		return model.QuizQuestion{}, err
	}
	if q.Options, err = s.loadOptions(ctx, q.ID); err != nil {
		return model.QuizQuestion{}, err
	}
	return q, nil
}

func (s *SQLite) loadOptions(ctx context.Context, questionID string) ([]model.QuizOption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, text, is_correct, position FROM quiz_options
		 WHERE question_id = ? ORDER BY position, id`, questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var opts []model.QuizOption
	for rows.Next() {
		var o model.QuizOption
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect, &o.Position); err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

// Update replaces a question and its options.
func (s *SQLite) Update(ctx context.Context, q model.QuizQuestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE quiz_questions SET course_id = ?, module_id = ?, lesson_id = ?, text = ?,
		 position = ?, points = ?, difficulty = ?, image_url = ? WHERE id = ?`,
		q.Scope.CourseID, q.Scope.ModuleID, q.Scope.LessonID, q.Text,
		q.Position, q.Points, q.Difficulty, q.ImageURL, q.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_options WHERE question_id = ?`, q.ID); err != nil {
		return err
	}
	if err := insertOptions(ctx, tx, q); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a question and its options.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_options WHERE question_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM quiz_questions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// Query returns questions matching the filter, ordered by position then id.
func (s *SQLite) Query(ctx context.Context, f Filter) ([]model.QuizQuestion, error) {
	query := `SELECT id, course_id, module_id, lesson_id, text, position, points, difficulty, image_url
	 FROM quiz_questions WHERE 1=1`
	var args []any
	if f.Scope.CourseID != "" {
		query += ` AND course_id = ?`
		args = append(args, f.Scope.CourseID)
	}
	if f.Scope.ModuleID != "" {
		query += ` AND module_id = ?`
		args = append(args, f.Scope.ModuleID)
	}
	if f.Scope.LessonID != "" {
		query += ` AND lesson_id = ?`
		args = append(args, f.Scope.LessonID)
	}
	if f.Difficulty != "" {
		query += ` AND difficulty = ?`
		args = append(args, f.Difficulty)
	}
	if len(f.ExcludeIDs) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(",?", len(f.ExcludeIDs)-1) + `)`
		for _, id := range f.ExcludeIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY position, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.QuizQuestion
	for rows.Next() {
		var q model.QuizQuestion
		if err := rows.Scan(&q.ID, &q.Scope.CourseID, &q.Scope.ModuleID, &q.Scope.LessonID,
			&q.Text, &q.Position, &q.Points, &q.Difficulty, &q.ImageURL); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range questions {
		if questions[i].Options, err = s.loadOptions(ctx, questions[i].ID); err != nil {
			return nil, err
		}
	}
	return questions, nil
}

// PutQuiz upserts a quiz definition.
func (s *SQLite) PutQuiz(ctx context.Context, qz model.Quiz) error {
	ids, err := json.Marshal(qz.QuestionIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quizzes (id, title, kind, course_id, module_id, lesson_id, passing_score, target_count, difficulty_filter, question_ids)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, kind = excluded.kind,
		   course_id = excluded.course_id, module_id = excluded.module_id, lesson_id = excluded.lesson_id,
		   passing_score = excluded.passing_score, target_count = excluded.target_count,
		   difficulty_filter = excluded.difficulty_filter, question_ids = excluded.question_ids`,
		qz.ID, qz.Title, qz.Kind, qz.Scope.CourseID, qz.Scope.ModuleID, qz.Scope.LessonID,
		qz.PassingScorePercent, qz.TargetCount, qz.DifficultyFilter, string(ids),
	)
	return err
}

// GetQuiz returns a quiz by id.
func (s *SQLite) GetQuiz(ctx context.Context, id string) (model.Quiz, error) {
	var qz model.Quiz
	var ids string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, kind, course_id, module_id, lesson_id, passing_score, target_count, difficulty_filter, question_ids
		 FROM quizzes WHERE id = ?`, id,
	).Scan(&qz.ID, &qz.Title, &qz.Kind, &qz.Scope.CourseID, &qz.Scope.ModuleID, &qz.Scope.LessonID,
		&qz.PassingScorePercent, &qz.TargetCount, &qz.DifficultyFilter, &ids)
	if err == sql.ErrNoRows {
		return model.Quiz{}, ErrNotFound
	}
	if err != nil {
		return model.Quiz{}, err
	}
	if err := json.Unmarshal([]byte(ids), &qz.QuestionIDs); err != nil {
		return model.Quiz{}, fmt.Errorf("decode question ids for quiz %s: %w", id, err)
	}
	return qz, nil
}
