package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aulaviva/quizengine/internal/bank"
	"github.com/aulaviva/quizengine/internal/i18n"
	"github.com/aulaviva/quizengine/internal/model"
	"github.com/aulaviva/quizengine/internal/session"
)

type testEnv struct {
	bank   *bank.Memory
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}

	mem := bank.NewMemory()
	history := session.NewMemoryHistory()
	policy := session.RetryExclusionPolicy{History: history, Criterion: session.CriterionSeen}
	cfg := model.ServerConfig{DefaultPoolSize: 20, RetryExclusion: string(session.CriterionSeen)}
	h := New(mem, mem, session.NewManager(), history, policy, nil, cfg)

	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{bank: mem, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode request: %v", err)
			}
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, out.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode response %s: %v", data, err)
	}
	return v
}

func seedQuestions(t *testing.T, e *testEnv, n int, scope model.Scope) []model.QuizQuestion {
	t.Helper()
	qs := make([]model.QuizQuestion, n)
	for i := range qs {
		qID := uuid.NewString()
		qs[i] = model.QuizQuestion{
			ID:         qID,
			Scope:      scope,
			Text:       fmt.Sprintf("Question %d?", i+1),
			Points:     1,
			Position:   i,
			Difficulty: model.DifficultyMedium,
			Options: []model.QuizOption{
				{ID: qID + "-right", QuestionID: qID, Text: "right", IsCorrect: true, Position: 0},
				{ID: qID + "-wrong", QuestionID: qID, Text: "wrong", Position: 1},
			},
		}
		if err := e.bank.Create(context.Background(), qs[i]); err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
	return qs
}

func TestImportEndpoint(t *testing.T) {
	e := newTestEnv(t)

	body := `[
		{"question": "Capital?", "options": [{"text": "Paris", "isCorrect": true}, {"text": "London"}]},
		{"question": "Broken", "options": ["a", "b"]}
	]`
	resp, data := e.do(t, http.MethodPost, "/import?course_id=c1", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}
	out := decode[map[string]any](t, data)
	if out["imported"] != float64(1) || out["parsed"] != float64(2) {
		t.Errorf("unexpected summary: %v", out)
	}
	if msg, _ := out["message"].(string); !strings.Contains(msg, "1 of 2 questions imported") {
		t.Errorf("unexpected message %q", msg)
	}

	qs, _ := e.bank.Query(context.Background(), bank.Filter{Scope: model.Scope{CourseID: "c1"}})
	if len(qs) != 1 {
		t.Errorf("expected 1 question scoped to c1, got %d", len(qs))
	}
}

func TestImportEndpointRejectsGarbage(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodPost, "/import", "complete nonsense")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestGenerateUnavailableWithoutLLM(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodPost, "/generate", map[string]any{"topic": "algebra"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestQuestionCRUDEndpoints(t *testing.T) {
	e := newTestEnv(t)

	create := map[string]any{
		"text":       "Capital of France?",
		"difficulty": "easy",
		"options": []map[string]any{
			{"text": "Paris", "is_correct": true},
			{"text": "London"},
		},
	}
	resp, data := e.do(t, http.MethodPost, "/questions", create)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}
	q := decode[model.QuizQuestion](t, data)
	if q.ID == "" || len(q.Options) != 2 {
		t.Fatalf("unexpected created question: %+v", q)
	}

	resp, data = e.do(t, http.MethodGet, "/questions/"+q.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decode[model.QuizQuestion](t, data)
	if got.Text != "Capital of France?" {
		t.Errorf("unexpected text %q", got.Text)
	}

	create["text"] = "Updated?"
	resp, _ = e.do(t, http.MethodPut, "/questions/"+q.ID, create)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d", resp.StatusCode)
	}
	_, data = e.do(t, http.MethodGet, "/questions/"+q.ID, nil)
	if got := decode[model.QuizQuestion](t, data); got.Text != "Updated?" {
		t.Errorf("update not applied: %q", got.Text)
	}

	resp, _ = e.do(t, http.MethodDelete, "/questions/"+q.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodGet, "/questions/"+q.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCreateQuestionValidation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"no correct option", map[string]any{
			"text":    "Q?",
			"options": []map[string]any{{"text": "a"}, {"text": "b"}},
		}},
		{"two correct options", map[string]any{
			"text": "Q?",
			"options": []map[string]any{
				{"text": "a", "is_correct": true},
				{"text": "b", "is_correct": true},
			},
		}},
		{"empty prompt", map[string]any{
			"text": " ",
			"options": []map[string]any{
				{"text": "a", "is_correct": true},
				{"text": "b"},
			},
		}},
		{"single option", map[string]any{
			"text":    "Q?",
			"options": []map[string]any{{"text": "a", "is_correct": true}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := e.do(t, http.MethodPost, "/questions", tt.body)
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("expected 422, got %d", resp.StatusCode)
			}
		})
	}
}

func TestCreateQuizValidation(t *testing.T) {
	e := newTestEnv(t)
	qs := seedQuestions(t, e, 1, model.Scope{})

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{"valid fixed", map[string]any{
			"title": "T", "kind": "fixed", "passing_score_percent": 70,
			"question_ids": []string{qs[0].ID},
		}, http.StatusCreated},
		{"valid pool", map[string]any{
			"title": "T", "kind": "pool", "passing_score_percent": 70, "target_count": 5,
		}, http.StatusCreated},
		{"missing title", map[string]any{"kind": "pool"}, http.StatusBadRequest},
		{"bad kind", map[string]any{"title": "T", "kind": "other"}, http.StatusBadRequest},
		{"fixed without ids", map[string]any{"title": "T", "kind": "fixed"}, http.StatusBadRequest},
		{"unknown question id", map[string]any{
			"title": "T", "kind": "fixed", "question_ids": []string{"ghost"},
		}, http.StatusUnprocessableEntity},
		{"passing score over 100", map[string]any{
			"title": "T", "kind": "pool", "passing_score_percent": 101,
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := e.do(t, http.MethodPost, "/quizzes", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, resp.StatusCode, data)
			}
		})
	}
}

func createQuiz(t *testing.T, e *testEnv, body map[string]any) model.Quiz {
	t.Helper()
	resp, data := e.do(t, http.MethodPost, "/quizzes", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create quiz: %d: %s", resp.StatusCode, data)
	}
	return decode[model.Quiz](t, data)
}

func TestFixedQuizSessionFlow(t *testing.T) {
	e := newTestEnv(t)
	qs := seedQuestions(t, e, 2, model.Scope{})
	qz := createQuiz(t, e, map[string]any{
		"title": "Final", "kind": "fixed", "passing_score_percent": 70,
		"question_ids": []string{qs[0].ID, qs[1].ID},
	})

	resp, data := e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1", "mode": "evaluation"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}

	// The learner view must not expose correctness.
	raw := decode[map[string]any](t, data)
	if strings.Contains(string(data), "is_correct") {
		t.Error("session view leaks is_correct")
	}
	view := decode[sessionView](t, data)
	if len(view.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(view.Questions))
	}
	if raw["status"] != "created" {
		t.Errorf("expected created status, got %v", raw["status"])
	}

	// Answer both correctly using the seeded option id convention.
	for _, q := range view.Questions {
		resp, data := e.do(t, http.MethodPut,
			"/sessions/"+view.ID+"/answers/"+q.ID,
			map[string]any{"option_id": q.ID + "-right"})
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("answer: %d: %s", resp.StatusCode, data)
		}
	}

	resp, data = e.do(t, http.MethodPost, "/sessions/"+view.ID+"/submit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d: %s", resp.StatusCode, data)
	}
	result := decode[submitResponse](t, data)
	if result.ScorePercent != 100 || !result.Passed {
		t.Errorf("unexpected result: %+v", result.QuizAttemptResult)
	}
	if !strings.Contains(result.Message, "passed") {
		t.Errorf("unexpected message %q", result.Message)
	}

	// The session is gone after submit.
	resp, _ = e.do(t, http.MethodGet, "/sessions/"+view.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after submit, got %d", resp.StatusCode)
	}
}

func TestPracticeSubmitMessage(t *testing.T) {
	e := newTestEnv(t)
	qs := seedQuestions(t, e, 1, model.Scope{})
	qz := createQuiz(t, e, map[string]any{
		"title": "P", "kind": "fixed", "passing_score_percent": 100,
		"question_ids": []string{qs[0].ID},
	})

	_, data := e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1", "mode": "practice"})
	view := decode[sessionView](t, data)

	_, data = e.do(t, http.MethodPost, "/sessions/"+view.ID+"/submit", nil)
	result := decode[submitResponse](t, data)
	if !strings.Contains(result.Message, "No XP granted") {
		t.Errorf("practice submit should mention no reward, got %q", result.Message)
	}
}

func TestPoolQuizSession(t *testing.T) {
	e := newTestEnv(t)
	seedQuestions(t, e, 6, model.Scope{CourseID: "c1"})
	qz := createQuiz(t, e, map[string]any{
		"title": "Pool", "kind": "pool", "passing_score_percent": 70,
		"target_count": 4, "scope": map[string]any{"course_id": "c1"},
	})

	_, data := e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1", "mode": "evaluation"})
	view := decode[sessionView](t, data)
	if len(view.Questions) != 4 {
		t.Fatalf("expected 4 sampled questions, got %d", len(view.Questions))
	}
	if view.Insufficient {
		t.Error("pool of 6 must be sufficient for 4")
	}
}

func TestPoolQuizInsufficient(t *testing.T) {
	e := newTestEnv(t)
	seedQuestions(t, e, 2, model.Scope{})
	qz := createQuiz(t, e, map[string]any{
		"title": "Pool", "kind": "pool", "passing_score_percent": 70, "target_count": 5,
	})

	resp, data := e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1", "mode": "evaluation"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}
	view := decode[sessionView](t, data)
	if !view.Insufficient {
		t.Error("expected insufficient flag")
	}
	if len(view.Questions) != 2 {
		t.Errorf("expected all 2 available questions, got %d", len(view.Questions))
	}
}

func TestPoolQuizEmptyBank(t *testing.T) {
	e := newTestEnv(t)
	qz := createQuiz(t, e, map[string]any{
		"title": "Pool", "kind": "pool", "passing_score_percent": 70, "target_count": 5,
	})

	resp, data := e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1", "mode": "evaluation"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, data)
	}
	out := decode[map[string]string](t, data)
	if !strings.Contains(out["error"], "not enough questions") {
		t.Errorf("unexpected error %q", out["error"])
	}
}

func TestRetryExcludesSeenQuestions(t *testing.T) {
	e := newTestEnv(t)
	seedQuestions(t, e, 4, model.Scope{})
	qz := createQuiz(t, e, map[string]any{
		"title": "Pool", "kind": "pool", "passing_score_percent": 70, "target_count": 2,
	})

	// First attempt: answer everything wrong and fail.
	_, data := e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1", "mode": "evaluation"})
	first := decode[sessionView](t, data)
	seen := map[string]bool{}
	for _, q := range first.Questions {
		seen[q.ID] = true
		e.do(t, http.MethodPut, "/sessions/"+first.ID+"/answers/"+q.ID,
			map[string]any{"option_id": q.ID + "-wrong"})
	}
	_, data = e.do(t, http.MethodPost, "/sessions/"+first.ID+"/submit", nil)
	if res := decode[submitResponse](t, data); res.Passed {
		t.Fatal("first attempt should fail")
	}

	// Retry: the two questions from the failed attempt must not reappear.
	_, data = e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1", "mode": "evaluation"})
	second := decode[sessionView](t, data)
	for _, q := range second.Questions {
		if seen[q.ID] {
			t.Errorf("question %s from failed attempt drawn again", q.ID)
		}
	}

	// A different learner is unaffected.
	_, data = e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l2", "mode": "evaluation"})
	if other := decode[sessionView](t, data); len(other.Questions) != 2 {
		t.Errorf("expected 2 questions for other learner, got %d", len(other.Questions))
	}
}

func TestPracticeFailureDoesNotShapeRetry(t *testing.T) {
	e := newTestEnv(t)
	seedQuestions(t, e, 2, model.Scope{})
	qz := createQuiz(t, e, map[string]any{
		"title": "Pool", "kind": "pool", "passing_score_percent": 70, "target_count": 2,
	})

	// Fail in practice mode.
	_, data := e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1", "mode": "practice"})
	first := decode[sessionView](t, data)
	for _, q := range first.Questions {
		e.do(t, http.MethodPut, "/sessions/"+first.ID+"/answers/"+q.ID,
			map[string]any{"option_id": q.ID + "-wrong"})
	}
	e.do(t, http.MethodPost, "/sessions/"+first.ID+"/submit", nil)

	// An evaluation attempt still sees the full pool.
	_, data = e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1", "mode": "evaluation"})
	second := decode[sessionView](t, data)
	if len(second.Questions) != 2 {
		t.Errorf("practice outcome leaked into evaluation draw: %d questions", len(second.Questions))
	}
}

func TestAbandonSession(t *testing.T) {
	e := newTestEnv(t)
	qs := seedQuestions(t, e, 1, model.Scope{})
	qz := createQuiz(t, e, map[string]any{
		"title": "T", "kind": "fixed", "passing_score_percent": 70,
		"question_ids": []string{qs[0].ID},
	})

	_, data := e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1"})
	view := decode[sessionView](t, data)

	resp, _ := e.do(t, http.MethodPost, "/sessions/"+view.ID+"/abandon", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("abandon: expected 204, got %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodGet, "/sessions/"+view.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after abandon, got %d", resp.StatusCode)
	}
}

func TestAnswerUnknownSessionOrQuestion(t *testing.T) {
	e := newTestEnv(t)
	qs := seedQuestions(t, e, 1, model.Scope{})
	qz := createQuiz(t, e, map[string]any{
		"title": "T", "kind": "fixed", "passing_score_percent": 70,
		"question_ids": []string{qs[0].ID},
	})

	resp, _ := e.do(t, http.MethodPut, "/sessions/ghost/answers/q",
		map[string]any{"option_id": "o"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", resp.StatusCode)
	}

	_, data := e.do(t, http.MethodPost, "/quizzes/"+qz.ID+"/sessions",
		map[string]any{"learner_id": "l1"})
	view := decode[sessionView](t, data)

	resp, _ = e.do(t, http.MethodPut, "/sessions/"+view.ID+"/answers/ghost",
		map[string]any{"option_id": "o"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown question, got %d", resp.StatusCode)
	}
}

func TestListQuestionsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	seedQuestions(t, e, 2, model.Scope{CourseID: "c1"})
	seedQuestions(t, e, 1, model.Scope{CourseID: "c2"})

	_, data := e.do(t, http.MethodGet, "/questions?course_id=c1", nil)
	out := decode[map[string]any](t, data)
	if out["count"] != float64(2) {
		t.Errorf("expected 2 questions, got %v", out["count"])
	}

	resp, _ := e.do(t, http.MethodGet, "/questions?difficulty=bogus", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad difficulty, got %d", resp.StatusCode)
	}
}
