package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aulaviva/quizengine/internal/bank"
	"github.com/aulaviva/quizengine/internal/ingest"
	"github.com/aulaviva/quizengine/internal/llm"
	"github.com/aulaviva/quizengine/internal/model"
	"github.com/aulaviva/quizengine/internal/session"
)

// AttemptRecorder is an attempt-history collaborator that also accepts new
// outcomes from submitted evaluation sessions.
type AttemptRecorder interface {
	session.AttemptHistory
	Record(learnerID, quizID string, rec model.AttemptRecord)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	bank     bank.Bank
	quizzes  bank.QuizStore
	sessions *session.Manager
	history  AttemptRecorder
	policy   session.RetryExclusionPolicy
	importer *ingest.Importer
	llm      *llm.Client // nil when generation is disabled
	config   model.ServerConfig
}

// New creates a new Handler. llmClient may be nil.
func New(b bank.Bank, qs bank.QuizStore, mgr *session.Manager, history AttemptRecorder,
	policy session.RetryExclusionPolicy, llmClient *llm.Client, cfg model.ServerConfig) *Handler {
	return &Handler{
		bank:     b,
		quizzes:  qs,
		sessions: mgr,
		history:  history,
		policy:   policy,
		importer: &ingest.Importer{Bank: b},
		llm:      llmClient,
		config:   cfg,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/import", h.handleImport)
	r.Post("/generate", h.handleGenerate)

	r.Get("/questions", h.handleListQuestions)
	r.Post("/questions", h.handleCreateQuestion)
	r.Get("/questions/{questionID}", h.handleGetQuestion)
	r.Put("/questions/{questionID}", h.handleUpdateQuestion)
	r.Delete("/questions/{questionID}", h.handleDeleteQuestion)

	r.Post("/quizzes", h.handleCreateQuiz)
	r.Get("/quizzes/{quizID}", h.handleGetQuiz)
	r.Post("/quizzes/{quizID}/sessions", h.handleStartSession)

	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Put("/sessions/{sessionID}/answers/{questionID}", h.handleAnswer)
	r.Post("/sessions/{sessionID}/submit", h.handleSubmit)
	r.Post("/sessions/{sessionID}/abandon", h.handleAbandon)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// scopeFromQuery reads the course/module/lesson scope filter from query
// parameters.
func scopeFromQuery(r *http.Request) model.Scope {
	q := r.URL.Query()
	return model.Scope{
		CourseID: q.Get("course_id"),
		ModuleID: q.Get("module_id"),
		LessonID: q.Get("lesson_id"),
	}
}

// writeStoreError maps catalog errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, bank.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	slog.Error("catalog error", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
