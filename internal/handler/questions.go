package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aulaviva/quizengine/internal/bank"
	"github.com/aulaviva/quizengine/internal/ingest"
	"github.com/aulaviva/quizengine/internal/model"
)

const maxImportBytes = 4 << 20

type importResponse struct {
	*ingest.Summary
	Message string `json:"message"`
}

// handleImport accepts a raw question file (structured records or annotated
// text), detects the format and runs the ingestion pipeline. The optional
// format query parameter is a hint, never a command; scope comes from
// course_id/module_id/lesson_id query parameters.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	summary, err := h.importer.Import(r.Context(), raw, r.URL.Query().Get("format"), scopeFromQuery(r))
	if err != nil {
		var ferr *ingest.FormatError
		if errors.As(err, &ferr) {
			writeError(w, http.StatusUnprocessableEntity, ferr.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{
		Summary: summary,
		Message: summary.Message(r.Context()),
	})
}

type generateRequest struct {
	Topic      string           `json:"topic"`
	Count      int              `json:"count"`
	Difficulty model.Difficulty `json:"difficulty"`
	Scope      model.Scope      `json:"scope"`
}

// handleGenerate asks the configured LLM for draft questions and feeds its
// JSON through the same import pipeline as uploaded files.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "question generation is not configured")
		return
	}

	var req generateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if req.Count <= 0 {
		req.Count = 5
	}
	if req.Difficulty == "" {
		req.Difficulty = model.DifficultyMedium
	}
	if !req.Difficulty.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown difficulty")
		return
	}

	payload, err := h.llm.GenerateQuestions(r.Context(), req.Topic, req.Count, req.Difficulty)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	summary, err := h.importer.Import(r.Context(), payload, "json", req.Scope)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{
		Summary: summary,
		Message: summary.Message(r.Context()),
	})
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	f := bank.Filter{
		Scope:      scopeFromQuery(r),
		Difficulty: model.Difficulty(r.URL.Query().Get("difficulty")),
	}
	if f.Difficulty != "" && !f.Difficulty.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown difficulty")
		return
	}
	qs, err := h.bank.Query(r.Context(), f)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": qs, "count": len(qs)})
}

type questionPayload struct {
	Text       string           `json:"text"`
	Scope      model.Scope      `json:"scope"`
	Points     int              `json:"points"`
	Difficulty model.Difficulty `json:"difficulty"`
	ImageURL   string           `json:"image_url"`
	Options    []struct {
		Text      string `json:"text"`
		IsCorrect bool   `json:"is_correct"`
	} `json:"options"`
}

// toQuestion validates the payload through the evaluation gate and builds a
// catalog question. Option and question ids are assigned here, not by the
// client.
func (p questionPayload) toQuestion(id string) (model.QuizQuestion, *ingest.ValidationError) {
	d := ingest.Draft{Prompt: p.Text}
	for _, o := range p.Options {
		d.Options = append(d.Options, ingest.DraftOption{Text: o.Text, Correct: o.IsCorrect})
	}
	if verr := ingest.CheckForEvaluation(d); verr != nil {
		return model.QuizQuestion{}, verr
	}

	q := model.QuizQuestion{
		ID:         id,
		Scope:      p.Scope,
		Text:       p.Text,
		Points:     p.Points,
		Difficulty: p.Difficulty,
		ImageURL:   p.ImageURL,
	}
	if q.Points < 1 {
		q.Points = 1
	}
	if !q.Difficulty.IsValid() {
		q.Difficulty = model.DifficultyMedium
	}
	for i, o := range p.Options {
		q.Options = append(q.Options, model.QuizOption{
			ID:         uuid.NewString(),
			QuestionID: q.ID,
			Text:       o.Text,
			IsCorrect:  o.IsCorrect,
			Position:   i,
		})
	}
	return q, nil
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var p questionPayload
	if err := readJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, verr := p.toQuestion(uuid.NewString())
	if verr != nil {
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	if err := h.bank.Create(r.Context(), q); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.bank.Get(r.Context(), chi.URLParam(r, "questionID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var p questionPayload
	if err := readJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, verr := p.toQuestion(chi.URLParam(r, "questionID"))
	if verr != nil {
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	if err := h.bank.Update(r.Context(), q); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.bank.Delete(r.Context(), chi.URLParam(r, "questionID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
