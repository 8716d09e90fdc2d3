package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aulaviva/quizengine/internal/bank"
	"github.com/aulaviva/quizengine/internal/i18n"
	"github.com/aulaviva/quizengine/internal/model"
	"github.com/aulaviva/quizengine/internal/session"
)

type quizPayload struct {
	Title               string           `json:"title"`
	Kind                model.QuizKind   `json:"kind"`
	Scope               model.Scope      `json:"scope"`
	PassingScorePercent int              `json:"passing_score_percent"`
	QuestionIDs         []string         `json:"question_ids"`
	TargetCount         int              `json:"target_count"`
	DifficultyFilter    model.Difficulty `json:"difficulty_filter"`
}

func (h *Handler) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var p quizPayload
	if err := readJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if p.PassingScorePercent < 0 || p.PassingScorePercent > 100 {
		writeError(w, http.StatusBadRequest, "passing_score_percent must be between 0 and 100")
		return
	}
	switch p.Kind {
	case model.QuizFixed:
		if len(p.QuestionIDs) == 0 {
			writeError(w, http.StatusBadRequest, "a fixed quiz needs question_ids")
			return
		}
		for _, id := range p.QuestionIDs {
			if _, err := h.bank.Get(r.Context(), id); err != nil {
				if errors.Is(err, bank.ErrNotFound) {
					writeError(w, http.StatusUnprocessableEntity, "unknown question id "+id)
					return
				}
				writeStoreError(w, err)
				return
			}
		}
	case model.QuizPool:
		if p.TargetCount < 0 {
			writeError(w, http.StatusBadRequest, "target_count must not be negative")
			return
		}
		if p.DifficultyFilter != "" && !p.DifficultyFilter.IsValid() {
			writeError(w, http.StatusBadRequest, "unknown difficulty_filter")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "kind must be fixed or pool")
		return
	}

	qz := model.Quiz{
		ID:                  uuid.NewString(),
		Title:               p.Title,
		Kind:                p.Kind,
		Scope:               p.Scope,
		PassingScorePercent: p.PassingScorePercent,
		QuestionIDs:         p.QuestionIDs,
		TargetCount:         p.TargetCount,
		DifficultyFilter:    p.DifficultyFilter,
	}
	if err := h.quizzes.PutQuiz(r.Context(), qz); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, qz)
}

func (h *Handler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	qz, err := h.quizzes.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qz)
}

// presentedOption is an answer choice as shown to the learner: the correct
// flag never leaves the server while a session is open.
type presentedOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type presentedQuestion struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Points   int               `json:"points"`
	ImageURL string            `json:"image_url,omitempty"`
	Options  []presentedOption `json:"options"`
}

type sessionView struct {
	ID                  string              `json:"id"`
	QuizID              string              `json:"quiz_id"`
	Mode                model.Mode          `json:"mode"`
	Status              session.Status      `json:"status"`
	PassingScorePercent int                 `json:"passing_score_percent"`
	Insufficient        bool                `json:"insufficient,omitempty"`
	Questions           []presentedQuestion `json:"questions"`
}

func viewOf(s *session.Session) sessionView {
	v := sessionView{
		ID:                  s.ID,
		QuizID:              s.QuizID,
		Mode:                s.Mode,
		Status:              s.Status(),
		PassingScorePercent: s.PassingScorePercent,
		Insufficient:        s.Insufficient,
	}
	for _, q := range s.Questions() {
		pq := presentedQuestion{ID: q.ID, Text: q.Text, Points: q.Points, ImageURL: q.ImageURL}
		for _, o := range q.Options {
			pq.Options = append(pq.Options, presentedOption{ID: o.ID, Text: o.Text})
		}
		v.Questions = append(v.Questions, pq)
	}
	return v
}

type startSessionRequest struct {
	LearnerID string     `json:"learner_id"`
	Mode      model.Mode `json:"mode"`
	Count     int        `json:"count"`
}

// handleStartSession resolves the quiz's question set, snapshots it and opens
// a session. Fixed quizzes keep the authored question list; pool quizzes
// sample from the bank, excluding questions from the learner's latest failed
// evaluation attempt.
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.LearnerID == "" {
		writeError(w, http.StatusBadRequest, "learner_id is required")
		return
	}
	if req.Mode == "" {
		req.Mode = model.ModeEvaluation
	}
	if !req.Mode.IsValid() {
		writeError(w, http.StatusBadRequest, "mode must be practice or evaluation")
		return
	}

	qz, err := h.quizzes.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var questions []model.QuizQuestion
	insufficient := false
	switch qz.Kind {
	case model.QuizFixed:
		for _, id := range qz.QuestionIDs {
			q, err := h.bank.Get(r.Context(), id)
			if err != nil {
				if errors.Is(err, bank.ErrNotFound) {
					// Authored question deleted after the quiz was saved.
					insufficient = true
					continue
				}
				writeStoreError(w, err)
				return
			}
			questions = append(questions, q)
		}
	case model.QuizPool:
		count := req.Count
		if count <= 0 {
			count = qz.TargetCount
		}
		if count <= 0 {
			count = h.config.DefaultPoolSize
		}
		f := bank.Filter{Scope: qz.Scope, Difficulty: qz.DifficultyFilter}
		if req.Mode == model.ModeEvaluation {
			f.ExcludeIDs, err = h.policy.ExcludeIDs(r.Context(), req.LearnerID, qz)
			if err != nil {
				writeStoreError(w, err)
				return
			}
		}
		questions, insufficient, err = session.Draw(r.Context(), h.bank, count, f)
		if err != nil {
			writeStoreError(w, err)
			return
		}
	}
	if len(questions) == 0 {
		writeError(w, http.StatusUnprocessableEntity, i18n.T(r.Context(), "PoolInsufficient"))
		return
	}

	s := session.New(qz, req.LearnerID, req.Mode, questions, insufficient)
	h.sessions.Put(s)
	writeJSON(w, http.StatusCreated, viewOf(s))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

type answerRequest struct {
	OptionID string `json:"option_id"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req answerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Answer(chi.URLParam(r, "questionID"), req.OptionID); err != nil {
		switch {
		case errors.Is(err, session.ErrSessionClosed):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, session.ErrUnknownQuestion):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitResponse struct {
	model.QuizAttemptResult
	Message string `json:"message"`
}

// handleSubmit grades the session against its frozen snapshot. Evaluation
// outcomes are recorded in the attempt history so a failed attempt shapes the
// learner's next draw; practice outcomes are not.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	res, err := s.Submit()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	if s.Mode == model.ModeEvaluation {
		h.history.Record(s.LearnerID, s.QuizID, model.AttemptRecord{
			Passed:              res.Passed,
			AnsweredQuestionIDs: s.AnsweredQuestionIDs(),
			CompletedAt:         time.Now(),
		})
	}
	h.sessions.Remove(s.ID)

	msgID := "ResultFailed"
	if res.Passed {
		msgID = "ResultPassed"
	}
	msg := i18n.Td(r.Context(), msgID, map[string]any{"Score": res.ScorePercent})
	if s.Mode == model.ModePractice {
		msg += " " + i18n.T(r.Context(), "PracticeNoReward")
	}
	writeJSON(w, http.StatusOK, submitResponse{QuizAttemptResult: res, Message: msg})
}

func (h *Handler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := s.Abandon(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.sessions.Remove(s.ID)
	w.WriteHeader(http.StatusNoContent)
}
