package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/skillassess/internal/exam"
)

type sessionView struct {
	exam.Session
	RemainingSeconds int `json:"remainingSeconds"`
}

func viewOf(e *exam.Engine, s exam.Session) sessionView {
	return sessionView{Session: s, RemainingSeconds: e.RemainingSeconds(s)}
}

// POST /api/test/{code}/sessions
func OpenSessionHandler(e *exam.Engine, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openSessionRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		code := chi.URLParam(r, "code")
		s, err := e.OpenSession(r.Context(), code, req.CandidateName)
		if err != nil {
			writeError(w, log, err)
			return
		}
		test, err := e.ResolveTemplate(r.Context(), s.Code)
		if err != nil {
			writeError(w, log, err)
			return
		}
		respondJSON(w, http.StatusCreated, struct {
			sessionView
			Test exam.TemplateView `json:"test"`
		}{viewOf(e, s), test})
	}
}

// GET /api/sessions/{sessionID}
func GetSessionHandler(e *exam.Engine, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := e.Session(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		respondJSON(w, http.StatusOK, viewOf(e, s))
	}
}

// POST /api/sessions/{sessionID}/answers
func RecordAnswersHandler(e *exam.Engine, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answersRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		s, err := e.RecordAnswers(r.Context(), chi.URLParam(r, "sessionID"), req.Answers)
		if err != nil {
			writeError(w, log, err)
			return
		}
		respondJSON(w, http.StatusOK, viewOf(e, s))
	}
}

// POST /api/sessions/{sessionID}/submit
func SubmitSessionHandler(e *exam.Engine, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := e.Submit(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"result": res})
	}
}
