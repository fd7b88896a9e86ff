package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/skillassess/internal/auth"
	"github.com/mind-engage/skillassess/internal/exam"
	"github.com/mind-engage/skillassess/internal/grading"
	"github.com/mind-engage/skillassess/internal/ledger"
)

// POST /api/create-test
func CreateTestHandler(e *exam.Engine, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTestRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		code, err := e.CreateTemplate(r.Context(), req.spec())
		if err != nil {
			writeError(w, log, err)
			return
		}
		if sub := auth.SubjectFromContext(r.Context()); sub != "" {
			log.WithFields(logrus.Fields{"code": code, "issued_by": sub}).Info("test created")
		}
		respondJSON(w, http.StatusOK, map[string]string{"testId": code})
	}
}

// GET /api/test/{code}
func GetTestHandler(e *exam.Engine, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := e.ResolveTemplate(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		respondJSON(w, http.StatusOK, view)
	}
}

type resultView struct {
	CandidateName string `json:"candidateName"`
	grading.Result
	Forced bool `json:"forced"`
}

// POST /api/submit-test
func SubmitTestHandler(e *exam.Engine, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitTestRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		name := strings.TrimSpace(req.CandidateName)
		if name == "" {
			name = defaultCandidate
		}
		s, err := e.SubmitTest(r.Context(), req.TestID, name, req.SessionID, req.Answers)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if s.Result == nil {
			writeError(w, log, exam.ErrUnavailable)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"sessionId": s.ID,
			"result": resultView{
				CandidateName: s.CandidateName,
				Result:        *s.Result,
				Forced:        s.Forced,
			},
		})
	}
}

// GET /api/admin/submissions
func SubmissionsHandler(e *exam.Engine, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := e.Ledger(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		if list == nil {
			list = []ledger.Entry{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}
