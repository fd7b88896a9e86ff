package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/skillassess/internal/exam"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps the engine's error taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, exam.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, exam.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, exam.ErrConflict), errors.Is(err, exam.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, exam.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, exam.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "5")
		log.WithError(err).Warn("backend unavailable")
		msg = "service temporarily unavailable"
	case http.StatusInternalServerError:
		log.WithError(err).Error("unexpected error")
		msg = "internal error"
	}
	respondError(w, status, msg)
}
