package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-clab/internal/attempt"
	auth "github.com/mind-engage/mindengage-clab/internal/auth"
	"github.com/mind-engage/mindengage-clab/internal/course"
	"github.com/mind-engage/mindengage-clab/internal/grading"
	"github.com/mind-engage/mindengage-clab/internal/storage"
	"github.com/mind-engage/mindengage-clab/internal/submission"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

// writeErr maps domain errors onto status codes.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ave *attempt.ValidationError
		cve *course.ValidationError
		pe  *attempt.PersistenceError
	)
	switch {
	case errors.As(err, &ave), errors.As(err, &cve),
		errors.Is(err, attempt.ErrWrongKind),
		errors.Is(err, grading.ErrInvalidGrade),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, storage.ErrInvalidKey):
		http.Error(w, err.Error(), http.StatusBadRequest)

	case errors.As(err, &pe):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("persistence failure")
		http.Error(w, "could not save your submission, please retry", http.StatusServiceUnavailable)

	case errors.Is(err, course.ErrSubjectNotFound),
		errors.Is(err, course.ErrNotionNotFound),
		errors.Is(err, course.ErrLessonNotFound),
		errors.Is(err, course.ErrExerciseNotFound),
		errors.Is(err, submission.ErrNotFound),
		errors.Is(err, grading.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, attempt.ErrSessionNotFound),
		errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, attempt.ErrNotStudent),
		errors.Is(err, auth.ErrBadCredentials):
		http.Error(w, err.Error(), http.StatusForbidden)

	case errors.Is(err, attempt.ErrSubmitInFlight),
		errors.Is(err, attempt.ErrAlreadySubmitted),
		errors.Is(err, attempt.ErrInvalidTransition),
		errors.Is(err, attempt.ErrClosed),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, auth.ErrLastAdmin):
		http.Error(w, err.Error(), http.StatusConflict)

	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
