package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-clab/internal/auth"
	"github.com/mind-engage/mindengage-clab/internal/submission"
	syncx "github.com/mind-engage/mindengage-clab/internal/sync"
)

// -----------------------------
// Admin: Compliance & Audit
// -----------------------------

// GET /admin/users/{userID}/export
// Everything stored about one user, as a downloadable JSON file.
func HandleAdminPIIExport(dir *auth.Directory, records submission.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := dir.Get(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		subs, err := records.ListByStudent(r.Context(), u.ID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "pii_"+u.ID+".json"))
		respondJSON(w, http.StatusOK, map[string]any{
			"user":        u,
			"submissions": submission.SortNewestFirst(subs),
		})
	}
}

// GET /admin/events?after=0&limit=100
// Pages through the event log (submissions created, grades saved).
func HandleAdminEvents(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, err := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		if err != nil {
			after = 0
		}
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		if limit > 1000 {
			limit = 1000
		}
		list, err := events.Since(r.Context(), after, limit)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if list == nil {
			list = []syncx.Event{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}
