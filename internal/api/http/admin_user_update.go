package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-clab/internal/auth"
)

type updateUserRoleReq struct {
	Role string `json:"role"`
}

// PUT /users/{userID}/role
func AdminUpdateUserRoleHandler(dir *auth.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "userID")
		if target == "" {
			http.Error(w, "missing userID", http.StatusBadRequest)
			return
		}
		var req updateUserRoleReq
		if !decodeJSON(w, r, &req) {
			return
		}
		// Demoting the last admin is refused by the directory.
		if err := dir.SetRole(r.Context(), target, strings.ToLower(strings.TrimSpace(req.Role))); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
