package http

import (
	"net/http"

	auth "github.com/mind-engage/mindengage-clab/internal/auth"
	authmw "github.com/mind-engage/mindengage-clab/internal/auth/middleware"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
)

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// POST /auth/register
// Self-registration may pick student or teacher; admins are promoted by an
// existing admin. The new account is signed in straight away.
func RegisterHandler(dir *auth.Directory, authSvc *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Role == rbac.RoleAdmin {
			http.Error(w, "admin accounts cannot self-register", http.StatusForbidden)
			return
		}
		u, err := dir.Register(r.Context(), req.Name, req.Email, req.Password, req.Role)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		_, tok, err := authSvc.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"user":         u,
			"access_token": tok,
		})
	}
}

// GET /me
func MeHandler(dir *auth.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := dir.Get(r.Context(), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, u)
	}
}
