package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-clab/internal/auth"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
)

type userRow struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"` // usually "student"
	Password string `json:"password"`
}

// POST /users/bulk
// Accepts a JSON array or a CSV file (multipart field "file") with a header
// row naming at least email and password.
func BulkRegisterUsersHandler(dir *auth.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []userRow
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			rs, err := parseCSV(f)
			if err != nil {
				http.Error(w, "bad csv: "+err.Error(), http.StatusBadRequest)
				return
			}
			rows = rs
		} else if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, "expected JSON array or multipart file", http.StatusBadRequest)
			return
		}

		created := 0
		skipped := []map[string]string{}
		for _, row := range rows {
			if _, err := dir.Register(r.Context(), row.Name, row.Email, row.Password, strings.ToLower(row.Role)); err != nil {
				skipped = append(skipped, map[string]string{"email": row.Email, "error": err.Error()})
				continue
			}
			created++
		}
		respondJSON(w, http.StatusOK, map[string]any{"created": created, "skipped": skipped})
	}
}

// GET /users?role=student
func ListUsersHandler(dir *auth.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := strings.TrimSpace(r.URL.Query().Get("role"))
		if role != "" && !rbac.ValidRole(role) {
			http.Error(w, "invalid role", http.StatusBadRequest)
			return
		}
		users, err := dir.ListByRole(r.Context(), role)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, users)
	}
}

// DELETE /users/{userID}
func DeleteUserHandler(dir *auth.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "userID")
		if target == rbac.SubjectFromContext(r.Context()) {
			http.Error(w, "cannot delete yourself", http.StatusBadRequest)
			return
		}
		// Teachers may remove students; anything else needs an admin.
		if caller := rbac.IdentityFromContext(r.Context()); caller.Role != rbac.RoleAdmin {
			u, err := dir.Get(r.Context(), target)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			if u.Role != rbac.RoleStudent {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		if err := dir.Delete(r.Context(), target); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseCSV(r io.Reader) ([]userRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"email", "password"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	col := func(rec []string, k string) string {
		if i, ok := idx[k]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var rows []userRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, userRow{
			Name:     col(rec, "name"),
			Email:    col(rec, "email"),
			Role:     col(rec, "role"),
			Password: col(rec, "password"),
		})
	}
	return rows, nil
}
