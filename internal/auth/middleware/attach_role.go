package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-clab/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the one currently stored
// for the user, so role changes and deletions apply before the token
// expires. allowClaimFallback=true keeps the claim when the lookup fails for
// reasons other than a missing user (dev/offline).
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := rbac.IdentityFromContext(ctx)

			var role string
			err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, id.ID).Scan(&role)

			switch {
			case err == nil && role != "":
				id.Role = role
				next.ServeHTTP(w, r.WithContext(rbac.WithIdentity(ctx, id)))

			case errors.Is(err, sql.ErrNoRows):
				http.Error(w, "unknown user", http.StatusUnauthorized)

			default:
				log.Warn().Err(err).Str("user_id", id.ID).Msg("role lookup failed")
				if (allowClaimFallback || isUsersTableMissing(err)) && id.Role != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}

func isUsersTableMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table: users") || // sqlite
		strings.Contains(msg, `relation "users" does not exist`) // postgres
}
