package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-clab/internal/db"
	"github.com/mind-engage/mindengage-clab/internal/rbac"
)

type staticCreds map[string]rbac.Identity

func (s staticCreds) Verify(_ context.Context, email, password string) (rbac.Identity, error) {
	id, ok := s[email]
	if !ok || password != "pw" {
		return rbac.Identity{}, errors.New("invalid credentials")
	}
	return id, nil
}

var stu = rbac.Identity{ID: "u-stu", Role: rbac.RoleStudent}

func newService() *AuthService {
	return NewAuthService("test-secret", time.Hour, staticCreds{"s@example.com": stu})
}

func TestSignInSignOut(t *testing.T) {
	a := newService()
	var (
		mu      sync.Mutex
		changes []Change
	)
	unsub := a.Subscribe(func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	if _, _, err := a.SignIn(context.Background(), "s@example.com", "bad"); err == nil {
		t.Fatalf("bad password accepted")
	}
	id, tok, err := a.SignIn(context.Background(), "s@example.com", "pw")
	if err != nil || id != stu {
		t.Fatalf("sign in: %+v %v", id, err)
	}
	c, err := a.Parse(tok)
	if err != nil || c.Identity() != stu || c.ID == "" {
		t.Fatalf("parse: %+v %v", c, err)
	}
	if err := a.SignOut(tok); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := a.Parse(tok); !errors.Is(err, ErrRevoked) {
		t.Fatalf("revoked token parsed: %v", err)
	}

	unsub()
	_, _, _ = a.SignIn(context.Background(), "s@example.com", "pw")

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 || !changes[0].SignedIn || changes[1].SignedIn || changes[1].Identity != stu {
		t.Fatalf("changes = %+v", changes)
	}
}

func TestExpiredToken(t *testing.T) {
	a := newService()
	base := time.Now()
	a.now = func() time.Time { return base }
	tok, _ := a.IssueJWT("u1", rbac.RoleTeacher)
	a.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := a.Parse(tok); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := newService()
	tok, _ := a.IssueJWT("u1", rbac.RoleTeacher)

	var seen rbac.Identity
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = rbac.IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen.ID != "u1" || seen.Role != rbac.RoleTeacher {
		t.Fatalf("header token: %d %+v", rec.Code, seen)
	}

	seen = rbac.Identity{}
	req = httptest.NewRequest(http.MethodGet, "/events?access_token="+tok, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen.ID != "u1" {
		t.Fatalf("query token not accepted")
	}
}

func TestLoginLogoutHandlers(t *testing.T) {
	a := newService()
	rec := httptest.NewRecorder()
	LoginHandler(a).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"s@example.com","password":"pw"}`)))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "access_token") {
		t.Fatalf("login: %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	LoginHandler(a).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"s@example.com","password":"nope"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", rec.Code)
	}

	tok, _ := a.IssueJWT(stu.ID, stu.Role)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	LogoutHandler(a).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rec.Code)
	}
}

func openUsers(t *testing.T) *sql.DB {
	t.Helper()
	h, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })
	if _, err := h.Exec(`INSERT INTO users (id,name,email,role,password_hash,created_at) VALUES ('u1','T','t@x','teacher','x',0)`); err != nil {
		t.Fatal(err)
	}
	return h
}

func TestAttachRoleFromDB(t *testing.T) {
	h := openUsers(t)
	var seen string
	mw := AttachRoleFromDB(h, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = rbac.RoleFromContext(r.Context())
	}))

	// A stale student claim is upgraded to the stored teacher role.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(rbac.WithIdentity(req.Context(), rbac.Identity{ID: "u1", Role: rbac.RoleStudent}))
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != rbac.RoleTeacher {
		t.Fatalf("code %d role %q", rec.Code, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(rbac.WithIdentity(req.Context(), rbac.Identity{ID: "deleted", Role: rbac.RoleAdmin}))
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deleted user: %d", rec.Code)
	}
}
