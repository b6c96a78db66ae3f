package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-clab/internal/rbac"
)

var ErrRevoked = errors.New("token revoked")

// CredentialChecker verifies an email/password pair.
type CredentialChecker interface {
	Verify(ctx context.Context, email, password string) (rbac.Identity, error)
}

// Change is published whenever someone signs in or out.
type Change struct {
	Identity rbac.Identity
	SignedIn bool
}

type AuthService struct {
	hmac   []byte
	ttl    time.Duration
	issuer string
	creds  CredentialChecker
	now    func() time.Time

	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> token expiry
	subs    map[int]func(Change)
	nextSub int
}

func NewAuthService(secret string, ttl time.Duration, creds CredentialChecker) *AuthService {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AuthService{
		hmac:    []byte(secret),
		ttl:     ttl,
		issuer:  "mindengage-clab",
		creds:   creds,
		now:     time.Now,
		revoked: make(map[string]time.Time),
		subs:    make(map[int]func(Change)),
	}
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() rbac.Identity { return rbac.Identity{ID: c.Sub, Role: c.Role} }

func (a *AuthService) IssueJWT(sub, role string) (string, error) {
	now := a.now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

// Parse validates signature, expiry and revocation.
func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	c, _ := token.Claims.(*Claims)
	a.mu.RLock()
	_, gone := a.revoked[c.ID]
	a.mu.RUnlock()
	if gone {
		return nil, ErrRevoked
	}
	return c, nil
}

// SignIn checks the credential and returns the identity with a fresh token.
func (a *AuthService) SignIn(ctx context.Context, email, password string) (rbac.Identity, string, error) {
	id, err := a.creds.Verify(ctx, email, password)
	if err != nil {
		return rbac.Identity{}, "", err
	}
	tok, err := a.IssueJWT(id.ID, id.Role)
	if err != nil {
		return rbac.Identity{}, "", err
	}
	log.Info().Str("user_id", id.ID).Str("role", id.Role).Msg("signed in")
	a.publish(Change{Identity: id, SignedIn: true})
	return id, tok, nil
}

// SignOut revokes the token until it would have expired anyway.
func (a *AuthService) SignOut(tokenStr string) error {
	c, err := a.Parse(tokenStr)
	if err != nil {
		return err
	}
	now := a.now()
	a.mu.Lock()
	for jti, exp := range a.revoked {
		if now.After(exp) {
			delete(a.revoked, jti)
		}
	}
	a.revoked[c.ID] = c.ExpiresAt.Time
	a.mu.Unlock()
	log.Info().Str("user_id", c.Sub).Msg("signed out")
	a.publish(Change{Identity: c.Identity(), SignedIn: false})
	return nil
}

// Subscribe registers fn for sign-in/sign-out notifications and returns a
// function that removes it.
func (a *AuthService) Subscribe(fn func(Change)) func() {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

func (a *AuthService) publish(c Change) {
	a.mu.RLock()
	fns := make([]func(Change), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.mu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}

// POST /auth/login  { "email": "...", "password": "..." }
func LoginHandler(a *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		id, tok, err := a.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			log.Debug().Err(err).Str("email", req.Email).Msg("sign-in rejected")
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": tok,
			"user_id":      id.ID,
			"role":         id.Role,
		})
	}
}

// POST /auth/logout  (Authorization: Bearer ...)
func LogoutHandler(a *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := bearer(r)
		if tok == "" {
			http.Error(w, "missing bearer", http.StatusUnauthorized)
			return
		}
		if err := a.SignOut(tok); err != nil {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearer(r)
			if tok == "" {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(tok)
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := rbac.WithIdentity(r.Context(), c.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearer reads the Authorization header, falling back to ?access_token=
// for EventSource clients that cannot set headers.
func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}
