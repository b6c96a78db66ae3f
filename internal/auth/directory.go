// Package auth owns user accounts: registration, credential checks and role
// management over the users table.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-clab/internal/rbac"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrBadCredentials = errors.New("invalid credentials")
	ErrInvalidRole    = errors.New("invalid role")
	ErrLastAdmin      = errors.New("cannot remove the last admin")
	ErrWeakPassword   = errors.New("password must be at least 6 characters")
	ErrInvalidEmail   = errors.New("a valid email is required")
)

const minPasswordLen = 6

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) Identity() rbac.Identity { return rbac.Identity{ID: u.ID, Role: u.Role} }

type Directory struct {
	db   *sql.DB
	now  func() time.Time
	cost int
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db, now: time.Now, cost: 12}
}

// WithCost sets the bcrypt cost for new hashes. Tests use bcrypt.MinCost.
func (d *Directory) WithCost(cost int) *Directory {
	d.cost = cost
	return d
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register creates an account. New accounts default to the student role.
func (d *Directory) Register(ctx context.Context, name, email, password, role string) (User, error) {
	email = normEmail(email)
	name = strings.TrimSpace(name)
	if role == "" {
		role = rbac.RoleStudent
	}
	if !rbac.ValidRole(role) {
		return User{}, ErrInvalidRole
	}
	if email == "" || !strings.Contains(email, "@") {
		return User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return User{}, ErrWeakPassword
	}
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return User{}, err
	}
	return d.insert(ctx, name, email, string(hash), role)
}

// EnsureAdmin creates the bootstrap admin from a precomputed bcrypt hash
// unless the email already exists.
func (d *Directory) EnsureAdmin(ctx context.Context, email, passHash string) (bool, error) {
	email = normEmail(email)
	if email == "" || passHash == "" {
		return false, nil
	}
	if _, err := bcrypt.Cost([]byte(passHash)); err != nil {
		return false, errors.New("admin password hash is not a bcrypt hash")
	}
	_, err := d.insert(ctx, "admin", email, passHash, rbac.RoleAdmin)
	if errors.Is(err, ErrEmailTaken) {
		return false, nil
	}
	return err == nil, err
}

func (d *Directory) insert(ctx context.Context, name, email, hash, role string) (User, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE email=$1`, email).Scan(&n); err != nil {
		return User{}, err
	}
	if n > 0 {
		return User{}, ErrEmailTaken
	}
	u := User{ID: uuid.NewString(), Name: name, Email: email, Role: role, CreatedAt: d.now().UTC()}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, role, password_hash, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Name, u.Email, u.Role, hash, u.CreatedAt.UnixMilli())
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate checks an email/password pair.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (User, error) {
	var (
		u    User
		hash string
		ts   int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, email, role, password_hash, created_at FROM users WHERE email=$1`, normEmail(email)).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &hash, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrBadCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrBadCredentials
	}
	u.CreatedAt = time.UnixMilli(ts).UTC()
	return u, nil
}

// Verify adapts Authenticate to the token service.
func (d *Directory) Verify(ctx context.Context, email, password string) (rbac.Identity, error) {
	u, err := d.Authenticate(ctx, email, password)
	if err != nil {
		return rbac.Identity{}, err
	}
	return u.Identity(), nil
}

func (d *Directory) Get(ctx context.Context, id string) (User, error) {
	var (
		u  User
		ts int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, email, role, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = time.UnixMilli(ts).UTC()
	return u, nil
}

// ListByRole lists users ordered by name; an empty role lists everyone.
func (d *Directory) ListByRole(ctx context.Context, role string) ([]User, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if role == "" {
		rows, err = d.db.QueryContext(ctx, `SELECT id, name, email, role, created_at FROM users ORDER BY name, email`)
	} else {
		rows, err = d.db.QueryContext(ctx, `SELECT id, name, email, role, created_at FROM users WHERE role=$1 ORDER BY name, email`, role)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		var (
			u  User
			ts int64
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &ts); err != nil {
			return nil, err
		}
		u.CreatedAt = time.UnixMilli(ts).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetRole changes a user's role, refusing to demote the last admin.
func (d *Directory) SetRole(ctx context.Context, id, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if !rbac.ValidRole(role) {
		return ErrInvalidRole
	}
	u, err := d.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == rbac.RoleAdmin && role != rbac.RoleAdmin {
		if err := d.guardLastAdmin(ctx); err != nil {
			return err
		}
	}
	_, err = d.db.ExecContext(ctx, `UPDATE users SET role=$1 WHERE id=$2`, role, id)
	return err
}

func (d *Directory) Delete(ctx context.Context, id string) error {
	u, err := d.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == rbac.RoleAdmin {
		if err := d.guardLastAdmin(ctx); err != nil {
			return err
		}
	}
	_, err = d.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	return err
}

func (d *Directory) guardLastAdmin(ctx context.Context) error {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role='admin'`).Scan(&n); err != nil {
		return err
	}
	if n <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// ChangePassword requires the current password.
func (d *Directory) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}
	var stored string
	err := d.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)) != nil {
		return ErrBadCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), d.cost)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), id)
	return err
}
