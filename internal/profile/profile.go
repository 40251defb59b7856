package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/store"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// ErrNotFound is returned when no profile exists for an email.
var ErrNotFound = errors.New("profile not found")

// Profile is a signed-up user of the course site.
type Profile struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Team      *int      `json:"team"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CourseStats is the public landing-page summary.
type CourseStats struct {
	Teams    int `json:"teams"`
	Students int `json:"students"`
}

// Repository stores profiles in the users table.
type Repository struct {
	db         *store.DB
	totalTeams int
}

// NewRepository creates a repo. totalTeams is reported by Stats when no
// student has been placed in a team yet.
func NewRepository(db *store.DB, totalTeams int) *Repository {
	return &Repository{db: db, totalTeams: totalTeams}
}

// Get returns the profile for email.
func (r *Repository) Get(ctx context.Context, email string) (*Profile, error) {
	var (
		p    Profile
		team sql.NullInt64
	)
	err := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT email, name, role, team, created_at, updated_at FROM users WHERE email = ?
	`), email).Scan(&p.Email, &p.Name, &p.Role, &team, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if team.Valid {
		n := int(team.Int64)
		p.Team = &n
	}
	return &p, nil
}

// EnsureProfile creates a profile on first sign-in and returns the stored
// one. An existing profile is returned unchanged. An empty name defaults to
// the local part of the email and an empty role to student.
func (r *Repository) EnsureProfile(ctx context.Context, email, name, role string) (*Profile, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, false, errors.New("email is required")
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if role == "" {
		role = RoleStudent
	}
	if role != RoleStudent && role != RoleAdmin {
		return nil, false, fmt.Errorf("unknown role %q", role)
	}

	now := time.Now().UTC()
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users (email, name, role, team, created_at, updated_at)
		VALUES (?, ?, ?, NULL, ?, ?)
		ON CONFLICT (email) DO NOTHING
	`), email, name, role, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 1 {
		logger.Info.Printf("Profile created for %s as %s", email, role)
	}

	p, err := r.Get(ctx, email)
	if err != nil {
		return nil, false, err
	}
	return p, n == 1, nil
}

// SetTeam places a student in a team; nil removes the assignment.
func (r *Repository) SetTeam(ctx context.Context, email string, team *int) error {
	var arg any
	if team != nil {
		arg = *team
	}
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE users SET team = ?, updated_at = ? WHERE email = ?
	`), arg, time.Now().UTC(), email)
	if err != nil {
		return fmt.Errorf("failed to set team: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsAdmin reports whether email belongs to an admin. Unknown emails are not
// admins.
func (r *Repository) IsAdmin(ctx context.Context, email string) (bool, error) {
	p, err := r.Get(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsAdmin(), nil
}

// Stats counts students and distinct teams.
func (r *Repository) Stats(ctx context.Context) (CourseStats, error) {
	var st CourseStats
	err := r.db.Client.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT team) FROM users WHERE role = 'student'
	`).Scan(&st.Students, &st.Teams)
	if err != nil {
		return CourseStats{}, fmt.Errorf("failed to count students: %w", err)
	}
	if st.Teams == 0 {
		st.Teams = r.totalTeams
	}
	return st, nil
}
