package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cohort/internal/store"
)

// Repository persists progress reports.
type Repository struct {
	db  *store.DB
	now func() time.Time
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Submit validates and stores a new report for email.
func (r *Repository) Submit(ctx context.Context, email string, in Input) (Submission, error) {
	if err := in.Validate(); err != nil {
		return Submission{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var exists int
	err := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`), email).Scan(&exists)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to look up student: %w", err)
	}
	if exists == 0 {
		return Submission{}, ErrStudentNotFound
	}

	now := r.now().UTC()
	s := Submission{
		ID:          uuid.NewString(),
		Email:       email,
		Week:        in.Week,
		Date:        now.Format("2006-01-02"),
		Title:       in.Title,
		WorkDone:    orEmpty(in.WorkDone),
		Blockers:    orEmpty(in.Blockers),
		NextSteps:   orEmpty(in.NextSteps),
		Status:      in.Status,
		SubmittedAt: now,
	}

	workDone, _ := json.Marshal(s.WorkDone)
	blockers, _ := json.Marshal(s.Blockers)
	nextSteps, _ := json.Marshal(s.NextSteps)

	var week any
	if s.Week != nil {
		week = *s.Week
	}

	_, err = r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO submissions (id, email, week, date, title, work_done, blockers, next_steps, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), s.ID, s.Email, week, s.Date, s.Title, string(workDone), string(blockers), string(nextSteps), string(s.Status), s.SubmittedAt)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to insert submission: %w", err)
	}
	return s, nil
}

// ListOwn returns the reports of one student, oldest first.
func (r *Repository) ListOwn(ctx context.Context, email string) ([]Submission, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(`
		SELECT id, email, week, date, title, work_done, blockers, next_steps, status, submitted_at
		FROM submissions WHERE email = ? ORDER BY submitted_at, id
	`), email)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Overview is the admin listing of every report.
type Overview struct {
	Submissions      []Entry `json:"submissions"`
	TotalStudents    int     `json:"totalStudents"`
	TotalSubmissions int     `json:"totalSubmissions"`
}

// ListAll returns every report with its author, newest first.
func (r *Repository) ListAll(ctx context.Context) (Overview, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT s.id, s.email, s.week, s.date, s.title, s.work_done, s.blockers, s.next_steps, s.status, s.submitted_at,
		       u.name, u.team
		FROM submissions s JOIN users u ON u.email = s.email
		ORDER BY s.submitted_at DESC, s.id
	`)
	if err != nil {
		return Overview{}, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	out := Overview{Submissions: []Entry{}}
	students := make(map[string]struct{})
	for rows.Next() {
		var (
			e        Entry
			team     sql.NullInt64
			week     sql.NullInt64
			workDone string
			blockers string
			next     string
		)
		err := rows.Scan(&e.ID, &e.Email, &week, &e.Date, &e.Title, &workDone, &blockers, &next, &e.Status, &e.SubmittedAt,
			&e.StudentName, &team)
		if err != nil {
			return Overview{}, err
		}
		if err := decodeLists(&e.Submission, week, workDone, blockers, next); err != nil {
			return Overview{}, err
		}
		e.StudentEmail = e.Email
		if team.Valid {
			n := int(team.Int64)
			e.StudentTeam = &n
		}
		students[e.Email] = struct{}{}
		out.Submissions = append(out.Submissions, e)
	}
	if err := rows.Err(); err != nil {
		return Overview{}, err
	}
	out.TotalStudents = len(students)
	out.TotalSubmissions = len(out.Submissions)
	return out, nil
}

func scanSubmission(rows *sql.Rows) (Submission, error) {
	var (
		s        Submission
		week     sql.NullInt64
		workDone string
		blockers string
		next     string
	)
	if err := rows.Scan(&s.ID, &s.Email, &week, &s.Date, &s.Title, &workDone, &blockers, &next, &s.Status, &s.SubmittedAt); err != nil {
		return Submission{}, err
	}
	return s, decodeLists(&s, week, workDone, blockers, next)
}

func decodeLists(s *Submission, week sql.NullInt64, workDone, blockers, next string) error {
	if week.Valid {
		n := int(week.Int64)
		s.Week = &n
	}
	for _, f := range []struct {
		raw string
		dst *Lines
	}{{workDone, &s.WorkDone}, {blockers, &s.Blockers}, {next, &s.NextSteps}} {
		var list []string
		if err := json.Unmarshal([]byte(f.raw), &list); err != nil {
			return fmt.Errorf("failed to decode submission %s: %w", s.ID, err)
		}
		*f.dst = Lines(list)
	}
	return nil
}

func orEmpty(l Lines) Lines {
	if l == nil {
		return Lines{}
	}
	return l
}
