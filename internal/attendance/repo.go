package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cohort/internal/store"
)

// Repository persists the roster and attendance records.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// GetStudent returns a student with their attendance ordered by date.
func (r *Repository) GetStudent(ctx context.Context, email string) (*Student, error) {
	var (
		s    Student
		team sql.NullInt64
	)
	err := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT name, email, team, role FROM users WHERE email = ?
	`), email).Scan(&s.Name, &s.Email, &team, &s.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if team.Valid {
		n := int(team.Int64)
		s.Team = &n
	}

	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(`
		SELECT date, status, recorded_at, comment, marked_by, marked_by_email
		FROM attendance WHERE email = ? ORDER BY date
	`), email)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		s.Attendance = append(s.Attendance, rec)
	}
	return &s, rows.Err()
}

// ListStudents returns every student sorted by name, each with attendance.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT name, email, team, role FROM users WHERE role = 'student' ORDER BY name, email
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []Student
	index := make(map[string]int)
	for rows.Next() {
		var (
			s    Student
			team sql.NullInt64
		)
		if err := rows.Scan(&s.Name, &s.Email, &team, &s.Role); err != nil {
			return nil, err
		}
		if team.Valid {
			n := int(team.Int64)
			s.Team = &n
		}
		index[s.Email] = len(students)
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recRows, err := r.db.Client.QueryContext(ctx, `
		SELECT email, date, status, recorded_at, comment, marked_by, marked_by_email
		FROM attendance ORDER BY email, date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer recRows.Close()

	for recRows.Next() {
		var (
			email string
			rec   Record
		)
		if err := recRows.Scan(&email, &rec.Date, &rec.Status, &rec.Timestamp, &rec.Comment, &rec.MarkedBy, &rec.MarkedByEmail); err != nil {
			return nil, err
		}
		if i, ok := index[email]; ok {
			students[i].Attendance = append(students[i].Attendance, rec)
		}
	}
	return students, recRows.Err()
}

// InsertIfAbsent appends rec unless the student already has a record for
// rec.Date. It returns the stored record and whether rec was inserted. The
// primary key (email, date) makes this safe under concurrent check-ins.
func (r *Repository) InsertIfAbsent(ctx context.Context, email string, rec Record) (Record, bool, error) {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attendance (email, date, status, recorded_at, comment, marked_by, marked_by_email)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email, date) DO NOTHING
	`), email, rec.Date, string(rec.Status), rec.Timestamp.UTC(), rec.Comment, string(rec.MarkedBy), rec.MarkedByEmail)
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to insert attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, false, err
	}
	if n == 1 {
		return rec, true, nil
	}

	existing, err := r.getRecord(ctx, email, rec.Date)
	if err != nil {
		return Record{}, false, err
	}
	return existing, false, nil
}

// Upsert writes rec, replacing any record for the same date.
func (r *Repository) Upsert(ctx context.Context, email string, rec Record) error {
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attendance (email, date, status, recorded_at, comment, marked_by, marked_by_email)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email, date) DO UPDATE SET
			status = EXCLUDED.status,
			recorded_at = EXCLUDED.recorded_at,
			comment = EXCLUDED.comment,
			marked_by = EXCLUDED.marked_by,
			marked_by_email = EXCLUDED.marked_by_email
	`), email, rec.Date, string(rec.Status), rec.Timestamp.UTC(), rec.Comment, string(rec.MarkedBy), rec.MarkedByEmail)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance: %w", err)
	}
	return nil
}

func (r *Repository) getRecord(ctx context.Context, email, date string) (Record, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT date, status, recorded_at, comment, marked_by, marked_by_email
		FROM attendance WHERE email = ? AND date = ?
	`), email, date)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("failed to get attendance: %w", err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var rec Record
	err := s.Scan(&rec.Date, &rec.Status, &rec.Timestamp, &rec.Comment, &rec.MarkedBy, &rec.MarkedByEmail)
	return rec, err
}
