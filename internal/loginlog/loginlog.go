package loginlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cohort/internal/queue"
	"cohort/internal/store"
)

// MessageType tags login events on the work queue.
const MessageType = "login"

const (
	MethodPassword  = "password"
	MethodEmailLink = "email_link"

	defaultLimit = 100
	maxLimit     = 1000
)

// Event is one sign-in attempt.
type Event struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	Method       string    `json:"method"`
	UserID       string    `json:"userId,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Encode wraps the event as a queue message.
func (e Event) Encode() (queue.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: MessageType, Body: body}, nil
}

// Decode reads an event from a queue message.
func Decode(msg queue.Message) (Event, error) {
	if msg.Type != MessageType {
		return Event{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var e Event
	if err := json.Unmarshal(msg.Body, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode login event: %w", err)
	}
	return e, nil
}

// Filter narrows a history listing.
type Filter struct {
	Email   string
	Success *bool
	Start   time.Time
	End     time.Time
	Limit   int
	Offset  int
}

// Page is one page of history, newest first.
type Page struct {
	Events     []Event    `json:"events"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// Repository persists login events.
type Repository struct {
	db *store.DB
}

func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores e, filling in the id, timestamp and method when missing.
func (r *Repository) Insert(ctx context.Context, e Event) (Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Method == "" {
		e.Method = MethodPassword
	}
	e.Timestamp = e.Timestamp.UTC()

	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO login_history (id, email, occurred_at, success, ip_address, user_agent, method, user_id, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), e.ID, e.Email, e.Timestamp, e.Success, e.IPAddress, e.UserAgent, e.Method, e.UserID, e.ErrorMessage)
	if err != nil {
		return Event{}, fmt.Errorf("failed to insert login event: %w", err)
	}
	return e, nil
}

// List returns the events matching f, newest first.
func (r *Repository) List(ctx context.Context, f Filter) (Page, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var (
		where []string
		args  []any
	)
	if f.Email != "" {
		where = append(where, `LOWER(email) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(f.Email))+"%")
	}
	if f.Success != nil {
		where = append(where, "success = ?")
		args = append(args, *f.Success)
	}
	if !f.Start.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, f.Start.UTC())
	}
	if !f.End.IsZero() {
		where = append(where, "occurred_at <= ?")
		args = append(args, f.End.UTC())
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	page := Page{
		Events:     []Event{},
		Pagination: Pagination{Limit: f.Limit, Offset: f.Offset},
	}
	err := r.db.Client.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM login_history"+clause), args...).
		Scan(&page.Pagination.Total)
	if err != nil {
		return Page{}, fmt.Errorf("failed to count login events: %w", err)
	}

	query := `SELECT id, email, occurred_at, success, ip_address, user_agent, method, user_id, error_message
		FROM login_history` + clause + ` ORDER BY occurred_at DESC, id LIMIT ? OFFSET ?`
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), append(args, f.Limit, f.Offset)...)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list login events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Event
		err := rows.Scan(&e.ID, &e.Email, &e.Timestamp, &e.Success, &e.IPAddress, &e.UserAgent, &e.Method, &e.UserID, &e.ErrorMessage)
		if err != nil {
			return Page{}, err
		}
		page.Events = append(page.Events, e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	page.Pagination.HasMore = f.Offset+f.Limit < page.Pagination.Total
	return page, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
