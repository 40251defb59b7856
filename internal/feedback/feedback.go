package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"cohort/internal/store"
)

type Type string

const (
	TypeBug     Type = "bug"
	TypeFeature Type = "feature"
)

type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusWontFix    Status = "wont-fix"
)

const (
	maxTitle       = 200
	maxDescription = 2000
)

var (
	ErrNotFound = errors.New("feedback not found")
	ErrInvalid  = errors.New("invalid feedback")
)

// Author identifies who filed an item.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Item is a bug report or feature request that users vote on.
type Item struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Status        Status    `json:"status"`
	SubmittedBy   Author    `json:"submittedBy"`
	Votes         []string  `json:"votes"`
	VoteCount     int       `json:"voteCount"`
	PageURL       string    `json:"pageUrl,omitempty"`
	AdminResponse string    `json:"adminResponse,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Input is a new item as filed by a user.
type Input struct {
	Type        Type   `json:"type" validate:"required,oneof=bug feature"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	PageURL     string `json:"pageUrl" validate:"omitempty,max=2000"`
}

// Change is an admin change to an item. Nil fields are left as they are.
type Change struct {
	Status        *Status `json:"status" validate:"omitempty,oneof=new in-progress resolved wont-fix"`
	AdminResponse *string `json:"adminResponse"`
}

var validate = validator.New()

// Normalize trims the text fields and caps their length.
func (in *Input) Normalize() {
	in.Title = truncate(strings.TrimSpace(in.Title), maxTitle)
	in.Description = truncate(strings.TrimSpace(in.Description), maxDescription)
	in.PageURL = strings.TrimSpace(in.PageURL)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Repository stores feedback items and their votes.
type Repository struct {
	db *store.DB
}

func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// List returns all items, most voted first, newest first among ties.
func (r *Repository) List(ctx context.Context) ([]Item, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT id, type, title, description, status, submitter_name, submitter_email,
		       page_url, admin_response, created_at, updated_at
		FROM feedback
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	index := make(map[string]int)
	for rows.Next() {
		var it Item
		err := rows.Scan(&it.ID, &it.Type, &it.Title, &it.Description, &it.Status,
			&it.SubmittedBy.Name, &it.SubmittedBy.Email, &it.PageURL, &it.AdminResponse,
			&it.CreatedAt, &it.UpdatedAt)
		if err != nil {
			return nil, err
		}
		it.Votes = []string{}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	voteRows, err := r.db.Client.QueryContext(ctx, `SELECT feedback_id, email FROM feedback_votes ORDER BY voted_at, email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer voteRows.Close()
	for voteRows.Next() {
		var id, email string
		if err := voteRows.Scan(&id, &email); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			items[i].Votes = append(items[i].Votes, email)
			items[i].VoteCount++
		}
	}
	if err := voteRows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].VoteCount != items[j].VoteCount {
			return items[i].VoteCount > items[j].VoteCount
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Submit files a new item. The submitter's vote is recorded with it.
func (r *Repository) Submit(ctx context.Context, author Author, in Input) (string, error) {
	in.Normalize()
	if err := validate.Struct(in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if author.Name == "" {
		author.Name, _, _ = strings.Cut(author.Email, "@")
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	tx, err := r.db.Client.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO feedback (id, type, title, description, status, submitter_name, submitter_email,
		                      page_url, admin_response, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)
	`), id, string(in.Type), in.Title, in.Description, string(StatusNew), author.Name, author.Email, in.PageURL, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert feedback: %w", err)
	}
	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO feedback_votes (feedback_id, email, voted_at) VALUES (?, ?, ?)
	`), id, author.Email, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert vote: %w", err)
	}
	return id, tx.Commit()
}

// ToggleVote adds email's vote to the item or removes it when present. It
// reports whether the user has voted afterwards.
func (r *Repository) ToggleVote(ctx context.Context, id, email string) (bool, error) {
	tx, err := r.db.Client.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := exists(ctx, tx, r.db, id); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM feedback_votes WHERE feedback_id = ? AND email = ?
	`), id, email)
	if err != nil {
		return false, fmt.Errorf("failed to remove vote: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	voted := removed == 0
	if voted {
		_, err = tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO feedback_votes (feedback_id, email, voted_at) VALUES (?, ?, ?)
		`), id, email, now)
		if err != nil {
			return false, fmt.Errorf("failed to add vote: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`UPDATE feedback SET updated_at = ? WHERE id = ?`), now, id); err != nil {
		return false, err
	}
	return voted, tx.Commit()
}

// Update applies an admin change to the item.
func (r *Repository) Update(ctx context.Context, id string, u Change) error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.AdminResponse != nil {
		sets = append(sets, "admin_response = ?")
		args = append(args, *u.AdminResponse)
	}
	args = append(args, id)

	res, err := r.db.Client.ExecContext(ctx,
		r.db.Rebind("UPDATE feedback SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
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

func exists(ctx context.Context, tx *sql.Tx, db *store.DB, id string) error {
	var n int
	if err := tx.QueryRowContext(ctx, db.Rebind(`SELECT COUNT(*) FROM feedback WHERE id = ?`), id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
