package submission

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohort/internal/store"
)

func newTestRepo(t *testing.T, emails ...string) *Repository {
	t.Helper()
	db, err := store.NewDB(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for i, email := range emails {
		now := time.Now().UTC()
		_, err := db.Client.Exec(
			`INSERT INTO users (email, name, role, team, created_at, updated_at) VALUES (?, ?, 'student', ?, ?, ?)`,
			email, "Student "+email, i+1, now, now,
		)
		require.NoError(t, err)
	}
	return NewRepository(db)
}

func TestLines_UnmarshalJSON(t *testing.T) {
	var in Input
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Docker","workDone":"built an image","blockers":["", " none "],"status":"green"}`), &in))

	assert.Equal(t, Lines{"built an image"}, in.WorkDone)
	assert.Equal(t, Lines{"none"}, in.Blockers)
	assert.Nil(t, in.NextSteps)

	err := json.Unmarshal([]byte(`{"workDone": 42}`), &in)
	assert.Error(t, err)
}

func TestInput_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		in      Input
		wantErr bool
	}{
		{"valid", Input{Title: "Workshop 1", WorkDone: Lines{"done"}, Status: StatusYellow}, false},
		{"missing title", Input{Title: "   ", WorkDone: Lines{"done"}, Status: StatusGreen}, true},
		{"missing work", Input{Title: "Workshop 1", Status: StatusGreen}, true},
		{"empty work", Input{Title: "Workshop 1", WorkDone: Lines{}, Status: StatusGreen}, true},
		{"bad status", Input{Title: "Workshop 1", WorkDone: Lines{"done"}, Status: "blue"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubmitAndListOwn(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "ada@example.com")
	repo.now = func() time.Time { return time.Date(2026, 1, 27, 16, 0, 0, 0, time.UTC) }

	week := 2
	s, err := repo.Submit(ctx, "ada@example.com", Input{
		Week:     &week,
		Title:    "Workshop 2",
		WorkDone: Lines{"wrote tests", "fixed bug"},
		Status:   StatusGreen,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "2026-01-27", s.Date)
	assert.Equal(t, Lines{}, s.Blockers)

	list, err := repo.ListOwn(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, s.ID, list[0].ID)
	assert.Equal(t, Lines{"wrote tests", "fixed bug"}, list[0].WorkDone)
	assert.Equal(t, Lines{}, list[0].NextSteps)
	require.NotNil(t, list[0].Week)
	assert.Equal(t, 2, *list[0].Week)

	empty, err := repo.ListOwn(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSubmit_UnknownStudent(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Submit(context.Background(), "ghost@example.com", Input{Title: "x", WorkDone: Lines{"y"}, Status: StatusRed})
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestListAll(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "ada@example.com", "bo@example.com")

	base := time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)
	for i, email := range []string{"ada@example.com", "bo@example.com", "ada@example.com"} {
		at := base.Add(time.Duration(i) * time.Hour)
		repo.now = func() time.Time { return at }
		_, err := repo.Submit(ctx, email, Input{Title: "Report", WorkDone: Lines{"work"}, Status: StatusGreen})
		require.NoError(t, err)
	}

	overview, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, overview.TotalSubmissions)
	assert.Equal(t, 2, overview.TotalStudents)
	require.Len(t, overview.Submissions, 3)

	newest := overview.Submissions[0]
	assert.Equal(t, "ada@example.com", newest.StudentEmail)
	assert.Equal(t, "Student ada@example.com", newest.StudentName)
	require.NotNil(t, newest.StudentTeam)
	assert.Equal(t, 1, *newest.StudentTeam)
	assert.True(t, newest.SubmittedAt.After(overview.Submissions[1].SubmittedAt))
}
