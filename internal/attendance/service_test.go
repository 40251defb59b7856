package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cohort/internal/schedule"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetStudent(ctx context.Context, email string) (*Student, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Student), args.Error(1)
}

func (m *MockStore) ListStudents(ctx context.Context) ([]Student, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Student), args.Error(1)
}

func (m *MockStore) InsertIfAbsent(ctx context.Context, email string, rec Record) (Record, bool, error) {
	args := m.Called(email, rec)
	return args.Get(0).(Record), args.Bool(1), args.Error(2)
}

func (m *MockStore) Upsert(ctx context.Context, email string, rec Record) error {
	args := m.Called(email, rec)
	return args.Error(0)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(t *testing.T, store Store, now time.Time) *Service {
	t.Helper()
	return NewService(store, schedule.DefaultConfig(), fixedClock(now))
}

func TestService_CheckIn(t *testing.T) {
	ctx := context.Background()
	loc := stockholm(t)
	now := time.Date(2026, 1, 20, 9, 5, 0, 0, loc)

	store := new(MockStore)
	store.On("GetStudent", "ada@example.com").Return(&Student{Email: "ada@example.com"}, nil)
	store.On("InsertIfAbsent", "ada@example.com", mock.MatchedBy(func(r Record) bool {
		return r.Date == "2026-01-20" && r.Status == StatusPresent && r.MarkedBy == MarkedBySelf
	})).Return(Record{Date: "2026-01-20", Status: StatusPresent, MarkedBy: MarkedBySelf}, true, nil)

	rec, err := newTestService(t, store, now).CheckIn(ctx, "ada@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, rec.Status)
	store.AssertExpectations(t)
}

func TestService_CheckIn_Duplicate(t *testing.T) {
	ctx := context.Background()
	loc := stockholm(t)
	existing := Record{Date: "2026-01-20", Status: StatusLate, MarkedBy: MarkedBySelf}

	store := new(MockStore)
	store.On("GetStudent", "ada@example.com").Return(&Student{
		Email:      "ada@example.com",
		Attendance: []Record{existing},
	}, nil)

	_, err := newTestService(t, store, time.Date(2026, 1, 20, 9, 0, 0, 0, loc)).CheckIn(ctx, "ada@example.com", "")

	var already *AlreadyCheckedInError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, existing, already.Existing)
	store.AssertNotCalled(t, "InsertIfAbsent", mock.Anything, mock.Anything)
}

func TestService_CheckIn_LostRace(t *testing.T) {
	ctx := context.Background()
	loc := stockholm(t)
	stored := Record{Date: "2026-01-20", Status: StatusPresent, MarkedBy: MarkedBySelf}

	store := new(MockStore)
	store.On("GetStudent", "ada@example.com").Return(&Student{Email: "ada@example.com"}, nil)
	store.On("InsertIfAbsent", "ada@example.com", mock.Anything).Return(stored, false, nil)

	_, err := newTestService(t, store, time.Date(2026, 1, 20, 10, 30, 0, 0, loc)).CheckIn(ctx, "ada@example.com", "")

	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	var already *AlreadyCheckedInError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, StatusPresent, already.Existing.Status)
}

func TestService_CheckIn_UnknownStudent(t *testing.T) {
	store := new(MockStore)
	store.On("GetStudent", "ghost@example.com").Return(nil, ErrStudentNotFound)

	_, err := newTestService(t, store, time.Now()).CheckIn(context.Background(), "ghost@example.com", "")
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestService_Today_RecentIsLastSeven(t *testing.T) {
	loc := stockholm(t)
	var records []Record
	for _, d := range []string{"2026-02-05", "2026-01-20", "2026-01-21", "2026-01-22", "2026-01-27", "2026-01-28", "2026-01-29", "2026-02-03", "2026-02-04"} {
		records = append(records, Record{Date: d, Status: StatusPresent})
	}

	store := new(MockStore)
	store.On("GetStudent", "ada@example.com").Return(&Student{Email: "ada@example.com", Attendance: records}, nil)

	status, err := newTestService(t, store, time.Date(2026, 2, 5, 12, 0, 0, 0, loc)).Today(context.Background(), "ada@example.com")
	require.NoError(t, err)

	assert.Equal(t, "2026-02-05", status.Today)
	assert.True(t, status.CheckedIn)
	require.NotNil(t, status.Attendance)
	assert.Equal(t, "2026-02-05", status.Attendance.Date)
	require.Len(t, status.RecentAttendance, 7)
	assert.Equal(t, "2026-01-22", status.RecentAttendance[0].Date)
	assert.Equal(t, "2026-02-05", status.RecentAttendance[6].Date)
}

func TestService_Mark(t *testing.T) {
	now := time.Date(2026, 1, 21, 15, 0, 0, 0, time.UTC)

	store := new(MockStore)
	store.On("GetStudent", "bo@example.com").Return(&Student{Email: "bo@example.com"}, nil)
	store.On("Upsert", "bo@example.com", Record{
		Date:          "2026-01-21",
		Status:        StatusExcused,
		Timestamp:     now,
		Comment:       "doctor",
		MarkedBy:      MarkedByAdmin,
		MarkedByEmail: "admin@example.com",
	}).Return(nil)

	rec, err := newTestService(t, store, now).Mark(context.Background(), "admin@example.com", MarkInput{
		StudentEmail: "bo@example.com",
		Date:         "2026-01-21",
		Status:       StatusExcused,
		Comment:      "doctor",
	})
	require.NoError(t, err)
	assert.Equal(t, MarkedByAdmin, rec.MarkedBy)
	store.AssertExpectations(t)
}

func TestService_Mark_RejectsInvalidInput(t *testing.T) {
	svc := newTestService(t, new(MockStore), time.Now())

	testCases := []struct {
		name string
		in   MarkInput
	}{
		{"unknown status", MarkInput{StudentEmail: "bo@example.com", Date: "2026-01-21", Status: "tardy"}},
		{"bad date", MarkInput{StudentEmail: "bo@example.com", Date: "21/01/2026", Status: StatusPresent}},
		{"bad email", MarkInput{StudentEmail: "bo", Date: "2026-01-21", Status: StatusPresent}},
		{"empty status", MarkInput{StudentEmail: "bo@example.com", Date: "2026-01-21"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Mark(context.Background(), "admin@example.com", tc.in)
			assert.Error(t, err)
		})
	}
}

func TestService_Cycle(t *testing.T) {
	now := time.Date(2026, 1, 21, 15, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		current  []Record
		expected Status
		changed  bool
	}{
		{"unset to present", nil, StatusPresent, true},
		{"present to excused", []Record{{Date: "2026-01-21", Status: StatusPresent}}, StatusExcused, true},
		{"excused to absent", []Record{{Date: "2026-01-21", Status: StatusExcused}}, StatusAbsent, true},
		{"absent stays", []Record{{Date: "2026-01-21", Status: StatusAbsent}}, StatusAbsent, false},
		{"late restarts", []Record{{Date: "2026-01-21", Status: StatusLate}}, StatusPresent, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(MockStore)
			store.On("GetStudent", "bo@example.com").Return(&Student{Email: "bo@example.com", Attendance: tc.current}, nil)
			store.On("Upsert", "bo@example.com", mock.Anything).Return(nil)

			rec, changed, err := newTestService(t, store, now).Cycle(context.Background(), "admin@example.com", "bo@example.com", "2026-01-21")
			require.NoError(t, err)
			assert.Equal(t, tc.changed, changed)
			require.NotNil(t, rec)
			assert.Equal(t, tc.expected, rec.Status)
			if !tc.changed {
				store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestService_Overview(t *testing.T) {
	loc := stockholm(t)
	store := new(MockStore)
	store.On("ListStudents").Return(nil, nil)

	overview, err := newTestService(t, store, time.Date(2026, 1, 22, 12, 0, 0, 0, loc)).Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2026-01-22", overview.Today)
	assert.Equal(t, []string{"2026-01-19", "2026-01-20", "2026-01-21", "2026-01-22", "2026-01-23"}, overview.WeekDates)
	assert.NotNil(t, overview.Students)
}

func TestService_ResolveRange(t *testing.T) {
	loc := stockholm(t)
	svc := newTestService(t, new(MockStore), time.Date(2026, 2, 3, 12, 0, 0, 0, loc))

	assert.Equal(t, schedule.Range{From: "2026-01-19", To: "2026-02-03"}, svc.ResolveRange(schedule.Range{}))
	assert.Equal(t, schedule.Range{From: "2026-01-26", To: "2026-01-30"}, svc.ResolveRange(schedule.Range{From: "2026-01-26", To: "2026-01-30"}))
}

func TestService_CurrentDate_UsesProgramTimezone(t *testing.T) {
	// 00:30 in Stockholm is still the previous day in UTC
	svc := newTestService(t, new(MockStore), time.Date(2026, 1, 19, 23, 30, 0, 0, time.UTC))
	assert.Equal(t, "2026-01-20", svc.CurrentDate())
}

func TestService_Standings(t *testing.T) {
	loc := stockholm(t)
	store := new(MockStore)
	store.On("ListStudents").Return([]Student{
		{Email: "a@example.com", Team: team(1), Attendance: []Record{{Date: "2026-01-20", Status: StatusPresent}}},
		{Email: "b@example.com", Team: team(2)},
	}, nil)

	standings, err := newTestService(t, store, time.Date(2026, 1, 20, 12, 0, 0, 0, loc)).Standings(context.Background())
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, 1, standings[0].Team)
	assert.Equal(t, 100, standings[0].Rate)
}

func TestService_Standings_BeforeProgramStart(t *testing.T) {
	svc := newTestService(t, new(MockStore), time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	standings, err := svc.Standings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, standings)
}

func TestService_Cohort(t *testing.T) {
	store := new(MockStore)
	store.On("ListStudents").Return([]Student{
		{Email: "a@example.com", Attendance: []Record{
			{Date: "2026-01-20", Status: StatusPresent},
			{Date: "2026-01-21", Status: StatusLate},
		}},
	}, nil)

	cohort, err := newTestService(t, store, time.Now()).Cohort(context.Background(), schedule.Range{From: "2026-01-19", To: "2026-01-23"})
	require.NoError(t, err)
	assert.Equal(t, 67, cohort.Students[0].Stats.Rate)

	_, err = newTestService(t, store, time.Now()).Cohort(context.Background(), schedule.Range{From: "2026-01-23", To: "2026-01-19"})
	assert.ErrorIs(t, err, schedule.ErrInvalidDateRange)
}
