package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/metrics"
	"cohort/internal/schedule"
)

// Store is the persistence the service needs. Repository implements it.
type Store interface {
	GetStudent(ctx context.Context, email string) (*Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	InsertIfAbsent(ctx context.Context, email string, rec Record) (Record, bool, error)
	Upsert(ctx context.Context, email string, rec Record) error
}

// Service coordinates check-ins, admin marks and reporting.
type Service struct {
	store    Store
	calendar *schedule.Config
	now      func() time.Time
	validate *validator.Validate
}

// NewService creates a service backed by a store. now is the clock source;
// nil means time.Now.
func NewService(store Store, calendar *schedule.Config, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    store,
		calendar: calendar,
		now:      now,
		validate: validator.New(),
	}
}

// Calendar exposes the schedule the service reports against.
func (s *Service) Calendar() *schedule.Config {
	return s.calendar
}

// CheckIn records the caller's own attendance for today.
func (s *Service) CheckIn(ctx context.Context, email, comment string) (Record, error) {
	student, err := s.store.GetStudent(ctx, email)
	if err != nil {
		return Record{}, err
	}

	now := s.now()
	today := s.calendar.Today(now)
	rec, err := EvaluateCheckIn(student.RecordFor(today), now, s.calendar.Location, comment)
	if err != nil {
		return Record{}, err
	}

	stored, inserted, err := s.store.InsertIfAbsent(ctx, email, rec)
	if err != nil {
		return Record{}, err
	}
	if !inserted {
		logger.Debug.Printf("Concurrent check-in for %s on %s lost the race", email, today)
		return Record{}, &AlreadyCheckedInError{Existing: stored}
	}

	metrics.CheckInsTotal.WithLabelValues(string(stored.Status)).Inc()
	return stored, nil
}

// TodayStatus is what a student sees on the check-in widget.
type TodayStatus struct {
	Today            string   `json:"today"`
	CheckedIn        bool     `json:"checkedIn"`
	Attendance       *Record  `json:"attendance"`
	RecentAttendance []Record `json:"recentAttendance"`
}

// Today returns the caller's check-in state and their last seven records.
func (s *Service) Today(ctx context.Context, email string) (TodayStatus, error) {
	student, err := s.store.GetStudent(ctx, email)
	if err != nil {
		return TodayStatus{}, err
	}

	today := s.calendar.Today(s.now())
	rec := student.RecordFor(today)

	recent := append([]Record(nil), student.Attendance...)
	sort.Slice(recent, func(i, j int) bool { return recent[i].Date < recent[j].Date })
	if len(recent) > 7 {
		recent = recent[len(recent)-7:]
	}
	if recent == nil {
		recent = []Record{}
	}

	return TodayStatus{
		Today:            today,
		CheckedIn:        rec != nil,
		Attendance:       rec,
		RecentAttendance: recent,
	}, nil
}

// MarkInput is an admin's manual attendance mark.
type MarkInput struct {
	StudentEmail string `json:"studentEmail" validate:"required,email"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Status       Status `json:"status" validate:"required,oneof=present present-late excused absent not-required pending"`
	Comment      string `json:"comment" validate:"max=500"`
}

// Validate checks the mark before it reaches the store.
func (in *MarkInput) Validate(v *validator.Validate) error {
	return v.Struct(in)
}

// Mark overwrites the student's record for the date.
func (s *Service) Mark(ctx context.Context, adminEmail string, in MarkInput) (Record, error) {
	if err := in.Validate(s.validate); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidMark, err)
	}
	if _, err := s.store.GetStudent(ctx, in.StudentEmail); err != nil {
		return Record{}, err
	}

	rec := Record{
		Date:          in.Date,
		Status:        in.Status,
		Timestamp:     s.now(),
		Comment:       in.Comment,
		MarkedBy:      MarkedByAdmin,
		MarkedByEmail: adminEmail,
	}
	if err := s.store.Upsert(ctx, in.StudentEmail, rec); err != nil {
		return Record{}, err
	}

	metrics.AdminMarksTotal.WithLabelValues(string(rec.Status)).Inc()
	logger.Info.Printf("Admin %s marked %s as %s on %s", adminEmail, in.StudentEmail, rec.Status, rec.Date)
	return rec, nil
}

// Cycle advances the student's status for date one step along the admin
// cycle. Clearing a record is not supported, so the step back to unset leaves
// the record as it is and reports changed=false.
func (s *Service) Cycle(ctx context.Context, adminEmail, studentEmail, date string) (rec *Record, changed bool, err error) {
	if !schedule.ValidDate(date) {
		return nil, false, fmt.Errorf("%w: malformed date %q", ErrInvalidMark, date)
	}
	student, err := s.store.GetStudent(ctx, studentEmail)
	if err != nil {
		return nil, false, err
	}

	current := StatusUnset
	if existing := student.RecordFor(date); existing != nil {
		current = existing.Status
	}
	next := NextStatus(current)
	if next == StatusUnset {
		return student.RecordFor(date), false, nil
	}

	marked, err := s.Mark(ctx, adminEmail, MarkInput{
		StudentEmail: studentEmail,
		Date:         date,
		Status:       next,
	})
	if err != nil {
		return nil, false, err
	}
	return &marked, true, nil
}

// Roster returns every student with attendance, sorted by name.
func (s *Service) Roster(ctx context.Context) ([]Student, error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []Student{}
	}
	return students, nil
}

// Overview is the admin attendance grid for the current week.
type Overview struct {
	Students  []Student `json:"students"`
	WeekDates []string  `json:"weekDates"`
	Today     string    `json:"today"`
}

// Overview returns the roster and the Mon-Fri dates of the current week.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	students, err := s.Roster(ctx)
	if err != nil {
		return Overview{}, err
	}
	today := s.calendar.Today(s.now())
	return Overview{
		Students:  students,
		WeekDates: schedule.WeekDates(today),
		Today:     today,
	}, nil
}

// CurrentDate is today's ISO date in the program timezone.
func (s *Service) CurrentDate() string {
	return s.calendar.Today(s.now())
}

// ResolveRange fills an empty From with the program start and an empty To
// with today.
func (s *Service) ResolveRange(r schedule.Range) schedule.Range {
	if r.From == "" {
		r.From = s.calendar.ProgramStart
	}
	if r.To == "" {
		r.To = s.CurrentDate()
	}
	return r
}

// Cohort computes per-student and cohort stats over r.
func (s *Service) Cohort(ctx context.Context, r schedule.Range) (CohortStats, error) {
	scheduled, students, err := s.prepare(ctx, r)
	if err != nil {
		return CohortStats{}, err
	}
	return ComputeCohortStats(students, scheduled), nil
}

// Standings ranks teams by attendance from program start to today.
func (s *Service) Standings(ctx context.Context) ([]TeamStanding, error) {
	scheduled, students, err := s.prepare(ctx, schedule.Range{})
	if err != nil {
		// before the program starts the range is empty, not invalid
		if errors.Is(err, schedule.ErrInvalidDateRange) {
			return []TeamStanding{}, nil
		}
		return nil, err
	}
	return TeamStandings(students, scheduled), nil
}

func (s *Service) prepare(ctx context.Context, r schedule.Range) ([]string, []Student, error) {
	dates, err := schedule.WeekdayDates(s.ResolveRange(r))
	if err != nil {
		return nil, nil, err
	}
	students, err := s.Roster(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s.calendar.ScheduledDates(dates), students, nil
}
