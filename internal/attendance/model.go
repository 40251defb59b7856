package attendance

import (
	"errors"
	"fmt"
	"time"
)

// Status is the attendance outcome recorded for one student on one date.
type Status string

const (
	StatusUnset       Status = ""
	StatusPresent     Status = "present"
	StatusLate        Status = "present-late"
	StatusExcused     Status = "excused"
	StatusAbsent      Status = "absent"
	StatusNotRequired Status = "not-required"
	StatusPending     Status = "pending"
)

// MarkedBy is the provenance of a record.
type MarkedBy string

const (
	MarkedBySelf   MarkedBy = "self"
	MarkedByAdmin  MarkedBy = "admin"
	MarkedByImport MarkedBy = "import"
)

// Record is the single attendance entry of a student for a date.
type Record struct {
	Date          string    `json:"date"`
	Status        Status    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Comment       string    `json:"comment,omitempty"`
	MarkedBy      MarkedBy  `json:"markedBy"`
	MarkedByEmail string    `json:"markedByEmail,omitempty"`
}

// Student is a roster entry. Email is the stable key.
type Student struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Team       *int     `json:"team"`
	Role       string   `json:"role,omitempty"`
	Attendance []Record `json:"attendance"`
}

// RecordFor returns the student's record for date, if any.
func (s *Student) RecordFor(date string) *Record {
	for i := range s.Attendance {
		if s.Attendance[i].Date == date {
			return &s.Attendance[i]
		}
	}
	return nil
}

var (
	ErrAlreadyCheckedIn = errors.New("already checked in today")
	ErrStudentNotFound  = errors.New("student not found")
	ErrInvalidMark      = errors.New("invalid mark")
)

// AlreadyCheckedInError carries the record that is already stored for today.
type AlreadyCheckedInError struct {
	Existing Record
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("already checked in on %s as %s", e.Existing.Date, e.Existing.Status)
}

func (e *AlreadyCheckedInError) Is(target error) bool {
	return target == ErrAlreadyCheckedIn
}

var statusCycle = []Status{StatusUnset, StatusPresent, StatusExcused, StatusAbsent}

// NextStatus advances the admin click cycle
// unset -> present -> excused -> absent -> unset.
// Statuses outside the cycle restart it at present.
func NextStatus(current Status) Status {
	for i, s := range statusCycle {
		if s == current {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return StatusPresent
}

// ReportCode is the short code shown for a status in exports.
func (s Status) ReportCode() string {
	switch s {
	case StatusPresent:
		return "✓"
	case StatusLate:
		return "L"
	case StatusExcused:
		return "E"
	case StatusAbsent:
		return "X"
	default:
		return ""
	}
}
