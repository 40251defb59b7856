package submission

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status is the traffic light a student attaches to a progress report.
type Status string

const (
	StatusGreen  Status = "green"
	StatusYellow Status = "yellow"
	StatusRed    Status = "red"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrInvalid         = errors.New("invalid submission")
)

// Lines is a list of bullet points. It decodes from either a JSON array or a
// single string.
type Lines []string

func (l *Lines) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = compact([]string{one})
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = compact(many)
	return nil
}

func compact(in []string) Lines {
	out := make(Lines, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Submission is one individual progress report.
type Submission struct {
	ID          string    `json:"submissionId"`
	Email       string    `json:"-"`
	Week        *int      `json:"week,omitempty"`
	Date        string    `json:"date"`
	Title       string    `json:"title"`
	WorkDone    Lines     `json:"workDone"`
	Blockers    Lines     `json:"blockers"`
	NextSteps   Lines     `json:"nextSteps"`
	Status      Status    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Entry is a submission joined with its author for the admin view.
type Entry struct {
	Submission
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
	StudentTeam  *int   `json:"studentTeam"`
}

// Input is the body of a new submission.
type Input struct {
	Week      *int   `json:"week" validate:"omitempty,min=1,max=52"`
	Title     string `json:"title" validate:"required,max=200"`
	WorkDone  Lines  `json:"workDone" validate:"required,min=1,dive,max=2000"`
	Blockers  Lines  `json:"blockers" validate:"dive,max=2000"`
	NextSteps Lines  `json:"nextSteps" validate:"dive,max=2000"`
	Status    Status `json:"status" validate:"required,oneof=green yellow red"`
}

var validate = validator.New()

// Validate checks required fields and the status value.
func (in *Input) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	return validate.Struct(in)
}
