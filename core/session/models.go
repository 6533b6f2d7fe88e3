package session

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/classmeasures/hub/core"
)

// Attachment is a reference to an uploaded file; upload mechanics live
// elsewhere, only the metadata is stored here.
type Attachment struct {
	Name string `json:"name" bson:"name"`
	URL  string `json:"url" bson:"url"`
}

// Session is one scheduled occurrence of a Program on a given date. Students
// is a snapshot of the program's enrollment set taken at creation time; it is
// not auto-synced with later enroll/unenroll calls.
type Session struct {
	ID          string       `json:"id"`
	ProgramID   string       `json:"program_id"`
	TutorID     string       `json:"tutor_id"`
	Date        time.Time    `json:"date"` // UTC, date component
	StartTime   string       `json:"start_time"`
	EndTime     string       `json:"end_time"`
	Students    []string     `json:"students"`
	Notes       string       `json:"notes"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
}

func (s *Session) HasStudent(studentID string) bool {
	for _, id := range s.Students {
		if id == studentID {
			return true
		}
	}
	return false
}

// NewSession contains information needed to create a new Session.
type NewSession struct {
	ProgramID string    `json:"program_id" validate:"required"`
	TutorID   string    `json:"tutor_id" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`
	StartTime string    `json:"start_time" validate:"omitempty,hhmm"`
	EndTime   string    `json:"end_time" validate:"omitempty,hhmm"`
	Notes     string    `json:"notes"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Notes = core.CleanString(ns.Notes)
	return validate.Struct(ns)
}

// UpdateSession defines what may be modified on an existing Session.
// The student snapshot is immutable.
type UpdateSession struct {
	Notes       string       `json:"notes"`
	StartTime   string       `json:"start_time" validate:"omitempty,hhmm"`
	EndTime     string       `json:"end_time" validate:"omitempty,hhmm"`
	Attachments []Attachment `json:"attachments"`
}

func (us *UpdateSession) Validate(validate *validator.Validate) error {
	us.Notes = core.CleanString(us.Notes)
	return validate.Struct(us)
}

type QueryFilter struct {
	ProgramID string    `query:"programId"`
	TutorID   string    `query:"tutorId"`
	DateFrom  time.Time `query:"date_from"`
	DateTo    time.Time `query:"date_to"`
}
