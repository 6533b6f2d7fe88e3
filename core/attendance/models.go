package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/classmeasures/hub/core"
)

// Attendance is a presence/absence record for one Student at one Session.
// At most one record exists per (session, student) pair; marking again
// overwrites the existing record.
type Attendance struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	Present   bool      `json:"present"`
	Notes     string    `json:"notes,omitempty"`
	MarkedBy  string    `json:"marked_by"`
	MarkedAt  time.Time `json:"marked_at"` // UTC
}

// Record is one entry of a mark-attendance batch.
type Record struct {
	StudentID string `json:"studentId" validate:"required"`
	Present   bool   `json:"present"`
	Notes     string `json:"notes"`
}

// MarkRequest is the mark-attendance payload.
type MarkRequest struct {
	SessionID      string   `json:"sessionId" validate:"required"`
	AttendanceData []Record `json:"attendanceData" validate:"required,min=1,dive"`
}

func (mr *MarkRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(mr)
}

// Record outcome statuses.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeFailed  = "failed"
)

// RecordResult is the per-record outcome of a batch mark; the batch is
// best-effort, so callers inspect these to detect partial failure.
type RecordResult struct {
	StudentID string `json:"studentId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type QueryFilter struct {
	SessionID string `query:"sessionId"`
	StudentID string `query:"studentId"`
}

type ReportFilter struct {
	StudentID string    `query:"studentId"`
	StartDate time.Time `query:"startDate"`
	EndDate   time.Time `query:"endDate"`
}

// StudentReport is one row of the attendance report, grouped by student.
type StudentReport struct {
	StudentID            string `json:"student_id"`
	StudentName          string `json:"student_name"`
	TotalSessions        int    `json:"total_sessions"`
	AttendedSessions     int    `json:"attended_sessions"`
	AttendancePercentage int    `json:"attendance_percentage"`
}

func (qf *QueryFilter) Clean() {
	qf.SessionID = core.CleanString(qf.SessionID)
	qf.StudentID = core.CleanString(qf.StudentID)
}
