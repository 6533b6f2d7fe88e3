package attendance

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/notification"
	"github.com/classmeasures/hub/core/session"
	"github.com/classmeasures/hub/core/student"
)

var (
	// errors
	ErrNotFound = errors.New("attendance record not found")
)

type (
	Repository interface {
		// UpsertAttendance writes the record keyed by (SessionID, StudentID):
		// overwrite when present, insert otherwise. Reports whether a new
		// record was created.
		UpsertAttendance(ctx context.Context, att Attendance) (created bool, err error)
		FilterAttendance(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Attendance, error)
		// AttendanceReport groups attendance by student, counting records whose
		// linked session date falls within the filter bounds (unbounded when
		// zero). AttendancePercentage is left for the service to fill in.
		AttendanceReport(ctx context.Context, filter ReportFilter) ([]StudentReport, error)
	}

	Service struct {
		repo     Repository
		sessions session.Repository
		students student.Repository
		hub      *notification.Hub
	}
)

func NewService(repo Repository, sessions session.Repository, students student.Repository, hub *notification.Hub) *Service {
	return &Service{repo: repo, sessions: sessions, students: students, hub: hub}
}

// Mark applies a batch of attendance records for one session. Records are
// processed independently: a failing record (e.g. unresolvable student) does
// not roll back the others; every record's outcome is reported.
func (svc *Service) Mark(ctx context.Context, markedBy string, req MarkRequest) ([]RecordResult, error) {
	sess, err := svc.sessions.GetSessionByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	results := make([]RecordResult, 0, len(req.AttendanceData))
	for _, rec := range req.AttendanceData {
		res := RecordResult{StudentID: rec.StudentID}

		if _, err := svc.students.GetStudentByID(ctx, rec.StudentID); err != nil {
			res.Status = OutcomeFailed
			res.Error = errors.Cause(err).Error()
			results = append(results, res)
			continue
		}

		created, err := svc.repo.UpsertAttendance(ctx, Attendance{
			SessionID: sess.ID,
			StudentID: rec.StudentID,
			Present:   rec.Present,
			Notes:     rec.Notes,
			MarkedBy:  markedBy,
			MarkedAt:  now,
		})
		switch {
		case err != nil:
			res.Status = OutcomeFailed
			res.Error = err.Error()
		case created:
			res.Status = OutcomeCreated
		default:
			res.Status = OutcomeUpdated
		}
		results = append(results, res)
	}

	for _, res := range results {
		if res.Status != OutcomeFailed {
			svc.hub.Publish(notification.TypeAttendance, "attendance marked for session "+sess.ID)
			break
		}
	}
	return results, nil
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Attendance, error) {
	return svc.repo.FilterAttendance(ctx, filter, ordering...)
}

// Report computes per-student attendance statistics over the filter's date
// range. For a fixed data snapshot and fixed bounds the result is a pure
// function of the Attendance+Session data.
func (svc *Service) Report(ctx context.Context, filter ReportFilter) ([]StudentReport, error) {
	rows, err := svc.repo.AttendanceReport(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].AttendancePercentage = Percentage(rows[i].AttendedSessions, rows[i].TotalSessions)
	}
	return rows, nil
}

// Percentage is the nearest-integer attendance ratio; 0 when total is 0.
func Percentage(attended, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(attended) / float64(total) * 100))
}
