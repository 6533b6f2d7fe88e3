package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("session not found")
	ErrTutorRequired = errors.New("assigned tutor does not resolve to an active tutor user")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		FilterSessions(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
	}

	Service struct {
		repo     Repository
		programs program.Repository
		users    user.Repository
	}
)

func NewService(repo Repository, programs program.Repository, users user.Repository) *Service {
	return &Service{repo: repo, programs: programs, users: users}
}

// Create schedules a session for a program; the program's current enrollment
// set is copied onto the session as a fixed snapshot.
func (svc *Service) Create(ctx context.Context, ns NewSession) (Session, error) {
	prog, err := svc.programs.GetProgramByID(ctx, ns.ProgramID)
	if err != nil {
		return Session{}, err
	}
	if !prog.IsActive {
		return Session{}, program.ErrNotFound
	}

	tutor, err := svc.users.GetUserByID(ctx, ns.TutorID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Session{}, core.NewValidationError(ErrTutorRequired, core.FieldError{Field: "tutor_id", Error: ErrTutorRequired.Error()})
		}
		return Session{}, err
	}
	if !tutor.IsActive || !(tutor.IsTutor() || tutor.IsAdmin()) {
		return Session{}, core.NewValidationError(ErrTutorRequired, core.FieldError{Field: "tutor_id", Error: ErrTutorRequired.Error()})
	}

	startTime, endTime := ns.StartTime, ns.EndTime
	if startTime == "" {
		startTime = prog.Schedule.StartTime
	}
	if endTime == "" {
		endTime = prog.Schedule.EndTime
	}

	students := make([]string, len(prog.EnrolledStudents))
	copy(students, prog.EnrolledStudents)

	now := time.Now().UTC()
	sess := Session{
		ProgramID:   prog.ID,
		TutorID:     tutor.ID,
		Date:        ns.Date.UTC().Truncate(24 * time.Hour),
		StartTime:   startTime,
		EndTime:     endTime,
		Students:    students,
		Notes:       ns.Notes,
		Attachments: []Attachment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateSession(ctx, sess)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Session, error) {
	return svc.repo.FilterSessions(ctx, filter, ordering...)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateSession) (Session, error) {
	sess, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if us.Notes != "" {
		sess.Notes = us.Notes
	}
	if us.StartTime != "" {
		sess.StartTime = us.StartTime
	}
	if us.EndTime != "" {
		sess.EndTime = us.EndTime
	}
	if us.Attachments != nil {
		sess.Attachments = us.Attachments
	}
	sess.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSession(ctx, sess)
}
