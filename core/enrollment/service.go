// Package enrollment owns the invariant that a student is enrolled in a
// program at most once and that a program's headcount never exceeds its
// capacity. Enrollment touches two documents (Program and Student); both
// writes run inside one transaction.
package enrollment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/notification"
	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/student"
	"github.com/classmeasures/hub/core/user"
)

var (
	// errors
	ErrAlreadyEnrolled  = errors.New("student is already enrolled in this program")
	ErrCapacityExceeded = errors.New("program is at full capacity")
	ErrProgramNotFound  = program.ErrNotFound
	ErrStudentNotFound  = student.ErrNotFound
)

type Service struct {
	db       core.DB
	programs program.Repository
	students student.Repository
	users    user.Repository
	mailSvc  core.EmailService
	hub      *notification.Hub
}

func NewService(
	db core.DB,
	programs program.Repository,
	students student.Repository,
	users user.Repository,
	mailSvc core.EmailService,
	hub *notification.Hub,
) *Service {
	return &Service{
		db:       db,
		programs: programs,
		students: students,
		users:    users,
		mailSvc:  mailSvc,
		hub:      hub,
	}
}

// Enroll adds the student to the program's enrollment set and appends an
// Active history record to the student, atomically.
//
// Check order: AlreadyEnrolled is reported regardless of capacity state;
// capacity is checked before any mutation. The capacity precondition is
// re-evaluated at write time by the repository so that two concurrent calls
// cannot both pass the check and overshoot capacity.
func (svc *Service) Enroll(ctx context.Context, programID, studentID string) (program.Program, error) {
	prog, stu, err := svc.resolve(ctx, programID, studentID)
	if err != nil {
		return program.Program{}, err
	}

	if prog.IsEnrolled(stu.ID) {
		return program.Program{}, ErrAlreadyEnrolled
	}
	if prog.IsFull() {
		return program.Program{}, ErrCapacityExceeded
	}

	enr := student.Enrollment{
		Program:      prog.Name,
		Level:        student.DefaultLevel,
		EnrolledDate: time.Now().UTC(),
		Status:       student.EnrollmentActive,
	}
	err = svc.db.WithTransaction(ctx, func(ctx context.Context) error {
		if err := svc.programs.AppendEnrolledStudent(ctx, prog.ID, stu.ID); err != nil {
			return err
		}
		return svc.students.AppendEnrollment(ctx, stu.ID, enr)
	})
	if err != nil {
		if errors.Cause(err) == program.ErrEnrollmentNotCommitted {
			// lost a race; re-read for the precise reason
			return program.Program{}, svc.explainNotCommitted(ctx, prog.ID, stu.ID)
		}
		return program.Program{}, errors.Wrap(err, "committing enrollment")
	}

	svc.hub.Publish(notification.TypeEnrollment, fmt.Sprintf("%s enrolled in %s", stu.Name, prog.Name))
	svc.notifyParent(ctx, stu, prog, "enrolled in")

	return svc.programs.GetProgramByID(ctx, prog.ID)
}

// Unenroll removes the student from the program's enrollment set (no error if
// absent) and flips the matching history record to Inactive; the record is
// kept. Both documents reflect the change before the call returns.
func (svc *Service) Unenroll(ctx context.Context, programID, studentID string) (program.Program, error) {
	prog, stu, err := svc.resolve(ctx, programID, studentID)
	if err != nil {
		return program.Program{}, err
	}

	err = svc.db.WithTransaction(ctx, func(ctx context.Context) error {
		if err := svc.programs.RemoveEnrolledStudent(ctx, prog.ID, stu.ID); err != nil {
			return err
		}
		return svc.students.SetEnrollmentStatus(ctx, stu.ID, prog.Name, student.EnrollmentInactive)
	})
	if err != nil {
		return program.Program{}, errors.Wrap(err, "committing unenrollment")
	}

	svc.hub.Publish(notification.TypeUnenrollment, fmt.Sprintf("%s unenrolled from %s", stu.Name, prog.Name))
	svc.notifyParent(ctx, stu, prog, "unenrolled from")

	return svc.programs.GetProgramByID(ctx, prog.ID)
}

// resolve fetches both records; inactive ones are treated as missing.
func (svc *Service) resolve(ctx context.Context, programID, studentID string) (program.Program, student.Student, error) {
	prog, err := svc.programs.GetProgramByID(ctx, programID)
	if err != nil {
		return program.Program{}, student.Student{}, err
	}
	if !prog.IsActive {
		return program.Program{}, student.Student{}, ErrProgramNotFound
	}
	stu, err := svc.students.GetStudentByID(ctx, studentID)
	if err != nil {
		return program.Program{}, student.Student{}, err
	}
	if !stu.IsActive {
		return program.Program{}, student.Student{}, ErrStudentNotFound
	}
	return prog, stu, nil
}

// explainNotCommitted maps a failed guarded append to the precise domain error.
func (svc *Service) explainNotCommitted(ctx context.Context, programID, studentID string) error {
	prog, err := svc.programs.GetProgramByID(ctx, programID)
	if err != nil {
		return err
	}
	switch {
	case prog.IsEnrolled(studentID):
		return ErrAlreadyEnrolled
	case !prog.IsActive:
		return ErrProgramNotFound
	default:
		return ErrCapacityExceeded
	}
}

func (svc *Service) notifyParent(ctx context.Context, stu student.Student, prog program.Program, verb string) {
	if stu.ParentID == "" {
		return
	}
	parent, err := svc.users.GetUserByID(ctx, stu.ParentID)
	if err != nil || parent.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: parent.Name, Address: parent.Email}},
		Subject: "Enrollment Update",
		BodyStr: fmt.Sprintf("%s has been %s the %s program.", stu.Name, verb, prog.Name),
	})
}
