package program

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/classmeasures/hub/core"
)

var (
	// errors
	ErrNotFound   = errors.New("program not found")
	ErrNameExists = errors.New("a program with this name already exists")

	// ErrEnrollmentNotCommitted is returned by Repository.AppendEnrolledStudent
	// when the guarded write matched no document: the program went away, filled
	// up or already contains the student between the caller's read and the
	// write. The caller re-reads to find out which.
	ErrEnrollmentNotCommitted = errors.New("enrollment precondition failed at write time")
)

// HasActiveEnrollmentError rejects deactivation of a program that still has
// students enrolled; the count is part of the message.
type HasActiveEnrollmentError struct {
	EnrolledCount int
}

func (err *HasActiveEnrollmentError) Error() string {
	return fmt.Sprintf("cannot deactivate program: %d student(s) currently enrolled", err.EnrolledCount)
}

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name string, excludedPrograms ...Program) error
		CreateProgram(ctx context.Context, prog Program) (Program, error)
		// GetProgramByID resolves active and deactivated programs alike so that
		// historical session/attendance references stay resolvable.
		GetProgramByID(ctx context.Context, id string) (Program, error)
		// FilterPrograms applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Program.Name or Program.Description.
		FilterPrograms(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Program, error)
		UpdateProgram(ctx context.Context, prog Program, isActive *bool) (Program, error)
		// AppendEnrolledStudent appends studentID to the program's enrollment
		// set. The write only succeeds if, at write time, the program is still
		// active, the student is not already present and the set is below
		// capacity; otherwise ErrEnrollmentNotCommitted. The precondition and
		// the append are one atomic step.
		AppendEnrolledStudent(ctx context.Context, programID, studentID string) error
		// RemoveEnrolledStudent removes studentID from the program's enrollment
		// set; removing an absent student is a no-op.
		RemoveEnrolledStudent(ctx context.Context, programID, studentID string) error
		ProgramStats(ctx context.Context) (Stats, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckNameUniqueness(name string, exclPrograms ...Program) error {
	if err := svc.repo.CheckNameUniqueness(context.Background(), name, exclPrograms...); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, np NewProgram) (Program, error) {
	now := time.Now().UTC()
	prog := Program{
		Name:             np.Name,
		Description:      np.Description,
		Category:         np.Category,
		AgeRange:         np.AgeRange,
		Schedule:         np.Schedule,
		Capacity:         np.Capacity,
		TutorID:          np.TutorID,
		EnrolledStudents: []string{},
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return svc.repo.CreateProgram(ctx, prog)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Program, error) {
	return svc.repo.GetProgramByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Program, error) {
	return svc.repo.FilterPrograms(ctx, filter, ordering...)
}

func (svc *Service) Update(ctx context.Context, id string, up UpdateProgram) (Program, error) {
	prog := Program{
		ID:          id,
		Name:        up.Name,
		Description: up.Description,
		Category:    up.Category,
		AgeRange:    *up.AgeRange,
		Schedule:    *up.Schedule,
		Capacity:    up.Capacity,
		TutorID:     up.TutorID,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateProgram(ctx, prog, up.IsActive)
}

// Deactivate soft-deletes a program: it is excluded from default listings but
// remains retrievable by id. A program with enrolled students cannot be
// deactivated.
func (svc *Service) Deactivate(ctx context.Context, id string) error {
	prog, err := svc.repo.GetProgramByID(ctx, id)
	if err != nil {
		return err
	}
	if n := prog.EnrolledCount(); n > 0 {
		return &HasActiveEnrollmentError{EnrolledCount: n}
	}
	isActive := false
	prog.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateProgram(ctx, prog, &isActive)
	return err
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	return svc.repo.ProgramStats(ctx)
}
