package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("student not found")
	ErrParentNotFound = errors.New("parent reference does not resolve to an active parent user")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, stu Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		// FilterStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Student.Name.
		FilterStudents(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, stu Student, isActive *bool) (Student, error)
		// AppendEnrollment appends an enrollment history record.
		AppendEnrollment(ctx context.Context, studentID string, enr Enrollment) error
		// SetEnrollmentStatus updates the status of the history record matching
		// programName; no-op when no such record exists.
		SetEnrollmentStatus(ctx context.Context, studentID, programName, status string) error
	}

	Service struct {
		repo  Repository
		users user.Repository
	}
)

func NewService(repo Repository, users user.Repository) *Service {
	return &Service{repo: repo, users: users}
}

// checkParent validates an optional parent reference against an active User
// holding the parent role.
func (svc *Service) checkParent(ctx context.Context, parentID string) error {
	if parentID == "" {
		return nil
	}
	parent, err := svc.users.GetUserByID(ctx, parentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(ErrParentNotFound, core.FieldError{Field: "parent_id", Error: ErrParentNotFound.Error()})
		}
		return err
	}
	if !parent.IsActive || !parent.IsParent() {
		return core.NewValidationError(ErrParentNotFound, core.FieldError{Field: "parent_id", Error: ErrParentNotFound.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if err := svc.checkParent(ctx, ns.ParentID); err != nil {
		return Student{}, err
	}

	now := time.Now().UTC()
	stu := Student{
		Name:             ns.Name,
		Age:              ns.Age,
		ParentID:         ns.ParentID,
		Enrollments:      []Enrollment{},
		EmergencyContact: ns.EmergencyContact,
		MembershipStatus: ns.MembershipStatus,
		PaymentStatus:    ns.PaymentStatus,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if stu.MembershipStatus == "" {
		stu.MembershipStatus = MembershipActive
	}
	if stu.PaymentStatus == "" {
		stu.PaymentStatus = PaymentPending
	}
	return svc.repo.CreateStudent(ctx, stu)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Student, error) {
	return svc.repo.FilterStudents(ctx, filter, ordering...)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	if err := svc.checkParent(ctx, us.ParentID); err != nil {
		return Student{}, err
	}

	stu := Student{
		ID:               id,
		Name:             us.Name,
		Age:              us.Age,
		ParentID:         us.ParentID,
		EmergencyContact: *us.EmergencyContact,
		MembershipStatus: us.MembershipStatus,
		PaymentStatus:    us.PaymentStatus,
		UpdatedAt:        time.Now().UTC(),
	}
	return svc.repo.UpdateStudent(ctx, stu, us.IsActive)
}
