package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		students = append(students, *s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].CreatedAt.Before(students[j].CreatedAt) })
	return students
}

func (repo *studentRepository) CreateStudent(_ context.Context, stu student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stu.ID = newID()
	repo.db.table[stu.ID] = &stu
	return stu, nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if stu, ok := repo.db.table[id]; ok {
		return *stu, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) FilterStudents(_ context.Context, filter student.QueryFilter, _ ...core.DBOrdering) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	match := func(stu student.Student) bool {
		if filter.IsActive != nil {
			if stu.IsActive != *filter.IsActive {
				return false
			}
		} else if !stu.IsActive {
			return false
		}
		if filter.ParentID != "" && stu.ParentID != filter.ParentID {
			return false
		}
		if filter.Program != "" {
			if _, ok := stu.ActiveEnrollment(filter.Program); !ok {
				return false
			}
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(stu.Name), strings.ToLower(filter.Search)) {
			return false
		}
		return true
	}

	students := make([]student.Student, 0)
	for _, stu := range repo.query() {
		if match(stu) {
			students = append(students, stu)
		}
	}
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, stu student.Student, isActive *bool) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[stu.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}

	if stu.Name != "" {
		orig.Name = stu.Name
	}
	if stu.Age != 0 {
		orig.Age = stu.Age
	}
	if stu.ParentID != "" {
		orig.ParentID = stu.ParentID
	}
	if stu.EmergencyContact != (student.EmergencyContact{}) {
		orig.EmergencyContact = stu.EmergencyContact
	}
	if stu.MembershipStatus != "" {
		orig.MembershipStatus = stu.MembershipStatus
	}
	if stu.PaymentStatus != "" {
		orig.PaymentStatus = stu.PaymentStatus
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.UpdatedAt = stu.UpdatedAt
	return *orig, nil
}

func (repo *studentRepository) AppendEnrollment(_ context.Context, studentID string, enr student.Enrollment) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	stu, ok := repo.db.table[studentID]
	if !ok {
		return student.ErrNotFound
	}
	stu.Enrollments = append(stu.Enrollments, enr)
	return nil
}

func (repo *studentRepository) SetEnrollmentStatus(_ context.Context, studentID, programName, status string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	stu, ok := repo.db.table[studentID]
	if !ok {
		return student.ErrNotFound
	}
	for i := range stu.Enrollments {
		if stu.Enrollments[i].Program == programName && stu.Enrollments[i].Status != status {
			stu.Enrollments[i].Status = status
		}
	}
	return nil
}
