package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/session"
	"github.com/classmeasures/hub/core/student"
	"github.com/classmeasures/hub/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateProgram(
	t *testing.T,
	repo program.Repository,
	name, category string,
	capacity int,
	tutorID string,
) program.Program {
	t.Helper()

	now := time.Now().UTC()
	prog := program.Program{
		Name:     name,
		Category: category,
		AgeRange: program.AgeRange{Min: 6, Max: 12},
		Schedule: program.Schedule{
			Days:      []string{"Monday", "Wednesday"},
			StartTime: "16:00",
			EndTime:   "17:30",
		},
		Capacity:         capacity,
		TutorID:          tutorID,
		EnrolledStudents: []string{},
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	prog, err := repo.CreateProgram(context.Background(), prog)
	if err != nil {
		t.Fatalf("CreateProgram() failed: %v", err)
	}
	return prog
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	name string,
	age int,
	parentID string,
) student.Student {
	t.Helper()

	now := time.Now().UTC()
	stu := student.Student{
		Name:             name,
		Age:              age,
		ParentID:         parentID,
		Enrollments:      []student.Enrollment{},
		MembershipStatus: student.MembershipActive,
		PaymentStatus:    student.PaymentPending,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	stu, err := repo.CreateStudent(context.Background(), stu)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return stu
}

func CreateSession(
	t *testing.T,
	repo session.Repository,
	programID, tutorID string,
	date time.Time,
	students []string,
) session.Session {
	t.Helper()

	now := time.Now().UTC()
	sess := session.Session{
		ProgramID:   programID,
		TutorID:     tutorID,
		Date:        date.UTC().Truncate(24 * time.Hour),
		StartTime:   "16:00",
		EndTime:     "17:30",
		Students:    students,
		Attachments: []session.Attachment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	sess, err := repo.CreateSession(context.Background(), sess)
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}
