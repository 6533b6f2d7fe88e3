package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmeasures/hub/core/attendance"
	"github.com/classmeasures/hub/core/notification"
	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/session"
	"github.com/classmeasures/hub/core/student"
	dummydb "github.com/classmeasures/hub/storage/database/dummy"
	testutil "github.com/classmeasures/hub/tests"
)

type testDeps struct {
	svc      *attendance.Service
	programs program.Repository
	students student.Repository
	sessions session.Repository
	hub      *notification.Hub
}

func setup(t *testing.T) testDeps {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)

	deps := testDeps{
		programs: dummydb.NewProgramRepository(db),
		students: dummydb.NewStudentRepository(db),
		sessions: dummydb.NewSessionRepository(db),
		hub:      notification.NewHub(notification.DefaultCapacity),
	}
	deps.svc = attendance.NewService(dummydb.NewAttendanceRepository(db), deps.sessions, deps.students, deps.hub)
	return deps
}

func TestMark(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	prog := testutil.CreateProgram(t, deps.programs, "Chess Club", program.CategoryChess, 10, "")
	stu := testutil.CreateStudent(t, deps.students, "Alice", 9, "")
	sess := testutil.CreateSession(t, deps.sessions, prog.ID, "", time.Now(), []string{stu.ID})

	results, err := deps.svc.Mark(ctx, "tutor-1", attendance.MarkRequest{
		SessionID: sess.ID,
		AttendanceData: []attendance.Record{
			{StudentID: stu.ID, Present: true, Notes: "on time"},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, attendance.OutcomeCreated, results[0].Status)
	assert.Equal(t, stu.ID, results[0].StudentID)
	assert.Empty(t, results[0].Error)

	records, err := deps.svc.Filter(ctx, attendance.QueryFilter{SessionID: sess.ID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, stu.ID, records[0].StudentID)
	assert.True(t, records[0].Present)
	assert.Equal(t, "on time", records[0].Notes)
	assert.Equal(t, "tutor-1", records[0].MarkedBy)

	events := deps.hub.Recent()
	require.NotEmpty(t, events)
	assert.Equal(t, notification.TypeAttendance, events[0].Type)
}

func TestMark_overwrite(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	prog := testutil.CreateProgram(t, deps.programs, "Chess Club", program.CategoryChess, 10, "")
	stu := testutil.CreateStudent(t, deps.students, "Alice", 9, "")
	sess := testutil.CreateSession(t, deps.sessions, prog.ID, "", time.Now(), []string{stu.ID})

	results, err := deps.svc.Mark(ctx, "tutor-1", attendance.MarkRequest{
		SessionID:      sess.ID,
		AttendanceData: []attendance.Record{{StudentID: stu.ID, Present: true}},
	})
	require.NoError(t, err)
	require.Equal(t, attendance.OutcomeCreated, results[0].Status)

	// marking the same (session, student) pair again overwrites, never duplicates
	results, err = deps.svc.Mark(ctx, "tutor-2", attendance.MarkRequest{
		SessionID:      sess.ID,
		AttendanceData: []attendance.Record{{StudentID: stu.ID, Present: false, Notes: "sick"}},
	})
	require.NoError(t, err)
	require.Equal(t, attendance.OutcomeUpdated, results[0].Status)

	records, err := deps.svc.Filter(ctx, attendance.QueryFilter{SessionID: sess.ID, StudentID: stu.ID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Present)
	assert.Equal(t, "sick", records[0].Notes)
	assert.Equal(t, "tutor-2", records[0].MarkedBy)
}

func TestMark_unknownStudent(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	prog := testutil.CreateProgram(t, deps.programs, "Chess Club", program.CategoryChess, 10, "")
	stu := testutil.CreateStudent(t, deps.students, "Alice", 9, "")
	sess := testutil.CreateSession(t, deps.sessions, prog.ID, "", time.Now(), []string{stu.ID})

	results, err := deps.svc.Mark(ctx, "tutor-1", attendance.MarkRequest{
		SessionID: sess.ID,
		AttendanceData: []attendance.Record{
			{StudentID: stu.ID, Present: true},
			{StudentID: "5ff74db702aab3462be7b10a", Present: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// the failing record does not roll back the rest of the batch
	assert.Equal(t, attendance.OutcomeCreated, results[0].Status)
	assert.Equal(t, attendance.OutcomeFailed, results[1].Status)
	assert.Equal(t, student.ErrNotFound.Error(), results[1].Error)

	records, err := deps.svc.Filter(ctx, attendance.QueryFilter{SessionID: sess.ID})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMark_allFailed(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	prog := testutil.CreateProgram(t, deps.programs, "Chess Club", program.CategoryChess, 10, "")
	sess := testutil.CreateSession(t, deps.sessions, prog.ID, "", time.Now(), nil)

	results, err := deps.svc.Mark(ctx, "tutor-1", attendance.MarkRequest{
		SessionID: sess.ID,
		AttendanceData: []attendance.Record{
			{StudentID: "5ff74db702aab3462be7b10a", Present: true},
			{StudentID: "5ff74db702aab3462be7b10b", Present: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, attendance.OutcomeFailed, results[0].Status)
	assert.Equal(t, attendance.OutcomeFailed, results[1].Status)

	// nothing was marked, so no event is published
	assert.Empty(t, deps.hub.Recent())
}

func TestMark_sessionNotFound(t *testing.T) {
	deps := setup(t)

	_, err := deps.svc.Mark(context.Background(), "tutor-1", attendance.MarkRequest{
		SessionID:      "5ff74db702aab3462be7b10a",
		AttendanceData: []attendance.Record{{StudentID: "whatever", Present: true}},
	})
	assert.Equal(t, session.ErrNotFound, err)
}

func TestReport(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	prog := testutil.CreateProgram(t, deps.programs, "Chess Club", program.CategoryChess, 10, "")
	alice := testutil.CreateStudent(t, deps.students, "Alice", 9, "")
	bob := testutil.CreateStudent(t, deps.students, "Bob", 10, "")

	dates := []time.Time{
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	}
	present := map[string][]bool{
		alice.ID: {true, true, false},
		bob.ID:   {true, false, false},
	}
	for i, date := range dates {
		sess := testutil.CreateSession(t, deps.sessions, prog.ID, "", date, []string{alice.ID, bob.ID})
		_, err := deps.svc.Mark(ctx, "tutor-1", attendance.MarkRequest{
			SessionID: sess.ID,
			AttendanceData: []attendance.Record{
				{StudentID: alice.ID, Present: present[alice.ID][i]},
				{StudentID: bob.ID, Present: present[bob.ID][i]},
			},
		})
		require.NoError(t, err)
	}

	rows, err := deps.svc.Report(ctx, attendance.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := make(map[string]attendance.StudentReport, len(rows))
	for _, row := range rows {
		byID[row.StudentID] = row
	}
	assert.Equal(t, "Alice", byID[alice.ID].StudentName)
	assert.Equal(t, 3, byID[alice.ID].TotalSessions)
	assert.Equal(t, 2, byID[alice.ID].AttendedSessions)
	assert.Equal(t, 67, byID[alice.ID].AttendancePercentage)
	assert.Equal(t, 1, byID[bob.ID].AttendedSessions)
	assert.Equal(t, 33, byID[bob.ID].AttendancePercentage)
}

func TestReport_dateBounds(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	prog := testutil.CreateProgram(t, deps.programs, "Chess Club", program.CategoryChess, 10, "")
	alice := testutil.CreateStudent(t, deps.students, "Alice", 9, "")

	inRange := testutil.CreateSession(t, deps.sessions, prog.ID, "",
		time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), []string{alice.ID})
	outOfRange := testutil.CreateSession(t, deps.sessions, prog.ID, "",
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), []string{alice.ID})

	for _, sess := range []session.Session{inRange, outOfRange} {
		_, err := deps.svc.Mark(ctx, "tutor-1", attendance.MarkRequest{
			SessionID:      sess.ID,
			AttendanceData: []attendance.Record{{StudentID: alice.ID, Present: true}},
		})
		require.NoError(t, err)
	}

	rows, err := deps.svc.Report(ctx, attendance.ReportFilter{
		StudentID: alice.ID,
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].TotalSessions)
	assert.Equal(t, 100, rows[0].AttendancePercentage)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		attended int
		total    int
		want     int
	}{
		{"no sessions", 0, 0, 0},
		{"all attended", 3, 3, 100},
		{"none attended", 0, 4, 0},
		{"rounds to nearest", 2, 3, 67},
		{"rounds down", 1, 3, 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attendance.Percentage(tt.attended, tt.total))
		})
	}
}
