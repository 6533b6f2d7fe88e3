package dummydb

import (
	"context"
	"sort"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/attendance"
)

// attendanceRepository needs the whole DB: the report joins attendance with
// sessions (date bounds) and students (identity fields).
type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) query() []attendance.Attendance {
	records := make([]attendance.Attendance, 0, len(repo.db.attendance.table))
	for _, a := range repo.db.attendance.table {
		records = append(records, *a)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].MarkedAt.Before(records[j].MarkedAt) })
	return records
}

func (repo *attendanceRepository) UpsertAttendance(_ context.Context, att attendance.Attendance) (bool, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	for _, rec := range repo.db.attendance.table {
		if rec.SessionID == att.SessionID && rec.StudentID == att.StudentID {
			rec.Present = att.Present
			rec.Notes = att.Notes
			rec.MarkedBy = att.MarkedBy
			rec.MarkedAt = att.MarkedAt
			return false, nil
		}
	}

	att.ID = newID()
	repo.db.attendance.table[att.ID] = &att
	return true, nil
}

func (repo *attendanceRepository) FilterAttendance(_ context.Context, filter attendance.QueryFilter, _ ...core.DBOrdering) ([]attendance.Attendance, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	records := make([]attendance.Attendance, 0)
	for _, rec := range repo.query() {
		if filter.SessionID != "" && rec.SessionID != filter.SessionID {
			continue
		}
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (repo *attendanceRepository) AttendanceReport(_ context.Context, filter attendance.ReportFilter) ([]attendance.StudentReport, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()
	repo.db.student.RLock()
	defer repo.db.student.RUnlock()

	byStudent := make(map[string]*attendance.StudentReport)
	order := make([]string, 0)

	for _, rec := range repo.query() {
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		sess, ok := repo.db.session.table[rec.SessionID]
		if !ok {
			continue // orphaned record; excluded from the report
		}
		if !filter.StartDate.IsZero() && sess.Date.Before(filter.StartDate) {
			continue
		}
		if !filter.EndDate.IsZero() && sess.Date.After(filter.EndDate) {
			continue
		}

		row, ok := byStudent[rec.StudentID]
		if !ok {
			row = &attendance.StudentReport{StudentID: rec.StudentID}
			if stu, ok := repo.db.student.table[rec.StudentID]; ok {
				row.StudentName = stu.Name
			}
			byStudent[rec.StudentID] = row
			order = append(order, rec.StudentID)
		}
		row.TotalSessions++
		if rec.Present {
			row.AttendedSessions++
		}
	}

	rows := make([]attendance.StudentReport, 0, len(order))
	for _, id := range order {
		rows = append(rows, *byStudent[id])
	}
	return rows, nil
}
