// Package dummydb is a shared-memory implementation of the repositories,
// used by tests. Transactions serialize on a single lock; per-table
// consistency matches the real store, cross-table rollback does not (the
// enrollment operations are safely re-executable, see core/enrollment).
package dummydb

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/attendance"
	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/session"
	"github.com/classmeasures/hub/core/student"
	"github.com/classmeasures/hub/core/user"
)

type (
	DB struct {
		txMu sync.Mutex

		user       *userTable
		program    *programTable
		student    *studentTable
		session    *sessionTable
		attendance *attendanceTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	programTable struct {
		sync.RWMutex
		table map[string]*program.Program
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*session.Session
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Attendance
	}
)

var _ core.DB = (*DB)(nil)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		program:    &programTable{table: make(map[string]*program.Program)},
		student:    &studentTable{table: make(map[string]*student.Student)},
		session:    &sessionTable{table: make(map[string]*session.Session)},
		attendance: &attendanceTable{table: make(map[string]*attendance.Attendance)},
	}
	return db, nil
}

func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	return fn(ctx)
}

// newID mints ids in the same shape the real store uses.
func newID() string {
	return primitive.NewObjectID().Hex()
}
