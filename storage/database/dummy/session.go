package dummydb

import (
	"context"
	"sort"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) query() []session.Session {
	sessions := make([]session.Session, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Date.Before(sessions[j].Date) })
	return sessions
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess.ID = newID()
	repo.db.table[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) GetSessionByID(_ context.Context, id string) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sess, ok := repo.db.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) FilterSessions(_ context.Context, filter session.QueryFilter, _ ...core.DBOrdering) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	match := func(sess session.Session) bool {
		if filter.ProgramID != "" && sess.ProgramID != filter.ProgramID {
			return false
		}
		if filter.TutorID != "" && sess.TutorID != filter.TutorID {
			return false
		}
		if !filter.DateFrom.IsZero() && sess.Date.Before(filter.DateFrom) {
			return false
		}
		if !filter.DateTo.IsZero() && sess.Date.After(filter.DateTo) {
			return false
		}
		return true
	}

	sessions := make([]session.Session, 0)
	for _, sess := range repo.query() {
		if match(sess) {
			sessions = append(sessions, sess)
		}
	}
	return sessions, nil
}

func (repo *sessionRepository) UpdateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[sess.ID]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}

	orig.Notes = sess.Notes
	orig.StartTime = sess.StartTime
	orig.EndTime = sess.EndTime
	orig.Attachments = sess.Attachments
	orig.UpdatedAt = sess.UpdatedAt
	return *orig, nil
}
