package dummydb

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/program"
)

type programRepository struct {
	db *programTable
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(db *DB) program.Repository {
	return &programRepository{db: db.program}
}

func (repo *programRepository) query() []program.Program {
	progs := make([]program.Program, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		progs = append(progs, *p)
	}
	sort.Slice(progs, func(i, j int) bool { return progs[i].CreatedAt.Before(progs[j].CreatedAt) })
	return progs
}

func (repo *programRepository) CheckNameUniqueness(_ context.Context, name string, excludedPrograms ...program.Program) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := func(prog program.Program) bool {
		for _, ex := range excludedPrograms {
			if ex.ID == prog.ID {
				return true
			}
		}
		return false
	}

	// uniqueness holds within the active set only
	for _, prog := range repo.query() {
		if prog.IsActive && !excluded(prog) && strings.EqualFold(prog.Name, name) {
			return program.ErrNameExists
		}
	}
	return nil
}

func (repo *programRepository) CreateProgram(_ context.Context, prog program.Program) (program.Program, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	prog.ID = newID()
	repo.db.table[prog.ID] = &prog
	return prog, nil
}

func (repo *programRepository) GetProgramByID(_ context.Context, id string) (program.Program, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if prog, ok := repo.db.table[id]; ok {
		return *prog, nil
	}
	return program.Program{}, program.ErrNotFound
}

func (repo *programRepository) FilterPrograms(_ context.Context, filter program.QueryFilter, _ ...core.DBOrdering) ([]program.Program, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	match := func(prog program.Program) bool {
		if filter.IsActive != nil {
			if prog.IsActive != *filter.IsActive {
				return false
			}
		} else if !prog.IsActive {
			return false // deactivated programs excluded by default
		}
		if filter.Category != "" && prog.Category != filter.Category {
			return false
		}
		if filter.TutorID != "" && prog.TutorID != filter.TutorID {
			return false
		}
		switch filter.Availability {
		case program.AvailabilityAvailable:
			if prog.IsFull() {
				return false
			}
		case program.AvailabilityFull:
			if !prog.IsFull() {
				return false
			}
		}
		if filter.Search != "" {
			search := strings.ToLower(filter.Search)
			if !(strings.Contains(strings.ToLower(prog.Name), search) ||
				strings.Contains(strings.ToLower(prog.Description), search)) {
				return false
			}
		}
		return true
	}

	progs := make([]program.Program, 0)
	for _, prog := range repo.query() {
		if match(prog) {
			progs = append(progs, prog)
		}
	}

	// pagination
	start := (filter.Page - 1) * filter.Limit
	if start >= len(progs) {
		return []program.Program{}, nil
	}
	end := start + filter.Limit
	if end > len(progs) {
		end = len(progs)
	}
	return progs[start:end], nil
}

func (repo *programRepository) UpdateProgram(_ context.Context, prog program.Program, isActive *bool) (program.Program, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[prog.ID]
	if !ok {
		return program.Program{}, program.ErrNotFound
	}

	if prog.Name != "" {
		orig.Name = prog.Name
	}
	if prog.Description != "" {
		orig.Description = prog.Description
	}
	if prog.Category != "" {
		orig.Category = prog.Category
	}
	if prog.AgeRange != (program.AgeRange{}) {
		orig.AgeRange = prog.AgeRange
	}
	if prog.Schedule.Days != nil || prog.Schedule.StartTime != "" {
		orig.Schedule = prog.Schedule
	}
	if prog.Capacity != 0 {
		orig.Capacity = prog.Capacity
	}
	if prog.TutorID != "" {
		orig.TutorID = prog.TutorID
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.UpdatedAt = prog.UpdatedAt
	return *orig, nil
}

func (repo *programRepository) AppendEnrolledStudent(_ context.Context, programID, studentID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	prog, ok := repo.db.table[programID]
	if !ok {
		return program.ErrNotFound
	}
	// precondition and append under one lock, like the guarded update of the real store
	if !prog.IsActive || prog.IsEnrolled(studentID) || prog.IsFull() {
		return program.ErrEnrollmentNotCommitted
	}
	prog.EnrolledStudents = append(prog.EnrolledStudents, studentID)
	return nil
}

func (repo *programRepository) RemoveEnrolledStudent(_ context.Context, programID, studentID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	prog, ok := repo.db.table[programID]
	if !ok {
		return program.ErrNotFound
	}
	for i, id := range prog.EnrolledStudents {
		if id == studentID {
			prog.EnrolledStudents = append(prog.EnrolledStudents[:i], prog.EnrolledStudents[i+1:]...)
			break
		}
	}
	return nil
}

func (repo *programRepository) ProgramStats(_ context.Context) (program.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stats := program.Stats{Categories: []program.CategoryStats{}}
	byCategory := make(map[string]*program.CategoryStats)

	for _, prog := range repo.query() {
		stats.TotalPrograms++
		if prog.IsActive {
			stats.ActivePrograms++
		}
		stats.TotalEnrollments += prog.EnrolledCount()
		if prog.IsFull() {
			stats.FullPrograms++
		}

		cs, ok := byCategory[prog.Category]
		if !ok {
			cs = &program.CategoryStats{Category: prog.Category}
			byCategory[prog.Category] = cs
		}
		cs.Count++
		cs.Enrollments += prog.EnrolledCount()
	}

	if stats.TotalPrograms > 0 {
		avg := float64(stats.TotalEnrollments) / float64(stats.TotalPrograms)
		stats.AverageEnrollment = math.Round(avg*10) / 10
	}

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		stats.Categories = append(stats.Categories, *byCategory[cat])
	}
	return stats, nil
}
