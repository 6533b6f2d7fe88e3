package program_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmeasures/hub/core/program"
	dummydb "github.com/classmeasures/hub/storage/database/dummy"
	testutil "github.com/classmeasures/hub/tests"
)

func setup(t *testing.T) (*program.Service, program.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewProgramRepository(db)
	return program.NewService(repo), repo
}

func TestDeactivate(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	prog := testutil.CreateProgram(t, repo, "Empty Club", program.CategoryChess, 5, "")

	require.NoError(t, svc.Deactivate(ctx, prog.ID))

	refreshed, err := svc.GetByID(ctx, prog.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.IsActive)

	// deactivated programs stay retrievable by id but drop out of listings
	progs, err := svc.Filter(ctx, program.QueryFilter{Limit: 20, Page: 1})
	require.NoError(t, err)
	assert.Empty(t, progs)
}

func TestDeactivate_withEnrollment(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	prog := testutil.CreateProgram(t, repo, "Busy Club", program.CategoryCoding, 5, "")
	require.NoError(t, repo.AppendEnrolledStudent(ctx, prog.ID, "5ff74db702aab3462be7b10a"))

	err := svc.Deactivate(ctx, prog.ID)
	require.Error(t, err)

	enrErr, ok := errors.Cause(err).(*program.HasActiveEnrollmentError)
	require.True(t, ok)
	assert.Equal(t, 1, enrErr.EnrolledCount)
	assert.Contains(t, err.Error(), "1 student(s) currently enrolled")

	refreshed, err := svc.GetByID(ctx, prog.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.IsActive)
}

func TestDeactivate_notFound(t *testing.T) {
	svc, _ := setup(t)

	err := svc.Deactivate(context.Background(), "5ff74db702aab3462be7b10a")
	assert.Equal(t, program.ErrNotFound, err)
}

func TestStats_empty(t *testing.T) {
	svc, _ := setup(t)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPrograms)
	assert.Equal(t, float64(0), stats.AverageEnrollment)
}

func TestStats(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	full := testutil.CreateProgram(t, repo, "Tiny", program.CategoryChess, 1, "")
	require.NoError(t, repo.AppendEnrolledStudent(ctx, full.ID, "5ff74db702aab3462be7b10a"))

	roomy := testutil.CreateProgram(t, repo, "Roomy", program.CategoryChess, 10, "")
	require.NoError(t, repo.AppendEnrolledStudent(ctx, roomy.ID, "5ff74db702aab3462be7b10b"))
	require.NoError(t, repo.AppendEnrolledStudent(ctx, roomy.ID, "5ff74db702aab3462be7b10c"))

	testutil.CreateProgram(t, repo, "Idle", program.CategoryReading, 5, "")

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalPrograms)
	assert.Equal(t, 3, stats.ActivePrograms)
	assert.Equal(t, 3, stats.TotalEnrollments)
	assert.Equal(t, 1.0, stats.AverageEnrollment)
	assert.Equal(t, 1, stats.FullPrograms)

	byCategory := make(map[string]program.CategoryStats, len(stats.Categories))
	for _, c := range stats.Categories {
		byCategory[c.Category] = c
	}
	assert.Equal(t, 2, byCategory[program.CategoryChess].Count)
	assert.Equal(t, 3, byCategory[program.CategoryChess].Enrollments)
	assert.Equal(t, 1, byCategory[program.CategoryReading].Count)
}

func TestFilter_availability(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	full := testutil.CreateProgram(t, repo, "Packed", program.CategoryRobotics, 1, "")
	require.NoError(t, repo.AppendEnrolledStudent(ctx, full.ID, "5ff74db702aab3462be7b10a"))
	open := testutil.CreateProgram(t, repo, "Open", program.CategoryRobotics, 5, "")

	filter := program.QueryFilter{Availability: program.AvailabilityFull}
	filter.Clean()
	progs, err := svc.Filter(ctx, filter)
	require.NoError(t, err)
	require.Len(t, progs, 1)
	assert.Equal(t, full.ID, progs[0].ID)

	filter = program.QueryFilter{Availability: program.AvailabilityAvailable}
	filter.Clean()
	progs, err = svc.Filter(ctx, filter)
	require.NoError(t, err)
	require.Len(t, progs, 1)
	assert.Equal(t, open.ID, progs[0].ID)
}
