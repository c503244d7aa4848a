package assignment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/assignment"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeBatch_LevelMixAndBackfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedDeveloper("e1", types.LevelExpert, "go")
	f.store.SeedDeveloper("e2", types.LevelExpert, "go")
	f.store.SeedDeveloper("m1", types.LevelMid, "go")
	project := f.store.SeedProject("backfill", "go")

	batch, err := f.mgr.ComposeBatch(ctx, assignment.ComposeRequest{ProjectID: project.ID})
	require.NoError(t, err)
	require.Len(t, batch.Candidates, 3)

	var levels []types.Level
	for _, c := range batch.Candidates {
		levels = append(levels, c.Level)
		assert.Equal(t, types.SourceAutoRotation, c.Source)
		assert.Equal(t, T, c.AssignedAt)
	}
	assert.Equal(t, []types.Level{types.LevelExpert, types.LevelMid, types.LevelExpert}, levels)

	require.Len(t, f.notifier.composed, 1)
	assert.False(t, f.notifier.composed[0].Refresh)
}

func TestComposeBatch_WithoutBackfillKeepsTiersStrict(t *testing.T) {
	f := newFixture(t, func(p *assignment.Policy) { p.Backfill = false })
	ctx := context.Background()
	f.store.SeedDeveloper("e1", types.LevelExpert, "go")
	f.store.SeedDeveloper("e2", types.LevelExpert, "go")
	project := f.store.SeedProject("strict", "go")

	batch, err := f.mgr.ComposeBatch(ctx, assignment.ComposeRequest{ProjectID: project.ID})
	require.NoError(t, err)
	assert.Len(t, batch.Candidates, 1)
}

func TestComposeBatch_PrefersSkillOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedDeveloper("generalist", types.LevelMid, "php")
	specialist := f.store.SeedDeveloper("specialist", types.LevelMid, "go", "postgres")
	project := f.store.SeedProject("db work", "go", "postgres")

	batch, err := f.mgr.ComposeBatch(ctx, assignment.ComposeRequest{
		ProjectID: project.ID,
		LevelMix:  assignment.LevelMix{types.LevelMid: 1},
	})
	require.NoError(t, err)
	require.Len(t, batch.Candidates, 1)
	assert.Equal(t, specialist.ID, batch.Candidates[0].DeveloperID)
}

func TestComposeBatch_SupersedesActiveBatch(t *testing.T) {
	f := newFixture(t)
	f.seedTiers(1)
	project, b1 := f.compose(t)
	ctx := context.Background()

	b2, err := f.mgr.ComposeBatch(ctx, assignment.ComposeRequest{ProjectID: project.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, b2.Batch.Sequence)

	batches := f.store.Batches(project.ID)
	require.Len(t, batches, 2)
	assert.Equal(t, types.BatchRefreshed, batches[0].Status)
	for _, c := range f.store.Candidates(b1.Batch.ID) {
		assert.Equal(t, types.ResponseInvalidated, c.ResponseStatus)
	}

	active, err := f.mgr.ActiveBatch(ctx, project.ID, types.BatchAutoRotation)
	require.NoError(t, err)
	assert.Equal(t, b2.Batch.ID, active.Batch.ID)
	assert.Len(t, active.Candidates, 3)
}

func TestComposeBatch_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.ComposeBatch(ctx, assignment.ComposeRequest{ProjectID: uuid.New()})
	assert.ErrorIs(t, err, assignment.ErrNotFound)

	project := f.store.SeedProject("empty pool", "go")
	_, err = f.mgr.ComposeBatch(ctx, assignment.ComposeRequest{ProjectID: project.ID})
	assert.ErrorIs(t, err, assignment.ErrNotFound)

	_, err = f.mgr.ComposeBatch(ctx, assignment.ComposeRequest{
		ProjectID: project.ID,
		LevelMix:  assignment.LevelMix{"GURU": 1},
	})
	assert.ErrorIs(t, err, assignment.ErrValidation)

	require.NoError(t, f.store.UpdateProjectStatus(ctx, project.ID, types.ProjectCancelled))
	_, err = f.mgr.ComposeBatch(ctx, assignment.ComposeRequest{ProjectID: project.ID})
	assert.ErrorIs(t, err, assignment.ErrConflict)
}

func TestPostProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()

	project, batch, err := f.mgr.PostProject(ctx, assignment.PostProjectInput{
		ClientID: clientID,
		Title:    "Landing page",
		Skills:   []string{"go"},
	})
	require.NoError(t, err)
	assert.Equal(t, clientID, project.ClientID)
	assert.Equal(t, types.ProjectOpen, project.Status)
	assert.Nil(t, batch, "empty pool still creates the project")

	f.seedTiers(1)
	_, batch, err = f.mgr.PostProject(ctx, assignment.PostProjectInput{ClientID: clientID, Title: "API"})
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Len(t, batch.Candidates, 3)
}

func TestPostProject_ComposeFailureKeepsProject(t *testing.T) {
	f := newFixture(t)
	f.seedTiers(1)
	ctx := context.Background()

	f.store.FailNext("GetActiveBatch", errors.New("disk full"))
	project, batch, err := f.mgr.PostProject(ctx, assignment.PostProjectInput{ClientID: uuid.New(), Title: "Dashboard"})
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.Nil(t, batch)

	stored, err := f.mgr.Project(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProjectOpen, stored.Status)
	assert.Empty(t, f.store.Batches(project.ID))
}

func TestPostProject_InvalidMixCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedTiers(1)

	project, _, err := f.mgr.PostProject(context.Background(), assignment.PostProjectInput{
		ClientID: uuid.New(),
		Title:    "Bad mix",
		LevelMix: assignment.LevelMix{types.LevelExpert: -1},
	})
	assert.ErrorIs(t, err, assignment.ErrValidation)
	assert.Nil(t, project)
	assert.Equal(t, 0, f.store.Calls("CreateProject"))
}

func TestInviteDeveloper(t *testing.T) {
	f := newFixture(t)
	devs := f.seedTiers(2)
	project := f.store.SeedProject("manual", "go")
	ctx := context.Background()

	first, err := f.mgr.InviteDeveloper(ctx, assignment.ManualInvite{ProjectID: project.ID, DeveloperID: devs[types.LevelExpert][0].ID})
	require.NoError(t, err)
	assert.Equal(t, types.SourceManualInvite, first.Source)
	assert.Nil(t, first.AcceptanceDeadline)

	second, err := f.mgr.InviteDeveloper(ctx, assignment.ManualInvite{
		ProjectID:   project.ID,
		DeveloperID: devs[types.LevelMid][0].ID,
		Window:      time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, first.BatchID, second.BatchID)
	assert.Nil(t, second.AcceptanceDeadline, "invites join the no-expire batch")

	_, err = f.mgr.InviteDeveloper(ctx, assignment.ManualInvite{ProjectID: project.ID, DeveloperID: devs[types.LevelExpert][0].ID})
	assert.ErrorIs(t, err, assignment.ErrConflict)

	_, err = f.mgr.InviteDeveloper(ctx, assignment.ManualInvite{ProjectID: project.ID, DeveloperID: uuid.New()})
	assert.ErrorIs(t, err, assignment.ErrNotFound)

	batches := f.store.Batches(project.ID)
	require.Len(t, batches, 1)
	assert.Equal(t, types.BatchManualInvite, batches[0].Type)
	assert.True(t, batches[0].NoExpire)
}

func TestInviteDeveloper_WithWindow(t *testing.T) {
	f := newFixture(t)
	devs := f.seedTiers(1)
	project := f.store.SeedProject("manual window", "go")

	c, err := f.mgr.InviteDeveloper(context.Background(), assignment.ManualInvite{
		ProjectID:   project.ID,
		DeveloperID: devs[types.LevelFresher][0].ID,
		Window:      2 * time.Hour,
	})
	require.NoError(t, err)
	require.NotNil(t, c.AcceptanceDeadline)
	assert.Equal(t, T.Add(2*time.Hour), *c.AcceptanceDeadline)
}

func TestManualWinner_InvalidatesOwnBatchThenRepairClearsRotation(t *testing.T) {
	f := newFixture(t)
	devs := f.seedTiers(2)
	project, auto := f.compose(t)
	ctx := context.Background()

	invited, err := f.mgr.InviteDeveloper(ctx, assignment.ManualInvite{ProjectID: project.ID, DeveloperID: devs[types.LevelExpert][1].ID})
	require.NoError(t, err)
	other, err := f.mgr.InviteDeveloper(ctx, assignment.ManualInvite{ProjectID: project.ID, DeveloperID: devs[types.LevelMid][1].ID})
	require.NoError(t, err)

	_, err = f.mgr.Respond(ctx, invited.ID, types.ActionAccept, invited.DeveloperID)
	require.NoError(t, err)

	got, err := f.store.GetCandidate(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ResponseInvalidated, got.ResponseStatus)
	for _, c := range f.store.Candidates(auto.Batch.ID) {
		assert.Equal(t, types.ResponsePending, c.ResponseStatus)
	}

	// The rotation candidates can no longer win and are cleared by the repair pass.
	c := auto.Candidates[0]
	_, err = f.mgr.Respond(ctx, c.ID, types.ActionAccept, c.DeveloperID)
	assert.ErrorIs(t, err, assignment.ErrConflict)

	repair, err := f.mgr.RepairSettlements(ctx)
	require.NoError(t, err)
	assert.Len(t, repair.Invalidated, 3)
}

func TestCloseProject(t *testing.T) {
	f := newFixture(t)
	f.seedTiers(1)
	project, batch := f.compose(t)
	ctx := context.Background()

	res, err := f.mgr.CloseProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProjectCancelled, res.Status)
	assert.Equal(t, int64(3), res.Invalidated)

	for _, c := range f.store.Candidates(batch.Batch.ID) {
		assert.Equal(t, types.ResponseInvalidated, c.ResponseStatus)
	}
	assert.Equal(t, types.BatchClosed, f.store.Batches(project.ID)[0].Status)

	_, err = f.mgr.CloseProject(ctx, project.ID)
	assert.ErrorIs(t, err, assignment.ErrConflict)

	_, err = f.mgr.CloseProject(ctx, uuid.New())
	assert.ErrorIs(t, err, assignment.ErrNotFound)
}

func TestCloseProject_AssignedProjectCompletes(t *testing.T) {
	f := newFixture(t)
	f.seedTiers(1)
	project, batch := f.compose(t)
	ctx := context.Background()

	c := batch.Candidates[0]
	_, err := f.mgr.Respond(ctx, c.ID, types.ActionAccept, c.DeveloperID)
	require.NoError(t, err)

	res, err := f.mgr.CloseProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProjectCompleted, res.Status)
	assert.Zero(t, res.Invalidated)
}

func TestReadQueries(t *testing.T) {
	f := newFixture(t)
	dev := f.store.SeedDeveloper("solo", types.LevelMid, "go")
	ctx := context.Background()

	p1 := f.store.SeedProject("first", "go")
	b1, err := f.mgr.ComposeBatch(ctx, assignment.ComposeRequest{ProjectID: p1.ID})
	require.NoError(t, err)

	f.clock.Set(T.Add(time.Minute))
	p2 := f.store.SeedProject("second", "go")
	b2, err := f.mgr.ComposeBatch(ctx, assignment.ComposeRequest{ProjectID: p2.ID})
	require.NoError(t, err)

	pending, err := f.mgr.PendingInvitations(ctx, dev.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, b1.Candidates[0].ID, pending[0].ID, "soonest deadline first")

	// Lapsed but not yet swept: no longer answerable, so not listed.
	f.clock.Set(T.Add(assignment.DefaultWindow))
	pending, err = f.mgr.PendingInvitations(ctx, dev.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b2.Candidates[0].ID, pending[0].ID)

	activity, err := f.mgr.RecentActivity(ctx, dev.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, activity)

	f.clock.Set(T.Add(2 * time.Minute))
	_, err = f.mgr.Respond(ctx, b2.Candidates[0].ID, types.ActionReject, dev.ID)
	require.NoError(t, err)
	_, err = f.mgr.ExpireStale(ctx, T.Add(time.Hour))
	require.NoError(t, err)

	activity, err = f.mgr.RecentActivity(ctx, dev.ID, 10)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, types.ResponseRejected, activity[0].ResponseStatus)
	assert.Equal(t, types.ResponseExpired, activity[1].ResponseStatus)

	pending, err = f.mgr.PendingInvitations(ctx, dev.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.mgr.ActiveBatch(ctx, uuid.New(), types.BatchAutoRotation)
	assert.ErrorIs(t, err, assignment.ErrNotFound)
}
