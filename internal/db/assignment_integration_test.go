//go:build integration
// +build integration

package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptCandidate_SingleWinner_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	project := seedProject(t, db)
	devs := []*types.Developer{
		seedDeveloper(t, db, types.LevelExpert),
		seedDeveloper(t, db, types.LevelMid),
		seedDeveloper(t, db, types.LevelFresher),
	}
	deadline := time.Now().Add(time.Hour)
	batch := seedBatch(t, db, project, types.BatchAutoRotation, &deadline, devs...)
	require.Len(t, batch.Candidates, 3)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  []error
	)
	for _, c := range batch.Candidates {
		wg.Add(1)
		go func(c types.Candidate) {
			defer wg.Done()
			_, err := db.AcceptCandidate(ctx, c.ID, c.DeveloperID, time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			losers = append(losers, err)
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	for _, err := range losers {
		assert.True(t, err == ErrWinnerExists || err == ErrNotTransitioned, "unexpected error: %v", err)
	}
}

func TestAcceptCandidate_GuardMismatch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	project := seedProject(t, db)
	dev := seedDeveloper(t, db, types.LevelMid)
	past := time.Now().Add(-time.Minute)
	batch := seedBatch(t, db, project, types.BatchAutoRotation, &past, dev)
	c := batch.Candidates[0]

	_, err := db.AcceptCandidate(ctx, c.ID, c.DeveloperID, time.Now())
	assert.ErrorIs(t, err, ErrNotTransitioned)

	stored, err := db.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ResponsePending, stored.ResponseStatus)
}

func TestAcceptCandidate_ClosedProject_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	project := seedProject(t, db)
	dev := seedDeveloper(t, db, types.LevelExpert)
	future := time.Now().Add(time.Hour)
	batch := seedBatch(t, db, project, types.BatchAutoRotation, &future, dev)
	c := batch.Candidates[0]

	require.NoError(t, db.UpdateProjectStatus(ctx, project.ID, types.ProjectCancelled))

	_, err := db.AcceptCandidate(ctx, c.ID, c.DeveloperID, time.Now())
	assert.ErrorIs(t, err, ErrNotTransitioned)

	stored, err := db.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ResponsePending, stored.ResponseStatus)
	assert.False(t, stored.IsFirstAccepted)
}

func TestExpireStaleCandidates_Idempotent_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	project := seedProject(t, db)
	dev := seedDeveloper(t, db, types.LevelFresher)
	past := time.Now().Add(-time.Minute)
	batch := seedBatch(t, db, project, types.BatchAutoRotation, &past, dev)

	now := time.Now()
	first, err := db.ExpireStaleCandidates(ctx, now)
	require.NoError(t, err)

	var ids []string
	for _, c := range first {
		ids = append(ids, c.ID.String())
	}
	assert.Contains(t, ids, batch.Candidates[0].ID.String())

	second, err := db.ExpireStaleCandidates(ctx, now)
	require.NoError(t, err)
	for _, c := range second {
		assert.NotEqual(t, batch.Candidates[0].ID, c.ID)
	}

	exhausted, err := db.MarkBatchExhausted(ctx, batch.Batch.ID)
	require.NoError(t, err)
	assert.True(t, exhausted)
}

func TestSettleWinner_ProjectScope_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	project := seedProject(t, db)
	a := seedDeveloper(t, db, types.LevelExpert)
	b := seedDeveloper(t, db, types.LevelMid)
	m := seedDeveloper(t, db, types.LevelFresher)
	deadline := time.Now().Add(time.Hour)
	auto := seedBatch(t, db, project, types.BatchAutoRotation, &deadline, a, b)
	manual := seedBatch(t, db, project, types.BatchManualInvite, &deadline, m)

	winner, err := db.AcceptCandidate(ctx, auto.Candidates[0].ID, a.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, winner.IsFirstAccepted)

	n, err := db.SettleWinner(ctx, winner, SettleProject)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []uuid.UUID{auto.Candidates[1].ID, manual.Candidates[0].ID} {
		c, err := db.GetCandidate(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.ResponseInvalidated, c.ResponseStatus)
	}

	// Repeat is a no-op
	n, err = db.SettleWinner(ctx, winner, SettleProject)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, db.MarkProjectAssigned(ctx, project.ID, a.ID))
	require.NoError(t, db.MarkProjectAssigned(ctx, project.ID, a.ID))
	p, err := db.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProjectInProgress, p.Status)
}

func TestCreateBatch_SupersedeOnce_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	project := seedProject(t, db)
	first := seedDeveloper(t, db, types.LevelMid)
	second := seedDeveloper(t, db, types.LevelMid)
	deadline := time.Now().Add(time.Hour)
	original := seedBatch(t, db, project, types.BatchAutoRotation, &deadline, first)

	replace := func() error {
		_, err := db.CreateBatch(ctx, &NewBatch{
			ProjectID:     project.ID,
			Type:          types.BatchAutoRotation,
			AssignedAt:    time.Now(),
			Supersede:     &original.Batch.ID,
			SupersedeFrom: []types.BatchStatus{types.BatchActive, types.BatchExhausted},
			Candidates:    []NewCandidate{{DeveloperID: second.ID, Level: second.Level, Deadline: &deadline}},
		})
		return err
	}

	require.NoError(t, replace())
	assert.ErrorIs(t, replace(), ErrBatchSuperseded)

	active, err := db.GetActiveBatch(ctx, project.ID, types.BatchAutoRotation)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, 2, active.Sequence)
	assert.Equal(t, original.Batch.ID, *active.PreviousBatchID)

	old, err := db.GetCandidate(ctx, original.Candidates[0].ID)
	require.NoError(t, err)
	assert.Equal(t, types.ResponseInvalidated, old.ResponseStatus)
}
