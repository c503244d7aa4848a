package assignment

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/db"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.NoError(t, p.Validate())
	assert.Equal(t, 15*time.Minute, p.Window)
	assert.Equal(t, 3, p.LevelMix.Total())
	assert.True(t, p.ExcludeExpiredOnRefresh)
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
		errMsg string
	}{
		{"zero window", func(p *Policy) { p.Window = 0 }, "acceptance window must be positive"},
		{"empty mix", func(p *Policy) { p.LevelMix = LevelMix{} }, "selects no developers"},
		{"unknown level", func(p *Policy) { p.LevelMix = LevelMix{"GURU": 1} }, "unknown level"},
		{"negative count", func(p *Policy) { p.LevelMix = LevelMix{types.LevelMid: -1, types.LevelExpert: 2} }, "negative count"},
		{"pool smaller than batch", func(p *Policy) { p.PoolSize = 2 }, "pool size 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestExcludedOnRefresh(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.excludedOnRefresh(types.ResponseRejected))
	assert.True(t, p.excludedOnRefresh(types.ResponseInvalidated))
	assert.True(t, p.excludedOnRefresh(types.ResponseExpired))
	assert.False(t, p.excludedOnRefresh(types.ResponseAccepted))

	p.ExcludeExpiredOnRefresh = false
	assert.False(t, p.excludedOnRefresh(types.ResponseExpired))
	assert.True(t, p.excludedOnRefresh(types.ResponseRejected))
}

func TestPolicyFor(t *testing.T) {
	auto := PolicyFor(types.SourceAutoRotation)
	assert.True(t, auto.Refreshable)
	assert.False(t, auto.NoExpireByDefault)
	assert.Equal(t, db.SettleProject, auto.Settle)

	manual := PolicyForBatch(types.BatchManualInvite)
	assert.Equal(t, types.SourceManualInvite, manual.Source)
	assert.False(t, manual.Refreshable)
	assert.True(t, manual.NoExpireByDefault)
	assert.Equal(t, db.SettleBatch, manual.Settle)

	assert.Equal(t, auto, PolicyFor("UNKNOWN"))
}

func devs(level types.Level, n int) []types.Developer {
	out := make([]types.Developer, n)
	for i := range out {
		out[i] = types.Developer{ID: uuid.New(), Name: fmt.Sprintf("%s-%d", level, i), Level: level}
	}
	return out
}

func TestPickDevelopers(t *testing.T) {
	experts := devs(types.LevelExpert, 3)
	mids := devs(types.LevelMid, 1)
	pools := map[types.Level][]types.Developer{
		types.LevelExpert: experts,
		types.LevelMid:    mids,
	}

	t.Run("exact mix", func(t *testing.T) {
		got := pickDevelopers(LevelMix{types.LevelExpert: 2, types.LevelMid: 1}, pools, true)
		assert.Equal(t, []types.Developer{experts[0], experts[1], mids[0]}, got)
	})

	t.Run("backfill empty tier", func(t *testing.T) {
		got := pickDevelopers(DefaultLevelMix(), pools, true)
		assert.Equal(t, []types.Developer{experts[0], mids[0], experts[1]}, got)
	})

	t.Run("no backfill", func(t *testing.T) {
		got := pickDevelopers(DefaultLevelMix(), pools, false)
		assert.Equal(t, []types.Developer{experts[0], mids[0]}, got)
	})

	t.Run("short pools return what exists", func(t *testing.T) {
		got := pickDevelopers(LevelMix{types.LevelMid: 4}, pools, true)
		assert.Len(t, got, 4)
		assert.Equal(t, mids[0], got[0])
	})

	t.Run("same developer never picked twice", func(t *testing.T) {
		dup := map[types.Level][]types.Developer{
			types.LevelExpert: {experts[0]},
			types.LevelMid:    {experts[0], mids[0]},
		}
		got := pickDevelopers(LevelMix{types.LevelExpert: 1, types.LevelMid: 1}, dup, false)
		assert.Equal(t, []types.Developer{experts[0], mids[0]}, got)
	})

	t.Run("empty pools", func(t *testing.T) {
		assert.Empty(t, pickDevelopers(DefaultLevelMix(), nil, true))
	})
}
