package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonathan/gigmatch/internal/assignment"
	"github.com/jonathan/gigmatch/internal/schemas"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadPolicyFile_Valid(t *testing.T) {
	path := writePolicy(t, `{
		"window_minutes": 30,
		"level_mix": {"EXPERT": 2, "FRESHER": 1},
		"backfill": false,
		"pool_size": 50
	}`)

	pf, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 30, pf.WindowMinutes)
	assert.Equal(t, map[types.Level]int{types.LevelExpert: 2, types.LevelFresher: 1}, pf.LevelMix)
	require.NotNil(t, pf.Backfill)
	assert.False(t, *pf.Backfill)
	assert.Nil(t, pf.ExcludeExpiredOnRefresh)
	assert.Equal(t, 50, pf.PoolSize)
}

func TestLoadPolicyFile_SchemaViolation(t *testing.T) {
	path := writePolicy(t, `{"window_minutes": 0, "level_mix": {"GURU": 1}}`)

	pf, err := LoadPolicyFile(path)
	assert.Nil(t, pf)
	require.Error(t, err)

	var validationErr *schemas.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.GreaterOrEqual(t, len(validationErr.Errors), 2)
}

func TestLoadPolicyFile_InvalidJSON(t *testing.T) {
	pf, err := LoadPolicyFile(writePolicy(t, `{ invalid json }`))
	assert.Nil(t, pf)
	assert.Error(t, err)
}

func TestLoadPolicyFile_FileNotFound(t *testing.T) {
	pf, err := LoadPolicyFile("/nonexistent/path/policy.json")
	assert.Nil(t, pf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read policy file")
}

func TestLoadPolicyFile_EmptyPath(t *testing.T) {
	pf, err := LoadPolicyFile("")
	assert.Nil(t, pf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy path is empty")
}

func TestPolicyFile_MergeWithDefaults(t *testing.T) {
	defaults := assignment.DefaultPolicy()

	t.Run("nil file keeps defaults", func(t *testing.T) {
		var pf *PolicyFile
		assert.Equal(t, defaults, pf.MergeWithDefaults(defaults))
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		assert.Equal(t, defaults, (&PolicyFile{}).MergeWithDefaults(defaults))
	})

	t.Run("set fields win", func(t *testing.T) {
		off := false
		pf := &PolicyFile{
			WindowMinutes:           5,
			LevelMix:                map[types.Level]int{types.LevelMid: 3},
			ExcludeExpiredOnRefresh: &off,
		}
		got := pf.MergeWithDefaults(defaults)
		assert.Equal(t, 5*time.Minute, got.Window)
		assert.Equal(t, assignment.LevelMix{types.LevelMid: 3}, got.LevelMix)
		assert.False(t, got.ExcludeExpiredOnRefresh)
		assert.True(t, got.Backfill)
		assert.Equal(t, defaults.PoolSize, got.PoolSize)
	})
}

func TestConfig_Policy(t *testing.T) {
	t.Run("environment window", func(t *testing.T) {
		cfg, err := LoadFromMap(map[string]string{"ACCEPTANCE_WINDOW": "45m"})
		require.NoError(t, err)

		p, err := cfg.Policy()
		require.NoError(t, err)
		assert.Equal(t, 45*time.Minute, p.Window)
		assert.Equal(t, assignment.DefaultLevelMix(), p.LevelMix)
	})

	t.Run("file overrides environment", func(t *testing.T) {
		cfg, err := LoadFromMap(map[string]string{
			"ACCEPTANCE_WINDOW": "45m",
			"POLICY_FILE":       writePolicy(t, `{"window_minutes": 10}`),
		})
		require.NoError(t, err)

		p, err := cfg.Policy()
		require.NoError(t, err)
		assert.Equal(t, 10*time.Minute, p.Window)
	})

	t.Run("merged policy must be usable", func(t *testing.T) {
		cfg, err := LoadFromMap(map[string]string{
			"POLICY_FILE": writePolicy(t, `{"level_mix": {"EXPERT": 5}, "pool_size": 2}`),
		})
		require.NoError(t, err)

		_, err = cfg.Policy()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid assignment policy")
	})
}
