package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathan/gigmatch/internal/assignment"
	"github.com/jonathan/gigmatch/internal/schemas"
	"github.com/jonathan/gigmatch/internal/types"
	policyschema "github.com/jonathan/gigmatch/schemas"
)

// PolicyFile is the JSON document passed with --policy or POLICY_FILE.
// Every field is optional; absent fields keep the environment defaults.
type PolicyFile struct {
	WindowMinutes           int                 `json:"window_minutes,omitempty"`
	LevelMix                map[types.Level]int `json:"level_mix,omitempty"`
	Backfill                *bool               `json:"backfill,omitempty"`
	ExcludeExpiredOnRefresh *bool               `json:"exclude_expired_on_refresh,omitempty"`
	PoolSize                int                 `json:"pool_size,omitempty"`
}

// LoadPolicyFile reads a policy file and validates it against the
// assignment policy schema before decoding.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	if path == "" {
		return nil, fmt.Errorf("policy path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	if err := schemas.ValidateBytes(policyschema.AssignmentPolicy, data); err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}

	var pf PolicyFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return &pf, nil
}

// MergeWithDefaults returns defaults with every field the file sets replaced.
func (p *PolicyFile) MergeWithDefaults(defaults assignment.Policy) assignment.Policy {
	result := defaults
	if p == nil {
		return result
	}

	if p.WindowMinutes > 0 {
		result.Window = time.Duration(p.WindowMinutes) * time.Minute
	}
	if len(p.LevelMix) > 0 {
		result.LevelMix = assignment.LevelMix(p.LevelMix)
	}
	if p.Backfill != nil {
		result.Backfill = *p.Backfill
	}
	if p.ExcludeExpiredOnRefresh != nil {
		result.ExcludeExpiredOnRefresh = *p.ExcludeExpiredOnRefresh
	}
	if p.PoolSize > 0 {
		result.PoolSize = p.PoolSize
	}
	return result
}

// Policy builds the assignment policy: production defaults, the environment
// window, then the policy file if one is configured.
func (c *Config) Policy() (assignment.Policy, error) {
	policy := assignment.DefaultPolicy()
	policy.Window = c.AcceptanceWindow

	if c.PolicyFile != "" {
		pf, err := LoadPolicyFile(c.PolicyFile)
		if err != nil {
			return assignment.Policy{}, err
		}
		policy = pf.MergeWithDefaults(policy)
	}

	if err := policy.Validate(); err != nil {
		return assignment.Policy{}, fmt.Errorf("invalid assignment policy: %w", err)
	}
	return policy, nil
}

// RetryPolicy returns the store retry policy for the configured attempt count.
func (c *Config) RetryPolicy() assignment.RetryPolicy {
	r := assignment.DefaultRetryPolicy()
	r.Attempts = c.StoreRetryAttempts
	return r
}
