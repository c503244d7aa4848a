package assignment

import (
	"fmt"
	"time"

	"github.com/jonathan/gigmatch/internal/db"
	"github.com/jonathan/gigmatch/internal/types"
)

// DefaultWindow is the acceptance window given to rotation invitations.
const DefaultWindow = 15 * time.Minute

// LevelMix is the number of developers to invite per tier.
type LevelMix map[types.Level]int

// Total returns the batch size the mix asks for.
func (m LevelMix) Total() int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

// Validate checks tiers and counts.
func (m LevelMix) Validate() error {
	for level, n := range m {
		if !level.IsValid() {
			return fmt.Errorf("unknown level %q", level)
		}
		if n < 0 {
			return fmt.Errorf("negative count for level %s", level)
		}
	}
	if m.Total() == 0 {
		return fmt.Errorf("level mix selects no developers")
	}
	return nil
}

// DefaultLevelMix invites one developer per tier.
func DefaultLevelMix() LevelMix {
	return LevelMix{types.LevelExpert: 1, types.LevelMid: 1, types.LevelFresher: 1}
}

// Policy holds the tunable parameters of batch composition and refresh.
type Policy struct {
	Window   time.Duration
	LevelMix LevelMix

	// Backfill fills a tier with no available developers from the other tiers.
	Backfill bool

	// ExcludeExpiredOnRefresh also keeps developers who let the previous
	// invitation lapse out of the next batch.
	ExcludeExpiredOnRefresh bool

	// PoolSize bounds how many developers are fetched per tier.
	PoolSize int
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		Window:                  DefaultWindow,
		LevelMix:                DefaultLevelMix(),
		Backfill:                true,
		ExcludeExpiredOnRefresh: true,
		PoolSize:                20,
	}
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	if p.Window <= 0 {
		return fmt.Errorf("acceptance window must be positive, got %s", p.Window)
	}
	if err := p.LevelMix.Validate(); err != nil {
		return fmt.Errorf("invalid level mix: %w", err)
	}
	if p.PoolSize < p.LevelMix.Total() {
		return fmt.Errorf("pool size %d is smaller than the batch size %d", p.PoolSize, p.LevelMix.Total())
	}
	return nil
}

// excludedOnRefresh reports whether a prior-batch status keeps the developer out of the next batch.
func (p Policy) excludedOnRefresh(s types.ResponseStatus) bool {
	switch s {
	case types.ResponseRejected, types.ResponseInvalidated:
		return true
	case types.ResponseExpired:
		return p.ExcludeExpiredOnRefresh
	}
	return false
}

// SourcePolicy is the behaviour attached to a candidate source.
type SourcePolicy struct {
	Source types.Source

	// NoExpireByDefault leaves invitations without a deadline unless a window is given.
	NoExpireByDefault bool

	// Refreshable batches get an automatic successor once exhausted.
	Refreshable bool

	// Settle is the set of pending candidates a winning accept invalidates.
	Settle db.SettleScope
}

var sourcePolicies = map[types.Source]SourcePolicy{
	types.SourceAutoRotation: {
		Source:      types.SourceAutoRotation,
		Refreshable: true,
		Settle:      db.SettleProject,
	},
	types.SourceManualInvite: {
		Source:            types.SourceManualInvite,
		NoExpireByDefault: true,
		Settle:            db.SettleBatch,
	},
}

// PolicyFor returns the policy of a candidate source. Unknown sources get the rotation policy.
func PolicyFor(source types.Source) SourcePolicy {
	if p, ok := sourcePolicies[source]; ok {
		return p
	}
	return sourcePolicies[types.SourceAutoRotation]
}

// PolicyForBatch returns the policy of the candidates a batch type produces.
func PolicyForBatch(t types.BatchType) SourcePolicy {
	return PolicyFor(types.SourceFor(t))
}
