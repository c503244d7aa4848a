package assignment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/assignment"
	"github.com/jonathan/gigmatch/internal/assignment/assignmenttest"
	"github.com/jonathan/gigmatch/internal/notify"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var _ assignment.Store = (*assignmenttest.MemoryStore)(nil)

// T is the reference instant used by scenario tests.
var T = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingNotifier struct {
	mu       sync.Mutex
	accepted []notify.CandidateAcceptedEvent
	composed []notify.BatchComposedEvent
	err      error
}

func (r *recordingNotifier) NotifyCandidateAccepted(_ context.Context, e notify.CandidateAcceptedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepted = append(r.accepted, e)
	return r.err
}

func (r *recordingNotifier) NotifyBatchComposed(_ context.Context, e notify.BatchComposedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.composed = append(r.composed, e)
	return r.err
}

type fixture struct {
	store    *assignmenttest.MemoryStore
	clock    *testClock
	notifier *recordingNotifier
	mgr      *assignment.Manager
}

func newFixture(t *testing.T, tweak ...func(*assignment.Policy)) *fixture {
	t.Helper()

	clock := &testClock{t: T}
	store := assignmenttest.NewMemoryStore()
	store.Clock = clock.Now
	notifier := &recordingNotifier{}
	log, _ := test.NewNullLogger()

	policy := assignment.DefaultPolicy()
	for _, fn := range tweak {
		fn(&policy)
	}
	require.NoError(t, policy.Validate())

	mgr := assignment.NewManager(store, policy,
		assignment.WithClock(clock.Now),
		assignment.WithNotifier(notifier),
		assignment.WithLogger(log),
		assignment.WithRetryPolicy(assignment.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
	)
	return &fixture{store: store, clock: clock, notifier: notifier, mgr: mgr}
}

// seedTiers adds perLevel developers to every tier and returns them by level.
func (f *fixture) seedTiers(perLevel int) map[types.Level][]*types.Developer {
	out := make(map[types.Level][]*types.Developer)
	for _, level := range types.Levels {
		for i := 0; i < perLevel; i++ {
			d := f.store.SeedDeveloper(string(level)+"-"+uuid.NewString()[:6], level, "go")
			out[level] = append(out[level], d)
		}
	}
	return out
}

// compose creates an open project and its first rotation batch.
func (f *fixture) compose(t *testing.T) (*types.Project, *types.BatchWithCandidates) {
	t.Helper()
	project := f.store.SeedProject("proj-1", "go")
	batch, err := f.mgr.ComposeBatch(context.Background(), assignment.ComposeRequest{ProjectID: project.ID})
	require.NoError(t, err)
	return project, batch
}

func developerIDs(cs []types.Candidate) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.DeveloperID)
	}
	return ids
}

func statuses(cs []types.Candidate) map[uuid.UUID]types.ResponseStatus {
	out := make(map[uuid.UUID]types.ResponseStatus, len(cs))
	for _, c := range cs {
		out[c.ID] = c.ResponseStatus
	}
	return out
}
