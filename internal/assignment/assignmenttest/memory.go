// Package assignmenttest provides an in-memory assignment.Store for tests.
package assignmenttest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/db"
	"github.com/jonathan/gigmatch/internal/types"
)

// MemoryStore keeps every record in maps guarded by one mutex. Each method is
// atomic and applies the same guards as the SQL store, returning the same
// sentinel errors from package db.
type MemoryStore struct {
	mu sync.Mutex

	projects   map[uuid.UUID]*types.Project
	developers map[uuid.UUID]*types.Developer
	devOrder   []uuid.UUID
	batches    map[uuid.UUID]*types.Batch
	candidates map[uuid.UUID]*types.Candidate
	candOrder  []uuid.UUID

	faults map[string][]error
	calls  map[string]int

	// Clock stamps created_at/updated_at columns.
	Clock func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:   make(map[uuid.UUID]*types.Project),
		developers: make(map[uuid.UUID]*types.Developer),
		batches:    make(map[uuid.UUID]*types.Batch),
		candidates: make(map[uuid.UUID]*types.Candidate),
		faults:     make(map[string][]error),
		calls:      make(map[string]int),
		Clock:      time.Now,
	}
}

// FailNext makes the next len(errs) calls of the named method return errs in order.
func (s *MemoryStore) FailNext(method string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = append(s.faults[method], errs...)
}

// Calls returns how many times the named method was invoked.
func (s *MemoryStore) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// enter records a call and pops an injected fault. Callers hold s.mu.
func (s *MemoryStore) enter(method string) error {
	s.calls[method]++
	if q := s.faults[method]; len(q) > 0 {
		s.faults[method] = q[1:]
		return q[0]
	}
	return nil
}

// -----------------------------------------------------------------------------
// Seeding and inspection
// -----------------------------------------------------------------------------

// SeedProject adds an open project.
func (s *MemoryStore) SeedProject(title string, skills ...string) *types.Project {
	p, _ := s.CreateProject(context.Background(), &db.NewProject{ClientID: uuid.New(), Title: title, Skills: skills})
	return p
}

// SeedDeveloper adds an active developer.
func (s *MemoryStore) SeedDeveloper(name string, level types.Level, skills ...string) *types.Developer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if skills == nil {
		skills = []string{}
	}
	d := &types.Developer{
		ID:        uuid.New(),
		Name:      name,
		Email:     name + "@example.com",
		Level:     level,
		Skills:    skills,
		Active:    true,
		CreatedAt: s.Clock(),
	}
	s.developers[d.ID] = d
	s.devOrder = append(s.devOrder, d.ID)
	out := *d
	return &out
}

// SetDeveloperActive toggles a developer's pool membership.
func (s *MemoryStore) SetDeveloperActive(id uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.developers[id]; ok {
		d.Active = active
	}
}

// Candidates returns a copy of every candidate of a batch in insertion order.
func (s *MemoryStore) Candidates(batchID uuid.UUID) []types.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(c *types.Candidate) bool { return c.BatchID == batchID })
}

// ProjectCandidates returns a copy of every candidate of a project in insertion order.
func (s *MemoryStore) ProjectCandidates(projectID uuid.UUID) []types.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(c *types.Candidate) bool { return c.ProjectID == projectID })
}

// Batches returns a copy of a project's batches ordered by sequence.
func (s *MemoryStore) Batches(projectID uuid.UUID) []types.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Batch
	for _, b := range s.batches {
		if b.ProjectID == projectID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// SetCandidateStatus forces a candidate into a status, bypassing every guard.
func (s *MemoryStore) SetCandidateStatus(id uuid.UUID, status types.ResponseStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.candidates[id]; ok {
		c.ResponseStatus = status
		if status.IsDeveloperDriven() {
			now := s.Clock()
			c.RespondedAt = &now
		}
	}
}

func (s *MemoryStore) filter(keep func(*types.Candidate) bool) []types.Candidate {
	var out []types.Candidate
	for _, id := range s.candOrder {
		if c := s.candidates[id]; keep(c) {
			out = append(out, *c)
		}
	}
	return out
}

func (s *MemoryStore) winner(projectID uuid.UUID) *types.Candidate {
	for _, id := range s.candOrder {
		if c := s.candidates[id]; c.ProjectID == projectID && c.IsFirstAccepted {
			return c
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

func (s *MemoryStore) CreateProject(_ context.Context, input *db.NewProject) (*types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateProject"); err != nil {
		return nil, err
	}

	skills := input.Skills
	if skills == nil {
		skills = []string{}
	}
	now := s.Clock()
	p := &types.Project{
		ID:          uuid.New(),
		ClientID:    input.ClientID,
		Title:       input.Title,
		Description: input.Description,
		Skills:      skills,
		Status:      types.ProjectOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.projects[p.ID] = p
	out := *p
	return &out, nil
}

func (s *MemoryStore) GetProject(_ context.Context, id uuid.UUID) (*types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetProject"); err != nil {
		return nil, err
	}
	p, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (s *MemoryStore) MarkProjectAssigned(_ context.Context, projectID, developerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("MarkProjectAssigned"); err != nil {
		return err
	}
	p, ok := s.projects[projectID]
	if !ok || !(p.Status == types.ProjectOpen ||
		(p.Status == types.ProjectInProgress && p.AssignedDeveloperID != nil && *p.AssignedDeveloperID == developerID)) {
		return fmt.Errorf("project %s: %w", projectID, db.ErrNotTransitioned)
	}
	p.Status = types.ProjectInProgress
	p.AssignedDeveloperID = &developerID
	p.UpdatedAt = s.Clock()
	return nil
}

func (s *MemoryStore) UpdateProjectStatus(_ context.Context, projectID uuid.UUID, status types.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateProjectStatus"); err != nil {
		return err
	}
	p, ok := s.projects[projectID]
	if !ok {
		return db.ErrProjectNotFound
	}
	p.Status = status
	p.UpdatedAt = s.Clock()
	return nil
}

func (s *MemoryStore) RepairProjectAssignments(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RepairProjectAssignments"); err != nil {
		return 0, err
	}
	var n int64
	for _, p := range s.projects {
		if p.Status != types.ProjectOpen {
			continue
		}
		if w := s.winner(p.ID); w != nil {
			dev := w.DeveloperID
			p.Status = types.ProjectInProgress
			p.AssignedDeveloperID = &dev
			p.UpdatedAt = s.Clock()
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Developers
// -----------------------------------------------------------------------------

func (s *MemoryStore) GetDeveloper(_ context.Context, id uuid.UUID) (*types.Developer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetDeveloper"); err != nil {
		return nil, err
	}
	d, ok := s.developers[id]
	if !ok {
		return nil, nil
	}
	out := *d
	return &out, nil
}

func (s *MemoryStore) ListDeveloperPool(_ context.Context, q db.PoolQuery) ([]types.Developer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListDeveloperPool"); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	excluded := make(map[uuid.UUID]bool, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = true
	}
	wanted := make(map[string]bool, len(q.Skills))
	for _, sk := range q.Skills {
		wanted[sk] = true
	}

	type ranked struct {
		dev     types.Developer
		overlap int
	}
	var pool []ranked
	for _, id := range s.devOrder {
		d := s.developers[id]
		if !d.Active || d.Level != q.Level || excluded[d.ID] {
			continue
		}
		overlap := 0
		for _, sk := range d.Skills {
			if wanted[sk] {
				overlap++
			}
		}
		pool = append(pool, ranked{dev: *d, overlap: overlap})
	}

	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.overlap != b.overlap {
			return a.overlap > b.overlap
		}
		switch {
		case a.dev.LastInvitedAt == nil && b.dev.LastInvitedAt == nil:
			return false
		case a.dev.LastInvitedAt == nil:
			return true
		case b.dev.LastInvitedAt == nil:
			return false
		}
		return a.dev.LastInvitedAt.Before(*b.dev.LastInvitedAt)
	})

	var out []types.Developer
	for i := 0; i < len(pool) && i < q.Limit; i++ {
		out = append(out, pool[i].dev)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Batches
// -----------------------------------------------------------------------------

func (s *MemoryStore) CreateBatch(_ context.Context, input *db.NewBatch) (*types.BatchWithCandidates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateBatch"); err != nil {
		return nil, err
	}

	p, ok := s.projects[input.ProjectID]
	if !ok {
		return nil, db.ErrProjectNotFound
	}
	if p.Status != types.ProjectOpen {
		return nil, db.ErrProjectNotOpen
	}

	var superseded *types.Batch
	if input.Supersede != nil {
		b, ok := s.batches[*input.Supersede]
		if !ok || b.ProjectID != input.ProjectID || !statusIn(b.Status, input.SupersedeFrom) {
			return nil, db.ErrBatchSuperseded
		}
		superseded = b
	}
	for _, b := range s.batches {
		if b.ProjectID == input.ProjectID && b.Type == input.Type && b.Status == types.BatchActive && b != superseded {
			return nil, db.ErrBatchSuperseded
		}
	}
	if err := s.checkInvites(uuid.Nil, input.Candidates); err != nil {
		return nil, err
	}

	now := s.Clock()
	if superseded != nil {
		superseded.Status = types.BatchRefreshed
		superseded.UpdatedAt = now
		for _, c := range s.candidates {
			if c.BatchID == superseded.ID && c.ResponseStatus == types.ResponsePending {
				c.ResponseStatus = types.ResponseInvalidated
			}
		}
	}

	seq := 0
	for _, b := range s.batches {
		if b.ProjectID == input.ProjectID && b.Sequence > seq {
			seq = b.Sequence
		}
	}
	batch := &types.Batch{
		ID:              uuid.New(),
		ProjectID:       input.ProjectID,
		Status:          types.BatchActive,
		Type:            input.Type,
		NoExpire:        input.NoExpire,
		Sequence:        seq + 1,
		PreviousBatchID: input.Supersede,
		CreatedAt:       input.AssignedAt,
		UpdatedAt:       input.AssignedAt,
	}
	s.batches[batch.ID] = batch

	return &types.BatchWithCandidates{
		Batch:      *batch,
		Candidates: s.insertCandidates(batch, input.AssignedAt, input.Candidates),
	}, nil
}

func (s *MemoryStore) AddCandidates(_ context.Context, batchID uuid.UUID, input []db.NewCandidate, assignedAt time.Time) ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AddCandidates"); err != nil {
		return nil, err
	}
	b, ok := s.batches[batchID]
	if !ok {
		return nil, db.ErrNotTransitioned
	}
	if b.Status != types.BatchActive {
		return nil, db.ErrBatchSuperseded
	}
	if err := s.checkInvites(batchID, input); err != nil {
		return nil, err
	}
	return s.insertCandidates(b, assignedAt, input), nil
}

// checkInvites enforces one row per developer per batch.
func (s *MemoryStore) checkInvites(batchID uuid.UUID, input []db.NewCandidate) error {
	seen := make(map[uuid.UUID]bool)
	for _, c := range s.candidates {
		if c.BatchID == batchID {
			seen[c.DeveloperID] = true
		}
	}
	for _, nc := range input {
		if seen[nc.DeveloperID] {
			return db.ErrAlreadyInvited
		}
		seen[nc.DeveloperID] = true
	}
	return nil
}

func (s *MemoryStore) insertCandidates(batch *types.Batch, assignedAt time.Time, input []db.NewCandidate) []types.Candidate {
	source := types.SourceFor(batch.Type)
	out := make([]types.Candidate, 0, len(input))
	for _, nc := range input {
		c := &types.Candidate{
			ID:                 uuid.New(),
			BatchID:            batch.ID,
			DeveloperID:        nc.DeveloperID,
			ProjectID:          batch.ProjectID,
			Level:              nc.Level,
			ResponseStatus:     types.ResponsePending,
			AssignedAt:         assignedAt,
			AcceptanceDeadline: copyTime(nc.Deadline),
			Source:             source,
		}
		s.candidates[c.ID] = c
		s.candOrder = append(s.candOrder, c.ID)
		out = append(out, *c)

		if d, ok := s.developers[nc.DeveloperID]; ok {
			d.LastInvitedAt = copyTime(&assignedAt)
		}
	}
	return out
}

func (s *MemoryStore) GetBatch(_ context.Context, id uuid.UUID) (*types.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetBatch"); err != nil {
		return nil, err
	}
	b, ok := s.batches[id]
	if !ok {
		return nil, nil
	}
	out := *b
	return &out, nil
}

func (s *MemoryStore) GetActiveBatch(_ context.Context, projectID uuid.UUID, batchType types.BatchType) (*types.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetActiveBatch"); err != nil {
		return nil, err
	}
	for _, b := range s.batches {
		if b.ProjectID == projectID && b.Type == batchType && b.Status == types.BatchActive {
			out := *b
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) LatestBatch(_ context.Context, projectID uuid.UUID, batchType types.BatchType) (*types.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LatestBatch"); err != nil {
		return nil, err
	}
	var latest *types.Batch
	for _, b := range s.batches {
		if b.ProjectID == projectID && b.Type == batchType && (latest == nil || b.Sequence > latest.Sequence) {
			latest = b
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

// exhaustible reports whether a batch has candidates and none pending or accepted.
func (s *MemoryStore) exhaustible(batchID uuid.UUID) bool {
	found := false
	for _, c := range s.candidates {
		if c.BatchID != batchID {
			continue
		}
		found = true
		if c.ResponseStatus == types.ResponsePending || c.ResponseStatus == types.ResponseAccepted {
			return false
		}
	}
	return found
}

func (s *MemoryStore) MarkBatchExhausted(_ context.Context, batchID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("MarkBatchExhausted"); err != nil {
		return false, err
	}
	b, ok := s.batches[batchID]
	if !ok || b.Status != types.BatchActive || !s.exhaustible(batchID) {
		return false, nil
	}
	b.Status = types.BatchExhausted
	b.UpdatedAt = s.Clock()
	return true, nil
}

func (s *MemoryStore) CloseBatches(_ context.Context, projectID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CloseBatches"); err != nil {
		return 0, err
	}
	var n int64
	for _, b := range s.batches {
		if b.ProjectID != projectID || (b.Status != types.BatchActive && b.Status != types.BatchExhausted) {
			continue
		}
		for _, c := range s.candidates {
			if c.BatchID == b.ID && c.ResponseStatus == types.ResponsePending {
				c.ResponseStatus = types.ResponseInvalidated
				n++
			}
		}
		b.Status = types.BatchClosed
		b.UpdatedAt = s.Clock()
	}
	return n, nil
}

func (s *MemoryStore) ListRefreshableBatches(_ context.Context, limit int) ([]types.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListRefreshableBatches"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	var out []types.Batch
	for _, b := range s.batches {
		p := s.projects[b.ProjectID]
		if b.Type != types.BatchAutoRotation || p == nil || p.Status != types.ProjectOpen {
			continue
		}
		if b.Status != types.BatchActive && b.Status != types.BatchExhausted {
			continue
		}
		if s.exhaustible(b.ID) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Candidates
// -----------------------------------------------------------------------------

func (s *MemoryStore) GetCandidate(_ context.Context, id uuid.UUID) (*types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetCandidate"); err != nil {
		return nil, err
	}
	c, ok := s.candidates[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) ListBatchCandidates(_ context.Context, batchID uuid.UUID) ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListBatchCandidates"); err != nil {
		return nil, err
	}
	return s.filter(func(c *types.Candidate) bool { return c.BatchID == batchID }), nil
}

func (s *MemoryStore) AcceptCandidate(_ context.Context, id, developerID uuid.UUID, now time.Time) (*types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AcceptCandidate"); err != nil {
		return nil, err
	}
	c, ok := s.candidates[id]
	if !ok || c.DeveloperID != developerID || c.ResponseStatus != types.ResponsePending || c.DeadlinePassed(now) {
		return nil, db.ErrNotTransitioned
	}
	if b := s.batches[c.BatchID]; b == nil || b.Status != types.BatchActive {
		return nil, db.ErrNotTransitioned
	}
	if p := s.projects[c.ProjectID]; p == nil || p.Status != types.ProjectOpen {
		return nil, db.ErrNotTransitioned
	}
	if s.winner(c.ProjectID) != nil {
		return nil, db.ErrNotTransitioned
	}

	c.ResponseStatus = types.ResponseAccepted
	c.RespondedAt = copyTime(&now)
	c.IsFirstAccepted = true
	out := *c
	return &out, nil
}

func (s *MemoryStore) RejectCandidate(_ context.Context, id, developerID uuid.UUID, now time.Time) (*types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RejectCandidate"); err != nil {
		return nil, err
	}
	c, ok := s.candidates[id]
	if !ok || c.DeveloperID != developerID || c.ResponseStatus != types.ResponsePending || c.DeadlinePassed(now) {
		return nil, db.ErrNotTransitioned
	}
	c.ResponseStatus = types.ResponseRejected
	c.RespondedAt = copyTime(&now)
	out := *c
	return &out, nil
}

func (s *MemoryStore) ExpireStaleCandidates(_ context.Context, now time.Time) ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ExpireStaleCandidates"); err != nil {
		return nil, err
	}
	var out []types.Candidate
	for _, id := range s.candOrder {
		c := s.candidates[id]
		if c.ResponseStatus != types.ResponsePending || c.AcceptanceDeadline == nil || c.AcceptanceDeadline.After(now) {
			continue
		}
		if b := s.batches[c.BatchID]; b != nil && b.NoExpire {
			continue
		}
		c.ResponseStatus = types.ResponseExpired
		out = append(out, *c)
	}
	return out, nil
}

func (s *MemoryStore) SettleWinner(_ context.Context, winner *types.Candidate, scope db.SettleScope) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SettleWinner"); err != nil {
		return 0, err
	}

	inScope := func(c *types.Candidate) bool {
		if scope == db.SettleProject {
			return c.ProjectID == winner.ProjectID
		}
		return c.BatchID == winner.BatchID
	}

	var n int64
	for _, c := range s.candidates {
		if c.ID != winner.ID && c.ResponseStatus == types.ResponsePending && inScope(c) {
			c.ResponseStatus = types.ResponseInvalidated
			n++
		}
	}

	now := s.Clock()
	for _, b := range s.batches {
		if b.Status != types.BatchActive && b.Status != types.BatchExhausted {
			continue
		}
		if scope == db.SettleProject {
			if b.ProjectID != winner.ProjectID || s.hasPending(b.ID) {
				continue
			}
		} else if b.ID != winner.BatchID {
			continue
		}
		b.Status = types.BatchClosed
		b.UpdatedAt = now
	}
	return n, nil
}

func (s *MemoryStore) hasPending(batchID uuid.UUID) bool {
	for _, c := range s.candidates {
		if c.BatchID == batchID && c.ResponseStatus == types.ResponsePending {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InvalidateOrphanedPending(_ context.Context) ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InvalidateOrphanedPending"); err != nil {
		return nil, err
	}
	var out []types.Candidate
	for _, id := range s.candOrder {
		c := s.candidates[id]
		if c.ResponseStatus != types.ResponsePending {
			continue
		}
		orphaned := false
		if p := s.projects[c.ProjectID]; p != nil && p.Status != types.ProjectOpen {
			orphaned = true
		}
		if w := s.winner(c.ProjectID); w != nil && w.ID != c.ID &&
			(w.BatchID == c.BatchID || w.Source == types.SourceAutoRotation) {
			orphaned = true
		}
		if orphaned {
			c.ResponseStatus = types.ResponseInvalidated
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListPendingByDeveloper(_ context.Context, developerID uuid.UUID, now time.Time) ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListPendingByDeveloper"); err != nil {
		return nil, err
	}
	out := s.filter(func(c *types.Candidate) bool {
		return c.DeveloperID == developerID && c.ResponseStatus == types.ResponsePending && !c.DeadlinePassed(now)
	})
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].AcceptanceDeadline, out[j].AcceptanceDeadline
		switch {
		case a == nil && b == nil:
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
	return out, nil
}

func (s *MemoryStore) ListRecentActivityByDeveloper(_ context.Context, developerID uuid.UUID, limit int) ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListRecentActivityByDeveloper"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	out := s.filter(func(c *types.Candidate) bool {
		return c.DeveloperID == developerID && c.ResponseStatus != types.ResponsePending
	})
	activityAt := func(c types.Candidate) time.Time {
		if c.RespondedAt != nil {
			return *c.RespondedAt
		}
		return c.AssignedAt
	}
	sort.SliceStable(out, func(i, j int) bool { return activityAt(out[i]).After(activityAt(out[j])) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func statusIn(s types.BatchStatus, set []types.BatchStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
