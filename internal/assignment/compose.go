package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/db"
	"github.com/jonathan/gigmatch/internal/notify"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/sirupsen/logrus"
)

// ComposeRequest asks for a new batch on a project.
type ComposeRequest struct {
	ProjectID uuid.UUID
	Type      types.BatchType // defaults to auto_rotation
	LevelMix  LevelMix        // defaults to the policy mix
	NoExpire  bool
}

// RefreshResult reports the outcome of a refresh.
type RefreshResult struct {
	NewBatchID uuid.UUID
	Refreshed  bool

	// FallbackUsed is set when excluding previous decliners left nobody to
	// invite and they were allowed back in.
	FallbackUsed bool

	Batch *types.BatchWithCandidates
}

// ManualInvite invites one developer outside the rotation.
type ManualInvite struct {
	ProjectID   uuid.UUID
	DeveloperID uuid.UUID
	Window      time.Duration // zero means no deadline
}

// ComposeBatch creates a batch for an open project, superseding the live batch
// of the same type if there is one.
func (m *Manager) ComposeBatch(ctx context.Context, req ComposeRequest) (*types.BatchWithCandidates, error) {
	if req.Type == "" {
		req.Type = types.BatchAutoRotation
	}
	mix := req.LevelMix
	if len(mix) == 0 {
		mix = m.policy.LevelMix
	}
	if err := mix.Validate(); err != nil {
		return nil, newError(KindValidation, err.Error(), nil)
	}

	project, err := m.openProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	var active *types.Batch
	err = m.retry.do(ctx, "get active batch", func(ctx context.Context) error {
		var err error
		active, err = m.store.GetActiveBatch(ctx, project.ID, req.Type)
		return err
	})
	if err != nil {
		return nil, storeError("get active batch", err)
	}

	developers, err := m.selectDevelopers(ctx, project, mix, nil)
	if err != nil {
		return nil, err
	}
	if len(developers) == 0 {
		return nil, newError(KindNotFound, "no developers available for this project", nil)
	}

	noExpire := req.NoExpire || PolicyForBatch(req.Type).NoExpireByDefault
	input := m.newBatch(project.ID, req.Type, noExpire, developers)
	if active != nil {
		input.Supersede = &active.ID
		input.SupersedeFrom = []types.BatchStatus{types.BatchActive}
	}

	created, err := m.createBatch(ctx, input)
	if err != nil {
		return nil, err
	}
	m.notifyComposed(ctx, created, false)
	return created, nil
}

// RefreshBatch replaces the project's latest rotation batch with a new one.
//
// Developers who rejected or were invalidated in the previous batch (and, when
// the policy says so, those who let it expire) are left out. If that leaves
// nobody to invite, they are allowed back in. Concurrent refreshes of the same
// batch create one successor; the others report Refreshed=false with the
// successor's ID.
func (m *Manager) RefreshBatch(ctx context.Context, projectID uuid.UUID) (*RefreshResult, error) {
	project, err := m.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != types.ProjectOpen {
		return &RefreshResult{}, nil
	}

	var prior *types.Batch
	err = m.retry.do(ctx, "get latest batch", func(ctx context.Context) error {
		var err error
		prior, err = m.store.LatestBatch(ctx, projectID, types.BatchAutoRotation)
		return err
	})
	if err != nil {
		return nil, storeError("get latest batch", err)
	}
	return m.refreshFrom(ctx, project, prior)
}

// RefreshExhausted refreshes a rotation batch once none of its candidates is
// pending or accepted. Anything else is left alone with Refreshed=false.
func (m *Manager) RefreshExhausted(ctx context.Context, batchID uuid.UUID) (*RefreshResult, error) {
	var batch *types.Batch
	err := m.retry.do(ctx, "get batch", func(ctx context.Context) error {
		var err error
		batch, err = m.store.GetBatch(ctx, batchID)
		return err
	})
	if err != nil {
		return nil, storeError("get batch", err)
	}
	if batch == nil {
		return nil, newError(KindNotFound, "batch not found", nil)
	}
	if !PolicyForBatch(batch.Type).Refreshable {
		return &RefreshResult{}, nil
	}

	if batch.Status == types.BatchActive {
		var exhausted bool
		err := m.retry.do(ctx, "mark batch exhausted", func(ctx context.Context) error {
			var err error
			exhausted, err = m.store.MarkBatchExhausted(ctx, batch.ID)
			return err
		})
		if err != nil {
			return nil, storeError("mark batch exhausted", err)
		}
		if !exhausted {
			return &RefreshResult{}, nil
		}
		batch.Status = types.BatchExhausted
	}
	if batch.Status != types.BatchExhausted {
		return &RefreshResult{}, nil
	}

	project, err := m.Project(ctx, batch.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.Status != types.ProjectOpen {
		return &RefreshResult{}, nil
	}
	return m.refreshFrom(ctx, project, batch)
}

func (m *Manager) refreshFrom(ctx context.Context, project *types.Project, prior *types.Batch) (*RefreshResult, error) {
	log := m.log.WithField("project_id", project.ID)

	if prior == nil {
		created, err := m.ComposeBatch(ctx, ComposeRequest{ProjectID: project.ID})
		if err != nil {
			if KindOf(err) == KindNotFound {
				return &RefreshResult{}, nil
			}
			return nil, err
		}
		return &RefreshResult{NewBatchID: created.Batch.ID, Refreshed: true, Batch: created}, nil
	}

	log = log.WithField("batch_id", prior.ID)
	if prior.Status != types.BatchActive && prior.Status != types.BatchExhausted {
		return m.alreadyRefreshed(ctx, project.ID)
	}

	var previous []types.Candidate
	err := m.retry.do(ctx, "list batch candidates", func(ctx context.Context) error {
		var err error
		previous, err = m.store.ListBatchCandidates(ctx, prior.ID)
		return err
	})
	if err != nil {
		return nil, storeError("list batch candidates", err)
	}

	exclude := make(map[uuid.UUID]struct{})
	for _, c := range previous {
		if c.ResponseStatus == types.ResponseAccepted {
			return &RefreshResult{}, nil
		}
		// Pending candidates are invalidated by the supersede.
		if c.ResponseStatus == types.ResponsePending || m.policy.excludedOnRefresh(c.ResponseStatus) {
			exclude[c.DeveloperID] = struct{}{}
		}
	}

	developers, err := m.selectDevelopers(ctx, project, m.policy.LevelMix, exclude)
	if err != nil {
		return nil, err
	}
	fallback := false
	if len(developers) == 0 && len(exclude) > 0 {
		developers, err = m.selectDevelopers(ctx, project, m.policy.LevelMix, nil)
		if err != nil {
			return nil, err
		}
		fallback = true
		log.WithField("excluded", len(exclude)).Info("refresh pool empty after exclusion; allowing repeats")
	}
	if len(developers) == 0 {
		log.Warn("no developers available for refresh")
		return &RefreshResult{}, nil
	}

	input := m.newBatch(project.ID, types.BatchAutoRotation, prior.NoExpire, developers)
	input.Supersede = &prior.ID
	input.SupersedeFrom = []types.BatchStatus{types.BatchActive, types.BatchExhausted}

	created, err := m.createBatch(ctx, input)
	switch {
	case err == nil:
	case errors.Is(err, db.ErrBatchSuperseded):
		return m.alreadyRefreshed(ctx, project.ID)
	case errors.Is(err, db.ErrProjectNotOpen):
		return &RefreshResult{}, nil
	default:
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"new_batch_id": created.Batch.ID,
		"invited":      len(created.Candidates),
		"fallback":     fallback,
	}).Info("batch refreshed")
	m.notifyComposed(ctx, created, true)
	return &RefreshResult{
		NewBatchID:   created.Batch.ID,
		Refreshed:    true,
		FallbackUsed: fallback,
		Batch:        created,
	}, nil
}

// alreadyRefreshed reports the live successor created by someone else, if any.
func (m *Manager) alreadyRefreshed(ctx context.Context, projectID uuid.UUID) (*RefreshResult, error) {
	var active *types.Batch
	err := m.retry.do(ctx, "get active batch", func(ctx context.Context) error {
		var err error
		active, err = m.store.GetActiveBatch(ctx, projectID, types.BatchAutoRotation)
		return err
	})
	if err != nil {
		return nil, storeError("get active batch", err)
	}
	result := &RefreshResult{}
	if active != nil {
		result.NewBatchID = active.ID
	}
	return result, nil
}

// InviteDeveloper adds a developer to the project's manual-invite batch,
// creating the batch if there is none.
func (m *Manager) InviteDeveloper(ctx context.Context, req ManualInvite) (*types.Candidate, error) {
	project, err := m.openProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	var developer *types.Developer
	err = m.retry.do(ctx, "get developer", func(ctx context.Context) error {
		var err error
		developer, err = m.store.GetDeveloper(ctx, req.DeveloperID)
		return err
	})
	if err != nil {
		return nil, storeError("get developer", err)
	}
	if developer == nil || !developer.Active {
		return nil, newError(KindNotFound, "developer not found", nil)
	}

	// A concurrent invite may create or close the manual batch between the
	// lookup and the write; one more pass sees the new state.
	for attempt := 0; attempt < 2; attempt++ {
		var active *types.Batch
		err := m.retry.do(ctx, "get active batch", func(ctx context.Context) error {
			var err error
			active, err = m.store.GetActiveBatch(ctx, project.ID, types.BatchManualInvite)
			return err
		})
		if err != nil {
			return nil, storeError("get active batch", err)
		}

		now := m.now()
		if active != nil {
			nc := db.NewCandidate{
				DeveloperID: developer.ID,
				Level:       developer.Level,
				Deadline:    manualDeadline(now, active.NoExpire, req.Window),
			}
			var added []types.Candidate
			err := m.retry.do(ctx, "add candidates", func(ctx context.Context) error {
				var err error
				added, err = m.store.AddCandidates(ctx, active.ID, []db.NewCandidate{nc}, now)
				return err
			})
			switch {
			case err == nil:
				m.notifyComposed(ctx, &types.BatchWithCandidates{Batch: *active, Candidates: added}, false)
				return &added[0], nil
			case errors.Is(err, db.ErrAlreadyInvited):
				return nil, newError(KindConflict, "developer is already invited to this project", nil)
			case errors.Is(err, db.ErrBatchSuperseded), errors.Is(err, db.ErrNotTransitioned):
				continue
			default:
				return nil, storeError("add candidates", err)
			}
		}

		noExpire := req.Window <= 0
		input := &db.NewBatch{
			ProjectID:  project.ID,
			Type:       types.BatchManualInvite,
			NoExpire:   noExpire,
			AssignedAt: now,
			Candidates: []db.NewCandidate{{
				DeveloperID: developer.ID,
				Level:       developer.Level,
				Deadline:    manualDeadline(now, noExpire, req.Window),
			}},
		}
		created, err := m.createBatch(ctx, input)
		if err != nil {
			if errors.Is(err, db.ErrBatchSuperseded) {
				continue
			}
			return nil, err
		}
		m.notifyComposed(ctx, created, false)
		return &created.Candidates[0], nil
	}
	return nil, newError(KindConflict, "manual invitations changed concurrently, please retry", nil)
}

func manualDeadline(now time.Time, noExpire bool, window time.Duration) *time.Time {
	if noExpire || window <= 0 {
		return nil
	}
	d := now.Add(window)
	return &d
}

// openProject returns the project if it still takes invitations.
func (m *Manager) openProject(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	project, err := m.Project(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Status != types.ProjectOpen {
		return nil, newError(KindConflict, "project is no longer open", nil)
	}
	return project, nil
}

func (m *Manager) newBatch(projectID uuid.UUID, batchType types.BatchType, noExpire bool, developers []types.Developer) *db.NewBatch {
	now := m.now()
	var deadline *time.Time
	if !noExpire {
		d := now.Add(m.policy.Window)
		deadline = &d
	}

	input := &db.NewBatch{
		ProjectID:  projectID,
		Type:       batchType,
		NoExpire:   noExpire,
		AssignedAt: now,
		Candidates: make([]db.NewCandidate, 0, len(developers)),
	}
	for _, d := range developers {
		input.Candidates = append(input.Candidates, db.NewCandidate{
			DeveloperID: d.ID,
			Level:       d.Level,
			Deadline:    deadline,
		})
	}
	return input
}

func (m *Manager) createBatch(ctx context.Context, input *db.NewBatch) (*types.BatchWithCandidates, error) {
	var created *types.BatchWithCandidates
	err := m.retry.do(ctx, "create batch", func(ctx context.Context) error {
		var err error
		created, err = m.store.CreateBatch(ctx, input)
		return err
	})
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, db.ErrBatchSuperseded):
		return nil, newError(KindConflict, "batch was replaced concurrently", err)
	case errors.Is(err, db.ErrProjectNotOpen):
		return nil, newError(KindConflict, "project is no longer open", err)
	case errors.Is(err, db.ErrProjectNotFound):
		return nil, newError(KindNotFound, "project not found", err)
	}
	return nil, storeError("create batch", err)
}

func (m *Manager) notifyComposed(ctx context.Context, b *types.BatchWithCandidates, refresh bool) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := m.notifier.NotifyBatchComposed(nctx, notify.BatchComposedEvent{
		ProjectID:  b.Batch.ProjectID,
		BatchID:    b.Batch.ID,
		Type:       b.Batch.Type,
		Refresh:    refresh,
		Candidates: b.Candidates,
	}); err != nil {
		m.log.WithError(err).WithField("batch_id", b.Batch.ID).Warn("failed to notify invitations")
	}
}

// -----------------------------------------------------------------------------
// Developer selection
// -----------------------------------------------------------------------------

// selectDevelopers fetches per-tier pools, minus exclude, and picks the batch.
func (m *Manager) selectDevelopers(ctx context.Context, project *types.Project, mix LevelMix, exclude map[uuid.UUID]struct{}) ([]types.Developer, error) {
	excludeIDs := make([]uuid.UUID, 0, len(exclude))
	for id := range exclude {
		excludeIDs = append(excludeIDs, id)
	}
	limit := m.policy.PoolSize
	if total := mix.Total(); limit < total {
		limit = total
	}

	pools := make(map[types.Level][]types.Developer, len(types.Levels))
	for _, level := range types.Levels {
		if mix[level] == 0 && !m.policy.Backfill {
			continue
		}
		q := db.PoolQuery{Level: level, Skills: project.Skills, ExcludeIDs: excludeIDs, Limit: limit}
		err := m.retry.do(ctx, "list developer pool", func(ctx context.Context) error {
			var err error
			pools[level], err = m.store.ListDeveloperPool(ctx, q)
			return err
		})
		if err != nil {
			return nil, storeError("list developer pool", err)
		}
	}
	return pickDevelopers(mix, pools, m.policy.Backfill), nil
}

// pickDevelopers takes mix[level] developers from each tier's pool in pool
// order. With backfill, seats a tier could not fill go to the remaining
// developers of the other tiers, highest tier first.
func pickDevelopers(mix LevelMix, pools map[types.Level][]types.Developer, backfill bool) []types.Developer {
	chosen := make(map[uuid.UUID]bool)
	cursor := make(map[types.Level]int)
	take := func(level types.Level) (types.Developer, bool) {
		pool := pools[level]
		for cursor[level] < len(pool) {
			d := pool[cursor[level]]
			cursor[level]++
			if !chosen[d.ID] {
				chosen[d.ID] = true
				return d, true
			}
		}
		return types.Developer{}, false
	}

	var picked []types.Developer
	shortfall := 0
	for _, level := range types.Levels {
		for i := 0; i < mix[level]; i++ {
			d, ok := take(level)
			if !ok {
				shortfall += mix[level] - i
				break
			}
			picked = append(picked, d)
		}
	}

	if backfill {
		for _, level := range types.Levels {
			for shortfall > 0 {
				d, ok := take(level)
				if !ok {
					break
				}
				picked = append(picked, d)
				shortfall--
			}
		}
	}
	return picked
}
