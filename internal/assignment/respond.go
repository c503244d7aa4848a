package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/db"
	"github.com/jonathan/gigmatch/internal/notify"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/sirupsen/logrus"
)

// Respond records a developer's answer to an invitation.
//
// Both actions are a single conditional update in the store; there is no
// read before the write. When the update does not apply, the candidate is
// re-read only to pick the error kind.
func (m *Manager) Respond(ctx context.Context, candidateID uuid.UUID, action string, developerID uuid.UUID) (*types.Candidate, error) {
	switch action {
	case types.ActionAccept:
		return m.accept(ctx, candidateID, developerID)
	case types.ActionReject:
		return m.reject(ctx, candidateID, developerID)
	}
	return nil, newError(KindValidation, fmt.Sprintf("unknown action %q", action), nil)
}

func (m *Manager) accept(ctx context.Context, candidateID, developerID uuid.UUID) (*types.Candidate, error) {
	now := m.now()

	var (
		winner   *types.Candidate
		attempts int
	)
	err := m.retry.do(ctx, "accept candidate", func(ctx context.Context) error {
		attempts++
		var err error
		winner, err = m.store.AcceptCandidate(ctx, candidateID, developerID, now)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, db.ErrWinnerExists):
		return nil, newError(KindConflict, MsgConflict, nil)
	case errors.Is(err, db.ErrNotTransitioned):
		c, err := m.reread(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		// An earlier attempt can commit and still lose its reply.
		if attempts > 1 && acceptedAt(c, developerID, now) {
			winner = c
			break
		}
		return nil, classify(c, developerID, now)
	default:
		return nil, storeError("accept candidate", err)
	}

	m.log.WithFields(candidateFields(winner)).Info("candidate accepted")
	m.settle(ctx, winner)
	return winner, nil
}

// acceptedAt reports whether c is developerID's winning accept written at now.
func acceptedAt(c *types.Candidate, developerID uuid.UUID, now time.Time) bool {
	if c.DeveloperID != developerID || c.ResponseStatus != types.ResponseAccepted || !c.IsFirstAccepted || c.RespondedAt == nil {
		return false
	}
	// Postgres keeps microseconds.
	return c.RespondedAt.Sub(now).Abs() < time.Microsecond
}

func (m *Manager) reject(ctx context.Context, candidateID, developerID uuid.UUID) (*types.Candidate, error) {
	now := m.now()

	var c *types.Candidate
	err := m.retry.do(ctx, "reject candidate", func(ctx context.Context) error {
		var err error
		c, err = m.store.RejectCandidate(ctx, candidateID, developerID, now)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, db.ErrNotTransitioned):
		c, err := m.reread(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		return nil, classify(c, developerID, now)
	default:
		return nil, storeError("reject candidate", err)
	}

	log := m.log.WithFields(candidateFields(c))
	log.Info("candidate rejected")

	// The sweep refreshes exhausted rotation batches on its next tick.
	exhausted, err := m.store.MarkBatchExhausted(context.WithoutCancel(ctx), c.BatchID)
	if err != nil {
		log.WithError(err).Warn("failed to check batch exhaustion")
	} else if exhausted {
		log.Info("batch exhausted")
	}
	return c, nil
}

// reread loads a candidate after a conditional respond update did not apply.
func (m *Manager) reread(ctx context.Context, candidateID uuid.UUID) (*types.Candidate, error) {
	var c *types.Candidate
	err := m.retry.do(ctx, "get candidate", func(ctx context.Context) error {
		var err error
		c, err = m.store.GetCandidate(ctx, candidateID)
		return err
	})
	if err != nil {
		return nil, storeError("get candidate", err)
	}
	if c == nil {
		return nil, newError(KindNotFound, "invitation not found", nil)
	}
	return c, nil
}

// classify explains why a conditional respond update did not apply.
func classify(c *types.Candidate, developerID uuid.UUID, now time.Time) error {
	if c.DeveloperID != developerID {
		return newError(KindForbidden, MsgForbidden, nil)
	}

	switch c.ResponseStatus {
	case types.ResponsePending:
		if c.DeadlinePassed(now) {
			return newError(KindDeadlinePassed, MsgDeadlinePassed, nil)
		}
		// Still pending and in time: another candidate already won the
		// project, or the batch or project is no longer live.
		return newError(KindConflict, MsgConflict, nil)
	case types.ResponseExpired:
		return newError(KindDeadlinePassed, MsgDeadlinePassed, nil)
	case types.ResponseInvalidated:
		return newError(KindConflict, MsgConflict, nil)
	default:
		return newError(KindAlreadyResponded, MsgAlreadyResponded, nil)
	}
}

// settle runs the post-commit steps of a winning accept. None of them can
// undo the accept; failures are logged and the sweep repairs what is left.
func (m *Manager) settle(ctx context.Context, winner *types.Candidate) {
	ctx = context.WithoutCancel(ctx)
	log := m.log.WithFields(candidateFields(winner))
	scope := PolicyFor(winner.Source).Settle

	var invalidated int64
	err := m.retry.do(ctx, "invalidate siblings", func(ctx context.Context) error {
		var err error
		invalidated, err = m.store.SettleWinner(ctx, winner, scope)
		return err
	})
	if err != nil {
		log.WithError(err).Error("failed to invalidate siblings; sweep will repair")
	} else {
		log.WithFields(logrus.Fields{"invalidated": invalidated, "scope": scope}).Info("siblings invalidated")
	}

	err = m.retry.do(ctx, "mark project assigned", func(ctx context.Context) error {
		return m.store.MarkProjectAssigned(ctx, winner.ProjectID, winner.DeveloperID)
	})
	if err != nil {
		log.WithError(err).Error("failed to mark project assigned; sweep will repair")
	}

	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := m.notifier.NotifyCandidateAccepted(nctx, notify.CandidateAcceptedEvent{
		ProjectID:   winner.ProjectID,
		BatchID:     winner.BatchID,
		CandidateID: winner.ID,
		DeveloperID: winner.DeveloperID,
		AcceptedAt:  *winner.RespondedAt,
	}); err != nil {
		log.WithError(err).Warn("failed to notify accept")
	}
}

// InvalidateSiblings moves every other pending candidate of batchID to
// invalidated. winnerID must be the batch's accepted winner. Safe to repeat.
func (m *Manager) InvalidateSiblings(ctx context.Context, batchID, winnerID uuid.UUID) (int64, error) {
	var winner *types.Candidate
	err := m.retry.do(ctx, "get candidate", func(ctx context.Context) error {
		var err error
		winner, err = m.store.GetCandidate(ctx, winnerID)
		return err
	})
	if err != nil {
		return 0, storeError("get candidate", err)
	}
	if winner == nil {
		return 0, newError(KindNotFound, "invitation not found", nil)
	}
	if winner.BatchID != batchID {
		return 0, newError(KindValidation, "candidate does not belong to batch", nil)
	}
	if !winner.IsFirstAccepted {
		return 0, newError(KindValidation, "candidate is not the accepted winner", nil)
	}

	var invalidated int64
	err = m.retry.do(ctx, "invalidate siblings", func(ctx context.Context) error {
		var err error
		invalidated, err = m.store.SettleWinner(ctx, winner, db.SettleBatch)
		return err
	})
	if err != nil {
		return 0, storeError("invalidate siblings", err)
	}
	return invalidated, nil
}
