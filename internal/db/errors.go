package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotTransitioned means a conditional update matched no row: the
	// candidate or batch was no longer in the expected state.
	ErrNotTransitioned = errors.New("state transition not applied")

	// ErrWinnerExists means another candidate of the project already holds the accepted slot.
	ErrWinnerExists = errors.New("project already has an accepted candidate")

	// ErrBatchSuperseded means the batch being replaced was already replaced,
	// or another live batch of the same type appeared concurrently.
	ErrBatchSuperseded = errors.New("batch already superseded")

	// ErrAlreadyInvited means the developer already has a candidate row in the batch.
	ErrAlreadyInvited = errors.New("developer already invited to this batch")

	// ErrProjectNotFound means the referenced project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectNotOpen means the project no longer accepts new invitations.
	ErrProjectNotOpen = errors.New("project is not open for invitations")
)

const (
	constraintOneWinner = "candidates_one_winner_per_project"
	constraintOneActive = "batches_one_active_per_type"
	constraintOneInvite = "candidates_batch_id_developer_id_key"

	sqlStateUniqueViolation = "23505"
)

// transientSQLStates are failures where retrying the same statement can succeed.
var transientSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

// IsTransient reports whether err is a store failure that is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if transientSQLStates[pgErr.Code] {
			return true
		}
		// Class 08: connection exception
		return strings.HasPrefix(pgErr.Code, "08")
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// uniqueViolation returns the violated constraint name, or "" if err is not a unique violation.
func uniqueViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

// translateWriteError maps constraint violations to package sentinels.
func translateWriteError(err error) error {
	switch uniqueViolation(err) {
	case constraintOneWinner:
		return ErrWinnerExists
	case constraintOneActive:
		return ErrBatchSuperseded
	case constraintOneInvite:
		return ErrAlreadyInvited
	}
	return err
}
