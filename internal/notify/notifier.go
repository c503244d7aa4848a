// Package notify hands assignment events to delivery collaborators.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier defines the interface for publishing assignment events.
type Notifier interface {
	NotifyCandidateAccepted(ctx context.Context, e CandidateAcceptedEvent) error
	NotifyBatchComposed(ctx context.Context, e BatchComposedEvent) error
}

// NoopNotifier drops every event.
type NoopNotifier struct{}

func (NoopNotifier) NotifyCandidateAccepted(context.Context, CandidateAcceptedEvent) error { return nil }
func (NoopNotifier) NotifyBatchComposed(context.Context, BatchComposedEvent) error         { return nil }

// LogNotifier writes events to a logger. Used when no event channel is configured.
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyCandidateAccepted(_ context.Context, e CandidateAcceptedEvent) error {
	n.log.WithFields(logrus.Fields{
		"event":        EventCandidateAccepted,
		"project_id":   e.ProjectID,
		"batch_id":     e.BatchID,
		"candidate_id": e.CandidateID,
		"developer_id": e.DeveloperID,
	}).Info("candidate accepted, contact details released")
	return nil
}

func (n *LogNotifier) NotifyBatchComposed(_ context.Context, e BatchComposedEvent) error {
	n.log.WithFields(logrus.Fields{
		"event":      EventBatchComposed,
		"project_id": e.ProjectID,
		"batch_id":   e.BatchID,
		"type":       e.Type,
		"refresh":    e.Refresh,
		"invited":    len(e.Candidates),
	}).Info("invitations sent")
	return nil
}

// Multi fans an event out to several notifiers and returns the first error.
type Multi []Notifier

func (m Multi) NotifyCandidateAccepted(ctx context.Context, e CandidateAcceptedEvent) error {
	var firstErr error
	for _, n := range m {
		if err := n.NotifyCandidateAccepted(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) NotifyBatchComposed(ctx context.Context, e BatchComposedEvent) error {
	var firstErr error
	for _, n := range m {
		if err := n.NotifyBatchComposed(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ Notifier = NoopNotifier{}
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Multi(nil)
)
