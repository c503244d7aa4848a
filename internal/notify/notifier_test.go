package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	accepted []CandidateAcceptedEvent
	composed []BatchComposedEvent
	err      error
}

func (r *recordingNotifier) NotifyCandidateAccepted(_ context.Context, e CandidateAcceptedEvent) error {
	r.accepted = append(r.accepted, e)
	return r.err
}

func (r *recordingNotifier) NotifyBatchComposed(_ context.Context, e BatchComposedEvent) error {
	r.composed = append(r.composed, e)
	return r.err
}

func TestLogNotifier_CandidateAccepted(t *testing.T) {
	log, hook := test.NewNullLogger()
	n := NewLogNotifier(log)

	e := CandidateAcceptedEvent{
		ProjectID:   uuid.New(),
		BatchID:     uuid.New(),
		CandidateID: uuid.New(),
		DeveloperID: uuid.New(),
		AcceptedAt:  time.Now(),
	}
	require.NoError(t, n.NotifyCandidateAccepted(context.Background(), e))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, EventCandidateAccepted, entry.Data["event"])
	assert.Equal(t, e.CandidateID, entry.Data["candidate_id"])
}

func TestLogNotifier_BatchComposed(t *testing.T) {
	log, hook := test.NewNullLogger()
	n := NewLogNotifier(log)

	require.NoError(t, n.NotifyBatchComposed(context.Background(), BatchComposedEvent{
		ProjectID: uuid.New(),
		BatchID:   uuid.New(),
		Refresh:   true,
	}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, true, entry.Data["refresh"])
	assert.Equal(t, 0, entry.Data["invited"])
}

func TestMulti_DeliversToAllAndReturnsFirstError(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("smtp down")}
	ok := &recordingNotifier{}
	m := Multi{failing, ok}

	err := m.NotifyCandidateAccepted(context.Background(), CandidateAcceptedEvent{ProjectID: uuid.New()})
	assert.EqualError(t, err, "smtp down")
	assert.Len(t, failing.accepted, 1)
	assert.Len(t, ok.accepted, 1)

	require.Error(t, m.NotifyBatchComposed(context.Background(), BatchComposedEvent{}))
	assert.Len(t, ok.composed, 1)
}

func TestNoopNotifier(t *testing.T) {
	var n Notifier = NoopNotifier{}
	assert.NoError(t, n.NotifyCandidateAccepted(context.Background(), CandidateAcceptedEvent{}))
	assert.NoError(t, n.NotifyBatchComposed(context.Background(), BatchComposedEvent{}))
}
