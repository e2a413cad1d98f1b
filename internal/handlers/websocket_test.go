package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arnold/mandala-api/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	mu       sync.Mutex
	msgs     [][]byte
	deadline time.Time
	err      error
}

func (f *fakeSocket) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = t
	return nil
}

func (f *fakeSocket) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, data)
	return f.err
}

func TestHubBroadcastsCelebrations(t *testing.T) {
	log, hook := test.NewNullLogger()
	hub := NewHub(log)
	var counts []int
	hub.OnChange(func(n int) { counts = append(counts, n) })

	good := &fakeSocket{}
	broken := &fakeSocket{err: errors.New("closed")}
	hub.register(good)
	hub.register(broken)
	assert.Equal(t, 2, hub.Clients())

	require.NoError(t, hub.Celebrate(context.Background(), models.Celebration{NodeID: "center.4", Tier: models.TierMajor, GoalTitle: "Health"}))
	require.Len(t, good.msgs, 1)
	assert.WithinDuration(t, time.Now().Add(writeWait), good.deadline, time.Second)
	assert.Len(t, hook.AllEntries(), 1, "write error is logged")

	var event struct {
		Type string             `json:"type"`
		Data models.Celebration `json:"data"`
	}
	require.NoError(t, json.Unmarshal(good.msgs[0], &event))
	assert.Equal(t, EventCelebration, event.Type)
	assert.Equal(t, models.NodeID("center.4"), event.Data.NodeID)

	hub.unregister(broken)
	hub.unregister(good)
	assert.Equal(t, []int{1, 2, 1, 0}, counts)

	hub.Broadcast(WSEvent{Type: EventCelebration})
	assert.Len(t, good.msgs, 1)
}

func TestValidationMessage(t *testing.T) {
	v := newValidator()
	title := "x"
	err := v.Struct(models.UpdateNodeRequest{
		Title:         &title,
		MetricBinding: &models.MetricBindingRequest{Metric: "ebitda", Year: -1},
	})
	require.Error(t, err)
	msg := validationMessage(err)
	assert.Contains(t, msg, "Metric failed metric_kind")
	assert.Contains(t, msg, "Year failed gte")

	assert.NoError(t, v.Struct(models.UpdateNodeRequest{MetricBinding: &models.MetricBindingRequest{}}))
}
