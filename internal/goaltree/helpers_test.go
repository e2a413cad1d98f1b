package goaltree

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/arnold/mandala-api/internal/models"
	"github.com/arnold/mandala-api/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// recorder is a CelebrationSink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []models.Celebration
}

func (r *recorder) Celebrate(_ context.Context, c models.Celebration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, c)
	return nil
}

func (r *recorder) all() []models.Celebration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Celebration(nil), r.events...)
}

type testEnv struct {
	engine  *Engine
	storage *storage.Memory
	sink    *recorder
	hook    *test.Hook
	log     *logrus.Logger
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	log, hook := test.NewNullLogger()
	mem := storage.NewMemory()
	sink := &recorder{}
	all := append([]Option{
		WithLogger(log),
		WithGateway(NewGateway(mem, log)),
		WithSink(sink),
	}, opts...)
	e := New(all...)
	require.NoError(t, e.Load(context.Background()))
	return &testEnv{engine: e, storage: mem, sink: sink, hook: hook, log: log}
}

func leafID(major, middle, minor int) models.NodeID {
	return models.NodeID(fmt.Sprintf("center.%d.%d.%d", major, middle, minor))
}

func middleID(major, middle int) models.NodeID {
	return models.NodeID(fmt.Sprintf("center.%d.%d", major, middle))
}

func majorID(major int) models.NodeID {
	return models.NodeID(fmt.Sprintf("center.%d", major))
}

// checkLeaves checks the first n leaves of a middle node.
func checkLeaves(t *testing.T, e *Engine, major, middle, n int) []models.Celebration {
	t.Helper()
	var events []models.Celebration
	for i := 0; i < n; i++ {
		got, err := e.SetLeafCheck(context.Background(), leafID(major, middle, i), true)
		require.NoError(t, err)
		events = append(events, got...)
	}
	return events
}

func warnings(hook *test.Hook) int {
	n := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			n++
		}
	}
	return n
}
