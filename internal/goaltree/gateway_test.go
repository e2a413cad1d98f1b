package goaltree

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/arnold/mandala-api/internal/models"
	"github.com/arnold/mandala-api/internal/storage"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStorage fails every read.
type failingStorage struct{}

func (failingStorage) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk gone") }
func (failingStorage) Put(context.Context, string, []byte) error { return errors.New("disk gone") }

func populate(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	_, err := e.SetNodeTitle(ctx, models.CenterID, "Eight figures by 2030", nil)
	require.NoError(t, err)
	_, err = e.SetNodeTitle(ctx, majorID(0), "Sales", nil)
	require.NoError(t, err)
	_, err = e.SetNodeTitle(ctx, middleID(0, 0), "Revenue", &models.MetricBinding{Metric: models.MetricRevenue, Year: 2025})
	require.NoError(t, err)
	_, err = e.SetMetricPercent(ctx, middleID(0, 0), 100)
	require.NoError(t, err)
	_, err = e.SetMetricPercent(ctx, middleID(0, 0), 60)
	require.NoError(t, err)
	_, err = e.SetNodeTitle(ctx, middleID(0, 1), "Pipeline", nil)
	require.NoError(t, err)
	_, err = e.SetNodeTitle(ctx, leafID(0, 1, 3), "Call ten leads", nil)
	require.NoError(t, err)
	checkLeaves(t, e, 0, 1, 4)
	checkLeaves(t, e, 7, 7, 10)
}

func TestGatewayRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	populate(t, env.engine)
	want := env.engine.Snapshot()

	log, hook := test.NewNullLogger()
	reloaded := New(WithLogger(log), WithGateway(NewGateway(env.storage, log)))
	require.NoError(t, reloaded.Load(context.Background()))

	assert.Equal(t, want, reloaded.Snapshot())
	assert.Zero(t, warnings(hook))

	// Reloading an unchanged tree writes nothing back.
	before := env.storage.Writes()
	require.NoError(t, New(WithLogger(log), WithGateway(NewGateway(env.storage, log))).Load(context.Background()))
	assert.Equal(t, before, env.storage.Writes())
}

func TestGatewayMissingKeysYieldDefaults(t *testing.T) {
	log, hook := test.NewNullLogger()
	g := NewGateway(storage.NewMemory(), log)
	s, err := g.Load(context.Background())
	require.NoError(t, err)
	_, err = s.reconcile(log)
	require.NoError(t, err)

	snap := s.snapshot()
	assert.Equal(t, "", snap.CenterGoal)
	require.Len(t, snap.Majors, models.MajorCount)
	for _, major := range snap.Majors {
		require.Len(t, major.Middles, models.MiddlePerMajor)
		for _, middle := range major.Middles {
			assert.Len(t, middle.Minors, models.MinorPerMiddle)
		}
	}
	assert.Zero(t, warnings(hook))
}

func TestGatewayMalformedKeyOnlyLosesThatSubtree(t *testing.T) {
	env := newTestEnv(t)
	populate(t, env.engine)
	ctx := context.Background()
	require.NoError(t, env.storage.Put(ctx, KeyMajorNodes, []byte(`{"not":"an array"`)))

	log, hook := test.NewNullLogger()
	e := New(WithLogger(log), WithGateway(NewGateway(env.storage, log)))
	require.NoError(t, e.Load(ctx))
	assert.Equal(t, 1, warnings(hook))

	snap := e.Snapshot()
	assert.Equal(t, "Eight figures by 2030", snap.CenterGoal)
	assert.Equal(t, "", snap.Majors[0].Title, "major titles fell back to defaults")
	assert.Equal(t, "Call ten leads", snap.Majors[0].Middles[1].Minors[3].Title, "leaves survived")
	assert.Equal(t, 40, snap.Majors[0].Middles[1].CompletionPercent)
}

func TestGatewayMalformedEntryOnlyLosesThatCollection(t *testing.T) {
	env := newTestEnv(t)
	populate(t, env.engine)
	ctx := context.Background()

	raw, err := env.storage.Get(ctx, KeyMinorCollections)
	require.NoError(t, err)
	var entries map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &entries))
	entries[string(middleID(7, 7))] = json.RawMessage(`"garbage"`)
	raw, err = json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, env.storage.Put(ctx, KeyMinorCollections, raw))

	log, hook := test.NewNullLogger()
	e := New(WithLogger(log), WithGateway(NewGateway(env.storage, log)))
	require.NoError(t, e.Load(ctx))
	assert.Equal(t, 1, warnings(hook))

	snap := e.Snapshot()
	for _, leaf := range snap.Majors[7].Middles[7].Minors {
		assert.False(t, leaf.ManualCheck)
	}
	// The middle keeps its lock even though its leaves were reset.
	assert.Equal(t, models.StatusAchieved, snap.Majors[7].Middles[7].Status)
	assert.Equal(t, 0, snap.Majors[7].Middles[7].CompletionPercent)
	assert.Equal(t, "Call ten leads", snap.Majors[0].Middles[1].Minors[3].Title)
}

func TestGatewayPadsAndTruncatesCollections(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	majors, _ := json.Marshal([]models.GoalNode{{Title: "only one"}})
	require.NoError(t, mem.Put(ctx, KeyMajorNodes, majors))

	long := make([]models.GoalNode, 12)
	long[0] = models.GoalNode{Title: "first", ManualCheck: true, CompletionPercent: 40, Status: "weird"}
	minors, _ := json.Marshal(map[string]any{
		"center.0.0": map[string]any{"parentTitle": "x", "nodes": long},
		"center.0.1": []models.GoalNode{{Title: "bare array"}},
	})
	require.NoError(t, mem.Put(ctx, KeyMinorCollections, minors))

	log, hook := test.NewNullLogger()
	s, err := NewGateway(mem, log).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, warnings(hook))

	require.Len(t, s.majors.Nodes, models.MajorCount)
	assert.Equal(t, "only one", s.majors.Nodes[0].Title)
	assert.Equal(t, majorID(7), s.majors.Nodes[7].ID)

	c := s.minors[middleID(0, 0)]
	require.Len(t, c.Nodes, models.MinorPerMiddle)
	assert.Equal(t, leafID(0, 0, 0), c.Nodes[0].ID)
	assert.Equal(t, 100, c.Nodes[0].CompletionPercent, "leaf percent mirrors its check")
	assert.Equal(t, models.StatusAchieved, c.Nodes[0].Status)
	assert.Equal(t, "bare array", s.minors[middleID(0, 1)].Nodes[0].Title)
}

func TestGatewayKeepsOrphans(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	minors, _ := json.Marshal(map[string]any{
		"center.3":     map[string]any{"parentTitle": "wrong tier", "nodes": []models.GoalNode{{Title: "a"}}},
		"old-parent-7": map[string]any{"parentTitle": "gone", "nodes": []models.GoalNode{{Title: "b"}}},
	})
	require.NoError(t, mem.Put(ctx, KeyMinorCollections, minors))

	log, hook := test.NewNullLogger()
	e := New(WithLogger(log), WithGateway(NewGateway(mem, log)))
	require.NoError(t, e.Load(ctx))
	assert.GreaterOrEqual(t, warnings(hook), 2)
	assert.Equal(t, []string{KeyMinorCollections + "/center.3", KeyMinorCollections + "/old-parent-7"}, e.store.Orphans())

	_, err := e.SetLeafCheck(ctx, leafID(0, 0, 0), true)
	require.NoError(t, err)

	raw, err := mem.Get(ctx, KeyMinorCollections)
	require.NoError(t, err)
	var saved map[string]collectionRecord
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, "b", saved["old-parent-7"].Nodes[0].Title)
	assert.Len(t, saved, models.MajorCount*models.MiddlePerMajor+2)
}

func TestGatewaySaveWritesOnlyChangedKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before := env.storage.Writes()

	_, err := env.engine.SetNodeTitle(ctx, leafID(1, 1, 1), "stretch", nil)
	require.NoError(t, err)
	assert.Equal(t, before+1, env.storage.Writes(), "only minor_leaf_collections")

	_, err = env.engine.SetNodeTitle(ctx, leafID(1, 1, 1), "stretch", nil)
	require.NoError(t, err)
	assert.Equal(t, before+1, env.storage.Writes(), "no-op edit writes nothing")
}

func TestGatewayLoadFailsOnBrokenBackend(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := NewGateway(failingStorage{}, log).Load(context.Background())
	assert.Error(t, err)
}

func TestLeafCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine
	ctx := context.Background()
	id := leafID(2, 0, 0)

	changed, err := e.LeafChanged(ctx, id)
	require.NoError(t, err)
	assert.False(t, changed, "untouched leaf matches the default")

	_, err = e.SetNodeTitle(ctx, id, "journal daily", nil)
	require.NoError(t, err)
	changed, err = e.LeafChanged(ctx, id)
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, e.SaveCheckpoint(ctx, id))
	changed, err = e.LeafChanged(ctx, id)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = e.SetLeafCheck(ctx, id, true)
	require.NoError(t, err)
	changed, err = e.LeafChanged(ctx, id)
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, env.storage.Put(ctx, checkpointKey(id), []byte("{")))
	changed, err = e.LeafChanged(ctx, id)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = e.LeafChanged(ctx, middleID(2, 0))
	assert.ErrorIs(t, err, ErrNotLeaf)
	assert.ErrorIs(t, e.SaveCheckpoint(ctx, "center.2.0.99"), ErrNodeNotFound)
}
