package goaltree

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/arnold/mandala-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundDiv(t *testing.T) {
	tests := []struct {
		num, den, want int
	}{
		{0, 8, 0},
		{400, 8, 50},
		{100, 8, 13}, // 12.5 rounds half up
		{70, 8, 9},   // 8.75
		{690, 8, 86}, // 86.25
		{700, 10, 70},
		{5, 0, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundDiv(tt.num, tt.den), "roundDiv(%d, %d)", tt.num, tt.den)
	}
}

func TestRatioPercent(t *testing.T) {
	assert.Equal(t, 0, ratioPercent(0, 1000))
	assert.Equal(t, 80, ratioPercent(800, 1000))
	assert.Equal(t, 100, ratioPercent(1000, 1000))
	assert.Equal(t, 100, ratioPercent(2500, 1000))
	assert.Equal(t, 33, ratioPercent(1, 3))
	assert.Equal(t, 100, ratioPercent(99.6, 100))
	assert.Equal(t, 100, ratioPercent(1e300, 1))
	assert.Equal(t, 100, ratioPercent(1, 1e-300))
	assert.Equal(t, 100, ratioPercent(math.MaxFloat64, 0.5))
}

func TestLockOnAchieve(t *testing.T) {
	assert.Equal(t, models.StatusNotStarted, lockOnAchieve(models.StatusInProgress, 0))
	assert.Equal(t, models.StatusInProgress, lockOnAchieve(models.StatusNotStarted, 50))
	assert.Equal(t, models.StatusAchieved, lockOnAchieve(models.StatusInProgress, 100))
	assert.Equal(t, models.StatusAchieved, lockOnAchieve(models.StatusAchieved, 0))
}

func TestMiddleScenarioLocksOnAchieve(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine
	ctx := context.Background()

	events := checkLeaves(t, e, 0, 0, 7)
	assert.Empty(t, events)
	middle, err := e.Node(middleID(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 70, middle.CompletionPercent)
	assert.Equal(t, models.StatusInProgress, middle.Status)

	for i := 7; i < 10; i++ {
		got, err := e.SetLeafCheck(ctx, leafID(0, 0, i), true)
		require.NoError(t, err)
		events = append(events, got...)
	}
	require.Len(t, events, 1)
	assert.Equal(t, models.TierMiddle, events[0].Tier)
	assert.Equal(t, middleID(0, 0), events[0].NodeID)
	middle, _ = e.Node(middleID(0, 0))
	assert.Equal(t, 100, middle.CompletionPercent)
	assert.Equal(t, models.StatusAchieved, middle.Status)

	got, err := e.SetLeafCheck(ctx, leafID(0, 0, 9), false)
	require.NoError(t, err)
	assert.Empty(t, got)
	middle, _ = e.Node(middleID(0, 0))
	assert.Equal(t, 90, middle.CompletionPercent)
	assert.Equal(t, models.StatusAchieved, middle.Status)

	// Re-achieving the same node never celebrates again.
	got, err = e.SetLeafCheck(ctx, leafID(0, 0, 9), true)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, env.sink.all(), 1)
}

func TestMajorAveragesMiddles(t *testing.T) {
	env := newTestEnv(t)
	for m := 0; m < 4; m++ {
		checkLeaves(t, env.engine, 1, m, models.MinorPerMiddle)
	}
	major, err := env.engine.Node(majorID(1))
	require.NoError(t, err)
	assert.Equal(t, 50, major.CompletionPercent)
	assert.Equal(t, models.StatusInProgress, major.Status)

	events := env.sink.all()
	require.Len(t, events, 4)
	for _, ev := range events {
		assert.Equal(t, models.TierMiddle, ev.Tier)
	}
}

func TestLastLeafCascadesIntoMajor(t *testing.T) {
	env := newTestEnv(t)
	for m := 0; m < models.MiddlePerMajor; m++ {
		checkLeaves(t, env.engine, 3, m, models.MinorPerMiddle-1)
	}
	assert.Empty(t, env.sink.all())

	for m := 0; m < models.MiddlePerMajor-1; m++ {
		_, err := env.engine.SetLeafCheck(context.Background(), leafID(3, m, 9), true)
		require.NoError(t, err)
	}
	events, err := env.engine.SetLeafCheck(context.Background(), leafID(3, 7, 9), true)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.TierMiddle, events[0].Tier)
	assert.Equal(t, models.TierMajor, events[1].Tier)
	assert.Equal(t, majorID(3), events[1].NodeID)
	assert.Len(t, env.sink.all(), 9)
}

func TestToggleTwiceRestoresLeafButNotLockedAncestors(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine
	ctx := context.Background()
	checkLeaves(t, e, 2, 2, models.MinorPerMiddle)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		id := leafID(2, 2, rng.Intn(models.MinorPerMiddle))
		before, err := e.Node(id)
		require.NoError(t, err)

		_, err = e.SetLeafCheck(ctx, id, !before.ManualCheck)
		require.NoError(t, err)
		_, err = e.SetLeafCheck(ctx, id, before.ManualCheck)
		require.NoError(t, err)

		after, err := e.Node(id)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		middle, _ := e.Node(middleID(2, 2))
		assert.Equal(t, models.StatusAchieved, middle.Status)
	}
}

func TestMiddlePercentIsAlwaysATenth(t *testing.T) {
	env := newTestEnv(t)
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		leaf := leafID(rng.Intn(2), rng.Intn(2), rng.Intn(models.MinorPerMiddle))
		_, err := env.engine.SetLeafCheck(ctx, leaf, rng.Intn(2) == 0)
		require.NoError(t, err)
	}
	snap := env.engine.Snapshot()
	for _, major := range snap.Majors {
		sum := 0
		for _, middle := range major.Middles {
			checked := 0
			for _, leaf := range middle.Minors {
				if leaf.ManualCheck {
					checked++
				}
			}
			assert.Equal(t, checked*10, middle.CompletionPercent, middle.ID)
			sum += middle.CompletionPercent
		}
		assert.Equal(t, roundDiv(sum, len(major.Middles)), major.CompletionPercent, major.ID)
	}
}

func TestRecomputeAllIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	checkLeaves(t, env.engine, 4, 0, 3)
	checkLeaves(t, env.engine, 4, 1, 6)
	checkLeaves(t, env.engine, 4, 2, 10)

	before := env.engine.Snapshot()
	for i := 0; i < 3; i++ {
		changes, err := env.engine.store.RecomputeAll()
		require.NoError(t, err)
		assert.Empty(t, changes)
	}
	assert.Equal(t, before, env.engine.Snapshot())
}

func TestAggregationTreatsMissingCollectionsAsEmpty(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, middlePercent(nil))
	assert.Equal(t, 0, majorPercent(nil))
	assert.Equal(t, 0, majorPercent(&models.Collection{}))

	ch, err := s.recomputeMiddle(middleID(5, 5))
	require.NoError(t, err)
	assert.Nil(t, ch)
	n, _ := s.GetNode(middleID(5, 5))
	assert.Equal(t, 0, n.CompletionPercent)
}

func TestUndersizedMiddleSetAveragesWhatExists(t *testing.T) {
	c := &models.Collection{Nodes: []models.GoalNode{
		{CompletionPercent: 100}, {CompletionPercent: 50}, {CompletionPercent: 0},
	}}
	assert.Equal(t, 50, majorPercent(c))
}
