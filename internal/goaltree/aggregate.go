package goaltree

import (
	"math"

	"github.com/arnold/mandala-api/internal/models"
)

// statusChange records one node's state before and after a recomputation.
type statusChange struct {
	Tier   models.Tier
	Before models.GoalNode
	After  models.GoalNode
}

// roundDiv returns num/den rounded half up. Both are non-negative; an empty
// denominator yields 0.
func roundDiv(num, den int) int {
	if den <= 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}

// ratioPercent converts actual/target into a 0-100 percent. The ratio is
// clamped before the integer conversion so huge or infinite ratios read 100.
func ratioPercent(actual, target float64) int {
	p := 100 * actual / target
	switch {
	case math.IsNaN(p) || p <= 0:
		return 0
	case p >= 100:
		return 100
	}
	return int(math.Round(p))
}

// lockOnAchieve derives a status from percent, except that achieved never regresses.
func lockOnAchieve(prev models.Status, percent int) models.Status {
	if prev == models.StatusAchieved {
		return prev
	}
	return models.StatusForPercent(percent)
}

// middlePercent is round(100 * checked / 10). A missing collection counts as
// nothing checked.
func middlePercent(minors *models.Collection) int {
	if minors == nil {
		return 0
	}
	return roundDiv(100*minors.CheckedCount(), models.MinorPerMiddle)
}

// majorPercent is the rounded average over however many middles exist.
func majorPercent(middles *models.Collection) int {
	if middles == nil || len(middles.Nodes) == 0 {
		return 0
	}
	sum := 0
	for _, n := range middles.Nodes {
		sum += n.CompletionPercent
	}
	return roundDiv(sum, len(middles.Nodes))
}

// applyDerived writes percent and the lock-on-achieve status to id and
// reports the change, if any.
func (s *Store) applyDerived(id models.NodeID, tier models.Tier, percent int) (*statusChange, error) {
	n, err := s.node(id)
	if err != nil {
		return nil, err
	}
	before := n.Clone()
	if err := s.SetDerived(id, percent, lockOnAchieve(before.Status, percent)); err != nil {
		return nil, err
	}
	if before.CompletionPercent == n.CompletionPercent && before.Status == n.Status {
		return nil, nil
	}
	return &statusChange{Tier: tier, Before: before, After: n.Clone()}, nil
}

// recomputeMiddle refreshes a middle node from its leaves. Metric-bound
// nodes are driven by the metric feed and are left alone.
func (s *Store) recomputeMiddle(id models.NodeID) (*statusChange, error) {
	n, err := s.node(id)
	if err != nil {
		return nil, err
	}
	if n.MetricBinding != nil {
		return nil, nil
	}
	return s.applyDerived(id, models.TierMiddle, middlePercent(s.minors[id]))
}

// recomputeMajor refreshes a major node from its middles.
func (s *Store) recomputeMajor(id models.NodeID) (*statusChange, error) {
	n, err := s.node(id)
	if err != nil {
		return nil, err
	}
	if n.MetricBinding != nil {
		return nil, nil
	}
	return s.applyDerived(id, models.TierMajor, majorPercent(s.middles[id]))
}

// recomputeFromLeaf runs the bottom-up pass for the ancestors of a leaf.
func (s *Store) recomputeFromLeaf(leaf models.NodeID) ([]statusChange, error) {
	middle, err := leaf.Parent()
	if err != nil {
		return nil, err
	}
	return s.recomputeFromMiddle(middle)
}

// recomputeFromMiddle refreshes middle and then its major.
func (s *Store) recomputeFromMiddle(middle models.NodeID) ([]statusChange, error) {
	var changes []statusChange
	ch, err := s.recomputeMiddle(middle)
	if err != nil {
		return nil, err
	}
	if ch != nil {
		changes = append(changes, *ch)
	}
	major, err := middle.Parent()
	if err != nil {
		return nil, err
	}
	ch, err = s.recomputeMajor(major)
	if err != nil {
		return nil, err
	}
	if ch != nil {
		changes = append(changes, *ch)
	}
	return changes, nil
}

// RecomputeAll refreshes every middle, then every major.
func (s *Store) RecomputeAll() ([]statusChange, error) {
	var changes []statusChange
	var firstErr error
	record := func(ch *statusChange, err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if ch != nil {
			changes = append(changes, *ch)
		}
	}
	eachMajor(func(major models.NodeID) {
		eachMiddle(major, func(middle models.NodeID) {
			record(s.recomputeMiddle(middle))
		})
	})
	eachMajor(func(major models.NodeID) {
		record(s.recomputeMajor(major))
	})
	return changes, firstErr
}
