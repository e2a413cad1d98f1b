package goaltree

import (
	"fmt"
	"sort"

	"github.com/arnold/mandala-api/internal/models"
)

// Store owns every node of one goal tree. Child collections are addressed by
// the id of the parent that generated them and materialize on first access.
type Store struct {
	center  models.GoalNode
	majors  *models.Collection
	middles map[models.NodeID]*models.Collection // by major id
	minors  map[models.NodeID]*models.Collection // by middle id

	// Collections read from storage whose parent id does not exist in the
	// parent tier. Kept so they survive a save, never aggregated.
	orphanMiddles map[string]*models.Collection
	orphanMinors  map[string]*models.Collection
}

func NewStore() *Store {
	return &Store{
		center:        models.NewGoalNode(models.CenterID),
		middles:       make(map[models.NodeID]*models.Collection),
		minors:        make(map[models.NodeID]*models.Collection),
		orphanMiddles: make(map[string]*models.Collection),
		orphanMinors:  make(map[string]*models.Collection),
	}
}

// collection returns the child collection of parent, creating it with
// default children when it does not exist yet.
func (s *Store) collection(parent models.NodeID) (*models.Collection, error) {
	tier, err := parent.Tier()
	if err != nil {
		return nil, err
	}
	var table map[models.NodeID]*models.Collection
	switch tier {
	case models.TierCenter:
		if s.majors == nil {
			c, err := models.NewCollection(parent, s.center.Title)
			if err != nil {
				return nil, err
			}
			s.majors = c
		}
		return s.majors, nil
	case models.TierMajor:
		table = s.middles
	case models.TierMiddle:
		table = s.minors
	default:
		return nil, fmt.Errorf("%w: %s has no children", ErrNodeNotFound, parent)
	}
	if c, ok := table[parent]; ok {
		return c, nil
	}
	p, err := s.node(parent)
	if err != nil {
		return nil, err
	}
	c, err := models.NewCollection(parent, p.Title)
	if err != nil {
		return nil, err
	}
	table[parent] = c
	return c, nil
}

// peekCollection returns an existing collection without materializing it.
func (s *Store) peekCollection(parent models.NodeID) *models.Collection {
	tier, err := parent.Tier()
	if err != nil {
		return nil
	}
	switch tier {
	case models.TierCenter:
		return s.majors
	case models.TierMajor:
		return s.middles[parent]
	case models.TierMiddle:
		return s.minors[parent]
	}
	return nil
}

func (s *Store) node(id models.NodeID) (*models.GoalNode, error) {
	tier, key, err := models.ParseNodeID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	}
	if tier == models.TierCenter {
		return &s.center, nil
	}
	c, err := s.collection(key.Parent)
	if err != nil {
		return nil, err
	}
	if key.Index >= len(c.Nodes) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return &c.Nodes[key.Index], nil
}

// GetNode returns a copy of the node, materializing it if needed.
func (s *Store) GetNode(id models.NodeID) (models.GoalNode, error) {
	n, err := s.node(id)
	if err != nil {
		return models.GoalNode{}, err
	}
	return n.Clone(), nil
}

func (s *Store) SetTitle(id models.NodeID, title string) error {
	n, err := s.node(id)
	if err != nil {
		return err
	}
	n.Title = title
	return nil
}

// SetManualCheck toggles a leaf. The leaf's percent and status mirror the check.
func (s *Store) SetManualCheck(id models.NodeID, checked bool) error {
	tier, err := id.Tier()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	}
	if tier != models.TierMinor {
		return fmt.Errorf("%w: %s", ErrNotLeaf, id)
	}
	n, err := s.node(id)
	if err != nil {
		return err
	}
	n.ManualCheck = checked
	n.CompletionPercent = 0
	n.Status = models.StatusNotStarted
	if checked {
		n.CompletionPercent = 100
		n.Status = models.StatusAchieved
	}
	return nil
}

func (s *Store) SetDerived(id models.NodeID, percent int, status models.Status) error {
	if id == models.CenterID {
		return fmt.Errorf("%w: center has no percent", ErrInvalidPercent)
	}
	if percent < 0 || percent > 100 || !status.Valid() {
		return fmt.Errorf("%w: %d %q", ErrInvalidPercent, percent, status)
	}
	n, err := s.node(id)
	if err != nil {
		return err
	}
	n.CompletionPercent = percent
	n.Status = status
	return nil
}

// SetBinding sets or clears (nil) the metric binding of a major or middle node.
func (s *Store) SetBinding(id models.NodeID, b *models.MetricBinding) error {
	tier, err := id.Tier()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	}
	if tier != models.TierMajor && tier != models.TierMiddle {
		return fmt.Errorf("%w: %s nodes cannot be metric-bound", ErrInvalidBinding, tier)
	}
	if b != nil && (!b.Metric.Valid() || b.Year < 0) {
		return fmt.Errorf("%w: %q/%d", ErrInvalidBinding, b.Metric, b.Year)
	}
	n, err := s.node(id)
	if err != nil {
		return err
	}
	if b == nil {
		n.MetricBinding = nil
		return nil
	}
	bc := *b
	n.MetricBinding = &bc
	return nil
}

// ChildrenOf returns copies of parent's children in position order.
func (s *Store) ChildrenOf(parent models.NodeID) ([]models.GoalNode, error) {
	c, err := s.collection(parent)
	if err != nil {
		return nil, err
	}
	out := make([]models.GoalNode, len(c.Nodes))
	for i, n := range c.Nodes {
		out[i] = n.Clone()
	}
	return out, nil
}

// Orphans returns the storage keys of collections with no live parent.
func (s *Store) Orphans() []string {
	var out []string
	for k := range s.orphanMiddles {
		out = append(out, KeyMiddleCollections+"/"+k)
	}
	for k := range s.orphanMinors {
		out = append(out, KeyMinorCollections+"/"+k)
	}
	sort.Strings(out)
	return out
}

// eachMajor calls fn for every major id in position order.
func eachMajor(fn func(id models.NodeID)) {
	for i := 0; i < models.MajorCount; i++ {
		fn(mustChildID(models.CenterID, i))
	}
}

// eachMiddle calls fn for every middle id under major in position order.
func eachMiddle(major models.NodeID, fn func(id models.NodeID)) {
	for i := 0; i < models.MiddlePerMajor; i++ {
		fn(mustChildID(major, i))
	}
}

func mustChildID(parent models.NodeID, index int) models.NodeID {
	id, err := models.ChildID(parent, index)
	if err != nil {
		panic(err)
	}
	return id
}
