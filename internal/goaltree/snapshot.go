package goaltree

import "github.com/arnold/mandala-api/internal/models"

// Snapshot is a read-only deep copy of the tree for the presentation layer.
type Snapshot struct {
	CenterGoal string          `json:"centerGoal"`
	Majors     []MajorSnapshot `json:"majors"`
}

type MajorSnapshot struct {
	models.GoalNode
	Middles []MiddleSnapshot `json:"middles"`
}

type MiddleSnapshot struct {
	models.GoalNode
	Minors []models.GoalNode `json:"minors"`
}

// childrenOrDefault copies an existing collection or returns defaults
// without materializing anything in the store.
func (s *Store) childrenOrDefault(parent models.NodeID) []models.GoalNode {
	c := s.peekCollection(parent)
	if c == nil {
		var err error
		if c, err = models.NewCollection(parent, ""); err != nil {
			return nil
		}
	}
	return c.Clone().Nodes
}

func (s *Store) snapshot() Snapshot {
	snap := Snapshot{CenterGoal: s.center.Title}
	for _, major := range s.childrenOrDefault(models.CenterID) {
		ms := MajorSnapshot{GoalNode: major}
		for _, middle := range s.childrenOrDefault(major.ID) {
			ms.Middles = append(ms.Middles, MiddleSnapshot{
				GoalNode: middle,
				Minors:   s.childrenOrDefault(middle.ID),
			})
		}
		snap.Majors = append(snap.Majors, ms)
	}
	return snap
}
