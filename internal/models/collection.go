package models

// Collection is the ordered child set generated by one parent node. ParentTitle
// mirrors the parent's title and is kept in sync by reconciliation.
type Collection struct {
	ParentID    NodeID     `json:"parentId"`
	ParentTitle string     `json:"parentTitle"`
	Nodes       []GoalNode `json:"nodes"`
}

// NewCollection builds a collection of default children for parent.
func NewCollection(parent NodeID, parentTitle string) (*Collection, error) {
	tier, err := parent.Tier()
	if err != nil {
		return nil, err
	}
	n := tier.ChildCount()
	c := &Collection{ParentID: parent, ParentTitle: parentTitle, Nodes: make([]GoalNode, n)}
	for i := 0; i < n; i++ {
		k, err := NewNodeKey(parent, i)
		if err != nil {
			return nil, err
		}
		c.Nodes[i] = NewGoalNode(k.ID())
	}
	return c, nil
}

func (c *Collection) Clone() *Collection {
	out := &Collection{ParentID: c.ParentID, ParentTitle: c.ParentTitle, Nodes: make([]GoalNode, len(c.Nodes))}
	for i, n := range c.Nodes {
		out.Nodes[i] = n.Clone()
	}
	return out
}

// CheckedCount counts leaves with ManualCheck set.
func (c *Collection) CheckedCount() int {
	count := 0
	for _, n := range c.Nodes {
		if n.ManualCheck {
			count++
		}
	}
	return count
}
