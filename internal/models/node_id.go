package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Fixed branching of the goal tree.
const (
	MajorCount     = 8
	MiddlePerMajor = 8
	MinorPerMiddle = 10
)

// CenterID is the root of every tree.
const CenterID NodeID = "center"

var ErrInvalidNodeID = errors.New("invalid node id")

type Tier string

const (
	TierCenter Tier = "center"
	TierMajor  Tier = "major"
	TierMiddle Tier = "middle"
	TierMinor  Tier = "minor"
)

// childTier returns the tier one level below t, or "" for leaves.
func (t Tier) childTier() Tier {
	switch t {
	case TierCenter:
		return TierMajor
	case TierMajor:
		return TierMiddle
	case TierMiddle:
		return TierMinor
	}
	return ""
}

// ChildCount is the fixed number of children a node of tier t has.
func (t Tier) ChildCount() int {
	switch t {
	case TierCenter:
		return MajorCount
	case TierMajor:
		return MiddlePerMajor
	case TierMiddle:
		return MinorPerMiddle
	}
	return 0
}

// NodeID identifies a node anywhere in the tree. Ids are dot-separated
// positions under the center: "center", "center.3", "center.3.5", "center.3.5.9".
type NodeID string

// NodeKey addresses a child by its parent and its position under that parent.
type NodeKey struct {
	Parent NodeID
	Index  int
}

// NewNodeKey validates that parent can have children and that index is
// within the parent's fixed branching.
func NewNodeKey(parent NodeID, index int) (NodeKey, error) {
	tier, err := parent.Tier()
	if err != nil {
		return NodeKey{}, err
	}
	n := tier.ChildCount()
	if n == 0 {
		return NodeKey{}, fmt.Errorf("%w: %s has no children", ErrInvalidNodeID, parent)
	}
	if index < 0 || index >= n {
		return NodeKey{}, fmt.Errorf("%w: index %d out of range for %s", ErrInvalidNodeID, index, parent)
	}
	return NodeKey{Parent: parent, Index: index}, nil
}

// ID is the only way child ids are generated.
func (k NodeKey) ID() NodeID {
	return NodeID(string(k.Parent) + "." + strconv.Itoa(k.Index))
}

// ChildID is NewNodeKey(parent, index).ID() for callers iterating over a
// known-good parent.
func ChildID(parent NodeID, index int) (NodeID, error) {
	k, err := NewNodeKey(parent, index)
	if err != nil {
		return "", err
	}
	return k.ID(), nil
}

// ParseNodeID validates id and returns its tier and, for non-center ids, its key.
func ParseNodeID(id NodeID) (Tier, NodeKey, error) {
	parts := strings.Split(string(id), ".")
	if parts[0] != string(CenterID) {
		return "", NodeKey{}, fmt.Errorf("%w: %q", ErrInvalidNodeID, id)
	}
	tier := TierCenter
	parent := CenterID
	var key NodeKey
	for _, p := range parts[1:] {
		idx, err := strconv.Atoi(p)
		if err != nil || strconv.Itoa(idx) != p {
			return "", NodeKey{}, fmt.Errorf("%w: %q", ErrInvalidNodeID, id)
		}
		key, err = NewNodeKey(parent, idx)
		if err != nil {
			return "", NodeKey{}, fmt.Errorf("%w: %q", ErrInvalidNodeID, id)
		}
		parent = key.ID()
		tier = tier.childTier()
	}
	return tier, key, nil
}

// Tier returns the tier of a valid id.
func (id NodeID) Tier() (Tier, error) {
	tier, _, err := ParseNodeID(id)
	return tier, err
}

// Parent returns the parent id; the center has none.
func (id NodeID) Parent() (NodeID, error) {
	tier, key, err := ParseNodeID(id)
	if err != nil {
		return "", err
	}
	if tier == TierCenter {
		return "", fmt.Errorf("%w: center has no parent", ErrInvalidNodeID)
	}
	return key.Parent, nil
}
