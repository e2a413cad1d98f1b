package goaltree

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arnold/mandala-api/internal/models"
	"github.com/arnold/mandala-api/internal/storage"
	"github.com/sirupsen/logrus"
)

// Logical storage keys.
const (
	KeyCenterGoal        = "center_goal"
	KeyMajorNodes        = "major_nodes"
	KeyMiddleCollections = "middle_node_collections"
	KeyMinorCollections  = "minor_leaf_collections"

	checkpointPrefix = "leaf_checkpoint/"
)

var treeKeys = []string{KeyCenterGoal, KeyMajorNodes, KeyMiddleCollections, KeyMinorCollections}

// collectionRecord is the stored form of a middle or minor collection.
type collectionRecord struct {
	ParentTitle string            `json:"parentTitle"`
	Nodes       []models.GoalNode `json:"nodes"`
}

// UnmarshalJSON also accepts a bare node array.
func (r *collectionRecord) UnmarshalJSON(data []byte) error {
	if t := bytes.TrimSpace(data); len(t) > 0 && t[0] == '[' {
		r.ParentTitle = ""
		return json.Unmarshal(t, &r.Nodes)
	}
	type plain collectionRecord
	return json.Unmarshal(data, (*plain)(r))
}

type checkpointRecord struct {
	Title       string    `json:"title"`
	ManualCheck bool      `json:"manualCheck"`
	SavedAt     time.Time `json:"savedAt"`
}

// Gateway serializes a Store into storage under the logical keys and
// rehydrates it. Bad stored data degrades to defaults for the affected
// subtree only.
type Gateway struct {
	storage storage.Storage
	log     logrus.FieldLogger
	saved   map[string][]byte
}

func NewGateway(s storage.Storage, log logrus.FieldLogger) *Gateway {
	return &Gateway{storage: s, log: log, saved: make(map[string][]byte)}
}

// read returns the stored bytes for key, or nil when the key is missing.
func (g *Gateway) read(ctx context.Context, key string) ([]byte, error) {
	raw, err := g.storage.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("goaltree: read %s: %w", key, err)
	}
	g.saved[key] = raw
	return raw, nil
}

func (g *Gateway) malformed(key string, err error) {
	g.log.WithError(err).WithField("key", key).Warn("Gateway: malformed stored data, using defaults")
}

// Load rebuilds a Store from storage. Missing and malformed keys fall back
// to defaults; only a failing storage backend returns an error.
func (g *Gateway) Load(ctx context.Context) (*Store, error) {
	s := NewStore()

	raw, err := g.read(ctx, KeyCenterGoal)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		var center models.GoalNode
		if err := json.Unmarshal(raw, &center); err != nil {
			g.malformed(KeyCenterGoal, err)
		} else {
			s.center.Title = center.Title
		}
	}

	raw, err = g.read(ctx, KeyMajorNodes)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		var nodes []models.GoalNode
		if err := json.Unmarshal(raw, &nodes); err != nil {
			g.malformed(KeyMajorNodes, err)
		} else {
			s.majors = g.normalize(KeyMajorNodes, models.CenterID, s.center.Title, nodes)
		}
	}

	if err := g.loadCollections(ctx, KeyMiddleCollections, models.TierMajor, s.middles, s.orphanMiddles); err != nil {
		return nil, err
	}
	if err := g.loadCollections(ctx, KeyMinorCollections, models.TierMiddle, s.minors, s.orphanMinors); err != nil {
		return nil, err
	}
	return s, nil
}

// loadCollections decodes a map of collections keyed by parent id. Each
// entry is decoded on its own so one bad entry only loses that collection.
func (g *Gateway) loadCollections(ctx context.Context, key string, parentTier models.Tier,
	into map[models.NodeID]*models.Collection, orphans map[string]*models.Collection) error {
	raw, err := g.read(ctx, key)
	if err != nil || raw == nil {
		return err
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		g.malformed(key, err)
		return nil
	}
	for parentKey, payload := range entries {
		entryKey := key + "/" + parentKey
		var rec collectionRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			g.malformed(entryKey, err)
			continue
		}
		parent := models.NodeID(parentKey)
		if tier, err := parent.Tier(); err != nil || tier != parentTier {
			g.log.WithField("key", entryKey).Warn("Gateway: collection has no parent in tier " + string(parentTier))
			orphans[parentKey] = &models.Collection{ParentID: parent, ParentTitle: rec.ParentTitle, Nodes: rec.Nodes}
			continue
		}
		into[parent] = g.normalize(entryKey, parent, rec.ParentTitle, rec.Nodes)
	}
	return nil
}

// normalize fits stored nodes to parent's fixed branching and restores the
// per-node invariants. Position is authoritative for ids.
func (g *Gateway) normalize(key string, parent models.NodeID, parentTitle string, nodes []models.GoalNode) *models.Collection {
	c, err := models.NewCollection(parent, parentTitle)
	if err != nil {
		// parent was validated by the caller
		panic(err)
	}
	if len(nodes) != len(c.Nodes) {
		g.log.WithFields(logrus.Fields{"key": key, "have": len(nodes), "want": len(c.Nodes)}).
			Warn("Gateway: collection size mismatch, padding or truncating")
	}
	for i := range c.Nodes {
		if i >= len(nodes) {
			break
		}
		want := c.Nodes[i].ID
		n := nodes[i]
		if n.ID != "" && n.ID != want {
			g.log.WithFields(logrus.Fields{"key": key, "stored": n.ID, "position": want}).
				Warn("Gateway: node id does not match its position")
		}
		n.ID = want
		c.Nodes[i] = g.normalizeNode(key, n)
	}
	return c
}

func (g *Gateway) normalizeNode(key string, n models.GoalNode) models.GoalNode {
	tier, _ := n.ID.Tier()
	if n.CompletionPercent < 0 {
		n.CompletionPercent = 0
	}
	if n.CompletionPercent > 100 {
		n.CompletionPercent = 100
	}
	if !n.Status.Valid() {
		n.Status = models.StatusForPercent(n.CompletionPercent)
	}
	if tier == models.TierMinor {
		n.MetricBinding = nil
		n.CompletionPercent = 0
		n.Status = models.StatusNotStarted
		if n.ManualCheck {
			n.CompletionPercent = 100
			n.Status = models.StatusAchieved
		}
		return n
	}
	n.ManualCheck = false
	if n.MetricBinding != nil && (!n.MetricBinding.Metric.Valid() || n.MetricBinding.Year < 0) {
		g.log.WithFields(logrus.Fields{"key": key, "node_id": n.ID}).Warn("Gateway: dropping invalid metric binding")
		n.MetricBinding = nil
	}
	return n
}

// encode serializes every logical key of s.
func encode(s *Store) (map[string][]byte, error) {
	out := make(map[string][]byte, len(treeKeys))
	var err error

	if out[KeyCenterGoal], err = json.Marshal(s.center); err != nil {
		return nil, err
	}

	majors := s.majors
	if majors == nil {
		if majors, err = models.NewCollection(models.CenterID, s.center.Title); err != nil {
			return nil, err
		}
	}
	if out[KeyMajorNodes], err = json.Marshal(majors.Nodes); err != nil {
		return nil, err
	}

	if out[KeyMiddleCollections], err = encodeCollections(s.middles, s.orphanMiddles); err != nil {
		return nil, err
	}
	if out[KeyMinorCollections], err = encodeCollections(s.minors, s.orphanMinors); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeCollections(live map[models.NodeID]*models.Collection, orphans map[string]*models.Collection) ([]byte, error) {
	recs := make(map[string]collectionRecord, len(live)+len(orphans))
	for k, c := range orphans {
		recs[k] = collectionRecord{ParentTitle: c.ParentTitle, Nodes: c.Nodes}
	}
	for id, c := range live {
		recs[string(id)] = collectionRecord{ParentTitle: c.ParentTitle, Nodes: c.Nodes}
	}
	return json.Marshal(recs)
}

// Save writes the keys whose serialized form changed since the last load or
// save and returns how many were written.
func (g *Gateway) Save(ctx context.Context, s *Store) (int, error) {
	payloads, err := encode(s)
	if err != nil {
		return 0, fmt.Errorf("goaltree: encode tree: %w", err)
	}
	written := 0
	for _, key := range treeKeys {
		if prev, ok := g.saved[key]; ok && bytes.Equal(prev, payloads[key]) {
			continue
		}
		if err := g.storage.Put(ctx, key, payloads[key]); err != nil {
			return written, fmt.Errorf("goaltree: write %s: %w", key, err)
		}
		g.saved[key] = payloads[key]
		written++
	}
	return written, nil
}

func checkpointKey(id models.NodeID) string {
	return checkpointPrefix + string(id)
}

// LeafChanged compares a leaf with its last checkpoint. A leaf that was never
// checkpointed is compared with the default leaf.
func (g *Gateway) LeafChanged(ctx context.Context, leaf models.GoalNode) (bool, error) {
	key := checkpointKey(leaf.ID)
	raw, err := g.storage.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return leaf.Title != "" || leaf.ManualCheck, nil
	}
	if err != nil {
		return false, fmt.Errorf("goaltree: read %s: %w", key, err)
	}
	var rec checkpointRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		g.malformed(key, err)
		return true, nil
	}
	return rec.Title != leaf.Title || rec.ManualCheck != leaf.ManualCheck, nil
}

// SaveCheckpoint stores the leaf's current values.
func (g *Gateway) SaveCheckpoint(ctx context.Context, leaf models.GoalNode) error {
	raw, err := json.Marshal(checkpointRecord{Title: leaf.Title, ManualCheck: leaf.ManualCheck, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := g.storage.Put(ctx, checkpointKey(leaf.ID), raw); err != nil {
		return fmt.Errorf("goaltree: write checkpoint %s: %w", leaf.ID, err)
	}
	return nil
}
