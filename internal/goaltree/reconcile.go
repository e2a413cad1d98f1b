package goaltree

import (
	"github.com/arnold/mandala-api/internal/models"
	"github.com/sirupsen/logrus"
)

// reconcile makes sure every major has a middle collection and every middle
// has a minor collection, and that each collection's ParentTitle mirrors its
// parent's current title. Existing child data is never touched. It returns
// the number of collections created or updated.
func (s *Store) reconcile(log logrus.FieldLogger) (int, error) {
	changed := 0

	mirror := func(title string, c *models.Collection) {
		if c.ParentTitle != title {
			c.ParentTitle = title
			changed++
		}
	}

	if s.majors == nil {
		changed++
	}
	majors, err := s.collection(models.CenterID)
	if err != nil {
		return changed, err
	}
	mirror(s.center.Title, majors)

	for _, major := range majors.Nodes {
		if _, ok := s.middles[major.ID]; !ok {
			changed++
		}
		middles, err := s.collection(major.ID)
		if err != nil {
			return changed, err
		}
		mirror(major.Title, middles)

		for _, middle := range middles.Nodes {
			if _, ok := s.minors[middle.ID]; !ok {
				log.WithField("middle_id", middle.ID).Debug("reconcile: creating minor collection")
				changed++
			}
			minors, err := s.collection(middle.ID)
			if err != nil {
				return changed, err
			}
			mirror(middle.Title, minors)
		}
	}

	for _, key := range s.Orphans() {
		log.WithField("key", key).Warn("reconcile: skipping collection with missing parent")
	}
	return changed, nil
}
