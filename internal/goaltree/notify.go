package goaltree

import (
	"context"
	"time"

	"github.com/arnold/mandala-api/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CelebrationSink consumes celebration events. Sinks run outside the engine
// lock and may be called concurrently by different writes.
type CelebrationSink interface {
	Celebrate(ctx context.Context, c models.Celebration) error
}

// SinkFunc adapts a function to CelebrationSink.
type SinkFunc func(ctx context.Context, c models.Celebration) error

func (f SinkFunc) Celebrate(ctx context.Context, c models.Celebration) error {
	return f(ctx, c)
}

// Notifier turns status changes into celebration events.
//
// A node celebrates when its status moves into achieved. Middle and major
// nodes lock on achieve, so each celebrates at most once. Leaves never
// celebrate: their checkmark is the feedback and their status follows the
// check both ways. Every tier that transitions in the same run emits its own
// event.
type Notifier struct {
	sinks []CelebrationSink
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewNotifier(log logrus.FieldLogger) *Notifier {
	return &Notifier{log: log, now: time.Now}
}

func (n *Notifier) AddSink(s CelebrationSink) {
	n.sinks = append(n.sinks, s)
}

// detect returns one event per change into achieved, in change order.
func (n *Notifier) detect(changes []statusChange) []models.Celebration {
	var events []models.Celebration
	for _, ch := range changes {
		if ch.Tier == models.TierMinor || ch.Tier == models.TierCenter {
			continue
		}
		if ch.Before.Status == models.StatusAchieved || ch.After.Status != models.StatusAchieved {
			continue
		}
		events = append(events, models.Celebration{
			ID:        uuid.New(),
			NodeID:    ch.After.ID,
			GoalTitle: ch.After.Title,
			Tier:      ch.Tier,
			Percent:   ch.After.CompletionPercent,
			At:        n.now(),
		})
	}
	return events
}

// dispatch delivers events to every sink. A failing sink is logged and
// does not stop delivery to the others.
func (n *Notifier) dispatch(ctx context.Context, events []models.Celebration) {
	for _, e := range events {
		n.log.WithFields(logrus.Fields{
			"node_id": e.NodeID,
			"tier":    e.Tier,
		}).Infof("Celebration: %q achieved", e.GoalTitle)
		for _, s := range n.sinks {
			if err := s.Celebrate(ctx, e); err != nil {
				n.log.WithError(err).WithField("node_id", e.NodeID).Warn("Celebration: sink failed")
			}
		}
	}
}
