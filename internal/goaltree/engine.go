// Package goaltree keeps a three-tier goal tree consistent: it rolls leaf
// checks up into middle and major progress, mirrors parent titles into
// child collections, emits a celebration the first time a node is achieved,
// and persists the result.
//
// An Engine owns one tree. Each write entry point runs the whole pipeline
// (store update, aggregation, reconciliation, detection, persistence)
// before the next write is accepted. Celebrations reach the sinks after the
// engine lock is released.
package goaltree

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arnold/mandala-api/internal/models"
	"github.com/sirupsen/logrus"
)

// MetricsProvider supplies the financial figures metric-bound nodes track.
type MetricsProvider interface {
	PlannedYearlyMetrics(ctx context.Context) ([]models.PlannedYearlyMetrics, error)
	ActualYearlyMetrics(ctx context.Context) ([]models.ActualYearlyMetrics, error)
}

// Observer is told about every pipeline run.
type Observer interface {
	PipelineRun(op string, elapsed time.Duration, err error)
}

type Engine struct {
	mu       sync.Mutex
	store    *Store
	gateway  *Gateway
	notifier *Notifier
	metrics  MetricsProvider
	observer Observer
	log      logrus.FieldLogger
}

type Option func(*Engine)

func WithGateway(g *Gateway) Option {
	return func(e *Engine) { e.gateway = g }
}

func WithMetricsProvider(p MetricsProvider) Option {
	return func(e *Engine) { e.metrics = p }
}

func WithSink(s CelebrationSink) Option {
	return func(e *Engine) { e.notifier.AddSink(s) }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = log
		e.notifier.log = log
	}
}

// New returns an engine over an empty, fully materialized tree. Call Load
// to rehydrate from the gateway.
func New(opts ...Option) *Engine {
	log := logrus.StandardLogger()
	e := &Engine{
		store:    NewStore(),
		notifier: NewNotifier(log),
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := e.store.reconcile(e.log); err != nil {
		panic(err)
	}
	return e
}

// Load replaces the tree with the gateway's stored state, reconciles it and
// refreshes derived values without emitting celebrations.
func (e *Engine) Load(ctx context.Context) error {
	if e.gateway == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.gateway.Load(ctx)
	if err != nil {
		return err
	}
	if _, err := s.reconcile(e.log); err != nil {
		return fmt.Errorf("goaltree: reconcile: %w", err)
	}
	changes, err := s.RecomputeAll()
	if err != nil {
		return fmt.Errorf("goaltree: recompute: %w", err)
	}
	if len(changes) > 0 {
		e.log.WithField("nodes", len(changes)).Info("Load: refreshed stale derived values")
	}
	e.store = s
	if _, err := e.gateway.Save(ctx, s); err != nil {
		return err
	}
	return nil
}

// Snapshot returns a deep copy of the current tree.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.snapshot()
}

// Node returns a copy of one node.
func (e *Engine) Node(id models.NodeID) (models.GoalNode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.GetNode(id)
}

// write runs one pipeline under the engine lock and delivers the resulting
// celebrations after the lock is released, so a slow sink never blocks
// readers or the next write.
func (e *Engine) write(ctx context.Context, op string, reconcile bool, fn func() ([]statusChange, error)) ([]models.Celebration, error) {
	events, err := e.run(ctx, op, reconcile, fn)
	e.notifier.dispatch(ctx, events)
	return events, err
}

func (e *Engine) run(ctx context.Context, op string, reconcile bool, fn func() ([]statusChange, error)) ([]models.Celebration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	changes, err := fn()
	if err != nil {
		return nil, e.observe(op, start, err)
	}
	return e.finish(ctx, op, start, changes, reconcile)
}

// finish runs the tail of the pipeline: optional reconciliation,
// celebration detection and persistence. Delivery is left to the caller.
func (e *Engine) finish(ctx context.Context, op string, start time.Time, changes []statusChange, reconcile bool) ([]models.Celebration, error) {
	if reconcile {
		if n, err := e.store.reconcile(e.log); err != nil {
			return nil, e.observe(op, start, fmt.Errorf("goaltree: reconcile: %w", err))
		} else if n > 0 {
			e.log.WithField("collections", n).Debug("Reconcile: collections updated")
		}
	}
	events := e.notifier.detect(changes)

	var saveErr error
	if e.gateway != nil {
		if _, err := e.gateway.Save(ctx, e.store); err != nil {
			e.log.WithError(err).Error("Gateway: failed to persist tree")
			saveErr = err
		}
	}
	return events, e.observe(op, start, saveErr)
}

func (e *Engine) observe(op string, start time.Time, err error) error {
	if e.observer != nil {
		e.observer.PipelineRun(op, time.Since(start), err)
	}
	return err
}

// SetLeafCheck checks or unchecks a leaf and rolls the change up.
func (e *Engine) SetLeafCheck(ctx context.Context, id models.NodeID, checked bool) ([]models.Celebration, error) {
	return e.write(ctx, "set_leaf_check", false, func() ([]statusChange, error) {
		if err := e.store.SetManualCheck(id, checked); err != nil {
			return nil, err
		}
		return e.store.recomputeFromLeaf(id)
	})
}

// SetNodeTitle renames a node. A non-nil binding replaces the node's metric
// binding; a binding with an empty Metric clears it.
func (e *Engine) SetNodeTitle(ctx context.Context, id models.NodeID, title string, binding *models.MetricBinding) ([]models.Celebration, error) {
	return e.UpdateNode(ctx, id, &title, binding)
}

// UpdateNode applies a title and a binding change in one write. A nil title
// keeps the current one; a nil binding keeps the current binding.
func (e *Engine) UpdateNode(ctx context.Context, id models.NodeID, title *string, binding *models.MetricBinding) ([]models.Celebration, error) {
	tier, err := id.Tier()
	if err != nil {
		return nil, e.observe("set_node_title", time.Now(), fmt.Errorf("%w: %v", ErrNodeNotFound, err))
	}
	return e.write(ctx, "set_node_title", tier != models.TierMinor, func() ([]statusChange, error) {
		if binding != nil {
			var b *models.MetricBinding
			if binding.Metric != "" {
				b = binding
			}
			if err := e.store.SetBinding(id, b); err != nil {
				return nil, err
			}
		}
		if title != nil {
			if err := e.store.SetTitle(id, *title); err != nil {
				return nil, err
			}
		} else if _, err := e.store.node(id); err != nil {
			return nil, err
		}
		if binding == nil {
			return nil, nil
		}
		// An unbound node falls back to its children.
		return e.store.RecomputeAll()
	})
}

// SetMetricPercent writes an externally supplied percent to a metric-bound node.
func (e *Engine) SetMetricPercent(ctx context.Context, id models.NodeID, percent int) ([]models.Celebration, error) {
	return e.write(ctx, "set_metric_percent", false, func() ([]statusChange, error) {
		if percent < 0 || percent > 100 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidPercent, percent)
		}
		return e.applyMetricPercent(id, percent)
	})
}

// applyMetricPercent updates a bound node and, for a middle node, its major.
func (e *Engine) applyMetricPercent(id models.NodeID, percent int) ([]statusChange, error) {
	n, err := e.store.node(id)
	if err != nil {
		return nil, err
	}
	if n.MetricBinding == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMetricBound, id)
	}
	tier, _ := id.Tier()
	var changes []statusChange
	ch, err := e.store.applyDerived(id, tier, percent)
	if err != nil {
		return nil, err
	}
	if ch != nil {
		changes = append(changes, *ch)
	}
	if tier == models.TierMiddle {
		major, _ := id.Parent()
		ch, err := e.store.recomputeMajor(major)
		if err != nil {
			return nil, err
		}
		if ch != nil {
			changes = append(changes, *ch)
		}
	}
	return changes, nil
}

// OnYearlyActualMetricsChanged feeds new actual figures for a year into the
// nodes bound to them. Negative or non-finite values reject the whole update
// and nothing is applied. It reports whether any bound node changed.
func (e *Engine) OnYearlyActualMetricsChanged(ctx context.Context, year int, update models.ActualMetricsUpdate) (bool, error) {
	values := update.Values()
	if year <= 0 {
		return false, fmt.Errorf("%w: year %d", ErrInvalidMetricValue, year)
	}
	if err := update.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidMetricValue, err)
	}
	if len(values) == 0 || e.metrics == nil {
		return false, nil
	}
	planned, err := e.metrics.PlannedYearlyMetrics(ctx)
	if err != nil {
		return false, fmt.Errorf("goaltree: load planned metrics: %w", err)
	}

	var changed bool
	_, err = e.write(ctx, "metrics_changed", false, func() ([]statusChange, error) {
		changes, err := e.applyMetrics(year, values, planned)
		if err != nil {
			return nil, err
		}
		changed = len(changes) > 0
		return changes, nil
	})
	return changed, err
}

// SyncMetrics reapplies every stored year of actual figures, used at startup.
func (e *Engine) SyncMetrics(ctx context.Context) (bool, error) {
	if e.metrics == nil {
		return false, nil
	}
	actuals, err := e.metrics.ActualYearlyMetrics(ctx)
	if err != nil {
		return false, fmt.Errorf("goaltree: load actual metrics: %w", err)
	}
	updated := false
	for _, a := range actuals {
		ok, err := e.OnYearlyActualMetricsChanged(ctx, a.Year, models.ActualMetricsUpdate{
			RevenueActual:         &a.RevenueActual,
			GrossProfitActual:     &a.GrossProfitActual,
			OperatingProfitActual: &a.OperatingProfitActual,
		})
		if err != nil {
			e.log.WithError(err).WithField("year", a.Year).Warn("Metrics: skipping stored actuals")
			continue
		}
		updated = updated || ok
	}
	return updated, nil
}

func (e *Engine) applyMetrics(year int, values map[models.MetricKind]float64, planned []models.PlannedYearlyMetrics) ([]statusChange, error) {
	var plan *models.PlannedYearlyMetrics
	for i := range planned {
		if planned[i].Year == year {
			plan = &planned[i]
			break
		}
	}
	if plan == nil {
		e.log.WithField("year", year).Info("Metrics: no plan for year, nothing to track against")
		return nil, nil
	}

	var bound []models.NodeID
	eachMajor(func(major models.NodeID) {
		bound = append(bound, major)
		eachMiddle(major, func(middle models.NodeID) {
			bound = append(bound, middle)
		})
	})

	// Reverse order visits every major after its own middles.
	var changes []statusChange
	for i := len(bound) - 1; i >= 0; i-- {
		id := bound[i]
		n, err := e.store.node(id)
		if err != nil {
			return nil, err
		}
		b := n.MetricBinding
		if b == nil || !b.Follows(year) {
			continue
		}
		v, ok := values[b.Metric]
		if !ok {
			continue
		}
		target := plan.Target(b.Metric)
		if target <= 0 {
			e.log.WithFields(logrus.Fields{"year": year, "metric": b.Metric}).Warn("Metrics: target is not positive, skipping")
			continue
		}
		chs, err := e.applyMetricPercent(id, ratioPercent(v, target))
		if err != nil {
			return nil, err
		}
		changes = append(changes, chs...)
	}
	return changes, nil
}

// LeafChanged reports whether a leaf differs from its last checkpoint.
func (e *Engine) LeafChanged(ctx context.Context, id models.NodeID) (bool, error) {
	leaf, err := e.leaf(id)
	if err != nil {
		return false, err
	}
	if e.gateway == nil {
		return false, nil
	}
	return e.gateway.LeafChanged(ctx, leaf)
}

// SaveCheckpoint records a leaf's current values after the user confirms them.
func (e *Engine) SaveCheckpoint(ctx context.Context, id models.NodeID) error {
	leaf, err := e.leaf(id)
	if err != nil {
		return err
	}
	if e.gateway == nil {
		return nil
	}
	return e.gateway.SaveCheckpoint(ctx, leaf)
}

func (e *Engine) leaf(id models.NodeID) (models.GoalNode, error) {
	tier, err := id.Tier()
	if err != nil {
		return models.GoalNode{}, fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	}
	if tier != models.TierMinor {
		return models.GoalNode{}, fmt.Errorf("%w: %s", ErrNotLeaf, id)
	}
	return e.Node(id)
}
