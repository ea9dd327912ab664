package rules

import (
	"time"

	"yolo-guard/internal/alert"
	"yolo-guard/internal/metrics"
	"yolo-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// Config holds the engine tunables. A zero value is usable after
// applyDefaults; construct engines with explicit configs so tests and
// multiple monitor instances stay isolated.
type Config struct {
	// Classes is the allow-list of class names; empty means all classes
	Classes []string
	// MinConfidence drops rows below this confidence
	MinConfidence float64
	// RepeatWithin suppresses repeated alerts for the same (class, bbox)
	RepeatWithin time.Duration
	// CountWindow is the span of the per-class sliding window
	CountWindow time.Duration
	// CountThreshold is the window length that triggers an aggregate alert
	CountThreshold int
}

// DefaultConfig returns the stock tunables
func DefaultConfig() Config {
	return Config{
		MinConfidence:  0.30,
		RepeatWithin:   5 * time.Second,
		CountWindow:    10 * time.Second,
		CountThreshold: 5,
	}
}

func (c *Config) applyDefaults() {
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.30
	}
	if c.RepeatWithin <= 0 {
		c.RepeatWithin = 5 * time.Second
	}
	if c.CountWindow <= 0 {
		c.CountWindow = 10 * time.Second
	}
	if c.CountThreshold <= 0 {
		c.CountThreshold = 5
	}
}

// Engine is the stateful per-row decision unit: class and confidence
// filtering, duplicate suppression keyed on (class, bbox), and
// per-class sliding-window burst detection. State is owned by a single
// monitor loop; Process is not safe for concurrent use.
type Engine struct {
	config    Config
	classes   map[string]bool
	notifiers []alert.Notifier

	// suppression maps (class, bbox) to the last dispatched alert time.
	// Entries older than the suppression horizon are evicted as rows
	// advance, so the map stays bounded over long runs.
	suppression map[model.AlertKey]time.Time
	// windows maps class to the timestamps of recent qualifying rows,
	// ordered by arrival
	windows map[string][]time.Time
	// newest is the largest row timestamp observed, the reference point
	// for eviction
	newest time.Time

	logger  *logrus.Logger
	metrics *metrics.MonitorMetrics
}

// NewEngine creates an engine with the given tunables
func NewEngine(config Config, logger *logrus.Logger, m *metrics.MonitorMetrics) *Engine {
	config.applyDefaults()

	var classes map[string]bool
	if len(config.Classes) > 0 {
		classes = make(map[string]bool, len(config.Classes))
		for _, c := range config.Classes {
			classes[c] = true
		}
	}

	return &Engine{
		config:      config,
		classes:     classes,
		suppression: make(map[model.AlertKey]time.Time),
		windows:     make(map[string][]time.Time),
		logger:      logger,
		metrics:     m,
	}
}

// RegisterNotifier adds a delivery channel. Dispatch succeeds only when
// every registered notifier accepts the alert.
func (e *Engine) RegisterNotifier(n alert.Notifier) {
	e.notifiers = append(e.notifiers, n)
}

// Process runs the decision state machine for one row and dispatches
// the resulting alert, if any. It returns the dispatched alert, or nil
// when the row was filtered, suppressed, or delivery failed. On
// delivery failure the row's effect on suppression and window state is
// rolled back so a later duplicate can retry.
func (e *Engine) Process(row *model.DetectionRow) *model.Alert {
	if row == nil {
		return nil
	}

	if e.classes != nil && !e.classes[row.Class] {
		return nil
	}

	if row.Confidence < e.config.MinConfidence {
		return nil
	}

	if row.Timestamp.After(e.newest) {
		e.newest = row.Timestamp
	}
	e.evict()

	key := model.KeyFor(row)
	if prior, ok := e.suppression[key]; ok && row.Timestamp.Sub(prior) < e.config.RepeatWithin {
		if e.metrics != nil {
			e.metrics.AlertsSuppressed.Inc()
		}
		e.logger.Debugf("Suppressed duplicate %s at %s", row.Class, key.BBoxKey)
		return nil
	}

	// Accumulate into the class window, then prune entries that fell
	// out of the count window relative to this row's timestamp
	window := append(e.windows[row.Class], row.Timestamp)
	cutoff := row.Timestamp.Add(-e.config.CountWindow)
	for len(window) > 0 && window[0].Before(cutoff) {
		window = window[1:]
	}
	e.windows[row.Class] = window

	var a model.Alert
	if len(window) >= e.config.CountThreshold {
		a = model.NewAggregateAlert(row, len(window), e.config.CountWindow)
	} else {
		a = model.NewSingleAlert(row)
	}

	if err := e.dispatch(a); err != nil {
		// Roll back this row's window append; suppression was never
		// recorded, so a later duplicate still gets its attempt.
		e.windows[row.Class] = window[:len(window)-1]
		if e.metrics != nil {
			e.metrics.DispatchFailures.WithLabelValues(a.Type, a.Class).Inc()
		}
		e.logger.Errorf("Failed to dispatch %s alert for %s: %v", a.Type, a.Class, err)
		return nil
	}

	if a.Type == model.AlertTypeAggregate {
		// Clearing the window keeps the aggregate from refiring on
		// every subsequent row above the threshold
		e.windows[row.Class] = nil
	}
	e.suppression[key] = row.Timestamp

	if e.metrics != nil {
		e.metrics.AlertsDispatched.WithLabelValues(a.Type, a.Class).Inc()
	}
	return &a
}

func (e *Engine) dispatch(a model.Alert) error {
	for _, n := range e.notifiers {
		if err := n.SendAlert(a); err != nil {
			return err
		}
	}
	return nil
}

// evict drops suppression entries too old to ever suppress again.
// The horizon is the larger of the two windows measured from the
// newest row timestamp, so alert decisions are unchanged.
func (e *Engine) evict() {
	horizon := e.config.RepeatWithin
	if e.config.CountWindow > horizon {
		horizon = e.config.CountWindow
	}
	cutoff := e.newest.Add(-horizon)
	for key, ts := range e.suppression {
		if ts.Before(cutoff) {
			delete(e.suppression, key)
		}
	}
}
