// Package backfill implements the Backfill Controller (C11): decides
// whether a failed quality gate warrants another evidence-gathering
// attempt, generates targeted queries to close the specific shortfall, and
// drives the attempt loop back through the caller's re-run callback.
package backfill

import (
	"context"
	"time"

	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/model"
)

var logger = logging.GetLogger("backfill")

const (
	// defaultMaxAttempts bounds the retry loop (spec §4.11).
	defaultMaxAttempts = 3
	// minTimeRemainingFraction is the floor on remaining wall-time budget
	// below which no further attempt is allowed.
	minTimeRemainingFraction = 0.20
	// lastMileMarginPP is the "within-5pp" shortfall window: triangulation
	// short of its threshold by at most this much, with the other metrics
	// within it too, plus attempt >= 2 and enough time left, triggers one
	// more pass (spec §4.11).
	lastMileMarginPP = 0.05
)

// Options configures one Controller (spec §4.11 preconditions/triggers).
type Options struct {
	StrictMode           bool
	RetryBudget          int // explicit retry budget; > 0 allows attempts in strict mode (MaxAttempts still applies)
	MaxAttempts          int
	TopicKey             string
	MaxQueriesPerAttempt int
}

// DefaultOptions returns the spec §4.11 defaults.
func DefaultOptions() Options {
	return Options{MaxAttempts: defaultMaxAttempts, MaxQueriesPerAttempt: 6, TopicKey: "general"}
}

// Controller drives the backfill attempt loop.
type Controller struct {
	opts Options
}

// New creates a Controller with the given options.
func New(opts Options) *Controller {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.MaxQueriesPerAttempt <= 0 {
		opts.MaxQueriesPerAttempt = 6
	}
	if opts.TopicKey == "" {
		opts.TopicKey = "general"
	}
	return &Controller{opts: opts}
}

// CanAttempt checks the spec §4.11 preconditions: strict mode disabled or
// an explicit retry budget, attempts below the max, and at least 20% of
// the wall-time budget remaining.
func (c *Controller) CanAttempt(attempt int, timeRemainingFraction float64) bool {
	if c.opts.StrictMode && c.opts.RetryBudget <= 0 {
		return false
	}
	if attempt >= c.opts.MaxAttempts {
		return false
	}
	return timeRemainingFraction >= minTimeRemainingFraction
}

// ShouldTrigger reports whether any of the spec §4.11 trigger conditions
// hold for the given gate decision, attempt number, and remaining budget.
func ShouldTrigger(decision model.GateDecision, attempt int, timeRemainingFraction float64) bool {
	m := decision.Metrics
	t := decision.Thresholds

	if m.UnionTriangulation < t.MinTriangulation {
		return true
	}
	if m.PrimaryShare < t.MinPrimaryShare {
		return true
	}
	if m.Cards < t.MinSources {
		return true
	}
	if lastMileShortfall(decision) && attempt >= 2 && timeRemainingFraction >= minTimeRemainingFraction {
		return true
	}
	return false
}

// lastMileShortfall reports whether every metric is within lastMileMarginPP
// of its threshold — close enough that one more small pass could tip the
// gate, per spec §4.11's "within-5pp last-mile shortfall" trigger.
func lastMileShortfall(decision model.GateDecision) bool {
	m := decision.Metrics
	t := decision.Thresholds

	triGap := t.MinTriangulation - m.UnionTriangulation
	primGap := t.MinPrimaryShare - m.PrimaryShare
	cardsGap := float64(t.MinSources-m.Cards) / float64(max(1, t.MinSources))

	return triGap > 0 && triGap <= lastMileMarginPP &&
		primGap <= lastMileMarginPP &&
		cardsGap <= lastMileMarginPP
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Shortfall describes which gate predicate is failing, used to pick the
// right query-expansion strategy (spec §4.11).
type Shortfall string

const (
	ShortfallTriangulation Shortfall = "triangulation"
	ShortfallPrimaryShare  Shortfall = "primary_share"
	ShortfallCardCount     Shortfall = "card_count"
)

// Shortfalls lists, in priority order, which gate predicates are currently
// failing for decision.
func Shortfalls(decision model.GateDecision) []Shortfall {
	m := decision.Metrics
	t := decision.Thresholds
	var out []Shortfall
	if m.UnionTriangulation < t.MinTriangulation {
		out = append(out, ShortfallTriangulation)
	}
	if m.PrimaryShare < t.MinPrimaryShare {
		out = append(out, ShortfallPrimaryShare)
	}
	if m.Cards < t.MinSources {
		out = append(out, ShortfallCardCount)
	}
	return out
}

// RoundFunc issues a batch of targeted queries through the dispatcher and
// the rest of the evidence pipeline (C4→C5→C6→C7, then C8/C9/C10), and
// returns the updated gate decision. The
// Controller is intentionally decoupled from internal/dispatch and
// internal/evidence so it can be tested without wiring the whole pipeline.
type RoundFunc func(ctx context.Context, queries []TargetedQuery) (model.GateDecision, error)

// TargetedQuery pairs a generated query string with the axis/purpose that
// produced it, for logging and for the report's "why we searched this"
// trail.
type TargetedQuery struct {
	Axis  string
	Query string
}

// Budget tracks the run's wall-clock allowance so the Controller can
// compute the "time_remaining >= 20%" precondition (spec §4.11).
type Budget struct {
	Start    time.Time
	Deadline time.Time
}

// RemainingFraction returns the fraction of the budget still unspent, in
// [0,1]. A zero-value Budget (no deadline configured) always reports 1.0.
func (b Budget) RemainingFraction(now time.Time) float64 {
	if b.Deadline.IsZero() || b.Start.IsZero() || !b.Deadline.After(b.Start) {
		return 1.0
	}
	total := b.Deadline.Sub(b.Start)
	remaining := b.Deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	if remaining >= total {
		return 1.0
	}
	return float64(remaining) / float64(total)
}

// Run drives the attempt loop: while preconditions hold, the trigger
// fires, and round returns a still-failing decision, generate targeted
// queries and call round again. Stops on gate-pass, attempts exhausted, or
// deadline (spec §4.11: "Break on gates-pass, attempts exceeded, or
// time-out").
func (c *Controller) Run(ctx context.Context, topic string, decision model.GateDecision, budget Budget, round RoundFunc) model.GateDecision {
	attempt := 0
	for {
		if decision.AllowFinalReport {
			return decision
		}
		timeRemaining := budget.RemainingFraction(time.Now())
		if !c.CanAttempt(attempt, timeRemaining) {
			logger.Info("backfill stopping: attempt=%d time_remaining=%.2f", attempt, timeRemaining)
			return decision
		}
		if !ShouldTrigger(decision, attempt, timeRemaining) {
			return decision
		}

		queries := GenerateQueries(topic, c.opts.TopicKey, decision, c.opts.MaxQueriesPerAttempt)
		if len(queries) == 0 {
			return decision
		}

		attempt++
		logger.Info("backfill attempt %d: issuing %d targeted queries", attempt, len(queries))
		next, err := round(ctx, queries)
		if err != nil {
			logger.Warn("backfill attempt %d failed: %v", attempt, err)
			return decision
		}
		decision = next
	}
}
