// Package dispatch implements the Parallel Dispatcher (spec §4.4, C4):
// concurrent fan-out of one query batch across providers, with
// per-provider isolation and deadline propagation.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/providers"
)

var logger = logging.GetLogger("dispatch.fanout")

// Caller is the narrow surface the dispatcher needs from
// internal/providers.Registry — just enough to fan out a call and record
// its outcome, so this package can be tested against a fake.
type Caller interface {
	Call(ctx context.Context, state *providers.RunProviderState, tag, query string, count int, freshness, region string) ([]providers.Hit, error)
}

// Request describes one query to fan out to a set of providers.
type Request struct {
	Query      string
	Providers  []string
	Count      int
	Freshness  string
	Region     string
}

// Result is one provider's outcome for one dispatched query. Err is set on
// failure; Hits is always non-nil (possibly empty) so callers never nil-check.
type Result struct {
	Provider string
	Hits     []providers.Hit
	Err      error
}

// Dispatcher fans queries out across providers under a deadline.
type Dispatcher struct {
	registry         Caller
	perProviderTimeout time.Duration
}

// New creates a Dispatcher. perProviderTimeout bounds any single provider
// call; the actual per-call timeout is min(perProviderTimeout, remaining
// time until ctx's deadline), per spec §4.4.
func New(registry Caller, perProviderTimeout time.Duration) *Dispatcher {
	return &Dispatcher{registry: registry, perProviderTimeout: perProviderTimeout}
}

// DispatchBatch runs req.Providers concurrently for req.Query, returning
// one Result per provider. Each provider call is isolated — a panic-free
// failure, timeout, or circuit-open in one provider never cancels another's
// in-flight call (spec §4.4: "one provider's exception/timeout must not
// affect another's result"), so this never uses errgroup's fail-fast
// context cancellation: every goroutine always returns nil to the group
// and reports its own outcome through the results slice instead.
func (d *Dispatcher) DispatchBatch(ctx context.Context, state *providers.RunProviderState, req Request) []Result {
	results := make([]Result, len(req.Providers))

	var g errgroup.Group
	for i, tag := range req.Providers {
		i, tag := i, tag
		g.Go(func() error {
			callCtx, cancel := d.boundedContext(ctx)
			defer cancel()

			hits, err := d.registry.Call(callCtx, state, tag, req.Query, req.Count, req.Freshness, req.Region)
			if err != nil {
				logger.Debug("provider %s failed for query %q: %v", tag, req.Query, err)
				results[i] = Result{Provider: tag, Hits: []providers.Hit{}, Err: err}
				return nil
			}
			if hits == nil {
				hits = []providers.Hit{}
			}
			results[i] = Result{Provider: tag, Hits: hits}
			return nil
		})
	}
	_ = g.Wait() // always nil: goroutines never return an error

	return results
}

// DispatchSequential runs a list of query batches one after another
// (cross-query batches are sequential per spec §4.4, so the planner/
// backfill controller can observe partial results and stop early), each
// batch internally concurrent via DispatchBatch. It stops early if ctx is
// done before starting the next batch.
func (d *Dispatcher) DispatchSequential(ctx context.Context, state *providers.RunProviderState, reqs []Request) [][]Result {
	out := make([][]Result, 0, len(reqs))
	for _, req := range reqs {
		if ctx.Err() != nil {
			logger.Info("dispatch deadline exceeded, stopping before query %q", req.Query)
			break
		}
		out = append(out, d.DispatchBatch(ctx, state, req))
	}
	return out
}

// boundedContext derives a context whose deadline is the earlier of
// d.perProviderTimeout from now and ctx's own deadline (spec §4.4:
// min(per_provider_timeout, remaining_run_budget)).
func (d *Dispatcher) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	perCallDeadline := time.Now().Add(d.perProviderTimeout)
	if runDeadline, ok := ctx.Deadline(); ok && runDeadline.Before(perCallDeadline) {
		return context.WithDeadline(ctx, runDeadline)
	}
	return context.WithDeadline(ctx, perCallDeadline)
}
