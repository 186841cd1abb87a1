// Package pipeline wires the Intent Classifier, Query Planner, Parallel
// Dispatcher, Normalizer, Canonicalizer/Deduper, Enricher, Triangulator,
// Domain Balancer, Credibility Floor, Gate Evaluator, Backfill Controller,
// and Report Dispatcher into one run (spec §2 OVERVIEW pipeline).
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dlevien/research-agent/internal/backfill"
	"github.com/dlevien/research-agent/internal/balance"
	"github.com/dlevien/research-agent/internal/config"
	"github.com/dlevien/research-agent/internal/dispatch"
	"github.com/dlevien/research-agent/internal/enrich"
	"github.com/dlevien/research-agent/internal/evidence"
	"github.com/dlevien/research-agent/internal/gate"
	"github.com/dlevien/research-agent/internal/intent"
	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/model"
	"github.com/dlevien/research-agent/internal/planner"
	"github.com/dlevien/research-agent/internal/providers"
	"github.com/dlevien/research-agent/internal/report"
	"github.com/dlevien/research-agent/internal/tracing"
	"github.com/dlevien/research-agent/internal/triangulate"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var logger = logging.GetLogger("pipeline")

// Runner owns the components each run needs, constructed once per process
// and shared across runs (provider registry, circuit breaker state);
// per-run state (evidence, metrics) always stays local to Run.
type Runner struct {
	Registry    *providers.Registry
	Classifier  *intent.Classifier
	Dispatcher  *dispatch.Dispatcher
	DOIResolver *evidence.DOIResolver
	Enricher    *enrich.Enricher
	Clusterer   *triangulate.Clusterer
	Config      *config.Config
	Tracer      oteltrace.Tracer
}

// NewRunner builds a Runner from cfg and the given registry, classifier and
// clusterer, wiring the dispatcher, DOI resolver, and enricher timeouts the
// spec calls for.
func NewRunner(cfg *config.Config, registry *providers.Registry, classifier *intent.Classifier, clusterer *triangulate.Clusterer) *Runner {
	return &Runner{
		Registry:    registry,
		Classifier:  classifier,
		Dispatcher:  dispatch.New(registry, 20*time.Second),
		DOIResolver: evidence.NewDOIResolver(10 * time.Second),
		Enricher:    enrich.New(8 * time.Second),
		Clusterer:   clusterer,
		Config:      cfg,
		Tracer:      tracing.Tracer(),
	}
}

// Result is everything one run produced, for the caller (CLI, test) to
// inspect without re-reading the run directory.
type Result struct {
	RunDir   string
	Intent   model.Intent
	Decision model.GateDecision
	Outcome  report.Outcome
	Evidence []model.Evidence
}

// Run executes one full pipeline pass for req, writing every artifact
// spec §6 names under req.OutputDir/<topic-slug>_<timestamp>/.
func (r *Runner) Run(ctx context.Context, req model.ResearchRequest, runDir string) (Result, error) {
	deadline := time.Now().Add(req.WallTimeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	ctx, span := r.Tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	classifiedIntent := r.Classifier.Classify(ctx, req.Topic)
	queries := planner.Plan(req.Topic, classifiedIntent)

	budgets := make(map[string]int)
	for _, tag := range r.Registry.Tags() {
		if p, ok := r.Registry.Get(tag); ok {
			budgets[tag] = p.Metadata().CallBudget
		}
	}
	if r.Config.SerpAPIMaxCallsPerRun > 0 {
		budgets["serpapi"] = r.Config.SerpAPIMaxCallsPerRun
	}
	state := providers.NewRunProviderState(budgets)
	providerTags := r.selectProviders(classifiedIntent, req.Topic)

	evs, rejected, errorRate := r.collectAndProcess(ctx, state, req.Topic, queries, providerTags)

	decision, writtenEvs, clusters, tris := r.evaluate(ctx, evs, classifiedIntent, errorRate)

	if !decision.AllowFinalReport && r.Config.BackfillOnFail {
		var backfillRejected []model.RejectedEvidence
		decision, writtenEvs, clusters, tris, backfillRejected = r.runBackfill(ctx, req, state, classifiedIntent, decision, evs, writtenEvs, clusters, tris, deadline, providerTags)
		rejected = append(rejected, backfillRejected...)
	}

	if err := gate.WriteMetrics(runDir, decision.Metrics); err != nil {
		return Result{}, fmt.Errorf("write metrics.json: %w", err)
	}
	reloaded, err := gate.LoadMetrics(runDir)
	if err != nil {
		return Result{}, fmt.Errorf("reload metrics.json: %w", err)
	}
	decision.Metrics = reloaded

	runCtx := model.RunContext{
		RunDir:                   runDir,
		Topic:                    req.Topic,
		Intent:                   classifiedIntent,
		Depth:                    req.Depth,
		Strict:                   req.Strict,
		ProvidersUsed:            providerTags,
		AllowFinalReport:         decision.AllowFinalReport,
		ReasonFinalReportBlocked: gate.FailingReasonsString(decision),
	}
	logger.Info("run context: dir=%s topic=%q intent=%s depth=%s strict=%t providers=%v allow_final_report=%t reason=%q",
		runCtx.RunDir, runCtx.Topic, runCtx.Intent, runCtx.Depth, runCtx.Strict, runCtx.ProvidersUsed, runCtx.AllowFinalReport, runCtx.ReasonFinalReportBlocked)

	outcome, err := report.Dispatch(report.DispatchInput{
		RunDir:            runDir,
		Topic:             req.Topic,
		Intent:            classifiedIntent,
		Evidence:          writtenEvs,
		Rejected:          rejected,
		Metrics:           decision.Metrics,
		Decision:          decision,
		Clusters:          clusters,
		StructuredTris:    tris,
		PreliminaryOnFail: r.Config.WriteDraftOnFail && !decision.AllowFinalReport,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		RunDir:   runDir,
		Intent:   classifiedIntent,
		Decision: decision,
		Outcome:  outcome,
		Evidence: writtenEvs,
	}, nil
}

// selectProviders picks the general search providers plus any vertical
// providers whose metadata matches this intent/topic (spec §4.2/§4.3).
func (r *Runner) selectProviders(in model.Intent, topic string) []string {
	general := r.Registry.SelectGeneral(r.Config.SearchProviders)
	vertical := r.Registry.SelectVertical(string(in), topic)
	return append(general, vertical...)
}

// collectAndProcess runs one dispatch batch per planned query, then
// normalizes, canonicalizes, deduplicates, and enriches the combined hit
// set (spec §4.4-§4.7).
func (r *Runner) collectAndProcess(ctx context.Context, state *providers.RunProviderState, topic string, queries []string, providerTags []string) ([]model.Evidence, []model.RejectedEvidence, float64) {
	ctx, span := r.Tracer.Start(ctx, "pipeline.collectAndProcess")
	defer span.End()

	reqs := make([]dispatch.Request, len(queries))
	for i, q := range queries {
		reqs[i] = dispatch.Request{Query: q, Providers: providerTags, Count: 10}
	}
	batches := r.Dispatcher.DispatchSequential(ctx, state, reqs)

	var evs []model.Evidence
	var rejected []model.RejectedEvidence
	var total, failed int
	now := time.Now()
	for _, batch := range batches {
		for _, res := range batch {
			total++
			if res.Err != nil {
				failed++
				continue
			}
			for _, hit := range res.Hits {
				ev := evidence.Normalize(hit, providers.Kind(res.Provider), res.Provider, topic, now)
				evidence.Canonicalize(ctx, &ev, r.DOIResolver, doiOf(hit))
				if reasons := evidence.Validate(ev); len(reasons) > 0 {
					rejected = append(rejected, evidence.RejectedFrom(ev, reasons))
					continue
				}
				evs = append(evs, ev)
			}
		}
	}

	kept, _ := evidence.Dedup(evs)
	for i := range kept {
		r.Enricher.Enrich(ctx, &kept[i])
	}

	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}
	return kept, rejected, errorRate
}

// evaluate runs the Triangulator, Domain Balancer, Credibility Floor, and
// Gate Evaluator over evs (spec §4.8-§4.10, §4.12). The balanced,
// floor-filtered set returned alongside the decision — not the raw evs
// passed in — is what the Gate Evaluator scored and what the Report
// Dispatcher must write, or the domain cap and credibility floor would have
// no effect on the written output.
func (r *Runner) evaluate(ctx context.Context, evs []model.Evidence, in model.Intent, errorRate float64) (model.GateDecision, []model.Evidence, []model.Cluster, map[string][]model.StructuredClaim) {
	tri := triangulate.Run(ctx, evs, r.Clusterer)

	result := balance.Apply(evs, balanceOptions(r.Config))

	decision := gate.Evaluate(result.Evidence, in, errorRate, r.Config.Gates)
	return decision, result.Evidence, tri.Clusters, tri.StructuredTris
}

func balanceOptions(cfg *config.Config) balance.Options {
	opts := balance.DefaultOptions()
	opts.Cap = cfg.Gates.DomainCap
	opts.CapRelaxed = cfg.Gates.DomainCapRelaxed
	opts.MinCards = cfg.Gates.MinCards
	opts.TrustedDomains = cfg.TrustedDomains
	return opts
}

// runBackfill drives the Backfill Controller loop: generate targeted
// queries for the current shortfall, re-dispatch, re-run C5-C10, and
// re-evaluate, until the gate passes, attempts run out, or time is short
// (spec §4.11). It returns, alongside the
// final decision: combined (the full unbalanced, deduped evidence pool each
// round re-evaluates from), balancedEvs (the last round's Domain
// Balancer/Credibility Floor output — what the report must write), and the
// rejected records validation turned up along the way. initialBalanced/
// initialClusters/initialTris seed the return values so a controller that
// attempts zero rounds (budget or trigger conditions already exhausted)
// still hands back the pre-backfill evaluation instead of nothing.
func (r *Runner) runBackfill(ctx context.Context, req model.ResearchRequest, state *providers.RunProviderState, in model.Intent, decision model.GateDecision, evs []model.Evidence, initialBalanced []model.Evidence, initialClusters []model.Cluster, initialTris map[string][]model.StructuredClaim, deadline time.Time, providerTags []string) (model.GateDecision, []model.Evidence, []model.Cluster, map[string][]model.StructuredClaim, []model.RejectedEvidence) {
	controller := backfill.New(backfill.Options{
		StrictMode: req.Strict,
		TopicKey:   topicKeyFor(in),
	})
	budget := backfill.Budget{Start: time.Now(), Deadline: deadline}

	combined := evs
	balancedEvs := initialBalanced
	clusters := initialClusters
	tris := initialTris
	var rejected []model.RejectedEvidence

	final := controller.Run(ctx, req.Topic, decision, budget, func(ctx context.Context, queries []backfill.TargetedQuery) (model.GateDecision, error) {
		reqs := make([]dispatch.Request, len(queries))
		for i, q := range queries {
			reqs[i] = dispatch.Request{Query: q.Query, Providers: providerTags, Count: 10}
		}
		batches := r.Dispatcher.DispatchSequential(ctx, state, reqs)

		var fresh []model.Evidence
		now := time.Now()
		for _, batch := range batches {
			for _, res := range batch {
				if res.Err != nil {
					continue
				}
				for _, hit := range res.Hits {
					ev := evidence.Normalize(hit, providers.Kind(res.Provider), res.Provider, req.Topic, now)
					evidence.Canonicalize(ctx, &ev, r.DOIResolver, doiOf(hit))
					if reasons := evidence.Validate(ev); len(reasons) > 0 {
						rejected = append(rejected, evidence.RejectedFrom(ev, reasons))
						continue
					}
					fresh = append(fresh, ev)
				}
			}
		}
		for i := range fresh {
			r.Enricher.Enrich(ctx, &fresh[i])
		}

		combined = append(combined, fresh...)
		combined, _ = evidence.Dedup(combined)

		var errorRate float64
		next, nextBalanced, nextClusters, nextTris := r.evaluate(ctx, combined, in, errorRate)
		balancedEvs, clusters, tris = nextBalanced, nextClusters, nextTris
		return next, nil
	})

	return final, balancedEvs, clusters, tris, rejected
}

func topicKeyFor(in model.Intent) string {
	switch in {
	case model.IntentStats, model.IntentRegulatory:
		return "macroeconomics"
	case model.IntentMedical:
		return "health"
	default:
		return "general"
	}
}

// doiOf extracts the provider-supplied DOI from a hit's passthrough Raw
// fields, if any (spec §4.6: the canonicalizer accepts a DOI hint from
// providers that return one, e.g. OpenAlex).
func doiOf(hit providers.Hit) string {
	if hit.Raw == nil {
		return ""
	}
	if v, ok := hit.Raw["doi"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
