package backfill

import (
	"context"
	"testing"
	"time"

	"github.com/dlevien/research-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingDecision() model.GateDecision {
	return model.GateDecision{
		AllowFinalReport: false,
		FailingReasons:   []string{"triangulation_below_threshold"},
		Metrics: model.RunMetrics{
			Cards:              10,
			UnionTriangulation: 0.10,
			PrimaryShare:       0.10,
		},
		Thresholds: model.Thresholds{
			MinTriangulation: 0.35,
			MinPrimaryShare:  0.30,
			MinSources:       20,
		},
	}
}

func passingDecision() model.GateDecision {
	return model.GateDecision{
		AllowFinalReport: true,
		Metrics: model.RunMetrics{
			Cards:              40,
			UnionTriangulation: 0.50,
			PrimaryShare:       0.40,
		},
		Thresholds: model.Thresholds{
			MinTriangulation: 0.35,
			MinPrimaryShare:  0.30,
			MinSources:       20,
		},
	}
}

func TestCanAttempt_BlocksInStrictModeWithoutBudget(t *testing.T) {
	c := New(Options{StrictMode: true, RetryBudget: 0})
	assert.False(t, c.CanAttempt(0, 1.0))
}

func TestCanAttempt_AllowsInStrictModeWithExplicitBudget(t *testing.T) {
	c := New(Options{StrictMode: true, RetryBudget: 2})
	assert.True(t, c.CanAttempt(0, 1.0))
}

func TestCanAttempt_BlocksWhenAttemptsExhausted(t *testing.T) {
	c := New(Options{MaxAttempts: 3})
	assert.False(t, c.CanAttempt(3, 1.0))
}

func TestCanAttempt_BlocksWhenTimeLow(t *testing.T) {
	c := New(DefaultOptions())
	assert.False(t, c.CanAttempt(0, 0.10))
	assert.True(t, c.CanAttempt(0, 0.20))
}

func TestShouldTrigger_FiresOnTriangulationGap(t *testing.T) {
	assert.True(t, ShouldTrigger(failingDecision(), 0, 1.0))
}

func TestShouldTrigger_FalseWhenGateAlreadyPassing(t *testing.T) {
	d := passingDecision()
	assert.False(t, ShouldTrigger(d, 0, 1.0))
}

func TestLastMileShortfall_TrueWhenAllMetricsWithinMargin(t *testing.T) {
	d := model.GateDecision{
		Metrics: model.RunMetrics{
			Cards:              20,
			UnionTriangulation: 0.33,
			PrimaryShare:       0.30,
		},
		Thresholds: model.Thresholds{
			MinTriangulation: 0.35,
			MinPrimaryShare:  0.30,
			MinSources:       20,
		},
	}
	assert.True(t, lastMileShortfall(d))
}

func TestShouldTrigger_FiresWhenTriangulationJustShort(t *testing.T) {
	d := model.GateDecision{
		Metrics: model.RunMetrics{
			Cards:              20,
			UnionTriangulation: 0.33,
			PrimaryShare:       0.30,
		},
		Thresholds: model.Thresholds{
			MinTriangulation: 0.35,
			MinPrimaryShare:  0.30,
			MinSources:       20,
		},
	}
	assert.True(t, ShouldTrigger(d, 2, 1.0))
}

func TestShortfalls_ListsEachFailingPredicate(t *testing.T) {
	s := Shortfalls(failingDecision())
	assert.Contains(t, s, ShortfallTriangulation)
	assert.Contains(t, s, ShortfallPrimaryShare)
	assert.Contains(t, s, ShortfallCardCount)
}

func TestGenerateQueries_TriangulationGapUsesAxes(t *testing.T) {
	d := model.GateDecision{
		Metrics:    model.RunMetrics{Cards: 30, UnionTriangulation: 0.10, PrimaryShare: 0.50},
		Thresholds: model.Thresholds{MinTriangulation: 0.35, MinPrimaryShare: 0.30, MinSources: 20},
	}
	queries := GenerateQueries("central bank rate hikes", "macroeconomics", d, 6)
	require.NotEmpty(t, queries)
	var axes []string
	for _, q := range queries {
		axes = append(axes, q.Axis)
		assert.Contains(t, q.Query, "central bank rate hikes")
	}
	assert.Contains(t, axes, "upstream")
}

func TestGenerateQueries_PrimaryShareGapAddsSiteHints(t *testing.T) {
	d := model.GateDecision{
		Metrics:    model.RunMetrics{Cards: 30, UnionTriangulation: 0.50, PrimaryShare: 0.05},
		Thresholds: model.Thresholds{MinTriangulation: 0.35, MinPrimaryShare: 0.30, MinSources: 20},
	}
	queries := GenerateQueries("inflation outlook", "macroeconomics", d, 6)
	require.NotEmpty(t, queries)
	found := false
	for _, q := range queries {
		if q.Axis == "primary-site" {
			found = true
			assert.Contains(t, q.Query, "site:")
		}
	}
	assert.True(t, found)
}

func TestGenerateQueries_UnknownTopicFallsBackToGeneralPack(t *testing.T) {
	d := failingDecision()
	queries := GenerateQueries("some niche subject", "nonexistent-topic", d, 6)
	assert.NotEmpty(t, queries)
}

func TestGenerateQueries_RespectsMaxQueries(t *testing.T) {
	queries := GenerateQueries("topic", "macroeconomics", failingDecision(), 2)
	assert.LessOrEqual(t, len(queries), 2)
}

func TestBudget_RemainingFractionHalfway(t *testing.T) {
	start := time.Unix(1000, 0)
	deadline := time.Unix(2000, 0)
	b := Budget{Start: start, Deadline: deadline}
	now := time.Unix(1500, 0)
	assert.InDelta(t, 0.5, b.RemainingFraction(now), 0.001)
}

func TestBudget_RemainingFractionZeroValueMeansUnbounded(t *testing.T) {
	var b Budget
	assert.Equal(t, 1.0, b.RemainingFraction(time.Now()))
}

func TestController_Run_StopsWhenGatePasses(t *testing.T) {
	c := New(DefaultOptions())
	calls := 0
	round := func(ctx context.Context, queries []TargetedQuery) (model.GateDecision, error) {
		calls++
		return passingDecision(), nil
	}
	budget := Budget{Start: time.Now(), Deadline: time.Now().Add(time.Hour)}
	result := c.Run(t.Context(), "topic", failingDecision(), budget, round)
	assert.True(t, result.AllowFinalReport)
	assert.Equal(t, 1, calls)
}

func TestController_Run_StopsAfterMaxAttempts(t *testing.T) {
	c := New(Options{MaxAttempts: 2, TopicKey: "general"})
	calls := 0
	round := func(ctx context.Context, queries []TargetedQuery) (model.GateDecision, error) {
		calls++
		return failingDecision(), nil
	}
	budget := Budget{Start: time.Now(), Deadline: time.Now().Add(time.Hour)}
	result := c.Run(t.Context(), "topic", failingDecision(), budget, round)
	assert.False(t, result.AllowFinalReport)
	assert.Equal(t, 2, calls)
}

func TestController_Run_NeverCallsRoundWhenGateAlreadyPassing(t *testing.T) {
	c := New(DefaultOptions())
	round := func(ctx context.Context, queries []TargetedQuery) (model.GateDecision, error) {
		t.Fatal("round should not be called")
		return model.GateDecision{}, nil
	}
	budget := Budget{Start: time.Now(), Deadline: time.Now().Add(time.Hour)}
	result := c.Run(t.Context(), "topic", passingDecision(), budget, round)
	assert.True(t, result.AllowFinalReport)
}
