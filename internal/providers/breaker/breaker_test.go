package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T) (*Breaker, *time.Time) {
	t.Helper()
	cfg := Config{
		FailureThreshold: 3,
		Cooldown:         600 * time.Second,
		MaxBackoff:       300 * time.Second,
		InitialBackoff:   5 * time.Second,
	}
	b := New(cfg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.rand = func() float64 { return 0.5 } // jitter midpoint -> multiplier 1.0
	return b, &now
}

func TestIsAvailable_DefaultTrue(t *testing.T) {
	b, _ := newTestBreaker(t)
	avail, reason := b.IsAvailable("serpapi")
	require.True(t, avail)
	assert.Empty(t, reason)
}

func TestRecordFailure_OpensCircuitAtThreshold(t *testing.T) {
	b, now := newTestBreaker(t)

	b.RecordFailure("serpapi", 500)
	b.RecordFailure("serpapi", 500)
	avail, _ := b.IsAvailable("serpapi")
	assert.True(t, avail, "circuit should stay closed below threshold")

	b.RecordFailure("serpapi", 500)
	avail, reason := b.IsAvailable("serpapi")
	assert.False(t, avail, "circuit should open exactly at threshold")
	assert.Contains(t, reason, "circuit open")

	*now = now.Add(599 * time.Second)
	avail, _ = b.IsAvailable("serpapi")
	assert.False(t, avail, "circuit should remain open before cooldown elapses")

	*now = now.Add(2 * time.Second)
	avail, _ = b.IsAvailable("serpapi")
	assert.True(t, avail, "circuit should close strictly after cooldown")
}

func TestRecordFailure_429Backoff(t *testing.T) {
	b, now := newTestBreaker(t)

	b.RecordFailure("brave", 429)
	stats := b.GetStats("brave")
	assert.True(t, stats.InBackoff)

	// initial backoff 5s * 2^0 = 5s, jitter 1.0 at rand()=0.5 -> 5s
	*now = now.Add(4 * time.Second)
	avail, _ := b.IsAvailable("brave")
	assert.False(t, avail)

	*now = now.Add(2 * time.Second)
	avail, _ = b.IsAvailable("brave")
	assert.True(t, avail)
}

func TestRecordSuccess_ResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(t)
	b.RecordFailure("tavily", 500)
	b.RecordFailure("tavily", 500)
	b.RecordSuccess("tavily")

	stats := b.GetStats("tavily")
	assert.Equal(t, 0, stats.ConsecutiveFailures)
	assert.False(t, stats.InBackoff)
}

func TestAvailableProviders_FiltersOpenCircuits(t *testing.T) {
	b, _ := newTestBreaker(t)
	b.RecordFailure("down", 500)
	b.RecordFailure("down", 500)
	b.RecordFailure("down", 500)

	avail := b.AvailableProviders([]string{"down", "up"})
	assert.Equal(t, []string{"up"}, avail)
}

func TestReset_ClearsSingleProvider(t *testing.T) {
	b, _ := newTestBreaker(t)
	b.RecordFailure("a", 500)
	b.RecordFailure("b", 500)

	b.Reset("a")
	assert.Equal(t, 0, b.GetStats("a").ConsecutiveFailures)
	assert.Equal(t, 1, b.GetStats("b").ConsecutiveFailures)
}
