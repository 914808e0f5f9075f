package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func roster(ids ...string) []domain.Coordinator {
	out := make([]domain.Coordinator, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Coordinator{ID: id, Name: id})
	}
	return out
}

func seededSelector(seed int64) *AssignmentSelector {
	return NewAssignmentSelector(rand.New(rand.NewSource(seed)).Intn)
}

func TestSelectEmptyRoster(t *testing.T) {
	_, ok := seededSelector(1).Select(nil, nil)
	assert.False(t, ok)
}

func TestSelectPrefersIdle(t *testing.T) {
	facts := map[string]domain.CoordinatorWorkload{
		"busy": {ActiveCount: 3, HasLowPriority: true},
		"idle": {ActiveCount: 0},
	}
	decision, ok := seededSelector(1).Select(roster("busy", "idle"), facts)
	require.True(t, ok)
	assert.Equal(t, "idle", decision.CoordinatorID)
	assert.Equal(t, domain.TierIdle, decision.Tier)
}

func TestSelectMissingFactsCountAsIdle(t *testing.T) {
	facts := map[string]domain.CoordinatorWorkload{
		"busy": {ActiveCount: 2},
	}
	decision, ok := seededSelector(1).Select(roster("busy", "unknown"), facts)
	require.True(t, ok)
	assert.Equal(t, "unknown", decision.CoordinatorID)
	assert.Equal(t, domain.TierIdle, decision.Tier)
}

func TestSelectLowPriorityHolderBeforeResolvedHolder(t *testing.T) {
	facts := map[string]domain.CoordinatorWorkload{
		"low":      {ActiveCount: 2, HasLowPriority: true},
		"resolved": {ActiveCount: 2, HasResolved: true},
	}
	decision, ok := seededSelector(1).Select(roster("resolved", "low"), facts)
	require.True(t, ok)
	assert.Equal(t, "low", decision.CoordinatorID)
	assert.Equal(t, domain.TierLowPriority, decision.Tier)
}

func TestSelectResolvedHolder(t *testing.T) {
	facts := map[string]domain.CoordinatorWorkload{
		"heavy":    {ActiveCount: 4},
		"resolved": {ActiveCount: 2, HasResolved: true},
	}
	decision, ok := seededSelector(1).Select(roster("heavy", "resolved"), facts)
	require.True(t, ok)
	assert.Equal(t, "resolved", decision.CoordinatorID)
	assert.Equal(t, domain.TierResolved, decision.Tier)
}

func TestSelectNearestDeadline(t *testing.T) {
	// HasResolved false for everyone keeps tier 3 empty while deadlines
	// still rank tier 4. Facts built directly to isolate the tier.
	soon := time.Now().Add(1 * time.Hour)
	later := time.Now().Add(5 * time.Hour)
	facts := map[string]domain.CoordinatorWorkload{
		"soon":  {ActiveCount: 2, NearestClosing: &soon},
		"later": {ActiveCount: 2, NearestClosing: &later},
	}
	decision, ok := seededSelector(1).Select(roster("later", "soon"), facts)
	require.True(t, ok)
	assert.Equal(t, "soon", decision.CoordinatorID)
	assert.Equal(t, domain.TierDeadline, decision.Tier)
}

func TestSelectNearestDeadlineFirstEncounteredWinsTies(t *testing.T) {
	deadline := time.Now().Add(2 * time.Hour)
	facts := map[string]domain.CoordinatorWorkload{
		"a": {ActiveCount: 1, NearestClosing: &deadline},
		"b": {ActiveCount: 1, NearestClosing: &deadline},
	}
	decision, ok := seededSelector(1).Select(roster("a", "b"), facts)
	require.True(t, ok)
	assert.Equal(t, "a", decision.CoordinatorID)
}

func TestSelectFallbackRandom(t *testing.T) {
	facts := map[string]domain.CoordinatorWorkload{
		"a": {ActiveCount: 3},
		"b": {ActiveCount: 5},
	}
	decision, ok := seededSelector(1).Select(roster("a", "b"), facts)
	require.True(t, ok)
	assert.Equal(t, domain.TierFallback, decision.Tier)
	assert.Contains(t, []string{"a", "b"}, decision.CoordinatorID)
}

func TestSelectRandomTieBreakCoversAllCandidates(t *testing.T) {
	selector := seededSelector(42)
	coords := roster("a", "b", "c")
	counts := map[string]int{}
	for i := 0; i < 3000; i++ {
		decision, ok := selector.Select(coords, nil)
		require.True(t, ok)
		require.Equal(t, domain.TierIdle, decision.Tier)
		counts[decision.CoordinatorID]++
	}
	// Each idle candidate should win a healthy share of uniform draws.
	for _, id := range []string{"a", "b", "c"} {
		assert.Greater(t, counts[id], 700, id)
	}
}
