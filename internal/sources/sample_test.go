package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/flow"
)

func TestSyntheticFlowsDeterministic(t *testing.T) {
	end := time.Date(2025, 6, 4, 12, 30, 0, 0, time.UTC)

	first := SyntheticFlows(end, 48, 42)
	second := SyntheticFlows(end, 48, 42)
	assert.Equal(t, first, second, "the same seed must reproduce the same series")

	other := SyntheticFlows(end, 48, 7)
	assert.NotEqual(t, first, other, "a different seed must vary the noise")
}

func TestSyntheticFlowsShape(t *testing.T) {
	end := time.Date(2025, 6, 4, 12, 30, 0, 0, time.UTC)
	records := SyntheticFlows(end, 24, 42)
	require.Len(t, records, 24*4)

	last := records[len(records)-1]
	assert.True(t, last.Timestamp.Equal(end.Truncate(time.Hour)), "the series ends at the hour containing end")
	assert.Equal(t, "Synthetic Sample", last.Source)

	routes := map[flow.Route]int{}
	for _, r := range records {
		routes[r.Route()]++
		require.NotNil(t, r.CapacityMW)
		assert.Greater(t, r.FlowMW, 0.0)
		assert.Less(t, r.FlowMW, *r.CapacityMW*1.05, "synthetic flow stays near or under line capacity")
	}
	require.Len(t, routes, 4)
	for route, n := range routes {
		assert.Equal(t, 24, n, "route %s must have one record per hour", route)
	}
}

func TestSyntheticFlowsDefaultHours(t *testing.T) {
	records := SyntheticFlows(time.Now(), 0, 1)
	assert.Len(t, records, 240*4, "non-positive hours falls back to ten days")
}
