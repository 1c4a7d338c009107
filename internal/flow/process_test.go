package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSortsByTimestamp(t *testing.T) {
	records := []Record{
		{Timestamp: seriesStart.Add(2 * time.Hour), FromZone: "A", ToZone: "B", FlowMW: 3},
		{Timestamp: seriesStart, FromZone: "A", ToZone: "B", FlowMW: 1},
		{Timestamp: seriesStart.Add(time.Hour), FromZone: "A", ToZone: "B", FlowMW: 2},
	}
	out := Normalize(records)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{out[0].FlowMW, out[1].FlowMW, out[2].FlowMW})
	assert.Equal(t, 3.0, records[0].FlowMW, "input must not be reordered")
}

func TestNormalizeDedupesLastWins(t *testing.T) {
	records := []Record{
		{Timestamp: seriesStart, FromZone: "A", ToZone: "B", FlowMW: 100, Source: "first"},
		{Timestamp: seriesStart, FromZone: "A", ToZone: "B", FlowMW: 150, Source: "revised"},
		{Timestamp: seriesStart, FromZone: "B", ToZone: "A", FlowMW: 200},
	}
	out := Normalize(records)
	require.Len(t, out, 2)
	assert.Equal(t, 150.0, out[0].FlowMW, "the later duplicate must win")
	assert.Equal(t, "revised", out[0].Source)
	assert.Equal(t, 200.0, out[1].FlowMW, "same timestamp on another route is not a duplicate")
}

func TestNormalizeEmpty(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	assert.Nil(t, Normalize([]Record{}))
}

func TestGroupByRoute(t *testing.T) {
	records := []Record{
		{Timestamp: seriesStart, FromZone: "Germany", ToZone: "Austria", FlowMW: 1},
		{Timestamp: seriesStart, FromZone: "France", ToZone: "Spain", FlowMW: 2},
		{Timestamp: seriesStart.Add(time.Hour), FromZone: "Germany", ToZone: "Austria", FlowMW: 3},
	}
	groups := GroupByRoute(records)
	require.Len(t, groups, 2)

	de := groups[Route{From: "Germany", To: "Austria"}]
	require.Len(t, de, 2)
	assert.Equal(t, 1.0, de[0].FlowMW)
	assert.Equal(t, 3.0, de[1].FlowMW)
}

func TestRecordDirectionAndUtilization(t *testing.T) {
	capacity := 6000.0
	r := Record{FlowMW: -3000, CapacityMW: &capacity}
	assert.Equal(t, "Import", r.Direction())

	pct, ok := r.UtilizationPct()
	require.True(t, ok)
	assert.InDelta(t, 50.0, pct, 1e-9)

	r = Record{FlowMW: 3000}
	assert.Equal(t, "Export", r.Direction())
	_, ok = r.UtilizationPct()
	assert.False(t, ok, "utilization requires a capacity")

	assert.Equal(t, "Neutral", Record{}.Direction())
}
