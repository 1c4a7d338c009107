package pipeline

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/cache"
	"github.com/gridpulse/gridpulse/internal/config"
)

var pipelineNow = time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Backend = "memory"
	cfg.Newsletter.OutputDir = t.TempDir()

	manager := cache.NewManager(cache.NewMemory(),
		cache.WithTTL(cfg.Cache.TTL()),
		cache.WithNamespace("test"),
	)
	p := New(cfg, manager)
	p.now = func() time.Time { return pipelineNow }
	return p
}

func TestFlowsFallBackToSyntheticWithoutKey(t *testing.T) {
	p := testPipeline(t)

	records, err := p.Flows(context.Background(), false)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	for _, r := range records {
		assert.Equal(t, "Synthetic Sample", r.Source)
	}
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Timestamp.Before(records[i-1].Timestamp), "flows must come back time-ordered")
	}
}

func TestFlowsAreCached(t *testing.T) {
	p := testPipeline(t)

	_, err := p.Flows(context.Background(), false)
	require.NoError(t, err)
	_, err = p.Flows(context.Background(), false)
	require.NoError(t, err)

	stats := p.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestForceRefreshBypassesCache(t *testing.T) {
	p := testPipeline(t)

	_, err := p.Flows(context.Background(), false)
	require.NoError(t, err)
	_, err = p.Flows(context.Background(), true)
	require.NoError(t, err)

	stats := p.CacheStats()
	assert.Equal(t, uint64(0), stats.Hits, "a forced refresh must not consult the cache")
	assert.Equal(t, uint64(2), stats.Misses)
}

func TestMetricsGroupedPerRoute(t *testing.T) {
	p := testPipeline(t)

	metrics, err := p.Metrics(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, metrics)

	routes := map[string]struct{}{}
	for _, m := range metrics {
		routes[m.Route().String()] = struct{}{}
	}
	assert.Len(t, routes, 4, "the synthetic sample covers four routes")
}

func TestAlertsAreRanked(t *testing.T) {
	p := testPipeline(t)

	alerts, err := p.Alerts(context.Background())
	require.NoError(t, err)
	for i := 1; i < len(alerts); i++ {
		assert.GreaterOrEqual(t,
			math.Abs(alerts[i-1].DeviationPct), math.Abs(alerts[i].DeviationPct),
			"alerts must be ordered by descending |deviation|")
	}
}

func TestReportEndToEnd(t *testing.T) {
	p := testPipeline(t)

	doc, err := p.Report(context.Background(), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 72, doc.PeriodHours)
	require.Len(t, doc.Sections, 5)
	assert.Contains(t, doc.Markdown, "# ELECTRICITY INTERCONNECTION REPORT")
	assert.Contains(t, doc.Markdown, "## Data Quality")
	assert.Contains(t, doc.Markdown, "Synthetic Sample")
}

func TestExportPDFWritesUnderOutputDir(t *testing.T) {
	p := testPipeline(t)

	path, err := p.ExportPDF(context.Background(), "report.pdf")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestClearCacheRefetches(t *testing.T) {
	p := testPipeline(t)

	_, err := p.Flows(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, p.ClearCache(FlowsKey))

	_, err = p.Flows(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.CacheStats().Misses)
}

func TestWarmerRegistersFlowTask(t *testing.T) {
	p := testPipeline(t)

	schedule := p.Warmer().Schedule()
	require.Len(t, schedule, 1)
	assert.Equal(t, FlowsKey, schedule[0].Key)

	assert.Equal(t, 1, p.Warmer().WarmCache(context.Background()))
	assert.Equal(t, uint64(1), p.CacheStats().Misses)
}
