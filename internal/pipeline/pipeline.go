// Package pipeline wires the dashboard's data path: upstream sources through
// the cache orchestrator, into the metrics engine and alert detector, and out
// through the newsletter composer.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gridpulse/gridpulse/internal/cache"
	"github.com/gridpulse/gridpulse/internal/config"
	"github.com/gridpulse/gridpulse/internal/flow"
	"github.com/gridpulse/gridpulse/internal/newsletter"
	"github.com/gridpulse/gridpulse/internal/sources"
)

// Cache keys for the logical datasets this pipeline maintains.
const (
	FlowsKey  = "flows:interconnection"
	CarbonKey = "carbon:intensity"
)

// monitoredPairs lists the (out, in) ENTSO-E bidding-zone EIC pairs polled
// when an API key is configured.
var monitoredPairs = [][2]string{
	{"10Y1001A1001A63L", "10YAT-APG------L"}, // Germany -> Austria
	{"10YFR-RTE------C", "10YES-REE------0"}, // France -> Spain
	{"10YAT-APG------L", "10YCZ-CEPS-----N"}, // Austria -> Czech Republic
	{"10YES-REE------0", "10YPT-REN------W"}, // Spain -> Portugal
}

// Pipeline is the single entry point the CLI and HTTP API use.
type Pipeline struct {
	cfg    *config.Config
	cache  *cache.Manager
	warmer *cache.Warmer

	entsoe *sources.ENTSOE
	emaps  *sources.ElectricityMaps
	eia    *sources.EIA

	now func() time.Time
}

// New builds a pipeline over an already-constructed cache manager.
func New(cfg *config.Config, manager *cache.Manager) *Pipeline {
	client := sources.NewClient("upstream", cfg.Sources.Timeout(), cfg.Sources.RateLimitRPS, cfg.Sources.Burst)

	p := &Pipeline{
		cfg:    cfg,
		cache:  manager,
		entsoe: sources.NewENTSOE(client, cfg.Sources.ENTSOEAPIKey),
		emaps:  sources.NewElectricityMaps(client, cfg.Sources.ElectricityMapsAPIKey),
		eia:    sources.NewEIA(client, cfg.Sources.EIAAPIKey),
		now:    time.Now,
	}

	p.warmer = cache.NewWarmer(manager)
	p.warmer.AddTask(FlowsKey, p.flowSource(), cfg.Cache.TTL())
	return p
}

// Warmer exposes the pipeline's cache warmer for external scheduling.
func (p *Pipeline) Warmer() *cache.Warmer { return p.warmer }

// CacheStats returns the orchestrator's lifetime counters.
func (p *Pipeline) CacheStats() cache.Stats { return p.cache.Stats() }

// ClearCache removes one key's entry, or everything when key is empty.
func (p *Pipeline) ClearCache(key string) error {
	if key == "" {
		return p.cache.ClearAll()
	}
	return p.cache.Clear(key)
}

// flowSource fetches interconnection flows: real ENTSO-E data when a key is
// configured, otherwise the deterministic synthetic sample so the pipeline
// stays usable without credentials.
func (p *Pipeline) flowSource() cache.Source {
	return cache.SourceFunc(func(ctx context.Context) (any, error) {
		if !p.entsoe.Configured() {
			log.Debug().Msg("ENTSO-E key not configured, using synthetic sample flows")
			return sources.SyntheticFlows(p.now(), p.cfg.Sources.SampleHours, p.cfg.Sources.SampleSeed), nil
		}

		// The detector needs baseline history beyond the alert lookback.
		end := p.now()
		start := end.Add(-(p.cfg.Metrics.BaselineWindow() + p.cfg.Alerts.Lookback()))

		var all []flow.Record
		var lastErr error
		for _, pair := range monitoredPairs {
			records, err := p.entsoe.CrossBorderFlows(ctx, pair[1], pair[0], start, end)
			if err != nil {
				log.Warn().Err(err).Str("out", pair[0]).Str("in", pair[1]).Msg("Route fetch failed")
				lastErr = err
				continue
			}
			all = append(all, records...)
		}
		if len(all) == 0 {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, sources.ErrNoData
		}
		return all, nil
	})
}

// Flows returns the normalized interconnection flow records, cached under
// FlowsKey.
func (p *Pipeline) Flows(ctx context.Context, force bool) ([]flow.Record, error) {
	var opts []cache.Option
	if force {
		opts = append(opts, cache.ForceRefresh())
	}
	records, err := cache.FetchAs[[]flow.Record](ctx, p.cache, FlowsKey, p.flowSource(), opts...)
	if err != nil {
		return nil, err
	}
	return flow.Normalize(records), nil
}

// Metrics returns the per-route augmented series, flattened in route order.
func (p *Pipeline) Metrics(ctx context.Context) ([]flow.Metrics, error) {
	records, err := p.Flows(ctx, false)
	if err != nil {
		return nil, err
	}
	mcfg := p.metricsConfig()

	groups := flow.GroupByRoute(records)
	routes := make([]flow.Route, 0, len(groups))
	for route := range groups {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].String() < routes[j].String() })

	var out []flow.Metrics
	for _, route := range routes {
		out = append(out, flow.ComputeMetrics(groups[route], mcfg)...)
	}
	return out, nil
}

// Alerts detects surge/drop events per route and merges them into one list
// ranked by descending |deviation|.
func (p *Pipeline) Alerts(ctx context.Context) ([]flow.Alert, error) {
	records, err := p.Flows(ctx, false)
	if err != nil {
		return nil, err
	}
	return p.detect(records), nil
}

func (p *Pipeline) detect(records []flow.Record) []flow.Alert {
	mcfg := p.metricsConfig()
	acfg := flow.AlertConfig{
		DeviationThresholdPct: p.cfg.Alerts.DeviationThresholdPct,
		Lookback:              p.cfg.Alerts.Lookback(),
		Now:                   p.now(),
	}

	var alerts []flow.Alert
	for _, series := range flow.GroupByRoute(records) {
		alerts = append(alerts, flow.DetectAlerts(series, mcfg, acfg)...)
	}
	flow.RankAlerts(alerts)
	return alerts
}

// Report generates the newsletter document for the current data. The
// composer sees only the records inside the alert lookback window; alerts
// keep their longer baseline history.
func (p *Pipeline) Report(ctx context.Context, sections []newsletter.Section) (*newsletter.Document, error) {
	records, err := p.Flows(ctx, false)
	if err != nil {
		return nil, err
	}
	alerts := p.detect(records)

	cutoff := p.now().Add(-p.cfg.Alerts.Lookback())
	var recent []flow.Record
	for _, r := range records {
		if !r.Timestamp.Before(cutoff) {
			recent = append(recent, r)
		}
	}

	opts := []newsletter.ComposerOption{
		newsletter.WithPeriodHours(p.cfg.Alerts.LookbackHours),
	}
	if len(sections) > 0 {
		opts = append(opts, newsletter.WithSections(sections))
	} else if len(p.cfg.Newsletter.Sections) > 0 {
		named := make([]newsletter.Section, 0, len(p.cfg.Newsletter.Sections))
		for _, s := range p.cfg.Newsletter.Sections {
			named = append(named, newsletter.Section(s))
		}
		opts = append(opts, newsletter.WithSections(named))
	}

	return newsletter.NewComposer(opts...).Generate(recent, alerts)
}

// ExportPDF generates the report and writes its PDF rendition under the
// configured output directory, returning the written path.
func (p *Pipeline) ExportPDF(ctx context.Context, name string) (string, error) {
	doc, err := p.Report(ctx, nil)
	if err != nil {
		return "", err
	}
	records, err := p.Flows(ctx, false)
	if err != nil {
		return "", err
	}

	if name == "" {
		name = fmt.Sprintf("newsletter_%s.pdf", doc.GeneratedAt.Format("20060102_150405"))
	}
	return newsletter.ExportPDF(doc, records, filepath.Join(p.cfg.Newsletter.OutputDir, name))
}

// RetailDemand returns the trailing year of monthly retail electricity sales
// for a U.S. state, cached for a day since the series updates monthly.
func (p *Pipeline) RetailDemand(ctx context.Context, state, sector string) ([]sources.SeriesPoint, error) {
	src := cache.SourceFunc(func(ctx context.Context) (any, error) {
		end := p.now()
		return p.eia.RetailSales(ctx, state, sector, end.AddDate(-1, 0, 0), end)
	})
	key := fmt.Sprintf("demand:retail:%s:%s", state, sector)
	return cache.FetchAs[[]sources.SeriesPoint](ctx, p.cache, key, src,
		cache.TTLOverride(24*time.Hour))
}

// CarbonIntensity returns the cached latest carbon intensity for a zone.
func (p *Pipeline) CarbonIntensity(ctx context.Context, zone string) (sources.CarbonIntensity, error) {
	src := cache.SourceFunc(func(ctx context.Context) (any, error) {
		return p.emaps.LatestCarbonIntensity(ctx, zone)
	})
	return cache.FetchAs[sources.CarbonIntensity](ctx, p.cache, CarbonKey+":"+zone, src,
		cache.TTLOverride(5*time.Minute))
}

func (p *Pipeline) metricsConfig() flow.MetricsConfig {
	return flow.MetricsConfig{
		Window:              p.cfg.Metrics.Window(),
		BaselineWindow:      p.cfg.Metrics.BaselineWindow(),
		AnomalyThresholdPct: p.cfg.Metrics.AnomalyThresholdPct,
		MinBaselineSamples:  p.cfg.Metrics.MinBaselineSamples,
	}
}
