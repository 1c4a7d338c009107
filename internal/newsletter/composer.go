// Package newsletter turns flow records and alert events into a structured,
// sectioned report: markdown first, with a companion PDF exporter.
package newsletter

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gridpulse/gridpulse/internal/flow"
)

// Section names a toggleable report section.
type Section string

const (
	SectionSummary         Section = "summary"
	SectionSurgeAlerts     Section = "surge_alerts"
	SectionFlowTrends      Section = "flow_trends"
	SectionKeyMetrics      Section = "key_metrics"
	SectionRecommendations Section = "recommendations"
)

// DefaultSections returns every section, in render order.
func DefaultSections() []Section {
	return []Section{
		SectionSummary,
		SectionSurgeAlerts,
		SectionFlowTrends,
		SectionKeyMetrics,
		SectionRecommendations,
	}
}

// maxAlertRows and maxTrendRows bound the listed detail in a report.
const (
	maxAlertRows = 10
	maxTrendRows = 10
)

// RenderedSection is one named block of the document.
type RenderedSection struct {
	Name Section `json:"name"`
	Body string  `json:"body"`
}

// Document is a generated report: an ordered sequence of named sections plus
// the assembled markdown. It is produced once per generation request and
// exported without mutation.
type Document struct {
	ID          string            `json:"id"`
	GeneratedAt time.Time         `json:"generated_at"`
	PeriodHours int               `json:"period_hours"`
	Sections    []RenderedSection `json:"sections"`
	Markdown    string            `json:"markdown"`
}

// Composer renders reports. Output is deterministic for identical inputs,
// byte-identical except for the embedded generation timestamp.
type Composer struct {
	sections    []Section
	periodHours int
	now         func() time.Time
	newID       func() string
}

// ComposerOption customizes a Composer.
type ComposerOption func(*Composer)

// WithSections restricts the report to the given sections, in the given
// order.
func WithSections(sections []Section) ComposerOption {
	return func(c *Composer) {
		if len(sections) > 0 {
			c.sections = sections
		}
	}
}

// WithPeriodHours sets the reporting period named in the header.
func WithPeriodHours(hours int) ComposerOption {
	return func(c *Composer) { c.periodHours = hours }
}

// WithClock injects the generation timestamp source, for determinism tests.
func WithClock(now func() time.Time) ComposerOption {
	return func(c *Composer) { c.now = now }
}

// NewComposer creates a report composer.
func NewComposer(opts ...ComposerOption) *Composer {
	c := &Composer{
		sections:    DefaultSections(),
		periodHours: 72,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate renders a document from the flows and alerts. Empty inputs still
// produce a valid document: data-less sections render an explanatory
// placeholder instead of being omitted.
func (c *Composer) Generate(flows []flow.Record, alerts []flow.Alert) (*Document, error) {
	data := c.buildView(flows, alerts)

	doc := &Document{
		ID:          c.newID(),
		GeneratedAt: data.GeneratedAt,
		PeriodHours: c.periodHours,
	}

	var md strings.Builder
	head, err := renderTemplate("header", headerTemplate, data)
	if err != nil {
		return nil, err
	}
	md.WriteString(head)

	for _, section := range c.sections {
		tmpl, ok := sectionTemplates[section]
		if !ok {
			log.Warn().Str("section", string(section)).Msg("Unknown newsletter section, skipping")
			continue
		}
		body, err := renderTemplate(string(section), tmpl, data)
		if err != nil {
			return nil, err
		}
		doc.Sections = append(doc.Sections, RenderedSection{Name: section, Body: body})
		md.WriteString(body)
	}

	quality, err := renderTemplate("data_quality", qualityTemplate, data)
	if err != nil {
		return nil, err
	}
	md.WriteString(quality)

	foot, err := renderTemplate("footer", footerTemplate, data)
	if err != nil {
		return nil, err
	}
	md.WriteString(foot)

	doc.Markdown = md.String()
	log.Info().Int("sections", len(doc.Sections)).Int("alerts", len(alerts)).Msg("Generated newsletter")
	return doc, nil
}

func renderTemplate(name, text string, data *reportView) (string, error) {
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s section: %w", name, err)
	}
	return buf.String(), nil
}

// reportView is the template input, fully precomputed so rendering is
// deterministic.
type reportView struct {
	GeneratedAt time.Time
	PeriodHours int
	TotalAlerts int
	Alerts      []alertView
	TopRoutes   []RouteSummary
	HasFlows    bool
	Metrics     metricsView
	Quality     qualityView
}

type alertView struct {
	Marker       string
	Route        string
	Kind         flow.AlertKind
	Severity     flow.Severity
	Timestamp    string
	CurrentMW    string
	BaselineMW   string
	DeviationPct string
	Capacity     string
}

// RouteSummary aggregates one route over the input set. Shared with the PDF
// exporter's data table.
type RouteSummary struct {
	Route  string
	MeanMW float64
	MaxMW  float64
	MinMW  float64
}

type metricsView struct {
	MeanMW string
	PeakMW string
	MinMW  string
	StdMW  string
}

type qualityView struct {
	Records int
	Start   string
	End     string
	Sources string
}

func (c *Composer) buildView(flows []flow.Record, alerts []flow.Alert) *reportView {
	v := &reportView{
		GeneratedAt: c.now().UTC(),
		PeriodHours: c.periodHours,
		TotalAlerts: len(alerts),
		HasFlows:    len(flows) > 0,
	}

	top := alerts
	if len(top) > maxAlertRows {
		top = top[:maxAlertRows]
	}
	for _, a := range top {
		marker := "[SURGE]"
		if a.Kind == flow.KindDrop {
			marker = "[DROP]"
		}
		capacity := "N/A"
		if a.CapacityMW != nil {
			capacity = fmt.Sprintf("%.0f MW", *a.CapacityMW)
		}
		v.Alerts = append(v.Alerts, alertView{
			Marker:       marker,
			Route:        a.Route.String(),
			Kind:         a.Kind,
			Severity:     a.Severity,
			Timestamp:    a.Timestamp.UTC().Format("2006-01-02 15:04 UTC"),
			CurrentMW:    fmt.Sprintf("%.0f MW", a.CurrentMW),
			BaselineMW:   fmt.Sprintf("%.0f MW", a.BaselineMW),
			DeviationPct: fmt.Sprintf("%+.1f%%", a.DeviationPct),
			Capacity:     capacity,
		})
	}

	summaries := SummarizeRoutes(flows)
	if len(summaries) > maxTrendRows {
		summaries = summaries[:maxTrendRows]
	}
	v.TopRoutes = summaries

	if len(flows) > 0 {
		mean, std, min, max := flowStats(flows)
		v.Metrics = metricsView{
			MeanMW: fmt.Sprintf("%.0f MW", mean),
			PeakMW: fmt.Sprintf("%.0f MW", max),
			MinMW:  fmt.Sprintf("%.0f MW", min),
			StdMW:  fmt.Sprintf("%.0f MW", std),
		}

		start, end := flows[0].Timestamp, flows[0].Timestamp
		sources := make(map[string]struct{})
		for _, r := range flows {
			if r.Timestamp.Before(start) {
				start = r.Timestamp
			}
			if r.Timestamp.After(end) {
				end = r.Timestamp
			}
			if r.Source != "" {
				sources[r.Source] = struct{}{}
			}
		}
		names := make([]string, 0, len(sources))
		for s := range sources {
			names = append(names, s)
		}
		sort.Strings(names)
		v.Quality = qualityView{
			Records: len(flows),
			Start:   start.UTC().Format("2006-01-02 15:04 UTC"),
			End:     end.UTC().Format("2006-01-02 15:04 UTC"),
			Sources: strings.Join(names, ", "),
		}
	}

	return v
}

// SummarizeRoutes groups records by route and computes mean/max/min of the
// flow magnitude, sorted by descending mean (route name breaks ties so the
// order is stable).
func SummarizeRoutes(records []flow.Record) []RouteSummary {
	groups := flow.GroupByRoute(records)
	out := make([]RouteSummary, 0, len(groups))
	for route, series := range groups {
		sum := 0.0
		min := math.Abs(series[0].FlowMW)
		max := min
		for _, r := range series {
			mag := math.Abs(r.FlowMW)
			sum += mag
			if mag < min {
				min = mag
			}
			if mag > max {
				max = mag
			}
		}
		out = append(out, RouteSummary{
			Route:  route.String(),
			MeanMW: sum / float64(len(series)),
			MaxMW:  max,
			MinMW:  min,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanMW != out[j].MeanMW {
			return out[i].MeanMW > out[j].MeanMW
		}
		return out[i].Route < out[j].Route
	})
	return out
}

func flowStats(records []flow.Record) (mean, std, min, max float64) {
	n := float64(len(records))
	min = records[0].FlowMW
	max = records[0].FlowMW
	sum := 0.0
	for _, r := range records {
		sum += r.FlowMW
		if r.FlowMW < min {
			min = r.FlowMW
		}
		if r.FlowMW > max {
			max = r.FlowMW
		}
	}
	mean = sum / n
	if len(records) >= 2 {
		var sq float64
		for _, r := range records {
			d := r.FlowMW - mean
			sq += d * d
		}
		std = math.Sqrt(sq / (n - 1))
	}
	return mean, std, min, max
}
