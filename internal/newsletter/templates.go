package newsletter

const headerTemplate = `# ELECTRICITY INTERCONNECTION REPORT
Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}}
Period: Last {{.PeriodHours}} Hours

---

`

var sectionTemplates = map[Section]string{
	SectionSummary: `## Executive Summary

This report provides a comprehensive analysis of cross-border electricity
flows for the past {{.PeriodHours}} hours, highlighting significant deviations,
trends, and operational insights.

`,

	SectionSurgeAlerts: `## Surge Alerts ({{.TotalAlerts}} detected)

{{if .Alerts -}}
The following routes experienced significant flow deviations from their
trailing 7-day average:

{{range .Alerts}}### {{.Marker}} {{.Route}} - {{.Severity}}
- **Type**: {{.Kind}}
- **Time**: {{.Timestamp}}
- **Current Flow**: {{.CurrentMW}}
- **7-Day Average**: {{.BaselineMW}}
- **Deviation**: {{.DeviationPct}}
- **Capacity**: {{.Capacity}}

{{end -}}
{{else -}}
No significant flow deviations were detected in the reporting window.

{{end}}`,

	SectionFlowTrends: `## Flow Trends ({{.PeriodHours}} Hours)

{{if .TopRoutes -}}
**Top {{len .TopRoutes}} Busiest Routes:**

{{range $i, $r := .TopRoutes}}{{inc $i}}. {{$r.Route}}: {{printf "%.0f" $r.MeanMW}} MW
{{end}}
{{else -}}
No flow data available for the reporting window.

{{end}}`,

	SectionKeyMetrics: `## Key Metrics

{{if .HasFlows -}}
- **Average Flow**: {{.Metrics.MeanMW}}
- **Peak Flow**: {{.Metrics.PeakMW}}
- **Min Flow**: {{.Metrics.MinMW}}
- **Std Dev**: {{.Metrics.StdMW}}

{{else -}}
No flow data available to compute metrics.

{{end}}`,

	SectionRecommendations: `## Operational Recommendations

1. **Immediate Actions**: Monitor the highlighted surge routes for potential
   transmission constraints.

2. **Preventive Measures**: Consider load balancing and reactive power
   management to mitigate future deviations.

3. **Forecasting**: Implement weather-based forecasting for renewable-heavy
   routes to predict flow patterns.

4. **Regional Cooperation**: Coordinate with neighboring TSOs for better
   reserve sharing and capacity management.

`,
}

const qualityTemplate = `## Data Quality

{{if .HasFlows -}}
- **Records**: {{.Quality.Records}}
- **Coverage**: {{.Quality.Start}} to {{.Quality.End}}
- **Data Sources**: {{.Quality.Sources}}

{{else -}}
- **Records**: 0 (no data received for the reporting window)

{{end}}`

const footerTemplate = `---

*This is an automated report generated by the GridPulse interconnection
monitor. For urgent operational issues, please contact the relevant TSO
directly.*
`
