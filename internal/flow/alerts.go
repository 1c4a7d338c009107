package flow

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// AlertConfig controls the surge alert detector.
type AlertConfig struct {
	// DeviationThresholdPct is the |deviation| above which (strictly) a
	// record yields an alert.
	DeviationThresholdPct float64
	// Lookback restricts eligibility: only records at or after
	// now-Lookback can alert, independent of how far back the baseline
	// reached.
	Lookback time.Duration
	// Now anchors the lookback window; the zero value means time.Now().
	Now time.Time
}

// DefaultAlertConfig returns the documented defaults: 20% threshold, 72 h
// lookback.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{DeviationThresholdPct: 20, Lookback: 72 * time.Hour}
}

// DetectAlerts computes metrics for the series and extracts alerts. It is a
// pure function of its inputs; no state survives between calls.
func DetectAlerts(records []Record, mcfg MetricsConfig, acfg AlertConfig) []Alert {
	return DetectFromMetrics(ComputeMetrics(records, mcfg), acfg)
}

// DetectFromMetrics thresholds an already-augmented series into discrete
// alert events, ranked by descending |deviation|.
func DetectFromMetrics(series []Metrics, acfg AlertConfig) []Alert {
	if len(series) == 0 {
		return nil
	}
	if acfg.DeviationThresholdPct <= 0 {
		acfg.DeviationThresholdPct = DefaultAlertConfig().DeviationThresholdPct
	}
	if acfg.Lookback <= 0 {
		acfg.Lookback = DefaultAlertConfig().Lookback
	}
	now := acfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.Add(-acfg.Lookback)

	var alerts []Alert
	for _, m := range series {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		if math.Abs(m.DeviationPct) <= acfg.DeviationThresholdPct {
			continue
		}

		kind := KindSurge
		if m.DeviationPct < 0 {
			kind = KindDrop
		}
		severity := SeverityMedium
		if math.Abs(m.DeviationPct) > 2*acfg.DeviationThresholdPct {
			severity = SeverityHigh
		}

		route := m.Route()
		if route.From == "" {
			route.From = UnknownZone
		}
		if route.To == "" {
			route.To = UnknownZone
		}

		alerts = append(alerts, Alert{
			Timestamp:    m.Timestamp,
			Route:        route,
			Kind:         kind,
			CurrentMW:    m.FlowMW,
			BaselineMW:   m.Baseline,
			DeviationPct: m.DeviationPct,
			Severity:     severity,
			CapacityMW:   m.CapacityMW,
		})
	}

	RankAlerts(alerts)
	log.Debug().Int("alerts", len(alerts)).Msg("Detected surge alerts")
	return alerts
}

// RankAlerts orders alerts by descending |deviation|, the contract the
// newsletter composer relies on when it takes the top N.
func RankAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return math.Abs(alerts[i].DeviationPct) > math.Abs(alerts[j].DeviationPct)
	})
}
