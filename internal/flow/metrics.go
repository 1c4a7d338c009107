package flow

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// MetricsConfig sets the trailing windows for the metrics engine. All windows
// are time-based, never count-based, so irregularly sampled series are
// handled correctly.
type MetricsConfig struct {
	// Window is the short rolling window for mean/std/min/max.
	Window time.Duration
	// BaselineWindow is the long trailing window whose mean is the
	// "normal" reference for deviation.
	BaselineWindow time.Duration
	// AnomalyThresholdPct flags a record when |deviation| exceeds it
	// (strictly).
	AnomalyThresholdPct float64
	// MinBaselineSamples is the minimum window population below which
	// deviation is reported as 0 rather than an error.
	MinBaselineSamples int
}

// DefaultMetricsConfig returns the documented defaults: 24 h window, 7 d
// baseline, 20% threshold.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Window:              24 * time.Hour,
		BaselineWindow:      7 * 24 * time.Hour,
		AnomalyThresholdPct: 20,
		MinBaselineSamples:  2,
	}
}

// ComputeMetrics augments a single route series (or a route-agnostic overall
// series) with rolling statistics and a causal deviation-from-baseline. The
// input need not be pre-sorted and is not modified; an empty input yields an
// empty result. Each record's windows cover only records at or before its own
// timestamp, so appending later data never changes earlier results.
func ComputeMetrics(records []Record, cfg MetricsConfig) []Metrics {
	if len(records) == 0 {
		return nil
	}
	if cfg.Window <= 0 || cfg.BaselineWindow <= 0 {
		def := DefaultMetricsConfig()
		if cfg.Window <= 0 {
			cfg.Window = def.Window
		}
		if cfg.BaselineWindow <= 0 {
			cfg.BaselineWindow = def.BaselineWindow
		}
	}
	if cfg.AnomalyThresholdPct <= 0 {
		cfg.AnomalyThresholdPct = DefaultMetricsConfig().AnomalyThresholdPct
	}
	if cfg.MinBaselineSamples <= 0 {
		cfg.MinBaselineSamples = DefaultMetricsConfig().MinBaselineSamples
	}

	series := make([]Record, len(records))
	copy(series, records)
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})

	out := make([]Metrics, len(series))
	shortStart, baseStart := 0, 0
	anomalies := 0

	for i, r := range series {
		t := r.Timestamp

		// Both windows are half-open (t-w, t]: a record exactly one
		// window old has aged out.
		for !series[shortStart].Timestamp.After(t.Add(-cfg.Window)) {
			shortStart++
		}
		for !series[baseStart].Timestamp.After(t.Add(-cfg.BaselineWindow)) {
			baseStart++
		}

		mean, std, min, max := windowStats(series[shortStart : i+1])
		baseline, _, _, _ := windowStats(series[baseStart : i+1])
		baseSamples := i - baseStart + 1

		deviation := 0.0
		if baseSamples >= cfg.MinBaselineSamples && baseline != 0 && !math.IsNaN(baseline) {
			deviation = (r.FlowMW - baseline) / math.Abs(baseline) * 100
		}
		anomaly := math.Abs(deviation) > cfg.AnomalyThresholdPct
		if anomaly {
			anomalies++
		}

		out[i] = Metrics{
			Record:          r,
			RollingMean:     mean,
			RollingStd:      std,
			RollingMin:      min,
			RollingMax:      max,
			Baseline:        baseline,
			BaselineSamples: baseSamples,
			DeviationPct:    deviation,
			IsAnomaly:       anomaly,
		}
	}

	log.Debug().Int("records", len(out)).Int("anomalies", anomalies).Msg("Computed flow metrics")
	return out
}

// windowStats returns mean, sample std (0 below two samples), min and max of
// the window's flow values.
func windowStats(window []Record) (mean, std, min, max float64) {
	n := float64(len(window))
	if n == 0 {
		return 0, 0, 0, 0
	}

	min = window[0].FlowMW
	max = window[0].FlowMW
	sum := 0.0
	for _, r := range window {
		sum += r.FlowMW
		if r.FlowMW < min {
			min = r.FlowMW
		}
		if r.FlowMW > max {
			max = r.FlowMW
		}
	}
	mean = sum / n

	if len(window) >= 2 {
		var sq float64
		for _, r := range window {
			d := r.FlowMW - mean
			sq += d * d
		}
		std = math.Sqrt(sq / (n - 1))
	}
	return mean, std, min, max
}
