// Package flow holds the cross-border electricity flow domain: measurement
// records, rolling-window metrics, and surge/drop alert detection.
package flow

import (
	"fmt"
	"time"
)

// UnknownZone is the placeholder for a missing route endpoint.
const UnknownZone = "Unknown"

// Route is an ordered pair of grid zones between which a flow is reported.
type Route struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (r Route) String() string {
	from, to := r.From, r.To
	if from == "" {
		from = UnknownZone
	}
	if to == "" {
		to = UnknownZone
	}
	return fmt.Sprintf("%s->%s", from, to)
}

// Record is one immutable flow measurement produced by an upstream source.
// Signed FlowMW: positive is export along the route, negative import. Extra
// carries source-specific columns as an opaque passthrough.
type Record struct {
	Timestamp  time.Time         `json:"timestamp"`
	FromZone   string            `json:"from_zone"`
	ToZone     string            `json:"to_zone"`
	FlowMW     float64           `json:"flow_mw"`
	CapacityMW *float64          `json:"capacity_mw,omitempty"`
	Source     string            `json:"source"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Route returns the record's route pair.
func (r Record) Route() Route {
	return Route{From: r.FromZone, To: r.ToZone}
}

// Direction classifies the signed flow.
func (r Record) Direction() string {
	switch {
	case r.FlowMW < 0:
		return "Import"
	case r.FlowMW > 0:
		return "Export"
	default:
		return "Neutral"
	}
}

// UtilizationPct returns |flow|/capacity*100, false when capacity is absent
// or non-positive.
func (r Record) UtilizationPct() (float64, bool) {
	if r.CapacityMW == nil || *r.CapacityMW <= 0 {
		return 0, false
	}
	mag := r.FlowMW
	if mag < 0 {
		mag = -mag
	}
	return mag / *r.CapacityMW * 100, true
}

// Metrics is a Record augmented with derived rolling statistics. The source
// record is embedded unchanged, never mutated.
type Metrics struct {
	Record

	RollingMean float64 `json:"rolling_mean"`
	RollingStd  float64 `json:"rolling_std"`
	RollingMin  float64 `json:"rolling_min"`
	RollingMax  float64 `json:"rolling_max"`

	// Baseline is the trailing long-window mean, computed only from
	// records at or before this record's timestamp.
	Baseline        float64 `json:"baseline"`
	BaselineSamples int     `json:"baseline_samples"`
	DeviationPct    float64 `json:"deviation_pct"`
	IsAnomaly       bool    `json:"is_anomaly"`
}

// AlertKind classifies an anomalous deviation.
type AlertKind string

const (
	KindSurge AlertKind = "SURGE"
	KindDrop  AlertKind = "DROP"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Alert is one discrete surge/drop event. Alerts live for a single
// report-generation cycle and are never persisted.
type Alert struct {
	Timestamp    time.Time `json:"timestamp"`
	Route        Route     `json:"route"`
	Kind         AlertKind `json:"kind"`
	CurrentMW    float64   `json:"current_mw"`
	BaselineMW   float64   `json:"baseline_mw"`
	DeviationPct float64   `json:"deviation_pct"`
	Severity     Severity  `json:"severity"`
	CapacityMW   *float64  `json:"capacity_mw,omitempty"`
}
