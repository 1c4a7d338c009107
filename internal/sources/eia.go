package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const eiaBaseURL = "https://api.eia.gov/v2"

// SeriesPoint is one observation from a generic tabular upstream series.
// Source-specific columns ride along in Extra rather than growing the type.
type SeriesPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Unit      string            `json:"unit,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EIA fetches U.S. electricity statistics from the EIA v2 API.
type EIA struct {
	client  *Client
	apiKey  string
	baseURL string
}

// NewEIA creates an EIA client.
func NewEIA(client *Client, apiKey string) *EIA {
	return &EIA{client: client, apiKey: apiKey, baseURL: eiaBaseURL}
}

// Configured reports whether an API key is present.
func (e *EIA) Configured() bool { return e.apiKey != "" }

type eiaResponse struct {
	Response struct {
		Data []map[string]any `json:"data"`
	} `json:"response"`
}

// RetailSales fetches monthly retail-sales observations for a state and
// sector over the window.
func (e *EIA) RetailSales(ctx context.Context, state, sector string, start, end time.Time) ([]SeriesPoint, error) {
	if !e.Configured() {
		return nil, fmt.Errorf("EIA_API_KEY not configured")
	}

	params := url.Values{}
	params.Set("api_key", e.apiKey)
	params.Set("frequency", "monthly")
	params.Set("data[]", "value")
	params.Set("facets[stateid][]", state)
	params.Set("facets[sectorid][]", sector)
	params.Set("start", start.Format("2006-01"))
	params.Set("end", end.Format("2006-01"))
	params.Set("offset", "0")
	params.Set("length", "5000")

	var resp eiaResponse
	reqURL := e.baseURL + "/electricity/retail-sales/data?" + params.Encode()
	if err := e.client.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("EIA request failed: %w", err)
	}
	if len(resp.Response.Data) == 0 {
		return nil, fmt.Errorf("EIA retail-sales %s/%s: %w", state, sector, ErrNoData)
	}

	points := make([]SeriesPoint, 0, len(resp.Response.Data))
	for _, row := range resp.Response.Data {
		point := SeriesPoint{Extra: make(map[string]string)}
		for k, v := range row {
			switch k {
			case "period":
				if s, ok := v.(string); ok {
					if ts, err := time.Parse("2006-01", s); err == nil {
						point.Timestamp = ts
					}
				}
			case "value":
				point.Value = toFloat(v)
			case "value-units":
				if s, ok := v.(string); ok {
					point.Unit = s
				}
			default:
				point.Extra[k] = fmt.Sprint(v)
			}
		}
		if point.Timestamp.IsZero() {
			continue
		}
		points = append(points, point)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("EIA retail-sales %s/%s: %w", state, sector, ErrNoData)
	}

	log.Info().Int("records", len(points)).Str("state", state).Msg("Fetched EIA retail sales")
	return points, nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
