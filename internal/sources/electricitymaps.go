package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const electricityMapsBaseURL = "https://api.electricitymaps.com/v3"

// CarbonIntensity is one zone's latest carbon-intensity reading.
type CarbonIntensity struct {
	Zone      string    `json:"zone"`
	Intensity float64   `json:"carbon_intensity"` // gCO2eq/kWh
	UpdatedAt time.Time `json:"updated_at"`
	Estimated bool      `json:"estimated"`
}

// ElectricityMaps fetches carbon-intensity data from the Electricity Maps v3
// API.
type ElectricityMaps struct {
	client  *Client
	apiKey  string
	baseURL string
}

// NewElectricityMaps creates an Electricity Maps client.
func NewElectricityMaps(client *Client, apiKey string) *ElectricityMaps {
	return &ElectricityMaps{client: client, apiKey: apiKey, baseURL: electricityMapsBaseURL}
}

// Configured reports whether an API key is present.
func (e *ElectricityMaps) Configured() bool { return e.apiKey != "" }

type carbonIntensityResponse struct {
	Zone            string    `json:"zone"`
	CarbonIntensity float64   `json:"carbonIntensity"`
	Datetime        time.Time `json:"datetime"`
	IsEstimated     bool      `json:"isEstimated"`
}

// LatestCarbonIntensity fetches the most recent carbon intensity for a zone.
func (e *ElectricityMaps) LatestCarbonIntensity(ctx context.Context, zone string) (CarbonIntensity, error) {
	if !e.Configured() {
		return CarbonIntensity{}, fmt.Errorf("ELECTRICITY_MAPS_API_KEY not configured")
	}

	params := url.Values{}
	params.Set("zone", zone)
	headers := map[string]string{"auth-token": e.apiKey}

	var resp carbonIntensityResponse
	reqURL := e.baseURL + "/carbon-intensity/latest?" + params.Encode()
	if err := e.client.GetJSON(ctx, reqURL, headers, &resp); err != nil {
		return CarbonIntensity{}, fmt.Errorf("Electricity Maps request failed: %w", err)
	}
	if resp.Zone == "" {
		return CarbonIntensity{}, fmt.Errorf("Electricity Maps zone %s: %w", zone, ErrNoData)
	}

	log.Info().Str("zone", resp.Zone).Float64("intensity", resp.CarbonIntensity).
		Msg("Fetched carbon intensity")
	return CarbonIntensity{
		Zone:      resp.Zone,
		Intensity: resp.CarbonIntensity,
		UpdatedAt: resp.Datetime,
		Estimated: resp.IsEstimated,
	}, nil
}
