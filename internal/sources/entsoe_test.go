package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const entsoeSampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument>
  <TimeSeries>
    <in_Domain.mRID>10YAT-APG------L</in_Domain.mRID>
    <out_Domain.mRID>10Y1001A1001A63L</out_Domain.mRID>
    <Period>
      <timeInterval><start>2025-06-01T00:00Z</start></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><quantity>5000</quantity></Point>
      <Point><position>2</position><quantity>5150</quantity></Point>
    </Period>
  </TimeSeries>
</Publication_MarketDocument>`

func TestCrossBorderFlows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "A44", q.Get("documentType"))
		assert.Equal(t, "10YAT-APG------L", q.Get("in_Domain"))
		assert.Equal(t, "10Y1001A1001A63L", q.Get("out_Domain"))
		assert.Equal(t, "token", q.Get("securityToken"))
		assert.Regexp(t, `^\d{12}$`, q.Get("periodStart"))
		w.Write([]byte(entsoeSampleXML))
	}))
	defer srv.Close()

	e := NewENTSOE(testClient(), "token")
	e.baseURL = srv.URL

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records, err := e.CrossBorderFlows(context.Background(), "10YAT-APG------L", "10Y1001A1001A63L", start, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Germany", records[0].FromZone)
	assert.Equal(t, "Austria", records[0].ToZone)
	assert.Equal(t, 5000.0, records[0].FlowMW)
	assert.True(t, records[0].Timestamp.Equal(start))
	assert.Equal(t, "ENTSO-E", records[0].Source)

	assert.Equal(t, 5150.0, records[1].FlowMW)
	assert.True(t, records[1].Timestamp.Equal(start.Add(time.Hour)), "positions step by the period resolution")
}

func TestCrossBorderFlowsEmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<Publication_MarketDocument></Publication_MarketDocument>`))
	}))
	defer srv.Close()

	e := NewENTSOE(testClient(), "token")
	e.baseURL = srv.URL

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := e.CrossBorderFlows(context.Background(), "a", "b", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCrossBorderFlowsRequiresKey(t *testing.T) {
	e := NewENTSOE(testClient(), "")
	assert.False(t, e.Configured())

	_, err := e.CrossBorderFlows(context.Background(), "a", "b", time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENTSO_E_API_KEY")
}

func TestParseResolution(t *testing.T) {
	assert.Equal(t, time.Hour, parseResolution("PT60M"))
	assert.Equal(t, 15*time.Minute, parseResolution("PT15M"))
	assert.Equal(t, time.Hour, parseResolution("P1D"), "unknown resolutions fall back to hourly")
	assert.Equal(t, time.Hour, parseResolution(""))
}

func TestUnknownZoneKeepsEIC(t *testing.T) {
	e := NewENTSOE(testClient(), "token")
	assert.Equal(t, "Germany", e.zoneLabel("10Y1001A1001A63L"))
	assert.Equal(t, "10YXX-UNKNOWN--X", e.zoneLabel("10YXX-UNKNOWN--X"))
}
