package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestDataset_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		dataset domain.Dataset
		want    bool
	}{
		{"kpis is valid", domain.DatasetKPIs, true},
		{"narratives is valid", domain.DatasetNarratives, true},
		{"empty is invalid", domain.Dataset(""), false},
		{"uppercase is invalid", domain.Dataset("KPIS"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dataset.IsValid())
		})
	}
}

func TestKPIRow_Observation(t *testing.T) {
	row := domain.KPIRow{
		Date:               "2024-03-01",
		PrescriptionVolume: ptr(120),
		MarketingSpendUSD:  ptr(0),
		SatisfactionScore:  nil,
	}

	obs := row.Observation()

	assert.Equal(t, "2024-03-01", obs.Date)

	v, ok := obs.Value(domain.MeasureVolume)
	require.True(t, ok)
	assert.Equal(t, 120.0, v)

	spend, ok := obs.Value(domain.MeasureSpend)
	require.True(t, ok, "zero is present, not missing")
	assert.Equal(t, 0.0, spend)

	_, ok = obs.Value(domain.MeasureSatisfaction)
	assert.False(t, ok)
	_, ok = obs.Value(domain.MeasureRepVisits)
	assert.False(t, ok)
}

func TestAnomalyRow_Observation(t *testing.T) {
	row := domain.AnomalyRow{
		Date:       "2024-05-02",
		Actual:     ptr(40),
		Forecast:   ptr(55),
		LowerBound: ptr(50),
		UpperBound: ptr(60),
		IsAnomaly:  true,
	}

	obs := row.Observation()
	assert.Len(t, obs.Measures, 4)
	assert.Equal(t, 50.0, obs.Measures[domain.MeasureLowerBound])
}

func TestDriverRow_Label(t *testing.T) {
	tests := []struct {
		name        string
		contributor string
		want        string
	}{
		{"json array", `["REGION = West","CHANNEL = Digital"]`, "REGION = West, CHANNEL = Digital"},
		{"single element", `["Overall"]`, "Overall"},
		{"plain text", "Northeast", "Northeast"},
		{"empty array falls back", `[]`, `[]`},
		{"malformed json", `["REGION`, `["REGION`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := domain.DriverRow{Contributor: tt.contributor}
			assert.Equal(t, tt.want, row.Label())
		})
	}
}

func TestKPIRow_JSONKeys(t *testing.T) {
	row := domain.KPIRow{Date: "2024-01-01", PrescriptionVolume: ptr(10)}

	b, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))

	assert.Equal(t, "2024-01-01", decoded["DATE"])
	assert.Equal(t, 10.0, decoded["PRESCRIPTIONVOLUME"])
	assert.Contains(t, decoded, "MARKETINGSPENDUSD")
	assert.Nil(t, decoded["MARKETINGSPENDUSD"])
}
