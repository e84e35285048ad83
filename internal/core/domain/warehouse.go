package domain

import (
	"encoding/json"
	"strings"
)

// Dataset names a fixed warehouse read.
type Dataset string

const (
	DatasetKPIs       Dataset = "kpis"
	DatasetForecast   Dataset = "forecast"
	DatasetAnomalies  Dataset = "anomalies"
	DatasetDrivers    Dataset = "drivers"
	DatasetNarratives Dataset = "narratives"
)

// Datasets lists every dataset in the order the dashboard loads them.
var Datasets = []Dataset{
	DatasetKPIs,
	DatasetForecast,
	DatasetAnomalies,
	DatasetDrivers,
	DatasetNarratives,
}

func (d Dataset) IsValid() bool {
	for _, known := range Datasets {
		if d == known {
			return true
		}
	}
	return false
}

// KPIRow is one day of prescription sales. JSON keys follow the column
// names the warehouse returns so the raw endpoints stay wire compatible.
type KPIRow struct {
	Date               string   `json:"DATE"`
	PrescriptionVolume *float64 `json:"PRESCRIPTIONVOLUME"`
	MarketingSpendUSD  *float64 `json:"MARKETINGSPENDUSD"`
	RepVisits          *float64 `json:"REPVISITS"`
	SatisfactionScore  *float64 `json:"SATISFACTIONSCORE"`
}

func (r KPIRow) Observation() Observation {
	return NewObservation(r.Date, map[Measure]*float64{
		MeasureVolume:       r.PrescriptionVolume,
		MeasureSpend:        r.MarketingSpendUSD,
		MeasureRepVisits:    r.RepVisits,
		MeasureSatisfaction: r.SatisfactionScore,
	})
}

// ForecastRow is one day of the 30 day prescription forecast.
type ForecastRow struct {
	Date       string   `json:"DATE"`
	Forecast   *float64 `json:"FORECAST"`
	LowerBound *float64 `json:"LOWERBOUND"`
	UpperBound *float64 `json:"UPPERBOUND"`
}

func (r ForecastRow) Observation() Observation {
	return NewObservation(r.Date, map[Measure]*float64{
		MeasureForecast:   r.Forecast,
		MeasureLowerBound: r.LowerBound,
		MeasureUpperBound: r.UpperBound,
	})
}

// AnomalyRow is an observed value scored against its forecast band.
type AnomalyRow struct {
	Date       string   `json:"DATE"`
	Actual     *float64 `json:"ACTUAL"`
	Forecast   *float64 `json:"FORECAST"`
	LowerBound *float64 `json:"LOWERBOUND"`
	UpperBound *float64 `json:"UPPERBOUND"`
	IsAnomaly  bool     `json:"ISANOMALY"`
	Percentile *float64 `json:"PERCENTILE"`
	Distance   *float64 `json:"DISTANCE"`
}

func (r AnomalyRow) Observation() Observation {
	return NewObservation(r.Date, map[Measure]*float64{
		MeasureActual:     r.Actual,
		MeasureForecast:   r.Forecast,
		MeasureLowerBound: r.LowerBound,
		MeasureUpperBound: r.UpperBound,
	})
}

// DriverRow is one contributor segment from the insight driver analysis.
type DriverRow struct {
	Contributor          string   `json:"CONTRIBUTOR"`
	MetricControl        *float64 `json:"METRICCONTROL"`
	MetricTest           *float64 `json:"METRICTEST"`
	Contribution         *float64 `json:"CONTRIBUTION"`
	RelativeContribution float64  `json:"RELATIVECONTRIBUTION"`
	GrowthRate           *float64 `json:"GROWTHRATE"`
}

// Label renders the contributor for display. The warehouse stores segment
// dimensions as a JSON array of strings; anything else is shown verbatim.
func (r DriverRow) Label() string {
	var parts []string
	if err := json.Unmarshal([]byte(r.Contributor), &parts); err != nil || len(parts) == 0 {
		return r.Contributor
	}
	return strings.Join(parts, ", ")
}

// Narratives holds the generated summary text for each dashboard section.
type Narratives struct {
	KPINarrative      string `json:"KPINARRATIVE,omitempty"`
	ForecastNarrative string `json:"FORECASTNARRATIVE,omitempty"`
	AnomalyNarrative  string `json:"ANOMALYNARRATIVE,omitempty"`
	InsightNarrative  string `json:"INSIGHTNARRATIVE,omitempty"`
}
