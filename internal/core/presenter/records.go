package presenter

import (
	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
)

// PeriodChangeRecord is one bucket of the spend and volume change chart.
type PeriodChangeRecord struct {
	Period   string   `json:"period"`
	Date     string   `json:"date"`
	SpendMoM *float64 `json:"spendMoM,omitempty"`
	VolMoM   *float64 `json:"volMoM,omitempty"`
}

// CostPerRxRecord is the spend per prescription of one bucket.
type CostPerRxRecord struct {
	Period string  `json:"period"`
	CPX    float64 `json:"cpx"`
}

// PeriodTotalRecord is the marketing spend summed over one bucket.
type PeriodTotalRecord struct {
	Period string  `json:"period"`
	Date   string  `json:"date"`
	Spend  float64 `json:"spend"`
}

type DriverRecord struct {
	Label        string   `json:"label"`
	Value        float64  `json:"value"`
	Contribution *float64 `json:"contribution,omitempty"`
	GrowthRate   *float64 `json:"growthRate,omitempty"`
}

type AnomalyRecord struct {
	Date      string   `json:"date"`
	Actual    *float64 `json:"actual,omitempty"`
	Forecast  *float64 `json:"forecast,omitempty"`
	Lo        *float64 `json:"lo,omitempty"`
	Hi        *float64 `json:"hi,omitempty"`
	IsAnomaly bool     `json:"isAnomaly"`
}

// AnomalyData keeps every observation for the line and band, plus the
// flagged subset drawn as markers.
type AnomalyData struct {
	Series    []AnomalyRecord `json:"series"`
	Anomalies []AnomalyRecord `json:"anomalies"`
}

type HistoryRecord struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type ForecastRecord struct {
	Date     string   `json:"date"`
	Forecast *float64 `json:"forecast,omitempty"`
	Lo       *float64 `json:"lo,omitempty"`
	Hi       *float64 `json:"hi,omitempty"`
}

type VolumeForecastData struct {
	History  []HistoryRecord  `json:"history"`
	Forecast []ForecastRecord `json:"forecast"`
}

type SpendVolumeRecord struct {
	Date   string   `json:"date"`
	Volume *float64 `json:"volume,omitempty"`
	Spend  *float64 `json:"spend,omitempty"`
}

type RepVisitsRecord struct {
	Date   string   `json:"date"`
	Volume *float64 `json:"volume,omitempty"`
	Reps   *float64 `json:"reps,omitempty"`
}

type SatisfactionRecord struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// PeriodChange merges the spend and volume deltas of the same bucket
// series into one record per bucket. An undefined delta is left out of its
// record; the record itself is kept.
func PeriodChange(g pipeline.Granularity, spend, volume []pipeline.Point) *Chart {
	volByKey := make(map[pipeline.Key]pipeline.Value, len(volume))
	for _, p := range volume {
		volByKey[p.Key] = p.Value
	}

	var sink pointSink
	records := make([]PeriodChangeRecord, 0, len(spend))
	for _, p := range spend {
		rec := PeriodChangeRecord{
			Period:   string(p.Key),
			Date:     p.Key.StartDate(),
			SpendMoM: p.Value.Ptr(),
			VolMoM:   volByKey[p.Key].Ptr(),
		}
		sink.add("spendMoM", rec.Period, rec.SpendMoM)
		sink.add("volMoM", rec.Period, rec.VolMoM)
		records = append(records, rec)
	}

	return &Chart{Name: ChartSpendVolumeMoM, Granularity: g, Data: records, points: sink}
}

// CostPerRx emits one record per bucket with a defined ratio and lists the
// buckets without one in Omitted.
func CostPerRx(g pipeline.Granularity, points []pipeline.Point) *Chart {
	defined, undefined := pipeline.SplitDefined(points)

	var sink pointSink
	records := make([]CostPerRxRecord, 0, len(defined))
	for _, p := range defined {
		v, _ := p.Value.Float()
		records = append(records, CostPerRxRecord{Period: string(p.Key), CPX: v})
		sink.addValue("cpx", string(p.Key), v)
	}

	return &Chart{
		Name:        ChartCostPerRx,
		Granularity: g,
		Data:        records,
		Omitted:     keysToStrings(undefined),
		points:      sink,
	}
}

// PeriodTotals emits one record per bucket in key order. A bucket whose
// observations all lacked spend still totals zero.
func PeriodTotals(g pipeline.Granularity, buckets []pipeline.Bucket[float64]) *Chart {
	var sink pointSink
	records := make([]PeriodTotalRecord, 0, len(buckets))
	for _, b := range buckets {
		records = append(records, PeriodTotalRecord{
			Period: string(b.Key),
			Date:   b.Key.StartDate(),
			Spend:  b.Value,
		})
		sink.addValue("spend", string(b.Key), b.Value)
	}

	return &Chart{Name: ChartSpendByPeriod, Granularity: g, Data: records, points: sink}
}

// TopDrivers labels already ranked driver rows.
func TopDrivers(rows []domain.DriverRow) *Chart {
	var sink pointSink
	records := make([]DriverRecord, 0, len(rows))
	for i, r := range rows {
		rec := DriverRecord{
			Label:        r.Label(),
			Value:        r.RelativeContribution,
			Contribution: r.Contribution,
			GrowthRate:   r.GrowthRate,
		}
		sink = append(sink, TidyPoint{Series: "relativeContribution", Axis: rec.Label, Value: rec.Value, Record: i})
		records = append(records, rec)
	}
	return &Chart{Name: ChartTopDrivers, Data: records, points: sink, labelAxis: true}
}

func toAnomalyRecord(r domain.AnomalyRow) AnomalyRecord {
	return AnomalyRecord{
		Date:      r.Date,
		Actual:    r.Actual,
		Forecast:  r.Forecast,
		Lo:        r.LowerBound,
		Hi:        r.UpperBound,
		IsAnomaly: r.IsAnomaly,
	}
}

// Anomalies projects the full series and its flagged subset.
func Anomalies(series, flagged []domain.AnomalyRow) *Chart {
	var sink pointSink
	data := AnomalyData{
		Series:    make([]AnomalyRecord, 0, len(series)),
		Anomalies: make([]AnomalyRecord, 0, len(flagged)),
	}
	for _, r := range series {
		rec := toAnomalyRecord(r)
		sink.add("actual", rec.Date, rec.Actual)
		sink.add("forecast", rec.Date, rec.Forecast)
		sink.add("lo", rec.Date, rec.Lo)
		sink.add("hi", rec.Date, rec.Hi)
		data.Series = append(data.Series, rec)
	}
	for _, r := range flagged {
		rec := toAnomalyRecord(r)
		sink.add("anomaly", rec.Date, rec.Actual)
		data.Anomalies = append(data.Anomalies, rec)
	}
	return &Chart{Name: ChartAnomalies, Data: data, points: sink}
}

func forecastRecords(sink *pointSink, forecast []domain.Observation) []ForecastRecord {
	records := make([]ForecastRecord, 0, len(forecast))
	for _, o := range forecast {
		rec := ForecastRecord{
			Date:     o.Date,
			Forecast: measurePtr(o, domain.MeasureForecast),
			Lo:       measurePtr(o, domain.MeasureLowerBound),
			Hi:       measurePtr(o, domain.MeasureUpperBound),
		}
		sink.add("forecast", rec.Date, rec.Forecast)
		sink.add("lo", rec.Date, rec.Lo)
		sink.add("hi", rec.Date, rec.Hi)
		records = append(records, rec)
	}
	return records
}

// VolumeForecast pairs daily prescription volume with the forecast ribbon
// that continues it. Days without a volume are omitted from the history.
func VolumeForecast(history, forecast []domain.Observation) *Chart {
	var sink pointSink
	var omitted []string

	data := VolumeForecastData{History: make([]HistoryRecord, 0, len(history))}
	for _, o := range history {
		v, ok := o.Value(domain.MeasureVolume)
		if !ok {
			omitted = append(omitted, o.Date)
			continue
		}
		sink.addValue("volume", o.Date, v)
		data.History = append(data.History, HistoryRecord{Date: o.Date, Value: v})
	}
	data.Forecast = forecastRecords(&sink, forecast)

	return &Chart{Name: ChartVolumeForecast, Data: data, Omitted: omitted, points: sink}
}

// Forecast projects the forecast ribbon on its own.
func Forecast(forecast []domain.Observation) *Chart {
	var sink pointSink
	records := forecastRecords(&sink, forecast)
	return &Chart{Name: ChartForecast, Data: records, points: sink}
}

func SpendVsVolume(kpis []domain.Observation) *Chart {
	var sink pointSink
	records := make([]SpendVolumeRecord, 0, len(kpis))
	for _, o := range kpis {
		rec := SpendVolumeRecord{
			Date:   o.Date,
			Volume: measurePtr(o, domain.MeasureVolume),
			Spend:  measurePtr(o, domain.MeasureSpend),
		}
		sink.add("volume", rec.Date, rec.Volume)
		sink.add("spend", rec.Date, rec.Spend)
		records = append(records, rec)
	}
	return &Chart{Name: ChartSpendVsVolume, Data: records, points: sink}
}

func RepVisitsVsVolume(kpis []domain.Observation) *Chart {
	var sink pointSink
	records := make([]RepVisitsRecord, 0, len(kpis))
	for _, o := range kpis {
		rec := RepVisitsRecord{
			Date:   o.Date,
			Volume: measurePtr(o, domain.MeasureVolume),
			Reps:   measurePtr(o, domain.MeasureRepVisits),
		}
		sink.add("volume", rec.Date, rec.Volume)
		sink.add("reps", rec.Date, rec.Reps)
		records = append(records, rec)
	}
	return &Chart{Name: ChartRepVisitsVsVolume, Data: records, points: sink}
}

// Satisfaction emits one point per scored day; unscored days are omitted.
func Satisfaction(kpis []domain.Observation) *Chart {
	var sink pointSink
	var omitted []string
	records := make([]SatisfactionRecord, 0, len(kpis))
	for _, o := range kpis {
		v, ok := o.Value(domain.MeasureSatisfaction)
		if !ok {
			omitted = append(omitted, o.Date)
			continue
		}
		sink.addValue("score", o.Date, v)
		records = append(records, SatisfactionRecord{Date: o.Date, Score: v})
	}
	return &Chart{Name: ChartSatisfaction, Data: records, Omitted: omitted, points: sink}
}

func measurePtr(o domain.Observation, m domain.Measure) *float64 {
	v, ok := o.Value(m)
	if !ok {
		return nil
	}
	return &v
}
