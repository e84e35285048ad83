package domain

// Measure names a numeric field carried by an Observation.
type Measure string

const (
	MeasureVolume       Measure = "volume"
	MeasureSpend        Measure = "spend"
	MeasureRepVisits    Measure = "repVisits"
	MeasureSatisfaction Measure = "satisfaction"
	MeasureActual       Measure = "actual"
	MeasureForecast     Measure = "forecast"
	MeasureLowerBound   Measure = "lowerBound"
	MeasureUpperBound   Measure = "upperBound"
)

// Observation is one dated row of named measures. A measure that is absent
// from Measures is missing, which is not the same as zero.
type Observation struct {
	Date     string
	Measures map[Measure]float64
}

// NewObservation builds an Observation, keeping only the measures whose
// value pointer is non-nil.
func NewObservation(date string, measures map[Measure]*float64) Observation {
	obs := Observation{Date: date, Measures: make(map[Measure]float64, len(measures))}
	for name, v := range measures {
		if v != nil {
			obs.Measures[name] = *v
		}
	}
	return obs
}

// Value returns the named measure and whether it is present.
func (o Observation) Value(m Measure) (float64, bool) {
	v, ok := o.Measures[m]
	return v, ok
}
