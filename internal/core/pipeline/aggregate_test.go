package pipeline_test

import (
	"testing"

	"github.com/lorrc/rx-dashboard-backend/internal/core/domain"
	apperrors "github.com/lorrc/rx-dashboard-backend/internal/core/errors"
	"github.com/lorrc/rx-dashboard-backend/internal/core/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obs(date string, measures map[domain.Measure]float64) domain.Observation {
	return domain.Observation{Date: date, Measures: measures}
}

func vol(date string, v float64) domain.Observation {
	return obs(date, map[domain.Measure]float64{domain.MeasureVolume: v})
}

func TestAggregate_SortsKeysAndSums(t *testing.T) {
	input := []domain.Observation{
		vol("2024-03-02", 50),
		vol("2024-01-15", 40),
		vol("2024-02-10", 150),
		vol("2024-01-01", 60),
		vol("2024-03-20", 150),
	}

	buckets, err := pipeline.Aggregate(input, pipeline.By(pipeline.Month), pipeline.Sum(domain.MeasureVolume))
	require.NoError(t, err)

	require.Len(t, buckets, 3)
	assert.Equal(t, pipeline.Key("2024-01"), buckets[0].Key)
	assert.Equal(t, 100.0, buckets[0].Value)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, pipeline.Key("2024-02"), buckets[1].Key)
	assert.Equal(t, 150.0, buckets[1].Value)
	assert.Equal(t, pipeline.Key("2024-03"), buckets[2].Key)
	assert.Equal(t, 200.0, buckets[2].Value)
}

func TestAggregate_KeysStrictlyAscendingAndUnique(t *testing.T) {
	input := []domain.Observation{
		vol("2024-11-30", 1), vol("2023-02-01", 1), vol("2024-05-05", 1),
		vol("2023-12-31", 1), vol("2024-05-06", 1), vol("2023-02-28", 1),
	}

	for _, g := range pipeline.Granularities {
		t.Run(string(g), func(t *testing.T) {
			buckets, err := pipeline.Aggregate(input, pipeline.By(g), pipeline.Sum(domain.MeasureVolume))
			require.NoError(t, err)
			for i := 1; i < len(buckets); i++ {
				assert.Less(t, string(buckets[i-1].Key), string(buckets[i].Key))
			}
		})
	}
}

func TestAggregate_ConservesMass(t *testing.T) {
	input := []domain.Observation{
		vol("2024-01-03", 12.5),
		vol("2024-04-11", 7.25),
		obs("2024-04-12", map[domain.Measure]float64{}),
		vol("2024-07-30", 100),
		vol("2024-07-31", 0.25),
		vol("2024-12-01", 30),
	}

	var want float64
	for _, o := range input {
		want += o.Measures[domain.MeasureVolume]
	}

	for _, g := range pipeline.Granularities {
		buckets, err := pipeline.Aggregate(input, pipeline.By(g), pipeline.Sum(domain.MeasureVolume))
		require.NoError(t, err)

		var got float64
		var count int
		for _, b := range buckets {
			got += b.Value
			count += b.Count
		}
		assert.InDelta(t, want, got, 1e-9)
		assert.Equal(t, len(input), count)
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	buckets, err := pipeline.Aggregate(nil, pipeline.By(pipeline.Month), pipeline.Sum(domain.MeasureVolume))
	require.NoError(t, err)
	assert.NotNil(t, buckets)
	assert.Empty(t, buckets)
}

func TestAggregate_NoZeroFilledBuckets(t *testing.T) {
	input := []domain.Observation{vol("2024-01-10", 1), vol("2024-04-10", 1)}

	buckets, err := pipeline.Aggregate(input, pipeline.By(pipeline.Month), pipeline.Sum(domain.MeasureVolume))
	require.NoError(t, err)

	require.Len(t, buckets, 2)
	assert.Equal(t, pipeline.Key("2024-01"), buckets[0].Key)
	assert.Equal(t, pipeline.Key("2024-04"), buckets[1].Key)
}

func TestAggregate_InvalidDateAborts(t *testing.T) {
	input := []domain.Observation{vol("2024-01-10", 1), vol("2024-02-31", 1), vol("2024-03-10", 1)}

	buckets, err := pipeline.Aggregate(input, pipeline.By(pipeline.Month), pipeline.Sum(domain.MeasureVolume))
	assert.Nil(t, buckets)
	assert.ErrorIs(t, err, apperrors.ErrInvalidDate)
	assert.Contains(t, err.Error(), "observation 1")
}

func TestRatioOf_ZeroDenominatorIsUndefined(t *testing.T) {
	input := []domain.Observation{
		obs("2024-01-05", map[domain.Measure]float64{domain.MeasureSpend: 500, domain.MeasureVolume: 0}),
		obs("2024-04-05", map[domain.Measure]float64{domain.MeasureSpend: 300, domain.MeasureVolume: 100}),
		obs("2024-04-06", map[domain.Measure]float64{domain.MeasureSpend: 300, domain.MeasureVolume: 200}),
		obs("2024-07-01", map[domain.Measure]float64{domain.MeasureSpend: 10}),
	}

	buckets, err := pipeline.Aggregate(input, pipeline.By(pipeline.Quarter), pipeline.RatioOf(domain.MeasureSpend, domain.MeasureVolume))
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	assert.Equal(t, pipeline.Key("2024-Q1"), buckets[0].Key)
	assert.False(t, buckets[0].Value.IsDefined())

	cpx, ok := buckets[1].Value.Float()
	require.True(t, ok)
	assert.InDelta(t, 2.0, cpx, 1e-9)

	assert.False(t, buckets[2].Value.IsDefined(), "missing denominator is undefined")
}

func TestSumOf(t *testing.T) {
	input := []domain.Observation{
		obs("2024-01-05", map[domain.Measure]float64{domain.MeasureSpend: 5, domain.MeasureVolume: 1}),
		obs("2024-01-06", map[domain.Measure]float64{domain.MeasureSpend: 7}),
	}

	buckets, err := pipeline.Aggregate(input, pipeline.By(pipeline.Month), pipeline.SumOf(domain.MeasureSpend, domain.MeasureVolume))
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	assert.Equal(t, 12.0, buckets[0].Value[domain.MeasureSpend])
	assert.Equal(t, 1.0, buckets[0].Value[domain.MeasureVolume])

	ratio, ok := buckets[0].Value.Ratio(domain.MeasureSpend, domain.MeasureVolume).Float()
	require.True(t, ok)
	assert.Equal(t, 12.0, ratio)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	input := []domain.Observation{vol("2024-03-01", 3), vol("2024-01-01", 1)}
	before := []string{input[0].Date, input[1].Date}

	_, err := pipeline.Aggregate(input, pipeline.By(pipeline.Month), pipeline.Sum(domain.MeasureVolume))
	require.NoError(t, err)

	assert.Equal(t, before, []string{input[0].Date, input[1].Date})
}

func TestValidate(t *testing.T) {
	require.NoError(t, pipeline.Validate(nil))
	require.NoError(t, pipeline.Validate([]domain.Observation{vol("2024-01-01", 1)}))

	err := pipeline.Validate([]domain.Observation{vol("2024-01-01", 1), vol("01/02/2024", 1)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidDate)
}
