package service

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoValues is returned when an aggregation has nothing to work on.
var ErrNoValues = errors.New("no values to aggregate")

// AggregateOp names a numeric aggregation over one field.
type AggregateOp string

const (
	AggregateSum AggregateOp = "sum"
	AggregateAvg AggregateOp = "avg"
	AggregateMin AggregateOp = "min"
	AggregateMax AggregateOp = "max"
)

// Validate checks the aggregation name.
func (op AggregateOp) Validate() error {
	switch op {
	case AggregateSum, AggregateAvg, AggregateMin, AggregateMax:
		return nil
	default:
		return fmt.Errorf("unknown aggregation %q", string(op))
	}
}

// NumericAggregator computes summary values over field samples (Domain Service).
type NumericAggregator struct{}

// NewNumericAggregator creates a new NumericAggregator.
func NewNumericAggregator() *NumericAggregator {
	return &NumericAggregator{}
}

// Apply runs op over values.
func (a *NumericAggregator) Apply(op AggregateOp, values []float64) (float64, error) {
	if err := op.Validate(); err != nil {
		return 0, err
	}
	switch op {
	case AggregateSum:
		return a.Sum(values), nil
	case AggregateAvg:
		return a.Average(values)
	case AggregateMin:
		return a.Min(values)
	default:
		return a.Max(values)
	}
}

// Sum adds all values; an empty input sums to 0.
func (a *NumericAggregator) Sum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

// Average returns the arithmetic mean.
func (a *NumericAggregator) Average(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoValues
	}
	return a.Sum(values) / float64(len(values)), nil
}

// Min returns the smallest value.
func (a *NumericAggregator) Min(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoValues
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min, nil
}

// Max returns the largest value.
func (a *NumericAggregator) Max(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoValues
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max, nil
}

// Percentile returns the nearest-rank percentile of values.
func (a *NumericAggregator) Percentile(values []float64, percentile float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoValues
	}
	if percentile < 0 || percentile > 100 {
		return 0, errors.New("percentile must be between 0 and 100")
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	index := int(float64(len(sorted)-1) * (percentile / 100.0))

	return sorted[index], nil
}
