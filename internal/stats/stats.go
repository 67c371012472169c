package stats

import (
	"errors"
	"math"
	"sort"
)

// ErrNoSamples is returned when a statistic is requested over an empty sequence.
var ErrNoSamples = errors.New("no samples")

// ReportedPercentiles lists the percentiles carried by every Summary.
var ReportedPercentiles = []float64{25, 75, 95, 99}

// Summary is a read-only snapshot of a latency sequence.
type Summary struct {
	Count  int
	Median float64
	Mean   float64
	Stdev  float64
	Min    float64
	Max    float64
	P25    float64
	P75    float64
	P95    float64
	P99    float64
}

// Summarize computes a Summary over values. The input is not modified.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, ErrNoSamples
	}
	sorted := sortedCopy(values)
	mean := meanOf(values)
	return Summary{
		Count:  len(values),
		Median: medianSorted(sorted),
		Mean:   mean,
		Stdev:  stdevAround(values, mean),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P25:    percentileSorted(sorted, 25),
		P75:    percentileSorted(sorted, 75),
		P95:    percentileSorted(sorted, 95),
		P99:    percentileSorted(sorted, 99),
	}, nil
}

// Median returns the middle order statistic, averaging the two central
// values for even-length input.
func Median(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoSamples
	}
	return medianSorted(sortedCopy(values)), nil
}

// Mean returns the arithmetic mean.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoSamples
	}
	return meanOf(values), nil
}

// Stdev returns the Bessel-corrected sample standard deviation, or 0 when
// fewer than two values are present.
func Stdev(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoSamples
	}
	return stdevAround(values, meanOf(values)), nil
}

// Percentile selects the nearest-rank value at index floor(p/100*n) of the
// ascending sort, clamped to [0, n-1]. No interpolation is performed.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoSamples
	}
	return percentileSorted(sortedCopy(values), p), nil
}

// PercentileIndex returns the index Percentile selects for a sequence of length n.
func PercentileIndex(n int, p float64) int {
	if n <= 0 {
		return 0
	}
	idx := int(math.Floor(p / 100 * float64(n)))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdevAround(values []float64, mean float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func percentileSorted(sorted []float64, p float64) float64 {
	return sorted[PercentileIndex(len(sorted), p)]
}
