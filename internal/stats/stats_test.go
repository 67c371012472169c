package stats

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestMedianOddAndEven(t *testing.T) {
	got, err := Median([]float64{5, 1, 3})
	if err != nil {
		t.Fatalf("Median: %v", err)
	}
	if got != 3 {
		t.Fatalf("expected 3 got %v", got)
	}

	got, err = Median([]float64{100, 110, 90, 120})
	if err != nil {
		t.Fatalf("Median: %v", err)
	}
	if got != 105 {
		t.Fatalf("expected 105 got %v", got)
	}
}

func TestMedianPermutationInvariant(t *testing.T) {
	base := []float64{7, 3, 9, 1, 4, 4, 12, -2, 8, 0.5}
	want, err := Median(base)
	if err != nil {
		t.Fatalf("Median: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		perm := append([]float64(nil), base...)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		got, err := Median(perm)
		if err != nil {
			t.Fatalf("Median: %v", err)
		}
		if got != want {
			t.Fatalf("permutation %v: expected %v got %v", perm, want, got)
		}
	}
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	if _, err := Median(in); err != nil {
		t.Fatalf("Median: %v", err)
	}
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestStdevBounds(t *testing.T) {
	single, err := Stdev([]float64{42})
	if err != nil {
		t.Fatalf("Stdev: %v", err)
	}
	if single != 0 {
		t.Fatalf("expected 0 for single sample got %v", single)
	}

	got, err := Stdev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if err != nil {
		t.Fatalf("Stdev: %v", err)
	}
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %v got %v", want, got)
	}

	constant, err := Stdev([]float64{5, 5, 5})
	if err != nil {
		t.Fatalf("Stdev: %v", err)
	}
	if constant != 0 {
		t.Fatalf("expected 0 for constant input got %v", constant)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	values := []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	cases := map[float64]float64{25: 3, 75: 8, 95: 10, 99: 10, 0: 1, 100: 10}
	for p, want := range cases {
		got, err := Percentile(values, p)
		if err != nil {
			t.Fatalf("Percentile(%v): %v", p, err)
		}
		if got != want {
			t.Fatalf("p%v: expected %v got %v", p, want, got)
		}
	}

	if idx := PercentileIndex(10, 25); idx != 2 {
		t.Fatalf("expected index 2 got %d", idx)
	}
	if idx := PercentileIndex(10, 99); idx != 9 {
		t.Fatalf("expected clamped index 9 got %d", idx)
	}
	if idx := PercentileIndex(1, 99); idx != 0 {
		t.Fatalf("expected index 0 for single sample got %d", idx)
	}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Count != 10 || s.Median != 5.5 || s.Mean != 5.5 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Min != 1 || s.Max != 10 {
		t.Fatalf("unexpected min/max: %+v", s)
	}
	if s.P25 != 3 || s.P75 != 8 || s.P95 != 10 || s.P99 != 10 {
		t.Fatalf("unexpected percentiles: %+v", s)
	}
}

func TestEmptyInputIsAnError(t *testing.T) {
	if _, err := Summarize(nil); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples got %v", err)
	}
	if _, err := Median(nil); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples got %v", err)
	}
	if _, err := Percentile([]float64{}, 50); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples got %v", err)
	}
	if _, err := Analyze(nil, nil); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples got %v", err)
	}
}
