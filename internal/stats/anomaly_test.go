package stats

import "testing"

func TestCheckVariance(t *testing.T) {
	high := CheckVariance(Summary{Count: 20, Median: 50, Stdev: 100})
	if !high.Evaluated || !high.Flagged {
		t.Fatalf("expected variance flag raised: %+v", high)
	}
	if high.Ratio != 2 {
		t.Fatalf("expected ratio 2 got %v", high.Ratio)
	}

	low := CheckVariance(Summary{Count: 20, Median: 50, Stdev: 60})
	if low.Flagged {
		t.Fatalf("expected variance flag not raised: %+v", low)
	}

	zero := CheckVariance(Summary{Count: 20, Median: 0, Stdev: 60})
	if zero.Evaluated || zero.Flagged {
		t.Fatalf("expected zero median to suppress the check: %+v", zero)
	}
}

func TestCheckBurstsFlagsLongGap(t *testing.T) {
	timestamps := []float64{0}
	for i := 0; i < 10; i++ {
		timestamps = append(timestamps, timestamps[len(timestamps)-1]+10)
	}
	timestamps = append(timestamps, timestamps[len(timestamps)-1]+200)

	check := CheckBursts(timestamps)
	if !check.Evaluated {
		t.Fatalf("expected burst check to be evaluated")
	}
	if check.Gaps != 11 || check.MedianGap != 10 || check.MaxGap != 200 {
		t.Fatalf("unexpected gap stats: %+v", check)
	}
	if !check.Flagged {
		t.Fatalf("expected burst flag raised")
	}
}

func TestCheckBurstsSteadyStream(t *testing.T) {
	timestamps := make([]float64, 0, 20)
	for i := 0; i < 20; i++ {
		timestamps = append(timestamps, float64(1000+i*25))
	}
	check := CheckBursts(timestamps)
	if !check.Evaluated || check.Flagged {
		t.Fatalf("expected evaluated, unflagged check: %+v", check)
	}
}

func TestCheckBurstsNeedsMoreThanTenSamples(t *testing.T) {
	timestamps := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 1000}
	if check := CheckBursts(timestamps); check.Evaluated {
		t.Fatalf("expected no evaluation for ten samples: %+v", check)
	}
}

func TestGaps(t *testing.T) {
	gaps := Gaps([]float64{1000, 1010, 1035})
	if len(gaps) != 2 || gaps[0] != 10 || gaps[1] != 25 {
		t.Fatalf("unexpected gaps: %v", gaps)
	}
	if Gaps([]float64{1}) != nil {
		t.Fatalf("expected nil gaps for single timestamp")
	}
}

func TestAnalyze(t *testing.T) {
	analysis, err := Analyze([]float64{50, 52, 51}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Summary.Median != 51 {
		t.Fatalf("unexpected median %v", analysis.Summary.Median)
	}
	if analysis.Variance.Flagged || analysis.Burst.Evaluated {
		t.Fatalf("unexpected heuristics: %+v", analysis)
	}
}
