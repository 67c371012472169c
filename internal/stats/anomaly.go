package stats

const (
	varianceRatioThreshold = 1.5
	burstGapFactor         = 10
	minBurstSamples        = 10
)

// VarianceCheck reports whether dispersion is large relative to the median,
// which points at server-side batching or queueing rather than network jitter.
type VarianceCheck struct {
	Evaluated bool
	Flagged   bool
	Stdev     float64
	Median    float64
	Ratio     float64
}

// BurstCheck reports whether inter-event gaps contain an outlier that
// suggests events arrive in bursts.
type BurstCheck struct {
	Evaluated bool
	Flagged   bool
	Gaps      int
	MedianGap float64
	MaxGap    float64
}

// Analysis bundles a Summary with both anomaly heuristics.
type Analysis struct {
	Summary  Summary
	Variance VarianceCheck
	Burst    BurstCheck
}

// CheckVariance flags stdev > 1.5*median. A zero median suppresses the check.
func CheckVariance(s Summary) VarianceCheck {
	check := VarianceCheck{Stdev: s.Stdev, Median: s.Median}
	if s.Count == 0 || s.Median == 0 {
		return check
	}
	check.Evaluated = true
	check.Ratio = s.Stdev / s.Median
	check.Flagged = s.Stdev > varianceRatioThreshold*s.Median
	return check
}

// Gaps returns successive differences of timestamps in arrival order.
func Gaps(timestamps []float64) []float64 {
	if len(timestamps) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		gaps = append(gaps, timestamps[i]-timestamps[i-1])
	}
	return gaps
}

// CheckBursts inspects the gaps between event timestamps. It is evaluated
// only for sequences with more than ten samples and flags max(gap) > 10*median(gap).
func CheckBursts(eventTimestamps []float64) BurstCheck {
	if len(eventTimestamps) <= minBurstSamples {
		return BurstCheck{}
	}
	return checkGaps(Gaps(eventTimestamps))
}

func checkGaps(gaps []float64) BurstCheck {
	if len(gaps) == 0 {
		return BurstCheck{}
	}
	sorted := sortedCopy(gaps)
	check := BurstCheck{
		Evaluated: true,
		Gaps:      len(gaps),
		MedianGap: medianSorted(sorted),
		MaxGap:    sorted[len(sorted)-1],
	}
	check.Flagged = check.MaxGap > burstGapFactor*check.MedianGap
	return check
}

// Analyze summarizes latencies and runs both heuristics. eventTimestamps may
// be nil to skip the burst check.
func Analyze(latencies, eventTimestamps []float64) (Analysis, error) {
	summary, err := Summarize(latencies)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{
		Summary:  summary,
		Variance: CheckVariance(summary),
		Burst:    CheckBursts(eventTimestamps),
	}, nil
}
