package simulation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FinalBalances extracts the last element of every trajectory.
func FinalBalances(trajectories []Trajectory) []float64 {
	finals := make([]float64, len(trajectories))
	for i, t := range trajectories {
		finals[i] = t.Final()
	}
	return finals
}

// Summarize reduces a set of trajectories to summary statistics of their final balances
// and the probability of meeting or exceeding each threshold.
//
// Thresholds are evaluated in the order given. Annualized return is not applicable when
// horizon is 0; coefficient of variation is not applicable when the mean is 0.
func Summarize(
	trajectories []Trajectory,
	totalInitial float64,
	horizon int,
	thresholds []float64,
) (SummaryStatistics, ThresholdTable) {
	finals := FinalBalances(trajectories)
	sort.Float64s(finals)

	return summarizeSorted(finals, totalInitial, horizon), exceedance(finals, thresholds)
}

// summarizeSorted expects finals in increasing order.
func summarizeSorted(finals []float64, totalInitial float64, horizon int) SummaryStatistics {
	if len(finals) == 0 {
		return SummaryStatistics{
			AnnualizedReturn:       NotApplicable("no completed trials"),
			CoefficientOfVariation: NotApplicable("no completed trials"),
		}
	}

	summary := SummaryStatistics{
		Trials: len(finals),
		Min:    finals[0],
		Max:    finals[len(finals)-1],
	}

	if summary.Min == summary.Max {
		// Identical outcomes: report the exact value and zero spread rather than
		// whatever rounding the two-pass variance leaves behind.
		summary.Mean = summary.Min
		summary.StdDev = 0
	} else {
		summary.Mean, summary.StdDev = stat.PopMeanStdDev(finals, nil)
	}

	summary.AnnualizedReturn = AnnualizedReturn(summary.Mean, totalInitial, horizon)
	summary.CoefficientOfVariation = CoefficientOfVariation(summary.StdDev, summary.Mean)

	return summary
}

// AnnualizedReturn is the constant per-period rate that turns totalInitial into mean
// over horizon periods: (mean/totalInitial)^(1/horizon) - 1.
func AnnualizedReturn(mean, totalInitial float64, horizon int) Metric {
	if horizon == 0 {
		return NotApplicable("horizon is zero")
	}
	if totalInitial == 0 {
		return NotApplicable("initial total is zero")
	}

	growth := mean / totalInitial
	if growth < 0 {
		return NotApplicable("mean final balance is negative")
	}

	return DefinedMetric(math.Pow(growth, 1/float64(horizon)) - 1)
}

// CoefficientOfVariation is std/mean.
func CoefficientOfVariation(stdDev, mean float64) Metric {
	if mean == 0 {
		return NotApplicable("mean final balance is zero")
	}
	return DefinedMetric(stdDev / mean)
}

// ExceedanceProbabilities returns, for each threshold, the fraction of final balances >= threshold.
func ExceedanceProbabilities(finals, thresholds []float64) ThresholdTable {
	return exceedance(sortedCopy(finals), thresholds)
}

// exceedance expects sorted in increasing order.
func exceedance(sorted, thresholds []float64) ThresholdTable {
	table := make(ThresholdTable, len(thresholds))
	n := len(sorted)

	for i, threshold := range thresholds {
		table[i].Threshold = threshold
		if n == 0 {
			continue
		}
		// First index whose value is >= threshold; everything after it also qualifies.
		idx := sort.SearchFloat64s(sorted, threshold)
		table[i].Probability = float64(n-idx) / float64(n)
	}

	return table
}

// ComputePercentiles returns empirical percentiles of the final balances.
func ComputePercentiles(finals []float64) Percentiles {
	if len(finals) == 0 {
		return Percentiles{}
	}

	return percentilesSorted(sortedCopy(finals))
}

func percentilesSorted(sorted []float64) Percentiles {
	if len(sorted) == 0 {
		return Percentiles{}
	}
	q := func(p float64) float64 {
		return stat.Quantile(p, stat.Empirical, sorted, nil)
	}
	return Percentiles{
		P5:  q(0.05),
		P10: q(0.10),
		P25: q(0.25),
		P50: q(0.50),
		P75: q(0.75),
		P90: q(0.90),
		P95: q(0.95),
	}
}

// Histogram is a binned count of final balances. Edges has len(Counts)+1 entries;
// bin i covers [Edges[i], Edges[i+1]).
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}

// BuildHistogram bins the final balances into equal-width buckets between their min and max.
// When every value is the same a single bin holds all of them.
func BuildHistogram(finals []float64, bins int) Histogram {
	if len(finals) == 0 || bins <= 0 {
		return Histogram{Edges: []float64{}, Counts: []int{}}
	}

	sorted := sortedCopy(finals)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		bins = 1
	}

	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	// The top edge is exclusive in stat.Histogram, nudge it so the maximum lands in the last bin.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	raw := stat.Histogram(nil, dividers, sorted, nil)
	counts := make([]int, len(raw))
	for i, c := range raw {
		counts[i] = int(c)
	}

	return Histogram{Edges: dividers, Counts: counts}
}

// EvenThresholds builds thresholds from start (inclusive) to stop (exclusive) in fixed steps.
// It is a convenience for callers; the engine never supplies thresholds on its own.
func EvenThresholds(start, stop, step float64) []float64 {
	if step <= 0 || stop <= start {
		return []float64{}
	}
	n := int(math.Ceil((stop - start) / step))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := start + float64(i)*step
		if v >= stop {
			break
		}
		out = append(out, v)
	}
	return out
}

// DefaultThresholds is the 500k to 3.75M grid in 250k steps used by the reference scenario.
func DefaultThresholds() []float64 {
	return EvenThresholds(500000, 4000000, 250000)
}

// sortedCopy sorts a copy so the caller's slice keeps its order.
func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
