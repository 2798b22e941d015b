package simulation

import (
	"math"
	"slices"
)

// Moments is a snapshot of running statistics over a stream of values.
type Moments struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"` // population
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// RunningMoments accumulates mean and variance with Welford's algorithm,
// so each Add is O(1) no matter how many values came before.
type RunningMoments struct {
	count int
	mean  float64
	m2    float64
	min   float64
	max   float64
}

// Add folds one value into the running statistics.
func (r *RunningMoments) Add(x float64) {
	r.count++
	if r.count == 1 {
		r.mean, r.m2, r.min, r.max = x, 0, x, x
		return
	}

	delta := x - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (x - r.mean)

	if x < r.min {
		r.min = x
	}
	if x > r.max {
		r.max = x
	}
}

// Snapshot returns the current statistics.
func (r *RunningMoments) Snapshot() Moments {
	if r.count == 0 {
		return Moments{}
	}
	m := Moments{
		Count: r.count,
		Mean:  r.mean,
		Min:   r.min,
		Max:   r.max,
	}
	if r.min != r.max {
		m.StdDev = math.Sqrt(r.m2 / float64(r.count))
	} else {
		m.Mean = r.min
	}
	return m
}

// Progress is delivered after each trial in streaming mode.
type Progress struct {
	Completed  int            `json:"completed"`
	Total      int            `json:"total"`
	Final      Moments        `json:"final"`      // running statistics of final balances
	Bands      []Moments      `json:"bands"`      // running statistics per period, len == horizon+1
	Thresholds ThresholdTable `json:"thresholds"` // running exceedance probabilities
	Recent     []Trajectory   `json:"recent"`     // most recent trajectories, oldest first
}

// progressTracker maintains the streaming aggregates. Its cost per trial is
// O(horizon + thresholds + recent), independent of the number of trials so far.
type progressTracker struct {
	total      int
	final      RunningMoments
	bands      []RunningMoments
	thresholds []float64
	exceeded   []int
	recent     []Trajectory
	recentCap  int
}

func newProgressTracker(total, horizon int, thresholds []float64, recentCap int) *progressTracker {
	return &progressTracker{
		total:      total,
		bands:      make([]RunningMoments, horizon+1),
		thresholds: thresholds,
		exceeded:   make([]int, len(thresholds)),
		recentCap:  recentCap,
	}
}

func (p *progressTracker) add(t Trajectory) {
	final := t.Final()
	p.final.Add(final)

	for i, v := range t {
		p.bands[i].Add(v)
	}

	for i, threshold := range p.thresholds {
		if final >= threshold {
			p.exceeded[i]++
		}
	}

	if p.recentCap > 0 {
		if len(p.recent) == p.recentCap {
			p.recent = append(p.recent[:0], p.recent[1:]...)
		}
		p.recent = append(p.recent, t)
	}
}

func (p *progressTracker) snapshot() Progress {
	completed := p.final.count

	bands := make([]Moments, len(p.bands))
	for i := range p.bands {
		bands[i] = p.bands[i].Snapshot()
	}

	table := make(ThresholdTable, len(p.thresholds))
	for i, threshold := range p.thresholds {
		table[i].Threshold = threshold
		if completed > 0 {
			table[i].Probability = float64(p.exceeded[i]) / float64(completed)
		}
	}

	recent := make([]Trajectory, len(p.recent))
	for i, t := range p.recent {
		recent[i] = slices.Clone(t)
	}

	return Progress{
		Completed:  completed,
		Total:      p.total,
		Final:      p.final.Snapshot(),
		Bands:      bands,
		Thresholds: table,
		Recent:     recent,
	}
}
