package simulation

import (
	"encoding/json"
	"math"
)

// AssetClass identifies one of the three portfolio sleeves.
type AssetClass string

const (
	AssetClassStocks AssetClass = "stocks" // growth asset
	AssetClassBonds  AssetClass = "bonds"  // intermediate-risk asset
	AssetClassCash   AssetClass = "cash"   // low-risk asset
)

// AssetClasses lists the sleeves in the order they are sampled each period.
var AssetClasses = []AssetClass{AssetClassStocks, AssetClassBonds, AssetClassCash}

// DistributionKind tags the return distribution of an asset class.
type DistributionKind string

const (
	DistributionNormal     DistributionKind = "normal"
	DistributionTriangular DistributionKind = "triangular"
	DistributionUniform    DistributionKind = "uniform"
)

// AssetDistribution describes the per-period fractional return of one asset class.
//
// Only the fields relevant to Kind are read:
//   - normal: Mean, StdDev
//   - triangular: Min, Mode, Max
//   - uniform: Min, Max
type AssetDistribution struct {
	Kind   DistributionKind `json:"kind" yaml:"kind"`
	Mean   float64          `json:"mean" yaml:"mean,omitempty"`
	StdDev float64          `json:"std_dev" yaml:"std_dev,omitempty"`
	Min    float64          `json:"min" yaml:"min,omitempty"`
	Mode   float64          `json:"mode" yaml:"mode,omitempty"`
	Max    float64          `json:"max" yaml:"max,omitempty"`
}

// UnmarshalJSON replaces the whole distribution. Decoding over a populated value
// (for example DefaultConfig) must not leave parameters of the old one behind.
func (d *AssetDistribution) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	type plain AssetDistribution
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*d = AssetDistribution(decoded)
	return nil
}

// Normal builds a Gaussian return distribution.
func Normal(mean, stdDev float64) AssetDistribution {
	return AssetDistribution{Kind: DistributionNormal, Mean: mean, StdDev: stdDev}
}

// Triangular builds a triangular return distribution on [min, max] peaking at mode.
func Triangular(min, mode, max float64) AssetDistribution {
	return AssetDistribution{Kind: DistributionTriangular, Min: min, Mode: mode, Max: max}
}

// Uniform builds a uniform return distribution on [min, max].
func Uniform(min, max float64) AssetDistribution {
	return AssetDistribution{Kind: DistributionUniform, Min: min, Max: max}
}

// Balances holds one monetary amount per asset class.
type Balances struct {
	Stocks float64 `json:"stocks" yaml:"stocks"`
	Bonds  float64 `json:"bonds" yaml:"bonds"`
	Cash   float64 `json:"cash" yaml:"cash"`
}

// Total returns the sum across asset classes.
func (b Balances) Total() float64 {
	return b.Stocks + b.Bonds + b.Cash
}

// Distributions holds the return distribution of each asset class.
type Distributions struct {
	Stocks AssetDistribution `json:"stocks" yaml:"stocks"`
	Bonds  AssetDistribution `json:"bonds" yaml:"bonds"`
	Cash   AssetDistribution `json:"cash" yaml:"cash"`
}

// For returns the distribution configured for an asset class.
func (d Distributions) For(class AssetClass) AssetDistribution {
	switch class {
	case AssetClassBonds:
		return d.Bonds
	case AssetClassCash:
		return d.Cash
	default:
		return d.Stocks
	}
}

// SimulationConfig is the immutable input to a batch run.
type SimulationConfig struct {
	Initial       Balances      `json:"initial" yaml:"initial"`
	Distributions Distributions `json:"distributions" yaml:"distributions"`
	Horizon       int           `json:"horizon" yaml:"horizon"` // periods (years)
	Trials        int           `json:"trials" yaml:"trials"`
	Seed          *uint64       `json:"seed,omitempty" yaml:"seed,omitempty"` // nil draws a fresh seed per run
}

// TotalInitial returns the starting portfolio value.
func (c SimulationConfig) TotalInitial() float64 {
	return c.Initial.Total()
}

// DefaultConfig returns the reference scenario: a 50/25/25 split of 500k over ten years.
func DefaultConfig() SimulationConfig {
	return SimulationConfig{
		Initial: Balances{Stocks: 250000, Bonds: 125000, Cash: 125000},
		Distributions: Distributions{
			Stocks: Normal(0.08, 0.20),
			Bonds:  Triangular(-0.03, 0.05, 0.12),
			Cash:   Uniform(0.01, 0.03),
		},
		Horizon: 10,
		Trials:  100,
	}
}

// Trajectory is the total portfolio balance at each period boundary of one trial.
// Element 0 is the initial total; len == horizon+1.
type Trajectory []float64

// Final returns the last balance of the trajectory.
func (t Trajectory) Final() float64 {
	return t[len(t)-1]
}

// Metric is a derived value that may be undefined (for example a ratio with a zero denominator).
// Undefined metrics encode as JSON null; SummaryStatistics keeps their reasons.
type Metric struct {
	Value   float64
	Defined bool
	Reason  string
}

// DefinedMetric wraps a computed value.
func DefinedMetric(v float64) Metric {
	return Metric{Value: v, Defined: true}
}

// NotApplicable marks a metric that cannot be computed, with the reason why.
func NotApplicable(reason string) Metric {
	return Metric{Value: math.NaN(), Reason: reason}
}

// MarshalJSON encodes defined metrics as numbers and undefined ones as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts a number or null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = NotApplicable("")
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = DefinedMetric(v)
	return nil
}

// SummaryStatistics describes the distribution of final balances.
type SummaryStatistics struct {
	Trials                 int     `json:"trials"`
	Mean                   float64 `json:"mean"`
	StdDev                 float64 `json:"std_dev"` // population standard deviation
	Min                    float64 `json:"min"`
	Max                    float64 `json:"max"`
	AnnualizedReturn       Metric  `json:"annualized_return"`
	CoefficientOfVariation Metric  `json:"coefficient_of_variation"`
}

type summaryFields SummaryStatistics

// summaryJSON carries the reason of every undefined metric next to its null value.
type summaryJSON struct {
	summaryFields
	NotApplicable map[string]string `json:"not_applicable,omitempty"`
}

func (s *SummaryStatistics) metrics() map[string]*Metric {
	return map[string]*Metric{
		"annualized_return":        &s.AnnualizedReturn,
		"coefficient_of_variation": &s.CoefficientOfVariation,
	}
}

// MarshalJSON adds a not_applicable object mapping each undefined metric to its reason.
func (s SummaryStatistics) MarshalJSON() ([]byte, error) {
	out := summaryJSON{summaryFields: summaryFields(s)}
	for name, m := range s.metrics() {
		if m.Defined || m.Reason == "" {
			continue
		}
		if out.NotApplicable == nil {
			out.NotApplicable = make(map[string]string)
		}
		out.NotApplicable[name] = m.Reason
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the reasons written by MarshalJSON.
func (s *SummaryStatistics) UnmarshalJSON(data []byte) error {
	var in summaryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = SummaryStatistics(in.summaryFields)
	for name, m := range s.metrics() {
		if reason, ok := in.NotApplicable[name]; ok && !m.Defined {
			m.Reason = reason
		}
	}
	return nil
}

// ThresholdPoint is the probability that a final balance meets or exceeds Threshold.
type ThresholdPoint struct {
	Threshold   float64 `json:"threshold"`
	Probability float64 `json:"probability"` // in [0, 1]
}

// ThresholdTable is ordered like the thresholds supplied by the caller.
type ThresholdTable []ThresholdPoint

// Percentiles of the final balance distribution.
type Percentiles struct {
	P5  float64 `json:"p5"`
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
}

// SimulationResult is produced once per batch and is read-only afterwards.
type SimulationResult struct {
	Config       SimulationConfig  `json:"config"`
	Seed         uint64            `json:"seed"` // the batch seed actually used
	Trajectories []Trajectory      `json:"trajectories"`
	Summary      SummaryStatistics `json:"summary"`
	Thresholds   ThresholdTable    `json:"thresholds"`
	Percentiles  Percentiles       `json:"percentiles"`
	Completed    int               `json:"completed"`
	Stopped      bool              `json:"stopped"` // true if the batch ended before all trials ran
}

// FinalBalances extracts the final value of every trajectory.
func (r *SimulationResult) FinalBalances() []float64 {
	return FinalBalances(r.Trajectories)
}
