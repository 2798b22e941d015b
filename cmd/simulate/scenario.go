package main

import (
	"fmt"
	"os"

	"github.com/aristath/montecarlo/internal/modules/simulation"
	"gopkg.in/yaml.v3"
)

// Scenario is the YAML document accepted by --scenario. Keys left out keep
// their DefaultConfig values; a distribution that is present replaces the
// default for its asset class entirely.
type Scenario struct {
	simulation.SimulationConfig `yaml:",inline"`
	Thresholds                  []float64 `yaml:"thresholds,omitempty"`
	HistogramBins               int       `yaml:"histogram_bins,omitempty"`
}

func defaultScenario() Scenario {
	return Scenario{SimulationConfig: simulation.DefaultConfig()}
}

// loadScenario reads a scenario file. An empty path returns the default scenario.
func loadScenario(path string) (Scenario, error) {
	scenario := defaultScenario()
	if path == "" {
		return scenario, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return scenario, fmt.Errorf("failed to read scenario: %w", err)
	}

	if err := parseScenario(data, &scenario); err != nil {
		return scenario, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	return scenario, nil
}

func parseScenario(data []byte, scenario *Scenario) error {
	if err := yaml.Unmarshal(data, scenario); err != nil {
		return err
	}

	// Decoding over the defaults merges fields, which would leave e.g. a normal
	// mean behind on a uniform distribution. Replace present distributions wholesale.
	var raw struct {
		Distributions map[simulation.AssetClass]simulation.AssetDistribution `yaml:"distributions"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	for class, dist := range raw.Distributions {
		switch class {
		case simulation.AssetClassStocks:
			scenario.Distributions.Stocks = dist
		case simulation.AssetClassBonds:
			scenario.Distributions.Bonds = dist
		case simulation.AssetClassCash:
			scenario.Distributions.Cash = dist
		default:
			return fmt.Errorf("unknown asset class %q", class)
		}
	}
	return nil
}
