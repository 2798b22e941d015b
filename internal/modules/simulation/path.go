package simulation

import (
	"math/rand/v2"
)

// PathSimulator evolves the three asset balances of one trial over the horizon.
type PathSimulator struct {
	cfg SimulationConfig
}

// NewPathSimulator validates cfg once so that Run never fails.
func NewPathSimulator(cfg SimulationConfig) (*PathSimulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PathSimulator{cfg: cfg}, nil
}

// Run produces one trajectory of horizon+1 total balances drawn from src.
//
// Each period draws stocks, then bonds, then cash from the same stream, applies
// balance *= 1 + return per class and records the new total. Balances are not floored:
// a class that loses more than its principal goes negative and keeps compounding.
func (p *PathSimulator) Run(src rand.Source) Trajectory {
	stocks := p.cfg.Distributions.Stocks.sampler(src)
	bonds := p.cfg.Distributions.Bonds.sampler(src)
	cash := p.cfg.Distributions.Cash.sampler(src)

	s, b, c := p.cfg.Initial.Stocks, p.cfg.Initial.Bonds, p.cfg.Initial.Cash

	path := make(Trajectory, 0, p.cfg.Horizon+1)
	path = append(path, s+b+c)

	for period := 0; period < p.cfg.Horizon; period++ {
		s *= 1 + stocks.Rand()
		b *= 1 + bonds.Rand()
		c *= 1 + cash.Rand()
		path = append(path, s+b+c)
	}

	return path
}
