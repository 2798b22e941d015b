package simulation

import (
	"fmt"
	"math"
)

// Validate checks every field of the configuration and returns ConfigurationErrors
// naming each failure, or nil if the configuration can be simulated.
func (c SimulationConfig) Validate() error {
	var errs ConfigurationErrors

	initial := map[AssetClass]float64{
		AssetClassStocks: c.Initial.Stocks,
		AssetClassBonds:  c.Initial.Bonds,
		AssetClassCash:   c.Initial.Cash,
	}
	for _, class := range AssetClasses {
		v := initial[class]
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			errs = append(errs, ConfigurationError{
				Field:  "initial." + string(class),
				Reason: fmt.Sprintf("must be a positive amount, got %v", v),
			})
		}
	}

	if c.Horizon < 0 {
		errs = append(errs, ConfigurationError{
			Field:  "horizon",
			Reason: fmt.Sprintf("must not be negative, got %d", c.Horizon),
		})
	}

	if c.Trials <= 0 {
		errs = append(errs, ConfigurationError{
			Field:  "trials",
			Reason: fmt.Sprintf("must be greater than 0, got %d", c.Trials),
		})
	}

	for _, class := range AssetClasses {
		errs = append(errs, c.Distributions.For(class).validate("distributions."+string(class))...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate checks the ordering constraints of a single distribution.
func (d AssetDistribution) Validate() error {
	if errs := d.validate(string(d.Kind)); len(errs) > 0 {
		return errs
	}
	return nil
}

func (d AssetDistribution) validate(prefix string) ConfigurationErrors {
	var errs ConfigurationErrors

	finite := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, ConfigurationError{
				Field:  prefix + "." + name,
				Reason: fmt.Sprintf("must be a finite number, got %v", v),
			})
		}
	}

	switch d.Kind {
	case DistributionNormal:
		finite("mean", d.Mean)
		finite("std_dev", d.StdDev)
		if d.StdDev < 0 {
			errs = append(errs, ConfigurationError{
				Field:  prefix + ".std_dev",
				Reason: fmt.Sprintf("must not be negative, got %v", d.StdDev),
			})
		}

	case DistributionTriangular:
		finite("min", d.Min)
		finite("mode", d.Mode)
		finite("max", d.Max)
		if len(errs) > 0 {
			return errs
		}
		if d.Min > d.Max {
			errs = append(errs, ConfigurationError{
				Field:  prefix + ".min",
				Reason: fmt.Sprintf("min %v exceeds max %v", d.Min, d.Max),
			})
		} else if d.Mode < d.Min || d.Mode > d.Max {
			errs = append(errs, ConfigurationError{
				Field:  prefix + ".mode",
				Reason: fmt.Sprintf("mode %v outside [%v, %v]", d.Mode, d.Min, d.Max),
			})
		}

	case DistributionUniform:
		finite("min", d.Min)
		finite("max", d.Max)
		if len(errs) > 0 {
			return errs
		}
		if d.Min > d.Max {
			errs = append(errs, ConfigurationError{
				Field:  prefix + ".min",
				Reason: fmt.Sprintf("min %v exceeds max %v", d.Min, d.Max),
			})
		}

	default:
		errs = append(errs, ConfigurationError{
			Field:  prefix + ".kind",
			Reason: fmt.Sprintf("unknown distribution %q", d.Kind),
		})
	}

	return errs
}
