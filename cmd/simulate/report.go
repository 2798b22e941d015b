package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/aristath/montecarlo/internal/modules/simulation"
	"github.com/dustin/go-humanize"
)

const histogramBarWidth = 40

// Report is the JSON form of a finished run.
type Report struct {
	Seed        uint64                       `json:"seed"`
	Completed   int                          `json:"completed"`
	Stopped     bool                         `json:"stopped"`
	DurationMs  int64                        `json:"duration_ms"`
	Config      simulation.SimulationConfig  `json:"config"`
	Summary     simulation.SummaryStatistics `json:"summary"`
	Thresholds  simulation.ThresholdTable    `json:"thresholds"`
	Percentiles simulation.Percentiles       `json:"percentiles"`
	Histogram   simulation.Histogram         `json:"histogram"`
}

func newReport(run *simulation.Run, bins int) Report {
	result := run.Result
	return Report{
		Seed:        result.Seed,
		Completed:   result.Completed,
		Stopped:     result.Stopped,
		DurationMs:  run.Duration.Milliseconds(),
		Config:      result.Config,
		Summary:     result.Summary,
		Thresholds:  result.Thresholds,
		Percentiles: result.Percentiles,
		Histogram:   simulation.BuildHistogram(result.FinalBalances(), bins),
	}
}

func writeJSONReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeTextReport(w io.Writer, report Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "MONTE CARLO SIMULATION")
	fmt.Fprintf(tw, "  Seed\t%d\n", report.Seed)
	fmt.Fprintf(tw, "  Trials\t%s of %s\n", humanize.Comma(int64(report.Completed)), humanize.Comma(int64(report.Config.Trials)))
	if report.Stopped {
		fmt.Fprintln(tw, "  Status\tstopped early, statistics cover completed trials only")
	}
	fmt.Fprintf(tw, "  Horizon\t%d periods\n", report.Config.Horizon)
	fmt.Fprintf(tw, "  Initial total\t%s\n", money(report.Config.TotalInitial()))
	fmt.Fprintf(tw, "  Duration\t%dms\n", report.DurationMs)

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "FINAL BALANCE")
	fmt.Fprintf(tw, "  Mean\t%s\n", money(report.Summary.Mean))
	fmt.Fprintf(tw, "  Std dev\t%s\n", money(report.Summary.StdDev))
	fmt.Fprintf(tw, "  Min\t%s\n", money(report.Summary.Min))
	fmt.Fprintf(tw, "  Max\t%s\n", money(report.Summary.Max))
	fmt.Fprintf(tw, "  Annualized return\t%s\n", percentMetric(report.Summary.AnnualizedReturn))
	fmt.Fprintf(tw, "  Coefficient of variation\t%s\n", ratioMetric(report.Summary.CoefficientOfVariation))

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "PERCENTILES")
	p := report.Percentiles
	for _, row := range []struct {
		label string
		value float64
	}{
		{"P5", p.P5}, {"P10", p.P10}, {"P25", p.P25}, {"P50", p.P50},
		{"P75", p.P75}, {"P90", p.P90}, {"P95", p.P95},
	} {
		fmt.Fprintf(tw, "  %s\t%s\n", row.label, money(row.value))
	}

	if len(report.Thresholds) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "PROBABILITY OF REACHING")
		for _, point := range report.Thresholds {
			fmt.Fprintf(tw, "  %s\t%.2f%%\n", money(point.Threshold), point.Probability*100)
		}
	}

	if len(report.Histogram.Counts) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "DISTRIBUTION OF FINAL BALANCES")
		peak := 0
		for _, c := range report.Histogram.Counts {
			peak = max(peak, c)
		}
		for i, c := range report.Histogram.Counts {
			bar := 0
			if peak > 0 {
				bar = c * histogramBarWidth / peak
			}
			fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\n",
				money(report.Histogram.Edges[i]),
				money(report.Histogram.Edges[i+1]),
				c,
				strings.Repeat("#", bar),
			)
		}
	}

	return tw.Flush()
}

func money(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func percentMetric(m simulation.Metric) string {
	if !m.Defined {
		return "n/a (" + m.Reason + ")"
	}
	return fmt.Sprintf("%.2f%%", m.Value*100)
}

func ratioMetric(m simulation.Metric) string {
	if !m.Defined {
		return "n/a (" + m.Reason + ")"
	}
	return fmt.Sprintf("%.4f", m.Value)
}
