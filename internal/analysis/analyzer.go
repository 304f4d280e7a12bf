// Package analysis implements the market structure core of the dashboard:
// trend classification over SMA 20/50, swing high/low detection, and the
// Fibonacci OTE (optimal trade entry) zone derived from them. Everything
// here is a pure function of the input candle series; there is no I/O and
// no shared mutable state, so an Analyzer may be used from any number of
// goroutines.
package analysis

import (
	"mvpforex/internal/candle"
)

// Config holds the tunable parameters of the analyzer.
type Config struct {
	ShortPeriod  int     `json:"short_period"`
	LongPeriod   int     `json:"long_period"`
	SwingWindow  int     `json:"swing_window"`
	PipSize      float64 `json:"pip_size"`
	StopLossPips float64 `json:"stop_loss_pips"`
}

// DefaultConfig returns the reference parameters for XAU_USD.
func DefaultConfig() Config {
	return Config{
		ShortPeriod:  20,
		LongPeriod:   50,
		SwingWindow:  5,
		PipSize:      0.01,
		StopLossPips: 3,
	}
}

// Result is the complete output of one analysis pass.
type Result struct {
	Instrument  string          `json:"instrument"`
	Granularity string          `json:"granularity"`
	Trend       *TrendInfo      `json:"trend"`
	Structure   StructurePoints `json:"structure_points"`
	Fibonacci   *FibonacciZone  `json:"fibonacci_zone"`
}

// Analyzer orchestrates the trend classifier, swing detector, and
// Fibonacci calculator into one result consumed by the prompt layer.
type Analyzer struct {
	trend  *TrendClassifier
	swings *SwingDetector
	fib    *FibCalculator
}

// New validates the configuration and builds an analyzer.
func New(cfg Config) (*Analyzer, error) {
	trend, err := NewTrendClassifier(cfg.ShortPeriod, cfg.LongPeriod)
	if err != nil {
		return nil, err
	}
	swings, err := NewSwingDetector(cfg.SwingWindow)
	if err != nil {
		return nil, err
	}
	fib, err := NewFibCalculator(cfg.PipSize, cfg.StopLossPips)
	if err != nil {
		return nil, err
	}
	return &Analyzer{trend: trend, swings: swings, fib: fib}, nil
}

// Analyze runs the full pass over a series snapshot. Failures from any
// stage are surfaced unchanged; no partial result is ever returned.
func (a *Analyzer) Analyze(series *candle.Series) (*Result, error) {
	trend, err := a.trend.Classify(series)
	if err != nil {
		return nil, err
	}

	points := a.swings.Detect(series)

	zone, err := a.fib.Calculate(trend.Direction, points)
	if err != nil {
		return nil, err
	}

	return &Result{
		Instrument:  series.Instrument,
		Granularity: series.Granularity,
		Trend:       trend,
		Structure:   points,
		Fibonacci:   zone,
	}, nil
}

// Snapshot runs trend classification and swing detection without requiring
// a valid Fibonacci anchor pair. The market-data endpoint uses it so a
// neutral market still renders a chart with structure points.
func (a *Analyzer) Snapshot(series *candle.Series) (*TrendInfo, StructurePoints, error) {
	trend, err := a.trend.Classify(series)
	if err != nil {
		return nil, StructurePoints{}, err
	}
	return trend, a.swings.Detect(series), nil
}
