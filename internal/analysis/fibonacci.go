package analysis

import "fmt"

// Retracement ratios used by the OTE strategy, in ascending order. The
// entries above 1.0 are extension targets reported for context; they play
// no role in entry or stop placement.
var fibRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.705, 0.786, 1.0, 1.272, 1.618}

// OTE band boundaries and the recommended entry ratio.
const (
	oteStartRatio = 0.618
	oteEndRatio   = 0.786
	oteEntryRatio = 0.705
)

// FibLevel is one named retracement level.
type FibLevel struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// FibonacciZone holds the retracement grid between two swing anchors plus
// the derived trade levels. Anchor0 is the structural extreme the trend
// retraces toward (the swing low for a bullish trend); Anchor100 is the
// opposite extreme of the impulse.
type FibonacciZone struct {
	Anchor0     float64    `json:"anchor_0"`
	Anchor100   float64    `json:"anchor_100"`
	Levels      []FibLevel `json:"levels"`
	OTEStart    float64    `json:"ote_start"`
	OTEEnd      float64    `json:"ote_end"`
	EntryPrice  float64    `json:"entry_price"`
	StopLoss    float64    `json:"stop_loss"`
	TakeProfit1 float64    `json:"take_profit_1"`
	TakeProfit2 float64    `json:"take_profit_2"`
}

// FibCalculator derives retracement levels and the OTE entry zone from a
// trend direction and the detected structure points.
type FibCalculator struct {
	pipSize  float64
	stopPips float64
}

// NewFibCalculator creates a calculator. pipSize is the minimum meaningful
// price increment of the instrument (0.01 for XAU_USD); stopPips is the
// stop-loss offset beyond the structural anchor.
func NewFibCalculator(pipSize, stopPips float64) (*FibCalculator, error) {
	if pipSize <= 0 {
		return nil, fmt.Errorf("%w: pip size must be positive, got %v", ErrInvalidConfig, pipSize)
	}
	if stopPips <= 0 {
		return nil, fmt.Errorf("%w: stop-loss pips must be positive, got %v", ErrInvalidConfig, stopPips)
	}
	return &FibCalculator{pipSize: pipSize, stopPips: stopPips}, nil
}

// Calculate picks the anchor pair for the given direction and builds the
// zone. For a bullish trend the anchors are the most recent swing low and
// the most recent swing high that formed after it; bearish mirrors. It
// fails with ErrNoValidAnchors when no correctly ordered pair exists, and
// for a Neutral trend (no setup to anchor).
func (fc *FibCalculator) Calculate(direction Direction, points StructurePoints) (*FibonacciZone, error) {
	if direction == Neutral {
		return nil, fmt.Errorf("%w: neutral trend has no trade setup", ErrNoValidAnchors)
	}
	if len(points.SwingHighs) == 0 || len(points.SwingLows) == 0 {
		return nil, fmt.Errorf("%w: need at least one swing high and one swing low", ErrNoValidAnchors)
	}

	switch direction {
	case Bullish:
		low := points.SwingLows[len(points.SwingLows)-1]
		high, ok := mostRecentAfter(points.SwingHighs, low.Index)
		if !ok {
			return nil, fmt.Errorf("%w: no swing high after the last swing low (index %d)", ErrNoValidAnchors, low.Index)
		}
		return fc.buildZone(low.Price, high.Price, +1), nil

	case Bearish:
		high := points.SwingHighs[len(points.SwingHighs)-1]
		low, ok := mostRecentAfter(points.SwingLows, high.Index)
		if !ok {
			return nil, fmt.Errorf("%w: no swing low after the last swing high (index %d)", ErrNoValidAnchors, high.Index)
		}
		return fc.buildZone(high.Price, low.Price, -1), nil
	}

	return nil, fmt.Errorf("%w: unknown direction %q", ErrNoValidAnchors, direction)
}

// buildZone computes the level grid from anchor0 toward anchor100. sign is
// +1 when the impulse runs low-to-high (bullish) and -1 when high-to-low.
func (fc *FibCalculator) buildZone(anchor0, anchor100 float64, sign float64) *FibonacciZone {
	priceRange := anchor100 - anchor0
	if priceRange < 0 {
		priceRange = -priceRange
	}

	levels := make([]FibLevel, 0, len(fibRatios))
	for _, r := range fibRatios {
		levels = append(levels, FibLevel{Ratio: r, Price: anchor0 + sign*priceRange*r})
	}

	entry := anchor0 + sign*priceRange*oteEntryRatio
	stop := anchor0 - sign*fc.stopPips*fc.pipSize
	risk := entry - stop
	if risk < 0 {
		risk = -risk
	}

	return &FibonacciZone{
		Anchor0:     anchor0,
		Anchor100:   anchor100,
		Levels:      levels,
		OTEStart:    anchor0 + sign*priceRange*oteStartRatio,
		OTEEnd:      anchor0 + sign*priceRange*oteEndRatio,
		EntryPrice:  entry,
		StopLoss:    stop,
		TakeProfit1: entry + sign*risk,
		TakeProfit2: anchor100,
	}
}

// mostRecentAfter returns the last point whose index is greater than after.
func mostRecentAfter(points []StructurePoint, after int) (StructurePoint, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Index > after {
			return points[i], true
		}
	}
	return StructurePoint{}, false
}
