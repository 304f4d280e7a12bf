package analysis

import (
	"fmt"
	"time"

	"mvpforex/internal/candle"
)

// PointKind distinguishes swing highs from swing lows.
type PointKind string

const (
	SwingHigh PointKind = "high"
	SwingLow  PointKind = "low"
)

// StructurePoint is a detected local price extremum used as a Fibonacci
// anchor.
type StructurePoint struct {
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
	Kind  PointKind `json:"kind"`
}

// StructurePoints holds the most recent swing points of each kind,
// most-recent-last.
type StructurePoints struct {
	SwingHighs []StructurePoint `json:"swing_highs"`
	SwingLows  []StructurePoint `json:"swing_lows"`
}

// maxRecentSwings is how many swing points of each kind are reported.
const maxRecentSwings = 3

// SwingDetector finds local extrema over a symmetric candle window.
type SwingDetector struct {
	window int
}

// NewSwingDetector creates a detector with the given look-around window.
func NewSwingDetector(window int) (*SwingDetector, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: swing window must be positive, got %d", ErrInvalidConfig, window)
	}
	return &SwingDetector{window: window}, nil
}

// Detect scans the series for swing highs and lows and returns the last
// three of each kind. A series shorter than 2*window+1 yields empty lists;
// that is valid output, not an error.
//
// A candle is a swing high when its high is the maximum over the window
// centered on it; ties resolve to the earliest index in the window. Lows
// mirror with the minimum. A candle in a flat window can be both.
func (sd *SwingDetector) Detect(series *candle.Series) StructurePoints {
	points := StructurePoints{
		SwingHighs: []StructurePoint{},
		SwingLows:  []StructurePoint{},
	}

	candles := series.Candles
	if len(candles) < 2*sd.window+1 {
		return points
	}

	for i := sd.window; i < len(candles)-sd.window; i++ {
		if sd.isSwingHigh(candles, i) {
			points.SwingHighs = append(points.SwingHighs, StructurePoint{
				Index: i,
				Price: candles[i].High,
				Time:  candles[i].Time,
				Kind:  SwingHigh,
			})
		}
		if sd.isSwingLow(candles, i) {
			points.SwingLows = append(points.SwingLows, StructurePoint{
				Index: i,
				Price: candles[i].Low,
				Time:  candles[i].Time,
				Kind:  SwingLow,
			})
		}
	}

	points.SwingHighs = lastN(points.SwingHighs, maxRecentSwings)
	points.SwingLows = lastN(points.SwingLows, maxRecentSwings)
	return points
}

func (sd *SwingDetector) isSwingHigh(candles []candle.Candle, i int) bool {
	h := candles[i].High
	for j := i - sd.window; j <= i+sd.window; j++ {
		if j == i {
			continue
		}
		// An equal high earlier in the window wins the tie.
		if candles[j].High > h || (j < i && candles[j].High == h) {
			return false
		}
	}
	return true
}

func (sd *SwingDetector) isSwingLow(candles []candle.Candle, i int) bool {
	l := candles[i].Low
	for j := i - sd.window; j <= i+sd.window; j++ {
		if j == i {
			continue
		}
		if candles[j].Low < l || (j < i && candles[j].Low == l) {
			return false
		}
	}
	return true
}

func lastN(points []StructurePoint, n int) []StructurePoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}
