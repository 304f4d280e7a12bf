package analysis

import (
	"errors"
	"math"
	"testing"
	"time"
)

func point(kind PointKind, index int, price float64) StructurePoint {
	return StructurePoint{
		Index: index,
		Price: price,
		Time:  time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC).Add(time.Duration(index) * 5 * time.Minute),
		Kind:  kind,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBullishZoneLevels(t *testing.T) {
	fc, err := NewFibCalculator(0.01, 3)
	if err != nil {
		t.Fatalf("NewFibCalculator: %v", err)
	}

	points := StructurePoints{
		SwingHighs: []StructurePoint{point(SwingHigh, 40, 200)},
		SwingLows:  []StructurePoint{point(SwingLow, 10, 100)},
	}

	zone, err := fc.Calculate(Bullish, points)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if zone.Anchor0 != 100 || zone.Anchor100 != 200 {
		t.Errorf("Expected anchors 100/200, got %f/%f", zone.Anchor0, zone.Anchor100)
	}

	levelAt := func(ratio float64) float64 {
		for _, l := range zone.Levels {
			if l.Ratio == ratio {
				return l.Price
			}
		}
		t.Fatalf("Ratio %f missing from level grid", ratio)
		return 0
	}

	if got := levelAt(0); got != 100 {
		t.Errorf("0%% level: expected 100, got %f", got)
	}
	if got := levelAt(1.0); got != 200 {
		t.Errorf("100%% level: expected 200, got %f", got)
	}
	if got := levelAt(0.618); !almostEqual(got, 161.8) {
		t.Errorf("61.8%% level: expected 161.8, got %f", got)
	}

	// Bullish grid is monotonically increasing in ratio.
	for i := 1; i < len(zone.Levels); i++ {
		if zone.Levels[i].Price <= zone.Levels[i-1].Price {
			t.Errorf("Levels not increasing at ratio %f", zone.Levels[i].Ratio)
		}
	}
}

func TestBearishZoneLevelsDecrease(t *testing.T) {
	fc, _ := NewFibCalculator(0.01, 3)

	points := StructurePoints{
		SwingHighs: []StructurePoint{point(SwingHigh, 10, 200)},
		SwingLows:  []StructurePoint{point(SwingLow, 40, 100)},
	}

	zone, err := fc.Calculate(Bearish, points)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if zone.Anchor0 != 200 || zone.Anchor100 != 100 {
		t.Errorf("Expected anchors 200/100, got %f/%f", zone.Anchor0, zone.Anchor100)
	}
	for i := 1; i < len(zone.Levels); i++ {
		if zone.Levels[i].Price >= zone.Levels[i-1].Price {
			t.Errorf("Bearish levels not decreasing at ratio %f", zone.Levels[i].Ratio)
		}
	}
}

func TestBullishEntryStopAndTargets(t *testing.T) {
	fc, _ := NewFibCalculator(0.01, 3)

	points := StructurePoints{
		SwingHighs: []StructurePoint{point(SwingHigh, 40, 2350)},
		SwingLows:  []StructurePoint{point(SwingLow, 10, 2300)},
	}

	zone, err := fc.Calculate(Bullish, points)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if !almostEqual(zone.EntryPrice, 2335.25) {
		t.Errorf("OTE entry: expected 2335.25, got %f", zone.EntryPrice)
	}
	// Stop 3 pips (0.03) below the swing low.
	if !almostEqual(zone.StopLoss, 2299.97) {
		t.Errorf("Stop loss: expected 2299.97, got %f", zone.StopLoss)
	}
	// TP1 is the 1:1 projection of entry-to-stop distance.
	if !almostEqual(zone.TakeProfit1, 2335.25+(2335.25-2299.97)) {
		t.Errorf("TP1: expected %f, got %f", 2335.25+(2335.25-2299.97), zone.TakeProfit1)
	}
	if zone.TakeProfit2 != 2350 {
		t.Errorf("TP2: expected swing high 2350, got %f", zone.TakeProfit2)
	}
	if !almostEqual(zone.OTEStart, 2300+0.618*50) || !almostEqual(zone.OTEEnd, 2300+0.786*50) {
		t.Errorf("OTE band: expected [%f, %f], got [%f, %f]",
			2300+0.618*50, 2300+0.786*50, zone.OTEStart, zone.OTEEnd)
	}
}

func TestBearishEntryStopAndTargets(t *testing.T) {
	fc, _ := NewFibCalculator(0.01, 3)

	points := StructurePoints{
		SwingHighs: []StructurePoint{point(SwingHigh, 10, 2350)},
		SwingLows:  []StructurePoint{point(SwingLow, 40, 2300)},
	}

	zone, err := fc.Calculate(Bearish, points)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if !almostEqual(zone.EntryPrice, 2350-0.705*50) {
		t.Errorf("OTE entry: expected %f, got %f", 2350-0.705*50, zone.EntryPrice)
	}
	if !almostEqual(zone.StopLoss, 2350.03) {
		t.Errorf("Stop loss: expected 2350.03, got %f", zone.StopLoss)
	}
	if zone.TakeProfit1 >= zone.EntryPrice {
		t.Errorf("Bearish TP1 must be below entry: entry %f, tp1 %f", zone.EntryPrice, zone.TakeProfit1)
	}
	if zone.TakeProfit2 != 2300 {
		t.Errorf("TP2: expected swing low 2300, got %f", zone.TakeProfit2)
	}
}

func TestNoValidAnchorsWhenHighPrecedesLow(t *testing.T) {
	fc, _ := NewFibCalculator(0.01, 3)

	// Bullish trend but the only swing high formed before the swing low.
	points := StructurePoints{
		SwingHighs: []StructurePoint{point(SwingHigh, 5, 2350)},
		SwingLows:  []StructurePoint{point(SwingLow, 20, 2300)},
	}

	_, err := fc.Calculate(Bullish, points)
	if !errors.Is(err, ErrNoValidAnchors) {
		t.Errorf("Expected ErrNoValidAnchors, got %v", err)
	}
}

func TestNoValidAnchorsForNeutralTrend(t *testing.T) {
	fc, _ := NewFibCalculator(0.01, 3)

	points := StructurePoints{
		SwingHighs: []StructurePoint{point(SwingHigh, 20, 2350)},
		SwingLows:  []StructurePoint{point(SwingLow, 10, 2300)},
	}

	_, err := fc.Calculate(Neutral, points)
	if !errors.Is(err, ErrNoValidAnchors) {
		t.Errorf("Expected ErrNoValidAnchors for neutral trend, got %v", err)
	}
}

func TestNoValidAnchorsWithoutSwings(t *testing.T) {
	fc, _ := NewFibCalculator(0.01, 3)

	_, err := fc.Calculate(Bullish, StructurePoints{})
	if !errors.Is(err, ErrNoValidAnchors) {
		t.Errorf("Expected ErrNoValidAnchors for empty structure, got %v", err)
	}
}

func TestAnchorSelectionPicksMostRecentQualifyingHigh(t *testing.T) {
	fc, _ := NewFibCalculator(0.01, 3)

	// Two highs after the last low: the most recent one anchors 100%.
	points := StructurePoints{
		SwingHighs: []StructurePoint{
			point(SwingHigh, 15, 2340),
			point(SwingHigh, 30, 2360),
		},
		SwingLows: []StructurePoint{point(SwingLow, 10, 2300)},
	}

	zone, err := fc.Calculate(Bullish, points)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if zone.Anchor100 != 2360 {
		t.Errorf("Expected most recent qualifying high 2360, got %f", zone.Anchor100)
	}
}

func TestNewFibCalculatorRejectsBadParams(t *testing.T) {
	if _, err := NewFibCalculator(0, 3); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Zero pip size: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewFibCalculator(0.01, 0); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Zero stop pips: expected ErrInvalidConfig, got %v", err)
	}
}
