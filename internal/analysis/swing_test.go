package analysis

import (
	"errors"
	"testing"
	"time"

	"mvpforex/internal/candle"
)

// seriesFromHighsLows builds a series from explicit high/low tracks.
func seriesFromHighsLows(highs, lows []float64) *candle.Series {
	start := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	candles := make([]candle.Candle, len(highs))
	for i := range highs {
		mid := (highs[i] + lows[i]) / 2
		candles[i] = candle.Candle{
			Time:   start.Add(time.Duration(i) * 5 * time.Minute),
			Open:   mid,
			High:   highs[i],
			Low:    lows[i],
			Close:  mid,
			Volume: 100,
		}
	}
	return &candle.Series{Instrument: "XAU_USD", Granularity: "M5", Candles: candles}
}

func TestDetectSingleSpikeHigh(t *testing.T) {
	highs := []float64{1, 1, 1, 1, 1, 10, 1, 1, 1, 1, 1}
	lows := make([]float64, len(highs))
	for i := range lows {
		lows[i] = 0.5
	}

	sd, err := NewSwingDetector(5)
	if err != nil {
		t.Fatalf("NewSwingDetector: %v", err)
	}

	points := sd.Detect(seriesFromHighsLows(highs, lows))

	if len(points.SwingHighs) != 1 {
		t.Fatalf("Expected exactly 1 swing high, got %d", len(points.SwingHighs))
	}
	if points.SwingHighs[0].Index != 5 {
		t.Errorf("Expected swing high at index 5, got %d", points.SwingHighs[0].Index)
	}
	if points.SwingHighs[0].Price != 10 {
		t.Errorf("Expected swing high price 10, got %f", points.SwingHighs[0].Price)
	}
	if points.SwingHighs[0].Kind != SwingHigh {
		t.Errorf("Expected kind %q, got %q", SwingHigh, points.SwingHighs[0].Kind)
	}
}

func TestDetectMonotonicHighsYieldNoSwingHigh(t *testing.T) {
	// Strictly rising highs: every window maximum sits at the right edge,
	// never centered, so no interior candle qualifies.
	highs := make([]float64, 30)
	lows := make([]float64, 30)
	for i := range highs {
		highs[i] = 2300 + float64(i)
		lows[i] = 2299 + float64(i)
	}

	sd, _ := NewSwingDetector(5)
	points := sd.Detect(seriesFromHighsLows(highs, lows))

	if len(points.SwingHighs) != 0 {
		t.Errorf("Monotonic highs should yield no swing highs, got %d", len(points.SwingHighs))
	}
	if len(points.SwingLows) != 0 {
		t.Errorf("Monotonic lows should yield no swing lows, got %d", len(points.SwingLows))
	}
}

func TestDetectShortSeriesReturnsEmpty(t *testing.T) {
	// 10 candles with window 5 is below the 2*window+1 minimum. That is
	// valid empty output, not an error.
	highs := make([]float64, 10)
	lows := make([]float64, 10)
	for i := range highs {
		highs[i] = 2300 + float64(i%3)
		lows[i] = 2299
	}

	sd, _ := NewSwingDetector(5)
	points := sd.Detect(seriesFromHighsLows(highs, lows))

	if len(points.SwingHighs) != 0 || len(points.SwingLows) != 0 {
		t.Errorf("Short series should yield empty lists, got %d highs, %d lows",
			len(points.SwingHighs), len(points.SwingLows))
	}
}

func TestDetectTieResolvesToEarliestIndex(t *testing.T) {
	// Two equal peaks inside one window: only the earlier peak qualifies.
	highs := []float64{1, 1, 1, 1, 1, 9, 1, 9, 1, 1, 1, 1, 1}
	lows := make([]float64, len(highs))
	for i := range lows {
		lows[i] = 0.5
	}

	sd, _ := NewSwingDetector(5)
	points := sd.Detect(seriesFromHighsLows(highs, lows))

	if len(points.SwingHighs) != 1 {
		t.Fatalf("Expected 1 swing high from tied peaks, got %d", len(points.SwingHighs))
	}
	if points.SwingHighs[0].Index != 5 {
		t.Errorf("Tie should resolve to earliest index 5, got %d", points.SwingHighs[0].Index)
	}
}

func TestDetectReturnsLastThreeOfEachKind(t *testing.T) {
	// Alternating peaks and valleys every 6 candles produce more than three
	// swing points of each kind.
	n := 80
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i := range highs {
		highs[i] = 2300
		lows[i] = 2290
		switch i % 12 {
		case 0:
			highs[i] = 2310 + float64(i)/100
		case 6:
			lows[i] = 2280 - float64(i)/100
		}
	}

	sd, _ := NewSwingDetector(5)
	points := sd.Detect(seriesFromHighsLows(highs, lows))

	if len(points.SwingHighs) != 3 {
		t.Errorf("Expected exactly 3 most recent swing highs, got %d", len(points.SwingHighs))
	}
	if len(points.SwingLows) != 3 {
		t.Errorf("Expected exactly 3 most recent swing lows, got %d", len(points.SwingLows))
	}

	// Most-recent-last ordering.
	for i := 1; i < len(points.SwingHighs); i++ {
		if points.SwingHighs[i].Index <= points.SwingHighs[i-1].Index {
			t.Errorf("Swing highs not in chronological order: %d then %d",
				points.SwingHighs[i-1].Index, points.SwingHighs[i].Index)
		}
	}
}

func TestDetectDeterministic(t *testing.T) {
	highs := []float64{1, 2, 1, 3, 1, 10, 1, 4, 2, 1, 5, 1, 1}
	lows := make([]float64, len(highs))
	for i := range lows {
		lows[i] = highs[i] - 1
	}
	series := seriesFromHighsLows(highs, lows)

	sd, _ := NewSwingDetector(5)
	first := sd.Detect(series)
	second := sd.Detect(series)

	if len(first.SwingHighs) != len(second.SwingHighs) || len(first.SwingLows) != len(second.SwingLows) {
		t.Fatal("Repeated detection returned different point counts")
	}
	for i := range first.SwingHighs {
		if first.SwingHighs[i] != second.SwingHighs[i] {
			t.Errorf("Swing high %d differs between runs", i)
		}
	}
}

func TestNewSwingDetectorRejectsBadWindow(t *testing.T) {
	for _, w := range []int{0, -1, -5} {
		if _, err := NewSwingDetector(w); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Window %d: expected ErrInvalidConfig, got %v", w, err)
		}
	}
}
