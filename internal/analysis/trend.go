package analysis

import (
	"fmt"

	"mvpforex/internal/candle"
)

// Direction represents the overall trend bias.
type Direction string

const (
	Bullish Direction = "Bullish"
	Bearish Direction = "Bearish"
	Neutral Direction = "Neutral"
)

// Strength qualifies a non-neutral trend.
type Strength string

const (
	Strong Strength = "Strong"
	Weak   Strength = "Weak"
)

// TrendInfo is the output of trend classification. It is recomputed on
// every request and never mutated afterwards.
type TrendInfo struct {
	Direction    Direction `json:"direction"`
	Strength     Strength  `json:"strength"`
	CurrentPrice float64   `json:"current_price"`
	SMAShort     float64   `json:"sma_short"`
	SMALong      float64   `json:"sma_long"`
}

// TrendClassifier classifies directional bias from simple moving averages
// of closing prices. It holds only its period parameters and is safe for
// concurrent use.
type TrendClassifier struct {
	shortPeriod int
	longPeriod  int
}

// NewTrendClassifier creates a classifier with the given SMA periods.
// Both periods must be positive and the short period must be smaller
// than the long one.
func NewTrendClassifier(shortPeriod, longPeriod int) (*TrendClassifier, error) {
	if shortPeriod <= 0 || longPeriod <= 0 {
		return nil, fmt.Errorf("%w: SMA periods must be positive (got %d/%d)", ErrInvalidConfig, shortPeriod, longPeriod)
	}
	if shortPeriod >= longPeriod {
		return nil, fmt.Errorf("%w: short period %d must be less than long period %d", ErrInvalidConfig, shortPeriod, longPeriod)
	}
	return &TrendClassifier{shortPeriod: shortPeriod, longPeriod: longPeriod}, nil
}

// Classify computes the trailing SMAs and derives direction and strength.
// It fails with ErrInsufficientData when the series is shorter than the
// long period; it never fabricates a classification.
func (tc *TrendClassifier) Classify(series *candle.Series) (*TrendInfo, error) {
	n := series.Len()
	if n < tc.longPeriod {
		return nil, fmt.Errorf("%w: need %d candles for SMA%d, got %d", ErrInsufficientData, tc.longPeriod, tc.longPeriod, n)
	}

	closes := series.Closes()
	smaShort := sma(closes, tc.shortPeriod)
	smaLong := sma(closes, tc.longPeriod)
	currentPrice := closes[n-1]

	direction := Neutral
	switch {
	case smaShort > smaLong && currentPrice > smaShort:
		direction = Bullish
	case smaShort < smaLong && currentPrice < smaShort:
		direction = Bearish
	}

	strength := Weak
	if direction != Neutral {
		strength = tc.strength(series.Candles, direction)
	}

	return &TrendInfo{
		Direction:    direction,
		Strength:     strength,
		CurrentPrice: currentPrice,
		SMAShort:     smaShort,
		SMALong:      smaLong,
	}, nil
}

// strength compares the last 5 candles against the preceding 5, position by
// position. A bullish trend is Strong when at least 3 of the 5 recent highs
// exceed their counterparts; bearish mirrors with lows.
func (tc *TrendClassifier) strength(candles []candle.Candle, direction Direction) Strength {
	n := len(candles)
	if n < 10 {
		return Weak
	}

	wins := 0
	for i := 0; i < 5; i++ {
		later := candles[n-5+i]
		earlier := candles[n-10+i]
		if direction == Bullish && later.High > earlier.High {
			wins++
		}
		if direction == Bearish && later.Low < earlier.Low {
			wins++
		}
	}

	if wins >= 3 {
		return Strong
	}
	return Weak
}

// sma returns the unweighted mean of the trailing period values.
// The caller guarantees len(values) >= period.
func sma(values []float64, period int) float64 {
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}
