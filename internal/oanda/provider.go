package oanda

import (
	"context"
	"time"

	"mvpforex/internal/candle"
)

// Tick is a single live price observation.
type Tick struct {
	Instrument string    `json:"instrument"`
	Time       time.Time `json:"time"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Spread     float64   `json:"spread"`
}

// Mid returns the mid price of the tick.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// CandleProvider supplies completed candles and current prices. The live
// client and the simulated provider both satisfy it, so callers never care
// which one they hold.
type CandleProvider interface {
	GetCandles(ctx context.Context, instrument, granularity string, count int) (*candle.Series, error)
	GetCurrentPrice(ctx context.Context, instrument string) (*Tick, error)
}
