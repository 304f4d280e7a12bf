package oanda

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"mvpforex/internal/candle"
)

// SimulatedProvider serves synthetic candles and ticks for development and
// for deployments without OANDA credentials.
type SimulatedProvider struct {
	mu         sync.Mutex
	rng        *rand.Rand
	prices     map[string]float64
	lastUpdate time.Time
}

// NewSimulatedProvider creates a provider seeded from the clock, so each
// process sees a different walk.
func NewSimulatedProvider() *SimulatedProvider {
	return NewSimulatedProviderWithSeed(time.Now().UnixNano())
}

// NewSimulatedProviderWithSeed creates a provider with a fixed seed. Two
// providers built from the same seed generate identical price walks, which
// tests rely on for reproducibility.
func NewSimulatedProviderWithSeed(seed int64) *SimulatedProvider {
	return &SimulatedProvider{
		rng: rand.New(rand.NewSource(seed)),
		prices: map[string]float64{
			"XAU_USD": 2330.00,
			"EUR_USD": 1.0850,
			"GBP_USD": 1.2700,
			"USD_JPY": 155.00,
		},
		lastUpdate: time.Now(),
	}
}

// granularityDuration maps OANDA granularity codes to candle durations.
func granularityDuration(granularity string) time.Duration {
	switch granularity {
	case "M5":
		return 5 * time.Minute
	case "M15":
		return 15 * time.Minute
	case "M30":
		return 30 * time.Minute
	case "H1":
		return time.Hour
	case "H4":
		return 4 * time.Hour
	case "D":
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}

// drift nudges base prices so consecutive calls see market movement.
func (sp *SimulatedProvider) drift() {
	if time.Since(sp.lastUpdate) < time.Second {
		return
	}
	for instrument, price := range sp.prices {
		change := (sp.rng.Float64() - 0.5) * 0.002
		sp.prices[instrument] = price * (1 + change)
	}
	sp.lastUpdate = time.Now()
}

// GetCandles generates count candles of a random walk ending at the current
// simulated price.
func (sp *SimulatedProvider) GetCandles(_ context.Context, instrument, granularity string, count int) (*candle.Series, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.drift()

	basePrice, ok := sp.prices[instrument]
	if !ok {
		basePrice = 100.0
	}

	interval := granularityDuration(granularity)
	now := time.Now().Truncate(interval)

	candles := make([]candle.Candle, count)
	price := basePrice
	volatility := 0.001

	for i := count - 1; i >= 0; i-- {
		openTime := now.Add(-time.Duration(count-i) * interval)

		open := price
		change := (sp.rng.Float64() - 0.5) * volatility * 2
		closePrice := open * (1 + change)

		high := math.Max(open, closePrice) * (1 + sp.rng.Float64()*volatility*0.5)
		low := math.Min(open, closePrice) * (1 - sp.rng.Float64()*volatility*0.5)

		candles[i] = candle.Candle{
			Time:   openTime,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: int64(100 + sp.rng.Intn(900)),
		}

		price = closePrice
	}

	return &candle.Series{
		Instrument:  instrument,
		Granularity: granularity,
		Candles:     candles,
	}, nil
}

// GetCurrentPrice returns a synthetic quote around the simulated price.
func (sp *SimulatedProvider) GetCurrentPrice(_ context.Context, instrument string) (*Tick, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.drift()

	price, ok := sp.prices[instrument]
	if !ok {
		price = 100.0
	}

	half := price * 0.00005
	bid := price - half
	ask := price + half

	return &Tick{
		Instrument: instrument,
		Time:       time.Now(),
		Bid:        bid,
		Ask:        ask,
		Spread:     spread(instrument, bid, ask),
	}, nil
}
