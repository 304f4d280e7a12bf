package oanda

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const candlesFixture = `{
	"instrument": "XAU_USD",
	"granularity": "M5",
	"candles": [
		{"complete": true, "volume": 120, "time": "2025-06-02T09:00:00.000000000Z",
		 "mid": {"o": "2330.10", "h": "2331.50", "l": "2329.80", "c": "2331.00"}},
		{"complete": true, "volume": 98, "time": "2025-06-02T09:05:00.000000000Z",
		 "mid": {"o": "2331.00", "h": "2332.20", "l": "2330.60", "c": "2331.90"}},
		{"complete": false, "volume": 14, "time": "2025-06-02T09:10:00.000000000Z",
		 "mid": {"o": "2331.90", "h": "2332.00", "l": "2331.70", "c": "2331.75"}}
	]
}`

const pricingFixture = `{
	"prices": [
		{"instrument": "XAU_USD", "time": "2025-06-02T09:10:03.000000000Z",
		 "bids": [{"price": "2331.70"}], "asks": [{"price": "2331.95"}]}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)

	client, err := NewClient("test-key", "test-account", "practice", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.restHost = server.URL
	return client, server
}

func TestGetCandlesDropsIncomplete(t *testing.T) {
	var gotAuth string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(candlesFixture))
	})
	defer server.Close()

	series, err := client.GetCandles(context.Background(), "XAU_USD", "M5", 3)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Expected bearer auth header, got %q", gotAuth)
	}
	if series.Instrument != "XAU_USD" || series.Granularity != "M5" {
		t.Errorf("Wrong series identity: %s %s", series.Instrument, series.Granularity)
	}
	if len(series.Candles) != 2 {
		t.Fatalf("Expected 2 complete candles, got %d", len(series.Candles))
	}
	first := series.Candles[0]
	if first.Open != 2330.10 || first.High != 2331.50 || first.Low != 2329.80 || first.Close != 2331.00 {
		t.Errorf("First candle parsed wrong: %+v", first)
	}
	if first.Volume != 120 {
		t.Errorf("Expected volume 120, got %d", first.Volume)
	}
}

func TestGetCurrentPriceParsesQuote(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pricingFixture))
	})
	defer server.Close()

	tick, err := client.GetCurrentPrice(context.Background(), "XAU_USD")
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}

	if tick.Bid != 2331.70 || tick.Ask != 2331.95 {
		t.Errorf("Expected bid/ask 2331.70/2331.95, got %f/%f", tick.Bid, tick.Ask)
	}
	// Gold spread is quoted in cents.
	if tick.Spread != 25.0 {
		t.Errorf("Expected spread 25.0 cents, got %f", tick.Spread)
	}
	if got := tick.Mid(); got != (2331.70+2331.95)/2 {
		t.Errorf("Mid: expected %f, got %f", (2331.70+2331.95)/2, got)
	}
}

func TestGetCandlesSurfacesAPIError(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errorMessage":"Insufficient authorization to perform request."}`))
	})
	defer server.Close()

	_, err := client.GetCandles(context.Background(), "XAU_USD", "M5", 10)
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient("", "account", "practice", 0); err != ErrMissingCredentials {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
	if _, err := NewClient("key", "", "practice", 0); err != ErrMissingCredentials {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
}

func TestNewClientEnvironmentHosts(t *testing.T) {
	practice, _ := NewClient("k", "a", "practice", 0)
	if practice.restHost != practiceRestHost {
		t.Errorf("Practice host: got %s", practice.restHost)
	}

	live, _ := NewClient("k", "a", "live", 0)
	if live.restHost != liveRestHost || live.streamHost != liveStreamHost {
		t.Errorf("Live hosts: got %s / %s", live.restHost, live.streamHost)
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(3, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !rl.TryAcquire() {
			t.Fatalf("Acquire %d should succeed", i)
		}
	}
	if rl.TryAcquire() {
		t.Error("Fourth acquire inside window should fail")
	}

	time.Sleep(120 * time.Millisecond)
	if !rl.TryAcquire() {
		t.Error("Acquire after window expiry should succeed")
	}
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("First wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestSimulatedProviderDeterministicForSeed(t *testing.T) {
	a := NewSimulatedProviderWithSeed(42)
	b := NewSimulatedProviderWithSeed(42)

	seriesA, err := a.GetCandles(context.Background(), "XAU_USD", "H1", 60)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	seriesB, err := b.GetCandles(context.Background(), "XAU_USD", "H1", 60)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}

	for i := range seriesA.Candles {
		ca, cb := seriesA.Candles[i], seriesB.Candles[i]
		if ca.Open != cb.Open || ca.High != cb.High || ca.Low != cb.Low || ca.Close != cb.Close || ca.Volume != cb.Volume {
			t.Fatalf("Candle %d differs for identical seeds: %+v vs %+v", i, ca, cb)
		}
	}

	c := NewSimulatedProviderWithSeed(43)
	seriesC, err := c.GetCandles(context.Background(), "XAU_USD", "H1", 60)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	same := true
	for i := range seriesA.Candles {
		if seriesA.Candles[i].Close != seriesC.Candles[i].Close {
			same = false
			break
		}
	}
	if same {
		t.Error("Different seeds should produce different walks")
	}
}

func TestSimulatedProviderShape(t *testing.T) {
	sp := NewSimulatedProvider()

	series, err := sp.GetCandles(context.Background(), "XAU_USD", "M5", 60)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(series.Candles) != 60 {
		t.Fatalf("Expected 60 candles, got %d", len(series.Candles))
	}

	for i, c := range series.Candles {
		if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
			t.Errorf("Candle %d violates OHLC bounds: %+v", i, c)
		}
		if i > 0 && !series.Candles[i].Time.After(series.Candles[i-1].Time) {
			t.Errorf("Candle %d not after its predecessor", i)
		}
	}

	tick, err := sp.GetCurrentPrice(context.Background(), "XAU_USD")
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if tick.Ask <= tick.Bid {
		t.Errorf("Ask %f must exceed bid %f", tick.Ask, tick.Bid)
	}
}
