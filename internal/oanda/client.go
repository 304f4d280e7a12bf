package oanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mvpforex/internal/candle"
)

const (
	practiceRestHost   = "https://api-fxpractice.oanda.com"
	practiceStreamHost = "https://stream-fxpractice.oanda.com"
	liveRestHost       = "https://api-fxtrade.oanda.com"
	liveStreamHost     = "https://stream-fxtrade.oanda.com"

	// OANDA allows 100 requests per second per token.
	maxRequestsPerSecond = 100
)

// ErrMissingCredentials is returned when the client is constructed without
// an API key or account ID.
var ErrMissingCredentials = errors.New("missing OANDA credentials")

// Client is a minimal OANDA v20 REST client covering the candle and pricing
// endpoints the dashboard needs.
type Client struct {
	apiKey     string
	accountID  string
	restHost   string
	streamHost string
	httpClient *http.Client
	limiter    *RateLimiter
}

// NewClient creates an OANDA client for the given environment ("practice"
// or "live").
func NewClient(apiKey, accountID, environment string, timeout time.Duration) (*Client, error) {
	if apiKey == "" || accountID == "" {
		return nil, ErrMissingCredentials
	}

	restHost, streamHost := practiceRestHost, practiceStreamHost
	if environment == "live" {
		restHost, streamHost = liveRestHost, liveStreamHost
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiKey:     apiKey,
		accountID:  accountID,
		restHost:   restHost,
		streamHost: streamHost,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    NewRateLimiter(maxRequestsPerSecond, time.Second),
	}, nil
}

// candlesResponse mirrors the v20 instrument candles payload.
type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []rawCandle `json:"candles"`
}

type rawCandle struct {
	Complete bool      `json:"complete"`
	Volume   int64     `json:"volume"`
	Time     time.Time `json:"time"`
	Mid      ohlc      `json:"mid"`
}

type ohlc struct {
	Open  string `json:"o"`
	High  string `json:"h"`
	Low   string `json:"l"`
	Close string `json:"c"`
}

// GetCandles fetches up to count candles for the instrument. Incomplete
// candles are dropped so analysis only ever sees settled prices.
func (c *Client) GetCandles(ctx context.Context, instrument, granularity string, count int) (*candle.Series, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("count", strconv.Itoa(count))
	params.Set("granularity", granularity)
	params.Set("price", "M")

	endpoint := fmt.Sprintf("%s/v3/instruments/%s/candles?%s", c.restHost, instrument, params.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("error fetching candles for %s: %w", instrument, err)
	}

	var resp candlesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing candle response: %w", err)
	}

	series := &candle.Series{
		Instrument:  resp.Instrument,
		Granularity: resp.Granularity,
		Candles:     make([]candle.Candle, 0, len(resp.Candles)),
	}

	for _, raw := range resp.Candles {
		if !raw.Complete {
			continue
		}
		cdl, err := raw.toCandle()
		if err != nil {
			return nil, fmt.Errorf("error parsing candle at %s: %w", raw.Time, err)
		}
		series.Candles = append(series.Candles, cdl)
	}

	return series, nil
}

func (r rawCandle) toCandle() (candle.Candle, error) {
	open, err := strconv.ParseFloat(r.Mid.Open, 64)
	if err != nil {
		return candle.Candle{}, err
	}
	high, err := strconv.ParseFloat(r.Mid.High, 64)
	if err != nil {
		return candle.Candle{}, err
	}
	low, err := strconv.ParseFloat(r.Mid.Low, 64)
	if err != nil {
		return candle.Candle{}, err
	}
	closePrice, err := strconv.ParseFloat(r.Mid.Close, 64)
	if err != nil {
		return candle.Candle{}, err
	}

	return candle.Candle{
		Time:   r.Time,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: r.Volume,
	}, nil
}

// pricingResponse mirrors the v20 pricing payload.
type pricingResponse struct {
	Prices []struct {
		Instrument string    `json:"instrument"`
		Time       time.Time `json:"time"`
		Bids       []quote   `json:"bids"`
		Asks       []quote   `json:"asks"`
	} `json:"prices"`
}

type quote struct {
	Price string `json:"price"`
}

// GetCurrentPrice returns the latest bid/ask for the instrument.
func (c *Client) GetCurrentPrice(ctx context.Context, instrument string) (*Tick, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("instruments", instrument)

	endpoint := fmt.Sprintf("%s/v3/accounts/%s/pricing?%s", c.restHost, c.accountID, params.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("error fetching price for %s: %w", instrument, err)
	}

	var resp pricingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing pricing response: %w", err)
	}
	if len(resp.Prices) == 0 {
		return nil, fmt.Errorf("no price returned for %s", instrument)
	}

	p := resp.Prices[0]
	if len(p.Bids) == 0 || len(p.Asks) == 0 {
		return nil, fmt.Errorf("incomplete quote for %s", instrument)
	}

	bid, err := strconv.ParseFloat(p.Bids[0].Price, 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing bid: %w", err)
	}
	ask, err := strconv.ParseFloat(p.Asks[0].Price, 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing ask: %w", err)
	}

	return &Tick{
		Instrument: p.Instrument,
		Time:       p.Time,
		Bid:        bid,
		Ask:        ask,
		Spread:     spread(p.Instrument, bid, ask),
	}, nil
}

// spread converts the bid/ask gap to display units: cents for gold, pips
// for forex pairs.
func spread(instrument string, bid, ask float64) float64 {
	if bid <= 0 || ask <= 0 {
		return 0
	}
	if len(instrument) >= 4 && instrument[:4] == "XAU_" {
		return round1((ask - bid) * 100)
	}
	return round1((ask - bid) * 10000)
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
