package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mvpforex/config"
	"mvpforex/internal/ai/llm"
	"mvpforex/internal/analysis"
	"mvpforex/internal/events"
	"mvpforex/internal/logging"
	"mvpforex/internal/oanda"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ServerConfig: config.ServerConfig{
			Port:            5000,
			Host:            "127.0.0.1",
			AllowedOrigins:  "*",
			AdminAPIKey:     "test-admin-key",
			RateLimitPerMin: 1000,
			ReadTimeout:     5,
			WriteTimeout:    5,
		},
		RedisConfig: config.RedisConfig{MarketDataTTL: 30, AnalysisTTL: 300},
	}
	cfg.OandaConfig.Environment = "practice"
	if mutate != nil {
		mutate(cfg)
	}

	analyzer, err := analysis.New(analysis.DefaultConfig())
	if err != nil {
		t.Fatalf("analysis.New: %v", err)
	}
	strategy := llm.NewStrategyAnalyzer(map[llm.Provider]*llm.Client{}, logging.Default())

	return NewServer(
		cfg,
		oanda.NewSimulatedProvider(),
		analyzer,
		strategy,
		nil, // cache
		nil, // db
		nil, // secrets
		nil, // stream
		events.NewEventBus(),
		logging.Default(),
	)
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("Fourth request should be denied")
	}
	// A different client is tracked independently.
	if !rl.Allow("10.0.0.2") {
		t.Error("Separate client should be allowed")
	}
}

func TestMarketDataRejectsBadQuery(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name string
		path string
	}{
		{"unsupported instrument", "/api/market-data?instrument=EUR_USD"},
		{"unknown granularity", "/api/market-data?granularity=M1"},
		{"count too small", "/api/market-data?count=0"},
		{"count too large", "/api/market-data?count=5001"},
		{"count not a number", "/api/market-data?count=abc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(s, http.MethodGet, tc.path)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestMarketDataReturnsSnapshot(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/api/market-data?granularity=H1&count=60")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp marketDataResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Expected status ok, got %q", resp.Status)
	}
	if resp.Instrument != "XAU_USD" || resp.Granularity != "H1" {
		t.Errorf("Unexpected instrument/granularity: %s %s", resp.Instrument, resp.Granularity)
	}
	if resp.TrendInfo == nil {
		t.Fatal("Expected trend info")
	}
	if resp.TrendInfo.CurrentPrice <= 0 {
		t.Errorf("Expected positive current price, got %f", resp.TrendInfo.CurrentPrice)
	}
	if len(resp.Candles) == 0 || len(resp.Candles) > chartCandles {
		t.Errorf("Expected 1-%d chart candles, got %d", chartCandles, len(resp.Candles))
	}
}

func TestMarketDataInsufficientCandles(t *testing.T) {
	s := newTestServer(t, nil)

	// 5 candles cannot cover the 50-period SMA.
	w := doRequest(s, http.MethodGet, "/api/market-data?count=5")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeRejectsUnknownProvider(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodPost, "/api/analyze/grok")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeUnconfiguredProviderFails(t *testing.T) {
	s := newTestServer(t, nil)

	// No LLM clients are configured in the test server.
	w := doRequest(s, http.MethodPost, "/api/analyze/openai?count=100")
	if w.Code == http.StatusOK {
		t.Errorf("Expected failure without a configured provider, got 200: %s", w.Body.String())
	}
}

func TestFeedbackRequiresStorage(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodPost, "/api/feedback")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a database, got %d", w.Code)
	}
}

func TestMonitoringStatusIsPublic(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/monitoring/status")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy, got %q", resp["status"])
	}
	if resp["environment"] != "practice" {
		t.Errorf("Expected practice environment, got %q", resp["environment"])
	}
}

func TestMonitoringHealthRequiresAdminKey(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/monitoring/health")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without admin key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/monitoring/health", nil)
	req.Header.Set("X-Admin-Key", "wrong-key")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong admin key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/monitoring/health", nil)
	req.Header.Set("X-Admin-Key", "test-admin-key")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with admin key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMonitoringHealthClosedWithoutConfiguredKey(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.ServerConfig.AdminAPIKey = ""
	})

	req := httptest.NewRequest(http.MethodGet, "/monitoring/health", nil)
	req.Header.Set("X-Admin-Key", "")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 when no admin key is configured, got %d", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.ServerConfig.RateLimitPerMin = 1
	})

	first := httptest.NewRequest(http.MethodGet, "/api/market-data?count=60", nil)
	first.Header.Set("X-Forwarded-For", "203.0.113.9")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, first)
	if w.Code != http.StatusOK {
		t.Fatalf("First request should pass, got %d: %s", w.Code, w.Body.String())
	}

	second := httptest.NewRequest(http.MethodGet, "/api/market-data?count=60", nil)
	second.Header.Set("X-Forwarded-For", "203.0.113.9")
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, second)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Second request should be limited, got %d", w.Code)
	}

	// The monitoring group is not rate limited.
	w = doRequest(s, http.MethodGet, "/monitoring/status")
	if w.Code != http.StatusOK {
		t.Errorf("Monitoring should bypass the limiter, got %d", w.Code)
	}
}

func TestProvidersEmptyWithoutKeys(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/api/providers")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		Status    string   `json:"status"`
		Providers []string `json:"providers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Providers) != 0 {
		t.Errorf("Expected no configured providers, got %v", resp.Providers)
	}
}
