package api

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mvpforex/internal/ai/llm"
	"mvpforex/internal/analysis"
	"mvpforex/internal/cache"
	"mvpforex/internal/candle"
	"mvpforex/internal/database"
)

// supportedInstrument is the only instrument the dashboard serves.
const supportedInstrument = "XAU_USD"

// defaultCandleCount matches the chart's lookback.
const defaultCandleCount = 50

// chartCandles is how many recent candles a market-data response carries.
const chartCandles = 10

var validGranularities = map[string]bool{
	"M5": true, "M15": true, "M30": true, "H1": true, "H4": true, "D": true,
}

// marketDataResponse is the payload of GET /api/market-data.
type marketDataResponse struct {
	Status          string                   `json:"status"`
	Instrument      string                   `json:"instrument"`
	Granularity     string                   `json:"granularity"`
	Candles         []candle.Candle          `json:"candles"`
	TrendInfo       *analysis.TrendInfo      `json:"trend_info"`
	StructurePoints analysis.StructurePoints `json:"structure_points"`
}

// analyzeResponse is the payload of POST /api/analyze/:provider.
type analyzeResponse struct {
	Status          string                   `json:"status"`
	Analysis        string                   `json:"analysis"`
	Model           string                   `json:"model"`
	Provider        string                   `json:"provider"`
	ElapsedTime     float64                  `json:"elapsed_time"`
	TrendInfo       *analysis.TrendInfo      `json:"trend_info"`
	StructurePoints analysis.StructurePoints `json:"structure_points"`
	FibonacciZone   *analysis.FibonacciZone  `json:"fibonacci_zone,omitempty"`
	RunID           string                   `json:"run_id,omitempty"`
}

func errorJSON(c *gin.Context, status int, format string, args ...interface{}) {
	c.JSON(status, gin.H{"status": "error", "error": fmt.Sprintf(format, args...)})
}

// parseSeriesQuery validates the instrument/granularity/count query
// parameters shared by the market-data and analyze endpoints. It reports
// whether validation passed; on failure the 400 response is already
// written.
func (s *Server) parseSeriesQuery(c *gin.Context) (instrument, granularity string, count int, ok bool) {
	instrument = c.DefaultQuery("instrument", supportedInstrument)
	if instrument != supportedInstrument {
		errorJSON(c, http.StatusBadRequest, "Invalid instrument: only %s is supported", supportedInstrument)
		return "", "", 0, false
	}

	granularity = c.DefaultQuery("granularity", "M5")
	if !validGranularities[granularity] {
		errorJSON(c, http.StatusBadRequest, "Invalid granularity: %s", granularity)
		return "", "", 0, false
	}

	count = defaultCandleCount
	if raw := c.Query("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 5000 {
			errorJSON(c, http.StatusBadRequest, "Invalid count: must be between 1 and 5000")
			return "", "", 0, false
		}
		count = parsed
	}

	return instrument, granularity, count, true
}

// handleMarketData serves recent candles plus the trend and structure
// snapshot for the chart. Responses are cached briefly so a dashboard
// polling every few seconds does not hammer OANDA.
func (s *Server) handleMarketData(c *gin.Context) {
	instrument, granularity, count, ok := s.parseSeriesQuery(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	cacheKey := cache.MarketDataKey(instrument, granularity, count)

	if s.cache != nil {
		var cached marketDataResponse
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		} else if !cache.IsMiss(err) {
			s.logger.Warn("Market data cache read failed", "error", err)
		}
	}

	series, err := s.provider.GetCandles(ctx, instrument, granularity, count)
	if err != nil {
		s.logger.Error("Failed to fetch candles", "instrument", instrument, "error", err)
		errorJSON(c, http.StatusBadGateway, "Failed to fetch market data: %v", err)
		return
	}

	trend, points, err := s.analyzer.Snapshot(series)
	if err != nil {
		if errors.Is(err, analysis.ErrInsufficientData) {
			errorJSON(c, http.StatusUnprocessableEntity, "Not enough candles for analysis: %v", err)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "Analysis failed: %v", err)
		return
	}

	candles := series.Candles
	if len(candles) > chartCandles {
		candles = candles[len(candles)-chartCandles:]
	}

	resp := marketDataResponse{
		Status:          "ok",
		Instrument:      instrument,
		Granularity:     granularity,
		Candles:         candles,
		TrendInfo:       trend,
		StructurePoints: points,
	}

	if s.cache != nil {
		ttl := time.Duration(s.config.RedisConfig.MarketDataTTL) * time.Second
		if err := s.cache.SetJSON(ctx, cacheKey, resp, ttl); err != nil {
			s.logger.Warn("Market data cache write failed", "error", err)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleAnalyze runs the full market structure pass and asks the selected
// LLM provider for a strategy writeup.
func (s *Server) handleAnalyze(c *gin.Context) {
	provider := llm.Provider(c.Param("provider"))
	switch provider {
	case llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderPerplexity:
	default:
		errorJSON(c, http.StatusBadRequest, "Unknown provider: %s", c.Param("provider"))
		return
	}

	instrument, granularity, count, ok := s.parseSeriesQuery(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	cacheKey := cache.AnalysisKey(string(provider), instrument, granularity)

	if s.cache != nil {
		var cached analyzeResponse
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		} else if !cache.IsMiss(err) {
			s.logger.Warn("Analysis cache read failed", "error", err)
		}
	}

	series, err := s.provider.GetCandles(ctx, instrument, granularity, count)
	if err != nil {
		s.logger.Error("Failed to fetch candles", "instrument", instrument, "error", err)
		errorJSON(c, http.StatusBadGateway, "Failed to fetch market data: %v", err)
		return
	}

	result, err := s.analyzer.Analyze(series)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrInsufficientData):
			errorJSON(c, http.StatusUnprocessableEntity, "Not enough candles for analysis: %v", err)
		case errors.Is(err, analysis.ErrNoValidAnchors):
			errorJSON(c, http.StatusUnprocessableEntity, "No tradeable setup: %v", err)
		default:
			errorJSON(c, http.StatusInternalServerError, "Analysis failed: %v", err)
		}
		return
	}

	strategy, err := s.strategy.Generate(ctx, provider, result)
	if err != nil {
		s.logger.Error("Strategy generation failed", "provider", string(provider), "error", err)
		if s.eventBus != nil {
			s.eventBus.PublishError("analyze", "strategy generation failed", err)
		}
		errorJSON(c, http.StatusBadGateway, "Strategy generation failed: %v", err)
		return
	}

	resp := analyzeResponse{
		Status:          "ok",
		Analysis:        strategy.Analysis,
		Model:           strategy.Model,
		Provider:        strategy.Provider,
		ElapsedTime:     strategy.ElapsedTime,
		TrendInfo:       result.Trend,
		StructurePoints: result.Structure,
		FibonacciZone:   result.Fibonacci,
	}

	if s.repo != nil {
		run := buildAnalysisRun(result, strategy)
		if err := s.repo.SaveAnalysisRun(ctx, run); err != nil {
			s.logger.Error("Failed to persist analysis run", "error", err)
		} else {
			resp.RunID = run.ID.String()
		}
	}

	if s.eventBus != nil {
		s.eventBus.PublishAnalysisCompleted(
			instrument, granularity,
			string(result.Trend.Direction), string(result.Trend.Strength),
		)
	}

	if s.cache != nil {
		ttl := time.Duration(s.config.RedisConfig.AnalysisTTL) * time.Second
		if err := s.cache.SetJSON(ctx, cacheKey, resp, ttl); err != nil {
			s.logger.Warn("Analysis cache write failed", "error", err)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func buildAnalysisRun(result *analysis.Result, strategy *llm.StrategyAnalysis) *database.AnalysisRun {
	run := &database.AnalysisRun{
		Instrument:     result.Instrument,
		Granularity:    result.Granularity,
		Model:          strategy.Model,
		Provider:       strategy.Provider,
		TrendDirection: string(result.Trend.Direction),
		TrendStrength:  string(result.Trend.Strength),
		CurrentPrice:   result.Trend.CurrentPrice,
		Analysis:       strategy.Analysis,
		ElapsedSeconds: strategy.ElapsedTime,
	}
	if zone := result.Fibonacci; zone != nil {
		run.EntryPrice = &zone.EntryPrice
		run.StopLoss = &zone.StopLoss
		run.TakeProfit1 = &zone.TakeProfit1
		run.TakeProfit2 = &zone.TakeProfit2
	}
	return run
}

// handleProviders lists the LLM providers with a configured API key.
func (s *Server) handleProviders(c *gin.Context) {
	providers := s.strategy.Providers()
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, string(p))
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "providers": names})
}

type feedbackRequest struct {
	RunID        string `json:"run_id"`
	Model        string `json:"model" binding:"required"`
	Rating       int    `json:"rating" binding:"required"`
	Comment      string `json:"comment"`
	FeedbackType string `json:"feedback_type"`
}

// handleSaveFeedback records a user rating of a generated analysis.
func (s *Server) handleSaveFeedback(c *gin.Context) {
	if s.repo == nil {
		errorJSON(c, http.StatusServiceUnavailable, "Feedback storage is not configured")
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid feedback payload: %v", err)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		errorJSON(c, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}

	fb := &database.Feedback{
		Model:        req.Model,
		Rating:       req.Rating,
		Comment:      req.Comment,
		FeedbackType: req.FeedbackType,
	}
	if req.RunID != "" {
		runID, err := uuid.Parse(req.RunID)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid run_id: %v", err)
			return
		}
		fb.RunID = &runID
	}

	if err := s.repo.SaveFeedback(c.Request.Context(), fb); err != nil {
		s.logger.Error("Failed to save feedback", "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to save feedback: %v", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "ok", "id": fb.ID.String()})
}

// handleFeedbackByModel returns recent feedback for one model.
func (s *Server) handleFeedbackByModel(c *gin.Context) {
	if s.repo == nil {
		errorJSON(c, http.StatusServiceUnavailable, "Feedback storage is not configured")
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			errorJSON(c, http.StatusBadRequest, "Invalid limit: must be between 1 and 500")
			return
		}
		limit = parsed
	}

	items, err := s.repo.FeedbackByModel(c.Request.Context(), c.Param("model"), limit)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Failed to load feedback: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "feedback": items})
}

// handleFeedbackSummary returns per-model rating aggregates.
func (s *Server) handleFeedbackSummary(c *gin.Context) {
	if s.repo == nil {
		errorJSON(c, http.StatusServiceUnavailable, "Feedback storage is not configured")
		return
	}

	summaries, err := s.repo.FeedbackSummary(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Failed to load feedback summary: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "models": summaries})
}

// handleRecentRuns returns the most recent persisted analysis runs.
func (s *Server) handleRecentRuns(c *gin.Context) {
	if s.repo == nil {
		errorJSON(c, http.StatusServiceUnavailable, "Run storage is not configured")
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			errorJSON(c, http.StatusBadRequest, "Invalid limit: must be between 1 and 200")
			return
		}
		limit = parsed
	}

	runs, err := s.repo.RecentAnalysisRuns(c.Request.Context(), limit)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Failed to load runs: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "runs": runs})
}

// handleStatus is the public liveness endpoint.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"version":     Version,
		"environment": s.config.OandaConfig.Environment,
	})
}

// handleHealth reports per-subsystem health. Guarded by the admin key.
func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	components := gin.H{}

	if s.cache != nil {
		stats := s.cache.GetStats()
		components["cache"] = gin.H{"healthy": stats.Healthy, "failure_count": stats.FailureCount}
	} else {
		components["cache"] = gin.H{"enabled": false}
	}

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			components["database"] = gin.H{"healthy": false, "error": err.Error()}
		} else {
			components["database"] = gin.H{"healthy": true}
		}
	} else {
		components["database"] = gin.H{"enabled": false}
	}

	if s.secrets != nil && s.secrets.IsEnabled() {
		if err := s.secrets.Health(ctx); err != nil {
			components["vault"] = gin.H{"healthy": false, "error": err.Error()}
		} else {
			components["vault"] = gin.H{"healthy": true}
		}
	} else {
		components["vault"] = gin.H{"enabled": false}
	}

	if s.stream != nil {
		streamInfo := gin.H{"active_instruments": s.stream.ActiveStreams()}
		if tick := s.stream.LastTick(supportedInstrument); tick != nil {
			streamInfo["last_tick"] = tick
		}
		components["stream"] = streamInfo
	} else {
		components["stream"] = gin.H{"enabled": false}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"uptime":     time.Since(s.startTime).String(),
		"components": components,
	})
}

// handleMetrics reports process-level metrics. Guarded by the admin key.
func (s *Server) handleMetrics(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, gin.H{
		"goroutines":       runtime.NumGoroutine(),
		"heap_alloc_bytes": mem.HeapAlloc,
		"heap_sys_bytes":   mem.HeapSys,
		"num_gc":           mem.NumGC,
		"uptime_seconds":   time.Since(s.startTime).Seconds(),
		"ws_clients":       s.wsHub.ClientCount(),
	})
}
