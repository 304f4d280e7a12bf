package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mvpforex/config"
	"mvpforex/internal/ai/llm"
	"mvpforex/internal/analysis"
	"mvpforex/internal/api"
	"mvpforex/internal/cache"
	"mvpforex/internal/database"
	"mvpforex/internal/events"
	"mvpforex/internal/logging"
	"mvpforex/internal/oanda"
	"mvpforex/internal/secrets"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()

	// Secret source: Vault first, environment fallback
	secretSource, err := secrets.NewSource(cfg.VaultConfig, logger)
	if err != nil {
		log.Fatalf("Failed to initialize secret source: %v", err)
	}
	resolveSecrets(ctx, cfg, secretSource)

	// Event bus
	eventBus := events.NewEventBus()
	logger.Info("Event bus initialized")

	// Candle provider: real OANDA client or the simulator
	var provider oanda.CandleProvider
	var oandaClient *oanda.Client
	if cfg.OandaConfig.MockMode {
		provider = oanda.NewSimulatedProvider()
		logger.Warn("Mock mode enabled, serving simulated candles")
	} else {
		oandaClient, err = oanda.NewClient(
			cfg.OandaConfig.APIKey,
			cfg.OandaConfig.AccountID,
			cfg.OandaConfig.Environment,
			cfg.OandaTimeout(),
		)
		if err != nil {
			log.Fatalf("Failed to initialize OANDA client: %v", err)
		}
		provider = oandaClient
		logger.Info("OANDA client initialized", "environment", cfg.OandaConfig.Environment)
	}

	// Market structure analyzer
	analyzer, err := analysis.New(analysis.Config{
		ShortPeriod:  cfg.AnalysisConfig.ShortPeriod,
		LongPeriod:   cfg.AnalysisConfig.LongPeriod,
		SwingWindow:  cfg.AnalysisConfig.SwingWindow,
		PipSize:      cfg.AnalysisConfig.PipSize,
		StopLossPips: cfg.AnalysisConfig.StopLossPips,
	})
	if err != nil {
		log.Fatalf("Invalid analysis configuration: %v", err)
	}

	// LLM clients for the configured providers
	strategy := llm.NewStrategyAnalyzer(buildLLMClients(cfg, logger), logger)

	// Redis cache (optional)
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig, logger)
		if err != nil {
			log.Fatalf("Failed to initialize cache: %v", err)
		}
		defer cacheService.Close()
	}

	// PostgreSQL (optional)
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(ctx, cfg.DatabaseConfig.URL, cfg.DatabaseConfig.MaxConns, logger)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Live price stream (optional, needs real OANDA credentials)
	var stream *oanda.StreamManager
	streamCtx, stopStreams := context.WithCancel(ctx)
	defer stopStreams()
	if cfg.OandaConfig.StreamEnabled && oandaClient != nil {
		zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stream = oanda.NewStreamManager(oandaClient, eventBus, zlog)
		stream.Start(streamCtx, "XAU_USD")
		logger.Info("Price stream started", "instrument", "XAU_USD")
	}

	// Web server
	server := api.NewServer(cfg, provider, analyzer, strategy, cacheService, db, secretSource, stream, eventBus, logger)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start web server: %v", err)
		}
	}()
	logger.Info("Dashboard available", "host", cfg.ServerConfig.Host, "port", cfg.ServerConfig.Port)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second,
	)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down web server", "error", err)
	}
	if stream != nil {
		stream.Shutdown()
	}

	logger.Info("Shutdown complete")
}

// resolveSecrets fills credentials the environment and config file left
// blank from the secret source.
func resolveSecrets(ctx context.Context, cfg *config.Config, source *secrets.Source) {
	if cfg.OandaConfig.APIKey == "" {
		cfg.OandaConfig.APIKey = source.GetOrEmpty(ctx, secrets.SecretOandaAPIKey)
	}
	if cfg.OandaConfig.AccountID == "" {
		cfg.OandaConfig.AccountID = source.GetOrEmpty(ctx, secrets.SecretOandaAccountID)
	}
	if cfg.AIConfig.OpenAIAPIKey == "" {
		cfg.AIConfig.OpenAIAPIKey = source.GetOrEmpty(ctx, secrets.SecretOpenAIAPIKey)
	}
	if cfg.AIConfig.AnthropicAPIKey == "" {
		cfg.AIConfig.AnthropicAPIKey = source.GetOrEmpty(ctx, secrets.SecretAnthropicAPIKey)
	}
	if cfg.AIConfig.PerplexityAPIKey == "" {
		cfg.AIConfig.PerplexityAPIKey = source.GetOrEmpty(ctx, secrets.SecretPerplexityAPIKey)
	}
	if cfg.ServerConfig.AdminAPIKey == "" {
		cfg.ServerConfig.AdminAPIKey = source.GetOrEmpty(ctx, secrets.SecretAdminAPIKey)
	}
}

// buildLLMClients creates one client per provider with a configured key.
func buildLLMClients(cfg *config.Config, logger *logging.Logger) map[llm.Provider]*llm.Client {
	clients := make(map[llm.Provider]*llm.Client)
	if !cfg.AIConfig.Enabled {
		return clients
	}

	add := func(provider llm.Provider, apiKey, model string) {
		if apiKey == "" {
			return
		}
		clientConfig := llm.DefaultClientConfig(provider)
		clientConfig.APIKey = apiKey
		if model != "" {
			clientConfig.Model = model
		}
		clientConfig.MaxRetries = cfg.AIConfig.MaxRetries
		clientConfig.RetryDelay = time.Duration(cfg.AIConfig.RetryDelay) * time.Second
		clientConfig.Timeout = time.Duration(cfg.AIConfig.Timeout) * time.Second

		clients[provider] = llm.NewClient(clientConfig)
		logger.Info("LLM provider configured", "provider", string(provider), "model", clientConfig.Model)
	}

	add(llm.ProviderOpenAI, cfg.AIConfig.OpenAIAPIKey, cfg.AIConfig.OpenAIModel)
	add(llm.ProviderAnthropic, cfg.AIConfig.AnthropicAPIKey, cfg.AIConfig.AnthropicModel)
	add(llm.ProviderPerplexity, cfg.AIConfig.PerplexityAPIKey, cfg.AIConfig.PerplexityModel)

	return clients
}
