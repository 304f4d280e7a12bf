package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	OandaConfig    OandaConfig    `json:"oanda"`
	AIConfig       AIConfig       `json:"ai"`
	AnalysisConfig AnalysisConfig `json:"analysis"`
	RedisConfig    RedisConfig    `json:"redis"`
	DatabaseConfig DatabaseConfig `json:"database"`
	VaultConfig    VaultConfig    `json:"vault"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	AdminAPIKey     string `json:"admin_api_key"`   // Guards /monitoring/health
	RateLimitPerMin int    `json:"rate_limit_per_min"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// OandaConfig holds OANDA v20 REST API configuration
type OandaConfig struct {
	APIKey        string `json:"api_key"`
	AccountID     string `json:"account_id"`
	Environment   string `json:"environment"` // "practice" or "live"
	Timeout       int    `json:"timeout"`     // Request timeout in seconds
	MockMode      bool   `json:"mock_mode"`   // Use simulated candles when OANDA is unavailable
	StreamEnabled bool   `json:"stream_enabled"`
}

// AIConfig holds LLM provider configuration
type AIConfig struct {
	Enabled          bool   `json:"enabled"`
	OpenAIAPIKey     string `json:"openai_api_key"`
	AnthropicAPIKey  string `json:"anthropic_api_key"`
	PerplexityAPIKey string `json:"perplexity_api_key"`
	OpenAIModel      string `json:"openai_model"`
	AnthropicModel   string `json:"anthropic_model"`
	PerplexityModel  string `json:"perplexity_model"`
	MaxRetries       int    `json:"max_retries"`
	RetryDelay       int    `json:"retry_delay"` // Seconds between retries
	Timeout          int    `json:"timeout"`     // Request timeout in seconds
}

// AnalysisConfig holds market structure analysis parameters
type AnalysisConfig struct {
	ShortPeriod  int     `json:"short_period"`   // Fast SMA period
	LongPeriod   int     `json:"long_period"`    // Slow SMA period
	SwingWindow  int     `json:"swing_window"`   // Candles on each side of a swing point
	PipSize      float64 `json:"pip_size"`       // 0.01 for XAU_USD
	StopLossPips float64 `json:"stop_loss_pips"` // Buffer beyond the anchor swing
}

// RedisConfig holds Redis configuration for market-data and analysis caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	// TTLs in seconds
	MarketDataTTL int `json:"market_data_ttl"`
	AnalysisTTL   int `json:"analysis_ttl"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	MaxConns int32  `json:"max_conns"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for API keys
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.OandaConfig.Environment != "practice" && c.OandaConfig.Environment != "live" {
		return fmt.Errorf("invalid oanda environment %q: must be practice or live", c.OandaConfig.Environment)
	}
	if c.AnalysisConfig.ShortPeriod <= 0 || c.AnalysisConfig.LongPeriod <= c.AnalysisConfig.ShortPeriod {
		return fmt.Errorf("invalid analysis periods: short=%d long=%d",
			c.AnalysisConfig.ShortPeriod, c.AnalysisConfig.LongPeriod)
	}
	if c.AnalysisConfig.SwingWindow <= 0 {
		return fmt.Errorf("invalid swing window %d", c.AnalysisConfig.SwingWindow)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment values take precedence over config.json.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", defaultInt(cfg.ServerConfig.Port, 5000))
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", defaultStr(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultStr(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.AdminAPIKey = getEnvOrDefault("ADMIN_API_KEY", cfg.ServerConfig.AdminAPIKey)
	cfg.ServerConfig.RateLimitPerMin = getEnvIntOrDefault("RATE_LIMIT_PER_MIN", defaultInt(cfg.ServerConfig.RateLimitPerMin, 10))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", defaultInt(cfg.ServerConfig.ReadTimeout, 30))
	// Write timeout must cover a full LLM analysis including retries.
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", defaultInt(cfg.ServerConfig.WriteTimeout, 120))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))

	// OANDA config
	cfg.OandaConfig.APIKey = getEnvOrDefault("OANDA_API_KEY", cfg.OandaConfig.APIKey)
	cfg.OandaConfig.AccountID = getEnvOrDefault("OANDA_ACCOUNT_ID", cfg.OandaConfig.AccountID)
	cfg.OandaConfig.Environment = getEnvOrDefault("OANDA_ENVIRONMENT", defaultStr(cfg.OandaConfig.Environment, "practice"))
	cfg.OandaConfig.Timeout = getEnvIntOrDefault("OANDA_TIMEOUT", defaultInt(cfg.OandaConfig.Timeout, 10))
	cfg.OandaConfig.MockMode = getEnvOrDefault("MOCK_MODE", boolStr(cfg.OandaConfig.MockMode)) == "true"
	cfg.OandaConfig.StreamEnabled = getEnvOrDefault("OANDA_STREAM_ENABLED", boolStr(cfg.OandaConfig.StreamEnabled)) == "true"

	// AI config
	cfg.AIConfig.Enabled = getEnvOrDefault("AI_ENABLED", "true") == "true"
	cfg.AIConfig.OpenAIAPIKey = getEnvOrDefault("OPENAI_API_KEY", cfg.AIConfig.OpenAIAPIKey)
	cfg.AIConfig.AnthropicAPIKey = getEnvOrDefault("ANTHROPIC_API_KEY", cfg.AIConfig.AnthropicAPIKey)
	cfg.AIConfig.PerplexityAPIKey = getEnvOrDefault("PERPLEXITY_API_KEY", cfg.AIConfig.PerplexityAPIKey)
	cfg.AIConfig.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", defaultStr(cfg.AIConfig.OpenAIModel, "gpt-4o"))
	cfg.AIConfig.AnthropicModel = getEnvOrDefault("ANTHROPIC_MODEL", defaultStr(cfg.AIConfig.AnthropicModel, "claude-3-5-sonnet-20241022"))
	cfg.AIConfig.PerplexityModel = getEnvOrDefault("PERPLEXITY_MODEL", defaultStr(cfg.AIConfig.PerplexityModel, "sonar-pro"))
	cfg.AIConfig.MaxRetries = getEnvIntOrDefault("AI_MAX_RETRIES", defaultInt(cfg.AIConfig.MaxRetries, 3))
	cfg.AIConfig.RetryDelay = getEnvIntOrDefault("AI_RETRY_DELAY", defaultInt(cfg.AIConfig.RetryDelay, 2))
	cfg.AIConfig.Timeout = getEnvIntOrDefault("AI_TIMEOUT", defaultInt(cfg.AIConfig.Timeout, 30))

	// Analysis config
	cfg.AnalysisConfig.ShortPeriod = getEnvIntOrDefault("ANALYSIS_SHORT_PERIOD", defaultInt(cfg.AnalysisConfig.ShortPeriod, 20))
	cfg.AnalysisConfig.LongPeriod = getEnvIntOrDefault("ANALYSIS_LONG_PERIOD", defaultInt(cfg.AnalysisConfig.LongPeriod, 50))
	cfg.AnalysisConfig.SwingWindow = getEnvIntOrDefault("ANALYSIS_SWING_WINDOW", defaultInt(cfg.AnalysisConfig.SwingWindow, 5))
	cfg.AnalysisConfig.PipSize = getEnvFloatOrDefault("ANALYSIS_PIP_SIZE", defaultFloat(cfg.AnalysisConfig.PipSize, 0.01))
	cfg.AnalysisConfig.StopLossPips = getEnvFloatOrDefault("ANALYSIS_STOP_LOSS_PIPS", defaultFloat(cfg.AnalysisConfig.StopLossPips, 3))

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolStr(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultStr(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))
	cfg.RedisConfig.MarketDataTTL = getEnvIntOrDefault("REDIS_MARKET_DATA_TTL", defaultInt(cfg.RedisConfig.MarketDataTTL, 30))
	cfg.RedisConfig.AnalysisTTL = getEnvIntOrDefault("REDIS_ANALYSIS_TTL", defaultInt(cfg.RedisConfig.AnalysisTTL, 300))

	// Database config
	cfg.DatabaseConfig.URL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseConfig.URL)
	cfg.DatabaseConfig.Enabled = cfg.DatabaseConfig.URL != ""
	if cfg.DatabaseConfig.MaxConns == 0 {
		cfg.DatabaseConfig.MaxConns = 10
	}

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", boolStr(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", defaultStr(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", defaultStr(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", defaultStr(cfg.VaultConfig.SecretPath, "mvpforex/api-keys"))

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultStr(cfg.LoggingConfig.Level, "INFO"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", defaultStr(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
}

// OandaTimeout returns the configured OANDA request timeout.
func (c *Config) OandaTimeout() time.Duration {
	return time.Duration(c.OandaConfig.Timeout) * time.Second
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func defaultFloat(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

func boolStr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		ServerConfig: ServerConfig{
			Port:            5000,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			RateLimitPerMin: 10,
			ReadTimeout:     30,
			WriteTimeout:    120,
			ShutdownTimeout: 10,
		},
		OandaConfig: OandaConfig{
			APIKey:      "your_oanda_api_key_here",
			AccountID:   "your_account_id_here",
			Environment: "practice",
			Timeout:     10,
			MockMode:    true,
		},
		AIConfig: AIConfig{
			Enabled:         true,
			OpenAIModel:     "gpt-4o",
			AnthropicModel:  "claude-3-5-sonnet-20241022",
			PerplexityModel: "sonar-pro",
			MaxRetries:      3,
			RetryDelay:      2,
			Timeout:         30,
		},
		AnalysisConfig: AnalysisConfig{
			ShortPeriod:  20,
			LongPeriod:   50,
			SwingWindow:  5,
			PipSize:      0.01,
			StopLossPips: 3,
		},
		RedisConfig: RedisConfig{
			Enabled:       false,
			Address:       "localhost:6379",
			PoolSize:      10,
			MarketDataTTL: 30,
			AnalysisTTL:   300,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
