// Package secrets resolves API credentials from HashiCorp Vault with an
// environment-variable fallback for local development.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"

	"mvpforex/config"
	"mvpforex/internal/logging"
)

// Well-known secret names.
const (
	SecretOandaAPIKey      = "oanda_api_key"
	SecretOandaAccountID   = "oanda_account_id"
	SecretOpenAIAPIKey     = "openai_api_key"
	SecretAnthropicAPIKey  = "anthropic_api_key"
	SecretPerplexityAPIKey = "perplexity_api_key"
	SecretAdminAPIKey      = "admin_api_key"
)

// Source resolves named secrets. Vault is consulted first when enabled;
// the process environment is the fallback, so deployments without Vault
// keep working.
type Source struct {
	client *api.Client
	config config.VaultConfig
	logger *logging.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewSource creates a secret source. With Vault disabled the source reads
// only from the environment.
func NewSource(cfg config.VaultConfig, logger *logging.Logger) (*Source, error) {
	s := &Source{
		config: cfg,
		logger: logger.WithComponent("secrets"),
		cache:  make(map[string]string),
	}

	if !cfg.Enabled {
		return s, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	s.client = client
	s.logger.Info("Vault secret source initialized", "address", cfg.Address)
	return s, nil
}

// Get resolves a secret by name. Cached values are served without another
// Vault round trip; a Vault miss falls back to the environment.
func (s *Source) Get(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if cached, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	if s.config.Enabled && s.client != nil {
		value, err := s.readVault(ctx, name)
		if err != nil {
			s.logger.Warn("Vault read failed, falling back to environment", "secret", name, "error", err)
		} else if value != "" {
			s.store(name, value)
			return value, nil
		}
	}

	value := os.Getenv(envName(name))
	if value == "" {
		return "", fmt.Errorf("secret %q not found in vault or environment", name)
	}

	s.store(name, value)
	return value, nil
}

// GetOrEmpty resolves a secret, returning "" when it is absent. Used for
// optional credentials like the per-provider LLM keys.
func (s *Source) GetOrEmpty(ctx context.Context, name string) string {
	value, err := s.Get(ctx, name)
	if err != nil {
		return ""
	}
	return value
}

// readVault reads one field from the KV v2 secret at the configured path.
func (s *Source) readVault(ctx context.Context, name string) (string, error) {
	path := fmt.Sprintf("%s/data/%s", s.config.MountPath, s.config.SecretPath)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", nil
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid secret format at %s", path)
	}

	if value, ok := data[name].(string); ok {
		return value, nil
	}
	return "", nil
}

func (s *Source) store(name, value string) {
	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()
}

// ClearCache drops all cached secrets, forcing fresh resolution.
func (s *Source) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// IsEnabled returns whether Vault is the primary backend.
func (s *Source) IsEnabled() bool {
	return s.config.Enabled
}

// Health checks the Vault connection. A disabled source is always healthy.
func (s *Source) Health(ctx context.Context) error {
	if !s.config.Enabled || s.client == nil {
		return nil
	}

	health, err := s.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

// envName maps a secret name to its environment variable.
func envName(name string) string {
	return strings.ToUpper(name)
}
