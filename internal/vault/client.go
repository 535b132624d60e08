package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"otc-signal-bot/config"

	"github.com/hashicorp/vault/api"
)

// DefaultSecretName is the secret holding the service credentials
const DefaultSecretName = "service"

// ErrSecretNotFound is returned when a secret does not exist
var ErrSecretNotFound = errors.New("secret not found")

// ServiceSecrets are the credentials the service reads from Vault
type ServiceSecrets struct {
	TelegramBotToken    string `json:"telegram_bot_token"`
	DatabasePassword    string `json:"database_password"`
	RedisPassword       string `json:"redis_password"`
	JWTSecret           string `json:"jwt_secret"`
	DiscordWebhookURL   string `json:"discord_webhook_url"`
	FirebaseCredentials string `json:"firebase_credentials_json"`
}

// Apply overrides the configuration with every non-empty secret
func (s *ServiceSecrets) Apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.NotificationConfig.Telegram.BotToken, s.TelegramBotToken)
	set(&cfg.DatabaseConfig.Password, s.DatabasePassword)
	set(&cfg.RedisConfig.Password, s.RedisPassword)
	set(&cfg.AuthConfig.JWTSecret, s.JWTSecret)
	set(&cfg.NotificationConfig.Discord.WebhookURL, s.DiscordWebhookURL)
	set(&cfg.NotificationConfig.FCM.CredentialsJSON, s.FirebaseCredentials)
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client       *api.Client
	config       config.VaultConfig
	mu           sync.RWMutex
	cache        map[string]map[string]string // secret name -> data
	cacheEnabled bool
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config:       cfg,
			cache:        make(map[string]map[string]string),
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:       client,
		config:       cfg,
		cache:        make(map[string]map[string]string),
		cacheEnabled: true,
	}, nil
}

// StoreSecret writes a secret. With Vault disabled it is kept in memory (for development/testing).
func (c *Client) StoreSecret(ctx context.Context, name string, data map[string]string) error {
	if c.config.Enabled {
		payload := make(map[string]interface{}, len(data))
		for k, v := range data {
			payload[k] = v
		}
		_, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(name), map[string]interface{}{
			"data": payload,
		})
		if err != nil {
			return fmt.Errorf("failed to store secret in vault: %w", err)
		}
	}

	if c.cacheEnabled || !c.config.Enabled {
		c.mu.Lock()
		c.cache[name] = copyData(data)
		c.mu.Unlock()
	}
	return nil
}

// GetSecret reads a secret, serving it from cache when possible
func (c *Client) GetSecret(ctx context.Context, name string) (map[string]string, error) {
	if c.cacheEnabled || !c.config.Enabled {
		c.mu.RLock()
		cached, ok := c.cache[name]
		c.mu.RUnlock()
		if ok {
			return copyData(cached), nil
		}
	}

	if !c.config.Enabled {
		return nil, fmt.Errorf("%w: %s (vault is disabled)", ErrSecretNotFound, name)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	raw, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	data := make(map[string]string, len(raw))
	for k := range raw {
		data[k] = getString(raw, k)
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[name] = copyData(data)
		c.mu.Unlock()
	}
	return data, nil
}

// DeleteSecret deletes a secret and all its versions
func (c *Client) DeleteSecret(ctx context.Context, name string) error {
	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(name)); err != nil {
		return fmt.Errorf("failed to delete secret from vault: %w", err)
	}
	return nil
}

// LoadServiceSecrets reads the service credentials
func (c *Client) LoadServiceSecrets(ctx context.Context) (*ServiceSecrets, error) {
	data, err := c.GetSecret(ctx, DefaultSecretName)
	if err != nil {
		return nil, err
	}
	return &ServiceSecrets{
		TelegramBotToken:    data["telegram_bot_token"],
		DatabasePassword:    data["database_password"],
		RedisPassword:       data["redis_password"],
		JWTSecret:           data["jwt_secret"],
		DiscordWebhookURL:   data["discord_webhook_url"],
		FirebaseCredentials: data["firebase_credentials_json"],
	}, nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path of a secret
func (c *Client) secretPath(name string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, name)
}

// metadataPath returns the metadata path of a secret
func (c *Client) metadataPath(name string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", c.config.MountPath, c.config.SecretPath, name)
}

func copyData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Helper functions
func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case json.Number:
			return v.String()
		case bool:
			return fmt.Sprintf("%t", v)
		}
	}
	return ""
}

// NewMockClient creates a disabled client backed by memory for testing
func NewMockClient() *Client {
	return &Client{
		config: config.VaultConfig{
			Enabled: false,
		},
		cache:        make(map[string]map[string]string),
		cacheEnabled: true,
	}
}
