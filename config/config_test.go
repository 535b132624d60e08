package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 1.0, cfg.FilterConfig.Weights.Sum(), 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.SignalsConfig.MinInterval)
	assert.Equal(t, 15*time.Minute, cfg.SignalsConfig.MaxInterval)
	assert.False(t, cfg.DatabaseConfig.Enabled)
	assert.False(t, cfg.AuthConfig.Enabled)
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerConfig.Port)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9090},
		"market": {"pairs": ["EUR/USD", "GBP/USD"], "include_otc": false},
		"notification": {"telegram": {"bot_token": "from-file", "chat_ids": "1, 2"}}
	}`), 0644))

	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("SIGNAL_MIN_INTERVAL", "2m")
	t.Setenv("LOG_JSON", "false")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerConfig.Port)
	assert.Equal(t, []string{"EUR/USD", "GBP/USD"}, cfg.MarketConfig.Pairs)
	assert.False(t, cfg.MarketConfig.IncludeOTC)
	assert.Equal(t, "from-env", cfg.NotificationConfig.Telegram.BotToken)
	assert.Equal(t, []string{"1", "2"}, cfg.NotificationConfig.Telegram.ChatIDList())
	assert.Equal(t, 2*time.Minute, cfg.SignalsConfig.MinInterval)
	assert.False(t, cfg.LoggingConfig.JSONFormat)
	assert.Zero(t, cfg.RedisConfig.DB)
	// untouched sections keep their defaults
	assert.Equal(t, 0.5, cfg.AnalysisConfig.TimeframeWeights["M1"])
}

func TestMarketPairsAndChatIDFallback(t *testing.T) {
	t.Setenv("MARKET_PAIRS", "EUR/USD-OTC , USD/JPY")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR/USD-OTC", "USD/JPY"}, cfg.MarketConfig.Pairs)
	assert.Equal(t, []string{"42"}, cfg.NotificationConfig.Telegram.ChatIDList())
}

func TestLoadFileInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing config file")
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"filter weights", func(c *Config) { c.FilterConfig.Weights.Trend = 0.5 }, "filter weights must sum to 1.0"},
		{"missing timeframe", func(c *Config) { delete(c.AnalysisConfig.TimeframeWeights, "M5") }, "missing timeframe weight for M5"},
		{"timeframe sum", func(c *Config) { c.AnalysisConfig.TimeframeWeights["M1"] = 0.9 }, "timeframe weights must sum to 1.0"},
		{"interval order", func(c *Config) { c.SignalsConfig.MinInterval = 20 * time.Minute }, "must not exceed max_interval"},
		{"zero interval", func(c *Config) { c.SignalsConfig.MinInterval = 0 }, "min_interval must be positive"},
		{"volatility bands", func(c *Config) { c.SignalsConfig.LowVolatility = 0.1 }, "low_volatility must be below"},
		{"filter volatility", func(c *Config) { c.FilterConfig.MinVolatility = 0.3 }, "min_volatility must be below"},
		{"weak secret", func(c *Config) { c.AuthConfig.Enabled = true; c.AuthConfig.JWTSecret = "short" }, "jwt_secret"},
		{"retention", func(c *Config) { c.JobsConfig.RetentionDays = -1 }, "retention_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGenerateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	require.NoError(t, GenerateSampleConfig(path))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "your_bot_token_here", cfg.NotificationConfig.Telegram.BotToken)
	assert.Equal(t, 30, cfg.JobsConfig.RetentionDays)
}

func TestToAuthConfig(t *testing.T) {
	a := AuthConfig{JWTSecret: "s", Issuer: "i", TokenDuration: time.Hour}
	out := a.ToAuthConfig()
	assert.Equal(t, "s", out.JWTSecret)
	assert.Equal(t, "i", out.Issuer)
	assert.Equal(t, time.Hour, out.TokenDuration)
}
