package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otc-signal-bot/config"
	"otc-signal-bot/internal/auth"
	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/market"
)

func TestMarketPairs(t *testing.T) {
	all, err := MarketPairs(config.MarketConfig{IncludeOTC: true})
	require.NoError(t, err)
	assert.Len(t, all, 2*len(market.DefaultPairs()))

	regular, err := MarketPairs(config.MarketConfig{})
	require.NoError(t, err)
	assert.Len(t, regular, len(market.DefaultPairs()))

	picked, err := MarketPairs(config.MarketConfig{Pairs: []string{"EUR/USD-OTC", "GBP/USD"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"GBP/USD", "EUR/USD-OTC"}, symbols(picked))

	_, err = MarketPairs(config.MarketConfig{Pairs: []string{"EUR/USD", "XAU/USD"}})
	assert.ErrorIs(t, err, market.ErrUnknownSymbol)
	assert.Contains(t, err.Error(), "XAU/USD")
}

func TestBuildPipeline(t *testing.T) {
	cfg := config.Default()
	cfg.MarketConfig.Pairs = []string{"EUR/USD", "EUR/USD-OTC"}
	cfg.MarketConfig.Seed = 7

	p, err := BuildPipeline(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR/USD", "EUR/USD-OTC"}, p.Generator.Pairs())
	assert.ElementsMatch(t, []string{"EUR/USD", "EUR/USD-OTC"}, p.Market.Symbols())

	cand, err := p.Generator.Analyze(context.Background(), "EUR/USD-OTC", false)
	require.NoError(t, err)
	assert.Equal(t, "EUR/USD-OTC", cand.Symbol)
	require.NotNil(t, cand.Analysis)
	assert.True(t, cand.Analysis.IsOTC)
}

func TestBuildPipelineRejectsBadTimeframe(t *testing.T) {
	cfg := config.Default()
	cfg.AnalysisConfig.TimeframeWeights = map[string]float64{"H4": 1}
	_, err := BuildPipeline(cfg)
	assert.Error(t, err)
}

func TestManagerConfig(t *testing.T) {
	s := config.Default().SignalsConfig
	s.MinInterval = 3 * time.Minute
	s.BreakerFailures = 5

	m := ManagerConfig(s)
	assert.Equal(t, 3*time.Minute, m.MinInterval)
	assert.Equal(t, 15*time.Minute, m.MaxInterval)
	require.NotNil(t, m.Breaker)
	assert.Equal(t, 5, m.Breaker.MaxConsecutiveFailures)
	assert.True(t, m.Breaker.Enabled)
}

func TestServerConfig(t *testing.T) {
	c := config.Default()
	c.ServerConfig.AllowedOrigins = "https://a.example, https://b.example"
	out := ServerConfig(c.ServerConfig, c.MetricsConfig)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, out.AllowedOrigins)
	assert.Equal(t, 30*time.Second, out.ReadTimeout)
	assert.Equal(t, "/metrics", out.MetricsPath)
	assert.Equal(t, 10.0, out.RateLimit)
}

func TestOpenStoreMemory(t *testing.T) {
	store, closeFn, err := OpenStore(context.Background(), config.DatabaseConfig{})
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	defer closeFn()
	_, ok := store.(*database.MemoryStore)
	assert.True(t, ok)
}

func TestOpenCacheDisabled(t *testing.T) {
	svc, sc := OpenCache(context.Background(), config.RedisConfig{})
	assert.Nil(t, svc)
	assert.Nil(t, sc)
}

func TestNewNotifier(t *testing.T) {
	cfg := config.Default().NotificationConfig
	mgr, err := NewNotifier(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, mgr.Providers())

	cfg.Telegram.Enabled = true
	cfg.Telegram.BotToken = "123:abc"
	cfg.Telegram.ChatIDs = "1,2"
	cfg.Discord.Enabled = true
	cfg.Discord.WebhookURL = "https://discord.example/hook"
	mgr, err = NewNotifier(context.Background(), cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"telegram", "discord"}, mgr.Providers())

	cfg.FCM.Enabled = true
	_, err = NewNotifier(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewJWTManager(t *testing.T) {
	m, err := NewJWTManager(config.AuthConfig{})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = NewJWTManager(config.AuthConfig{Enabled: true, JWTSecret: "short"})
	assert.ErrorIs(t, err, auth.ErrWeakSecret)

	m, err = NewJWTManager(config.AuthConfig{Enabled: true, JWTSecret: "0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)
	require.NotNil(t, m)
}
