package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"otc-signal-bot/config"
	"otc-signal-bot/internal/analysis"
	"otc-signal-bot/internal/api"
	"otc-signal-bot/internal/auth"
	"otc-signal-bot/internal/cache"
	"otc-signal-bot/internal/circuit"
	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/filter"
	"otc-signal-bot/internal/logging"
	"otc-signal-bot/internal/market"
	"otc-signal-bot/internal/notification"
	"otc-signal-bot/internal/signals"
)

// Pipeline is the market source and the analysis chain feeding the generator
type Pipeline struct {
	Market    *market.Generator
	Analyzer  *analysis.MultiTimeframeAnalyzer
	Generator *signals.Generator
}

// NewLogger builds the process logger from the logging section
func NewLogger(cfg config.LoggingConfig, component string) *logging.Logger {
	return logging.New(&logging.Config{
		Level:       cfg.Level,
		Output:      cfg.Output,
		JSONFormat:  cfg.JSONFormat,
		IncludeFile: cfg.IncludeFile,
		Component:   component,
	})
}

// MarketPairs resolves the configured instrument list
func MarketPairs(cfg config.MarketConfig) ([]market.Pair, error) {
	all := market.WithOTC(market.DefaultPairs())
	if len(cfg.Pairs) == 0 {
		if cfg.IncludeOTC {
			return all, nil
		}
		return market.DefaultPairs(), nil
	}

	pairs := market.FilterPairs(all, cfg.Pairs)
	if len(pairs) != len(cfg.Pairs) {
		known := make(map[string]bool, len(pairs))
		for _, p := range pairs {
			known[p.Symbol] = true
		}
		var unknown []string
		for _, s := range cfg.Pairs {
			if !known[s] {
				unknown = append(unknown, s)
			}
		}
		if len(unknown) > 0 {
			return nil, fmt.Errorf("%w: %s", market.ErrUnknownSymbol, strings.Join(unknown, ", "))
		}
	}
	return pairs, nil
}

// BuildPipeline wires the synthetic market, analyzers, filters and generator
func BuildPipeline(cfg *config.Config) (*Pipeline, error) {
	pairs, err := MarketPairs(cfg.MarketConfig)
	if err != nil {
		return nil, err
	}
	source := market.NewGenerator(market.GeneratorConfig{
		Seed:    cfg.MarketConfig.Seed,
		Pairs:   pairs,
		History: cfg.MarketConfig.History,
	})

	technical := analysis.NewTechnicalAnalyzer(analysis.DefaultTechnicalConfig())
	otc := analysis.NewAdvancedOTCAnalyzer(technical, analysis.DefaultOTCConfig())

	weights := make(map[market.Timeframe]float64, len(cfg.AnalysisConfig.TimeframeWeights))
	for name, w := range cfg.AnalysisConfig.TimeframeWeights {
		tf, err := market.ParseTimeframe(name)
		if err != nil {
			return nil, fmt.Errorf("analysis.timeframe_weights: %w", err)
		}
		weights[tf] = w
	}
	mta, err := analysis.NewMultiTimeframeAnalyzer(source, technical, otc, analysis.MultiTimeframeConfig{
		Weights:     weights,
		CandleLimit: cfg.AnalysisConfig.CandleLimit,
		MinNetScore: cfg.AnalysisConfig.MinNetScore,
		ResultTTL:   cfg.AnalysisConfig.ResultTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	f := cfg.FilterConfig
	quality := filter.NewAdvancedSignalFilter(filter.QualityConfig{
		Weights: filter.Weights{
			Trend:      f.Weights.Trend,
			Momentum:   f.Weights.Momentum,
			Alignment:  f.Weights.Alignment,
			Volatility: f.Weights.Volatility,
			Pattern:    f.Weights.Pattern,
		},
		MinQualityScore: f.MinQualityScore,
		OTCBonus:        f.OTCBonus,
	})
	stages := filter.NewMultiStageSignalFilter(quality, filter.MultiStageConfig{
		MinScore:            f.MinMultiStageScore,
		MinAlignment:        f.MinAlignment,
		MinMomentum:         f.MinMomentum,
		MinVolatility:       f.MinVolatility,
		MaxVolatility:       f.MaxVolatility,
		RelaxedRelief:       f.RelaxedRelief,
		RelaxedQualityFloor: f.RelaxedQualityFloor,
		RelaxedScoreFloor:   f.RelaxedScoreFloor,
	})
	confidence := filter.NewConfidenceEvaluator(filter.DefaultConfidenceConfig())

	s := cfg.SignalsConfig
	gen := signals.NewGenerator(source, mta, stages, confidence, signals.GeneratorConfig{
		Pairs:          symbols(pairs),
		Workers:        s.Workers,
		EntryLead:      s.EntryLead,
		HighVolatility: s.HighVolatility,
		LowVolatility:  s.LowVolatility,
		ShortDuration:  s.ShortDuration,
		MediumDuration: s.MediumDuration,
		LongDuration:   s.LongDuration,
	})

	return &Pipeline{Market: source, Analyzer: mta, Generator: gen}, nil
}

func symbols(pairs []market.Pair) []string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.Symbol)
	}
	return out
}

// ManagerConfig converts the signals section
func ManagerConfig(cfg config.SignalsConfig) signals.ManagerConfig {
	m := signals.DefaultManagerConfig()
	m.PollInterval = cfg.PollInterval
	m.MinInterval = cfg.MinInterval
	m.MaxInterval = cfg.MaxInterval
	m.LockTimeout = cfg.LockTimeout
	m.Breaker = &circuit.CircuitBreakerConfig{
		Enabled:                cfg.BreakerEnabled,
		MaxConsecutiveFailures: cfg.BreakerFailures,
		Cooldown:               cfg.BreakerCooldown,
	}
	return m
}

// OpenStore connects to PostgreSQL when enabled, otherwise returns an in-memory store.
// The returned close function is never nil.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (database.Store, func(), error) {
	if !cfg.Enabled {
		logging.WithComponent("database").Warn("database disabled, signals are kept in memory")
		return database.NewMemoryStore(), func() {}, nil
	}

	db, err := database.NewDB(ctx, database.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Name,
		SSLMode:  cfg.SSLMode,
		MaxConns: int32(cfg.MaxConns),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return database.NewRepository(db), db.Close, nil
}

// OpenCache connects to Redis when enabled. A nil cache is returned when disabled;
// an unreachable server yields a degraded cache that recovers on its own.
func OpenCache(ctx context.Context, cfg config.RedisConfig) (*cache.CacheService, *cache.SignalCache) {
	if !cfg.Enabled {
		return nil, nil
	}
	svc, err := cache.NewCacheService(ctx, cache.Config{
		Enabled:   cfg.Enabled,
		Address:   cfg.Address,
		Password:  cfg.Password,
		DB:        cfg.DB,
		PoolSize:  cfg.PoolSize,
		KeyPrefix: cfg.KeyPrefix,
	})
	if err != nil {
		logging.WithComponent("cache").Warn("cache unavailable", "error", err)
		return nil, nil
	}
	return svc, cache.NewSignalCache(svc)
}

// NewNotifier builds the notification fan-out from the notification section
func NewNotifier(ctx context.Context, cfg config.NotificationConfig) (*notification.Manager, error) {
	opts := notification.DefaultManagerOptions()
	opts.NotifyOutcomes = cfg.NotifyOutcomes
	opts.NotifyErrors = cfg.NotifyErrors
	mgr := notification.NewManager(opts)
	mgr.SetEnabled(cfg.Enabled)

	mgr.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
		BotToken:      cfg.Telegram.BotToken,
		ChatIDs:       cfg.Telegram.ChatIDList(),
		Enabled:       cfg.Telegram.Enabled,
		RatePerSecond: cfg.Telegram.RatePerSecond,
	}))
	mgr.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
		WebhookURL: cfg.Discord.WebhookURL,
		Enabled:    cfg.Discord.Enabled,
	}))

	if cfg.FCM.Enabled {
		fcm, err := notification.NewFCMNotifier(ctx, notification.FCMConfig{
			Enabled:         true,
			CredentialsFile: cfg.FCM.CredentialsFile,
			CredentialsJSON: cfg.FCM.CredentialsJSON,
			Topic:           cfg.FCM.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialise FCM: %w", err)
		}
		mgr.AddNotifier(fcm)
	}
	return mgr, nil
}

// NewJWTManager returns nil when API authentication is disabled
func NewJWTManager(cfg config.AuthConfig) (*auth.JWTManager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	exp := cfg.ToAuthConfig()
	return auth.NewJWTManager(auth.Config{
		JWTSecret:     exp.JWTSecret,
		Issuer:        exp.Issuer,
		TokenDuration: exp.TokenDuration,
	})
}

// ServerConfig converts the server and metrics sections
func ServerConfig(cfg config.ServerConfig, metrics config.MetricsConfig) api.ServerConfig {
	var origins []string
	for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return api.ServerConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		AllowedOrigins: origins,
		ReadTimeout:    seconds(cfg.ReadTimeout),
		WriteTimeout:   seconds(cfg.WriteTimeout),
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		Debug:          cfg.Debug,
		MetricsPath:    metrics.Path,
	}
}

// seconds converts the integer-second server timeouts
func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
