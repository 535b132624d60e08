package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerConfig       ServerConfig       `json:"server"`
	AuthConfig         AuthConfig         `json:"auth"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	VaultConfig        VaultConfig        `json:"vault"`
	LoggingConfig      LoggingConfig      `json:"logging"`
	MarketConfig       MarketConfig       `json:"market"`
	AnalysisConfig     AnalysisConfig     `json:"analysis"`
	FilterConfig       FilterConfig       `json:"filter"`
	SignalsConfig      SignalsConfig      `json:"signals"`
	NotificationConfig NotificationConfig `json:"notification"`
	MetricsConfig      MetricsConfig      `json:"metrics"`
	JobsConfig         JobsConfig         `json:"jobs"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled         bool    `json:"enabled"`
	Host            string  `json:"host"`
	Port            int     `json:"port"`
	AllowedOrigins  string  `json:"allowed_origins"` // comma separated, "*" for any
	ReadTimeout     int     `json:"read_timeout"`    // seconds
	WriteTimeout    int     `json:"write_timeout"`   // seconds
	ShutdownTimeout int     `json:"shutdown_timeout"`
	RateLimit       float64 `json:"rate_limit"` // requests per second per client, 0 disables
	RateBurst       int     `json:"rate_burst"`
	Debug           bool    `json:"debug"`
}

// AuthConfig holds API bearer token configuration
type AuthConfig struct {
	Enabled       bool          `json:"enabled"`
	JWTSecret     string        `json:"jwt_secret"`
	Issuer        string        `json:"issuer"`
	TokenDuration time.Duration `json:"token_duration"`
}

// DatabaseConfig holds PostgreSQL configuration. When disabled an in-memory store is used.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
}

// RedisConfig holds Redis configuration for the shared cache
type RedisConfig struct {
	Enabled   bool   `json:"enabled"`
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	PoolSize  int    `json:"pool_size"`
	KeyPrefix string `json:"key_prefix"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV v2 secrets engine mount path
	SecretPath string `json:"secret_path"` // path prefix for service secrets
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Output      string `json:"output"`
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// MarketConfig selects the synthetic instruments
type MarketConfig struct {
	Pairs      []string `json:"pairs"` // empty means every default pair
	IncludeOTC bool     `json:"include_otc"`
	Seed       int64    `json:"seed"`
	History    int      `json:"history"` // M1 candles kept per pair
}

// AnalysisConfig holds the multi-timeframe combination settings
type AnalysisConfig struct {
	TimeframeWeights map[string]float64 `json:"timeframe_weights"` // keys M1, M5, M15
	CandleLimit      int                `json:"candle_limit"`
	MinNetScore      float64            `json:"min_net_score"`
	ResultTTL        time.Duration      `json:"result_ttl"`
}

// QualityWeights are the criterion weights of the quality filter
type QualityWeights struct {
	Trend      float64 `json:"trend"`
	Momentum   float64 `json:"momentum"`
	Alignment  float64 `json:"alignment"`
	Volatility float64 `json:"volatility"`
	Pattern    float64 `json:"pattern"`
}

// Sum returns the total weight
func (w QualityWeights) Sum() float64 {
	return w.Trend + w.Momentum + w.Alignment + w.Volatility + w.Pattern
}

// FilterConfig holds the quality, multi-stage and relaxed thresholds
type FilterConfig struct {
	Weights             QualityWeights `json:"weights"`
	MinQualityScore     float64        `json:"min_quality_score"`
	OTCBonus            float64        `json:"otc_bonus"`
	MinMultiStageScore  float64        `json:"min_multi_stage_score"`
	MinAlignment        float64        `json:"min_alignment"`
	MinMomentum         float64        `json:"min_momentum"`
	MinVolatility       float64        `json:"min_volatility"`
	MaxVolatility       float64        `json:"max_volatility"`
	RelaxedRelief       float64        `json:"relaxed_relief"`
	RelaxedQualityFloor float64        `json:"relaxed_quality_floor"`
	RelaxedScoreFloor   float64        `json:"relaxed_score_floor"`
}

// SignalsConfig holds the generator and manager settings
type SignalsConfig struct {
	PollInterval    time.Duration `json:"poll_interval"`
	MinInterval     time.Duration `json:"min_interval"`
	MaxInterval     time.Duration `json:"max_interval"`
	LockTimeout     time.Duration `json:"lock_timeout"`
	EntryLead       time.Duration `json:"entry_lead"`
	Workers         int           `json:"workers"`
	HighVolatility  float64       `json:"high_volatility"`
	LowVolatility   float64       `json:"low_volatility"`
	ShortDuration   int           `json:"short_duration"`
	MediumDuration  int           `json:"medium_duration"`
	LongDuration    int           `json:"long_duration"`
	BreakerEnabled  bool          `json:"breaker_enabled"`
	BreakerFailures int           `json:"breaker_failures"`
	BreakerCooldown time.Duration `json:"breaker_cooldown"`
}

// NotificationConfig holds notification configuration
type NotificationConfig struct {
	Enabled        bool           `json:"enabled"`
	NotifyOutcomes bool           `json:"notify_outcomes"`
	NotifyErrors   bool           `json:"notify_errors"`
	Telegram       TelegramConfig `json:"telegram"`
	Discord        DiscordConfig  `json:"discord"`
	FCM            FCMConfig      `json:"fcm"`
}

type TelegramConfig struct {
	Enabled       bool    `json:"enabled"`
	BotToken      string  `json:"bot_token"`
	ChatIDs       string  `json:"chat_ids"` // comma separated
	RatePerSecond float64 `json:"rate_per_second"`
}

// ChatIDList splits the configured chat IDs
func (t TelegramConfig) ChatIDList() []string {
	return splitList(t.ChatIDs)
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type FCMConfig struct {
	Enabled         bool   `json:"enabled"`
	CredentialsFile string `json:"credentials_file"`
	CredentialsJSON string `json:"-"`
	Topic           string `json:"topic"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// JobsConfig holds the cron schedules
type JobsConfig struct {
	Enabled           bool   `json:"enabled"`
	OutcomeSchedule   string `json:"outcome_schedule"`
	RetentionSchedule string `json:"retention_schedule"`
	RetentionDays     int    `json:"retention_days"`
	PruneSchedule     string `json:"prune_schedule"`
}

// Default returns the configuration used before file and environment overrides
func Default() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8080,
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
			RateLimit:       10,
			RateBurst:       20,
		},
		AuthConfig: AuthConfig{
			Issuer:        "otc-signal-bot",
			TokenDuration: 24 * time.Hour,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Name:     "otc_signals",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		RedisConfig: RedisConfig{
			Address:   "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "otc:",
		},
		VaultConfig: VaultConfig{
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "otc-signal-bot",
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		MarketConfig: MarketConfig{
			IncludeOTC: true,
			History:    3000,
		},
		AnalysisConfig: AnalysisConfig{
			TimeframeWeights: map[string]float64{"M1": 0.50, "M5": 0.30, "M15": 0.20},
			CandleLimit:      120,
			MinNetScore:      5,
			ResultTTL:        15 * time.Second,
		},
		FilterConfig: FilterConfig{
			Weights:             QualityWeights{Trend: 0.25, Momentum: 0.25, Alignment: 0.20, Volatility: 0.15, Pattern: 0.15},
			MinQualityScore:     70,
			OTCBonus:            15,
			MinMultiStageScore:  75,
			MinAlignment:        0.6,
			MinMomentum:         50,
			MinVolatility:       0.015,
			MaxVolatility:       0.20,
			RelaxedRelief:       10,
			RelaxedQualityFloor: 55,
			RelaxedScoreFloor:   60,
		},
		SignalsConfig: SignalsConfig{
			PollInterval:    10 * time.Second,
			MinInterval:     5 * time.Minute,
			MaxInterval:     15 * time.Minute,
			LockTimeout:     2 * time.Minute,
			EntryLead:       time.Minute,
			Workers:         4,
			HighVolatility:  0.08,
			LowVolatility:   0.03,
			ShortDuration:   1,
			MediumDuration:  3,
			LongDuration:    5,
			BreakerEnabled:  true,
			BreakerFailures: 3,
			BreakerCooldown: 2 * time.Minute,
		},
		NotificationConfig: NotificationConfig{
			Enabled:        true,
			NotifyOutcomes: true,
			Telegram:       TelegramConfig{RatePerSecond: 1},
			FCM:            FCMConfig{Topic: "otc-signals"},
		},
		MetricsConfig: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		JobsConfig: JobsConfig{
			Enabled:           true,
			OutcomeSchedule:   "@every 1m",
			RetentionSchedule: "0 3 * * *",
			RetentionDays:     30,
			PruneSchedule:     "@every 5m",
		},
	}
}

func Load() (*Config, error) {
	return LoadFile("config.json")
}

// LoadFile layers filename (if present) and environment overrides over the defaults
func LoadFile(filename string) (*Config, error) {
	cfg := Default()

	if err := loadFromFile(filename, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// Environment variables take precedence
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Values already set from the file are used as the defaults.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Enabled = getEnvBoolOrDefault("SERVER_ENABLED", cfg.ServerConfig.Enabled)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", cfg.ServerConfig.ReadTimeout)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", cfg.ServerConfig.WriteTimeout)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.ServerConfig.ShutdownTimeout)
	cfg.ServerConfig.RateLimit = getEnvFloatOrDefault("SERVER_RATE_LIMIT", cfg.ServerConfig.RateLimit)
	cfg.ServerConfig.RateBurst = getEnvIntOrDefault("SERVER_RATE_BURST", cfg.ServerConfig.RateBurst)
	cfg.ServerConfig.Debug = getEnvBoolOrDefault("SERVER_DEBUG", cfg.ServerConfig.Debug)

	// Auth config
	cfg.AuthConfig.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.AuthConfig.Enabled)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.AuthConfig.Issuer)
	cfg.AuthConfig.TokenDuration = getEnvDurationOrDefault("AUTH_TOKEN_DURATION", cfg.AuthConfig.TokenDuration)

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Name = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Name)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)
	cfg.DatabaseConfig.MaxConns = getEnvIntOrDefault("DB_MAX_CONNS", cfg.DatabaseConfig.MaxConns)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)
	cfg.RedisConfig.KeyPrefix = getEnvOrDefault("REDIS_KEY_PREFIX", cfg.RedisConfig.KeyPrefix)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)
	cfg.VaultConfig.TLSEnabled = getEnvBoolOrDefault("VAULT_TLS_ENABLED", cfg.VaultConfig.TLSEnabled)
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CACERT", cfg.VaultConfig.CACert)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)

	// Market config
	if pairs := splitList(os.Getenv("MARKET_PAIRS")); len(pairs) > 0 {
		cfg.MarketConfig.Pairs = pairs
	}
	cfg.MarketConfig.IncludeOTC = getEnvBoolOrDefault("MARKET_INCLUDE_OTC", cfg.MarketConfig.IncludeOTC)
	cfg.MarketConfig.Seed = int64(getEnvIntOrDefault("MARKET_SEED", int(cfg.MarketConfig.Seed)))

	// Filter config
	cfg.FilterConfig.MinQualityScore = getEnvFloatOrDefault("FILTER_MIN_QUALITY_SCORE", cfg.FilterConfig.MinQualityScore)
	cfg.FilterConfig.OTCBonus = getEnvFloatOrDefault("FILTER_OTC_BONUS", cfg.FilterConfig.OTCBonus)
	cfg.FilterConfig.MinMultiStageScore = getEnvFloatOrDefault("FILTER_MIN_MULTI_STAGE_SCORE", cfg.FilterConfig.MinMultiStageScore)

	// Signals config
	cfg.SignalsConfig.PollInterval = getEnvDurationOrDefault("SIGNAL_POLL_INTERVAL", cfg.SignalsConfig.PollInterval)
	cfg.SignalsConfig.MinInterval = getEnvDurationOrDefault("SIGNAL_MIN_INTERVAL", cfg.SignalsConfig.MinInterval)
	cfg.SignalsConfig.MaxInterval = getEnvDurationOrDefault("SIGNAL_MAX_INTERVAL", cfg.SignalsConfig.MaxInterval)
	cfg.SignalsConfig.LockTimeout = getEnvDurationOrDefault("SIGNAL_LOCK_TIMEOUT", cfg.SignalsConfig.LockTimeout)
	cfg.SignalsConfig.Workers = getEnvIntOrDefault("SIGNAL_WORKERS", cfg.SignalsConfig.Workers)

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.NotifyOutcomes = getEnvBoolOrDefault("NOTIFY_OUTCOMES", cfg.NotificationConfig.NotifyOutcomes)
	cfg.NotificationConfig.NotifyErrors = getEnvBoolOrDefault("NOTIFY_ERRORS", cfg.NotificationConfig.NotifyErrors)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatIDs = getEnvOrDefault("TELEGRAM_CHAT_IDS", getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatIDs))
	cfg.NotificationConfig.Telegram.RatePerSecond = getEnvFloatOrDefault("TELEGRAM_RATE_PER_SECOND", cfg.NotificationConfig.Telegram.RatePerSecond)
	cfg.NotificationConfig.Discord.Enabled = getEnvBoolOrDefault("DISCORD_ENABLED", cfg.NotificationConfig.Discord.Enabled)
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)
	cfg.NotificationConfig.FCM.Enabled = getEnvBoolOrDefault("FCM_ENABLED", cfg.NotificationConfig.FCM.Enabled)
	cfg.NotificationConfig.FCM.CredentialsFile = getEnvOrDefault("FIREBASE_CREDENTIALS_PATH", cfg.NotificationConfig.FCM.CredentialsFile)
	cfg.NotificationConfig.FCM.CredentialsJSON = getEnvOrDefault("FIREBASE_CREDENTIALS_JSON", cfg.NotificationConfig.FCM.CredentialsJSON)
	cfg.NotificationConfig.FCM.Topic = getEnvOrDefault("FCM_TOPIC", cfg.NotificationConfig.FCM.Topic)

	// Metrics and jobs
	cfg.MetricsConfig.Enabled = getEnvBoolOrDefault("METRICS_ENABLED", cfg.MetricsConfig.Enabled)
	cfg.JobsConfig.Enabled = getEnvBoolOrDefault("JOBS_ENABLED", cfg.JobsConfig.Enabled)
	cfg.JobsConfig.RetentionDays = getEnvIntOrDefault("RETENTION_DAYS", cfg.JobsConfig.RetentionDays)
}

// Validate checks weight sums and interval ordering
func (c *Config) Validate() error {
	var errs []error

	if sum := c.FilterConfig.Weights.Sum(); math.Abs(sum-1.0) > 0.01 {
		errs = append(errs, fmt.Errorf("filter weights must sum to 1.0, got %.2f", sum))
	}

	tfSum := 0.0
	for _, tf := range []string{"M1", "M5", "M15"} {
		w, ok := c.AnalysisConfig.TimeframeWeights[tf]
		if !ok {
			errs = append(errs, fmt.Errorf("missing timeframe weight for %s", tf))
			continue
		}
		tfSum += w
	}
	if len(c.AnalysisConfig.TimeframeWeights) == 3 && math.Abs(tfSum-1.0) > 0.01 {
		errs = append(errs, fmt.Errorf("timeframe weights must sum to 1.0, got %.2f", tfSum))
	}

	s := c.SignalsConfig
	if s.MinInterval <= 0 {
		errs = append(errs, errors.New("signals.min_interval must be positive"))
	}
	if s.MinInterval > s.MaxInterval {
		errs = append(errs, fmt.Errorf("signals.min_interval (%s) must not exceed max_interval (%s)", s.MinInterval, s.MaxInterval))
	}
	if s.LowVolatility >= s.HighVolatility {
		errs = append(errs, errors.New("signals.low_volatility must be below high_volatility"))
	}
	if c.FilterConfig.MinVolatility >= c.FilterConfig.MaxVolatility {
		errs = append(errs, errors.New("filter.min_volatility must be below max_volatility"))
	}

	if c.AuthConfig.Enabled && len(c.AuthConfig.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 characters when auth is enabled"))
	}
	if c.JobsConfig.RetentionDays < 0 {
		errs = append(errs, errors.New("jobs.retention_days must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func loadFromFile(filename string, cfg *Config) error {
	file, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := json.Unmarshal(file, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ToAuthConfig converts AuthConfig to the format expected by the auth package
func (c *AuthConfig) ToAuthConfig() AuthConfigExport {
	return AuthConfigExport{
		JWTSecret:     c.JWTSecret,
		Issuer:        c.Issuer,
		TokenDuration: c.TokenDuration,
	}
}

// AuthConfigExport is the exported auth config format for the auth package
type AuthConfigExport struct {
	JWTSecret     string
	Issuer        string
	TokenDuration time.Duration
}

// GenerateSampleConfig writes the defaults as a sample configuration file
func GenerateSampleConfig(filename string) error {
	cfg := Default()
	cfg.NotificationConfig.Telegram.BotToken = "your_bot_token_here"
	cfg.NotificationConfig.Telegram.ChatIDs = "-1001234567890"

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding sample config: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}
