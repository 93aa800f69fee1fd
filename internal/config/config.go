package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName          = "CryptoPortfolio"
	defaultAppEnv           = "development"
	defaultPort             = "8000"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultAccessTokenTTL   = 15 * time.Minute
	defaultRefreshTokenTTL  = 7 * 24 * time.Hour
	defaultResetTokenTTL    = time.Hour
	defaultRegisterTokenTTL = time.Hour
	defaultOriginURL        = "http://localhost:5173"
	defaultCoinGeckoURL     = "https://api.coingecko.com/api/v3"
	defaultPriceCacheTTL    = 60 * time.Second
	defaultFetchConcurrency = 5
	defaultMarketTimeout    = 10 * time.Second
	defaultSMTPPort         = 587
	defaultStorageBackend   = StorageDisk
	defaultUploadDir        = "uploads/images"
	defaultLoginRateLimit   = 5
	configFileEnvVar        = "CONFIG_FILE"
)

// Storage backends for profile pictures.
const (
	StorageDisk = "disk"
	StorageS3   = "s3"
)

// Config captures application runtime configuration. It is built once at
// startup and handed to the components that need it.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	OriginURL      string

	AccessSecret     string
	RefreshSecret    string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	ResetTokenTTL    time.Duration
	RegisterTokenTTL time.Duration
	LoginRateLimit   int

	Market  MarketConfig
	SMTP    SMTPConfig
	Storage StorageConfig
}

// MarketConfig configures the CoinGecko quote provider.
type MarketConfig struct {
	APIKey           string
	BaseURL          string
	CacheTTL         time.Duration
	FetchConcurrency int
	Timeout          time.Duration
}

// SMTPConfig configures outbound email. An empty Host disables delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// StorageConfig selects and configures the profile picture blob store.
type StorageConfig struct {
	Backend     string
	UploadDir   string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// Defaults returns a Config populated with development defaults.
func Defaults() Config {
	return Config{
		AppName:          defaultAppName,
		AppEnv:           defaultAppEnv,
		Port:             defaultPort,
		LogLevel:         defaultLogLevel,
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdempotencyTTL,
		OriginURL:        defaultOriginURL,
		AccessTokenTTL:   defaultAccessTokenTTL,
		RefreshTokenTTL:  defaultRefreshTokenTTL,
		ResetTokenTTL:    defaultResetTokenTTL,
		RegisterTokenTTL: defaultRegisterTokenTTL,
		LoginRateLimit:   defaultLoginRateLimit,
		Market: MarketConfig{
			BaseURL:          defaultCoinGeckoURL,
			CacheTTL:         defaultPriceCacheTTL,
			FetchConcurrency: defaultFetchConcurrency,
			Timeout:          defaultMarketTimeout,
		},
		SMTP:    SMTPConfig{Port: defaultSMTPPort},
		Storage: StorageConfig{Backend: defaultStorageBackend, UploadDir: defaultUploadDir},
	}
}

// Load reads configuration from an optional .env file, an optional YAML file
// named by CONFIG_FILE and finally the process environment, later sources
// overriding earlier ones.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv(configFileEnvVar); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.OriginURL = getEnv("ORIGIN_URL", cfg.OriginURL)
	cfg.AccessSecret = getEnv("JWT_ACCESS_SECRET", cfg.AccessSecret)
	cfg.RefreshSecret = getEnv("JWT_REFRESH_SECRET", cfg.RefreshSecret)

	cfg.Market.APIKey = getEnv("COINGECKO_API_KEY", cfg.Market.APIKey)
	cfg.Market.BaseURL = strings.TrimRight(getEnv("COINGECKO_BASE_URL", cfg.Market.BaseURL), "/")

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.From)

	cfg.Storage.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", cfg.Storage.Backend))
	cfg.Storage.UploadDir = getEnv("UPLOAD_DIR", cfg.Storage.UploadDir)
	cfg.Storage.S3Bucket = getEnv("S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3Region = getEnv("S3_REGION", cfg.Storage.S3Region)
	cfg.Storage.S3Endpoint = getEnv("S3_ENDPOINT", cfg.Storage.S3Endpoint)
	cfg.Storage.S3AccessKey = getEnv("S3_ACCESS_KEY", cfg.Storage.S3AccessKey)
	cfg.Storage.S3SecretKey = getEnv("S3_SECRET_KEY", cfg.Storage.S3SecretKey)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownPeriod},
		{"IDEMPOTENCY_TTL", &cfg.IdempotencyTTL},
		{"ACCESS_TOKEN_TTL", &cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", &cfg.RefreshTokenTTL},
		{"RESET_TOKEN_TTL", &cfg.ResetTokenTTL},
		{"REGISTER_TOKEN_TTL", &cfg.RegisterTokenTTL},
		{"PRICE_CACHE_TTL", &cfg.Market.CacheTTL},
		{"MARKET_TIMEOUT", &cfg.Market.Timeout},
	}
	for _, d := range durations {
		if err := envDuration(d.key, d.dst); err != nil {
			return err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PRICE_FETCH_CONCURRENCY", &cfg.Market.FetchConcurrency},
		{"SMTP_PORT", &cfg.SMTP.Port},
		{"LOGIN_RATE_LIMIT", &cfg.LoginRateLimit},
	}
	for _, n := range ints {
		if err := envInt(n.key, n.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the invariants the rest of the service relies on.
func (c Config) Validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if !c.IsDev() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
		}
	}
	switch c.Storage.Backend {
	case StorageDisk:
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return errors.New("S3_BUCKET must be set when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Market.FetchConcurrency <= 0 {
		return errors.New("PRICE_FETCH_CONCURRENCY must be positive")
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a development environment, where
// Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether cookies must be marked secure.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}
