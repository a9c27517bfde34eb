package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const devMediaSecret = "dev_media_secret"

type Config struct {
	Env     string
	Port    int
	BaseURL string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Session   SessionConfig
	CORS      CORSConfig
	Log       LogConfig
	Videos    VideoConfig
	Media     MediaConfig
	Dashboard DashboardConfig
	OIDC      OIDCConfig
	Jobs      JobsConfig
	HTTP      HTTPConfig
	Mail      MailConfig
	Rollbar   RollbarConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

// SessionConfig controls cookie persistence of sessions.
type SessionConfig struct {
	AccessCookie  string
	RefreshCookie string
	CookieDomain  string
	SecureCookies bool
	RefreshWindow time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// VideoConfig governs uploaded video storage and validation.
type VideoConfig struct {
	StorageDir       string
	PublicPrefix     string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	StagingTTL       time.Duration
	SweepInterval    time.Duration
}

// MediaConfig configures signed stream URLs.
type MediaConfig struct {
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// DashboardConfig governs admin dashboard cache tuning.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// OIDCConfig enables sign-in through an external OpenID Connect provider.
type OIDCConfig struct {
	ProviderURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether the provider is configured.
func (c OIDCConfig) Enabled() bool {
	return c.ProviderURL != "" && c.ClientID != ""
}

// JobsConfig sizes the background job queue.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// MailConfig selects the outbound mail transport. An empty SendGrid key logs mail instead.
type MailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
}

// RollbarConfig enables error reporting when Token is set.
type RollbarConfig struct {
	Token       string
	CodeVersion string
}

// HTTPConfig holds server timeouts.
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that are only safe outside production.
func (c *Config) Validate() error {
	if c.Env != EnvProduction {
		return nil
	}
	if secret := c.Media.SignedURLSecret; secret == "" || secret == devMediaSecret {
		return fmt.Errorf("MEDIA_SIGNED_URL_SECRET must be set to a non-default value in %s", EnvProduction)
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.BaseURL = strings.TrimRight(v.GetString("BASE_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.Session = SessionConfig{
		AccessCookie:  v.GetString("SESSION_ACCESS_COOKIE"),
		RefreshCookie: v.GetString("SESSION_REFRESH_COOKIE"),
		CookieDomain:  v.GetString("COOKIE_DOMAIN"),
		SecureCookies: cfg.Env == EnvProduction,
		RefreshWindow: parseDuration(v.GetString("SESSION_REFRESH_WINDOW"), 5*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxVideoSize := v.GetInt64("VIDEO_MAX_FILE_SIZE")
	if maxVideoSize <= 0 {
		maxVideoSize = 100 * 1024 * 1024
	}
	cfg.Videos = VideoConfig{
		StorageDir:       v.GetString("VIDEO_STORAGE_DIR"),
		PublicPrefix:     v.GetString("VIDEO_PUBLIC_PREFIX"),
		MaxFileSizeBytes: maxVideoSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("VIDEO_ALLOWED_MIME_TYPES")),
		StagingTTL:       parseDuration(v.GetString("VIDEO_STAGING_TTL"), 6*time.Hour),
		SweepInterval:    parseDuration(v.GetString("VIDEO_SWEEP_INTERVAL"), time.Hour),
	}

	cfg.Media = MediaConfig{
		SignedURLSecret: v.GetString("MEDIA_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("MEDIA_SIGNED_URL_TTL"), 4*time.Hour),
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled: v.GetBool("ENABLE_DASHBOARD_CACHE"),
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), time.Minute),
	}

	cfg.OIDC = OIDCConfig{
		ProviderURL:  v.GetString("OIDC_PROVIDER"),
		ClientID:     v.GetString("OIDC_CLIENT_ID"),
		ClientSecret: v.GetString("OIDC_CLIENT_SECRET"),
		RedirectURL:  v.GetString("OIDC_REDIRECT_URL"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), 30*time.Second),
	}

	cfg.HTTP = HTTPConfig{
		ReadTimeout:     parseDuration(v.GetString("HTTP_READ_TIMEOUT"), 5*time.Minute),
		WriteTimeout:    parseDuration(v.GetString("HTTP_WRITE_TIMEOUT"), 5*time.Minute),
		IdleTimeout:     parseDuration(v.GetString("HTTP_IDLE_TIMEOUT"), 2*time.Minute),
		ShutdownTimeout: parseDuration(v.GetString("HTTP_SHUTDOWN_TIMEOUT"), 15*time.Second),
	}

	cfg.Mail = MailConfig{
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromEmail:      v.GetString("MAIL_FROM_EMAIL"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
	}

	cfg.Rollbar = RollbarConfig{
		Token:       v.GetString("ROLLBAR_TOKEN"),
		CodeVersion: v.GetString("BUILD_VERSION"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tigermind")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION", "1h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "tigermind")

	v.SetDefault("SESSION_ACCESS_COOKIE", "tm_access_token")
	v.SetDefault("SESSION_REFRESH_COOKIE", "tm_refresh_token")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("SESSION_REFRESH_WINDOW", "5m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("VIDEO_STORAGE_DIR", "./public/videos")
	v.SetDefault("VIDEO_PUBLIC_PREFIX", "/videos")
	v.SetDefault("VIDEO_MAX_FILE_SIZE", 100*1024*1024)
	v.SetDefault("VIDEO_ALLOWED_MIME_TYPES", "video/mp4,video/mkv,video/avi,video/webm,video/mov")
	v.SetDefault("VIDEO_STAGING_TTL", "6h")
	v.SetDefault("VIDEO_SWEEP_INTERVAL", "1h")

	v.SetDefault("MEDIA_SIGNED_URL_SECRET", devMediaSecret)
	v.SetDefault("MEDIA_SIGNED_URL_TTL", "4h")

	v.SetDefault("ENABLE_DASHBOARD_CACHE", false)
	v.SetDefault("DASHBOARD_CACHE_TTL", "1m")

	v.SetDefault("OIDC_PROVIDER", "")
	v.SetDefault("OIDC_CLIENT_ID", "")
	v.SetDefault("OIDC_CLIENT_SECRET", "")
	v.SetDefault("OIDC_REDIRECT_URL", "http://localhost:8080/api/auth/oidc/callback")

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "30s")

	v.SetDefault("HTTP_READ_TIMEOUT", "5m")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "5m")
	v.SetDefault("HTTP_IDLE_TIMEOUT", "2m")
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "15s")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_EMAIL", "no-reply@tigermind.dev")
	v.SetDefault("MAIL_FROM_NAME", "TigerMind")

	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("BUILD_VERSION", "dev")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
