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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
	Scorer   ScorerConfig
	Audit    AuditConfig
	Graph    GraphConfig
	Exports  ExportsConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig holds the service-token settings gating mutating endpoints.
// When Secret is empty the gateway runs open (development default).
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ScorerConfig supplies recommendation scoring weights and credit-load
// bounds. Weights are deployment configuration, never compiled constants.
type ScorerConfig struct {
	UnlockWeight       float64
	GapReliefWeight    float64
	AvailabilityWeight float64
	ConflictWeight     float64
	DefaultMinCredits  float64
	DefaultMaxCredits  float64
	MaxRecommendations int
}

// Validate rejects weight sets that cannot produce a meaningful ranking.
func (c ScorerConfig) Validate() error {
	weights := []float64{c.UnlockWeight, c.GapReliefWeight, c.AvailabilityWeight, c.ConflictWeight}
	total := 0.0
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("scorer weights must be non-negative, got %v", weights)
		}
		total += w
	}
	if total == 0 {
		return fmt.Errorf("scorer weights missing: all weights are zero")
	}
	if c.DefaultMaxCredits > 0 && c.DefaultMinCredits > c.DefaultMaxCredits {
		return fmt.Errorf("default credit bounds inverted: min %.1f > max %.1f", c.DefaultMinCredits, c.DefaultMaxCredits)
	}
	return nil
}

// AuditConfig tunes the asynchronous audit worker pool.
type AuditConfig struct {
	WorkerConcurrency int
	QueueBufferSize   int
	WorkerRetries     int
	ResultCacheTTL    time.Duration
}

// GraphConfig controls catalog graph lifecycle.
type GraphConfig struct {
	RebuildOnStart bool
	CacheTTL       time.Duration
}

// ExportsConfig controls audit report export storage.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		Secret:   v.GetString("SERVICE_TOKEN_SECRET"),
		Issuer:   v.GetString("SERVICE_TOKEN_ISSUER"),
		Audience: v.GetString("SERVICE_TOKEN_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scorer = ScorerConfig{
		UnlockWeight:       v.GetFloat64("SCORER_UNLOCK_WEIGHT"),
		GapReliefWeight:    v.GetFloat64("SCORER_GAP_RELIEF_WEIGHT"),
		AvailabilityWeight: v.GetFloat64("SCORER_AVAILABILITY_WEIGHT"),
		ConflictWeight:     v.GetFloat64("SCORER_CONFLICT_WEIGHT"),
		DefaultMinCredits:  v.GetFloat64("SCORER_DEFAULT_MIN_CREDITS"),
		DefaultMaxCredits:  v.GetFloat64("SCORER_DEFAULT_MAX_CREDITS"),
		MaxRecommendations: v.GetInt("SCORER_MAX_RECOMMENDATIONS"),
	}

	cfg.Audit = AuditConfig{
		WorkerConcurrency: v.GetInt("AUDIT_WORKER_CONCURRENCY"),
		QueueBufferSize:   v.GetInt("AUDIT_QUEUE_BUFFER"),
		WorkerRetries:     v.GetInt("AUDIT_WORKER_RETRIES"),
		ResultCacheTTL:    parseDuration(v.GetString("AUDIT_RESULT_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Graph = GraphConfig{
		RebuildOnStart: v.GetBool("GRAPH_REBUILD_ON_START"),
		CacheTTL:       parseDuration(v.GetString("GRAPH_CACHE_TTL"), 24*time.Hour),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "degree_audit")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SERVICE_TOKEN_SECRET", "")
	v.SetDefault("SERVICE_TOKEN_ISSUER", "degree-audit-api")
	v.SetDefault("SERVICE_TOKEN_AUDIENCE", "degree-audit-clients")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCORER_UNLOCK_WEIGHT", 0.4)
	v.SetDefault("SCORER_GAP_RELIEF_WEIGHT", 0.35)
	v.SetDefault("SCORER_AVAILABILITY_WEIGHT", 0.15)
	v.SetDefault("SCORER_CONFLICT_WEIGHT", 0.1)
	v.SetDefault("SCORER_DEFAULT_MIN_CREDITS", 12)
	v.SetDefault("SCORER_DEFAULT_MAX_CREDITS", 18)
	v.SetDefault("SCORER_MAX_RECOMMENDATIONS", 25)

	v.SetDefault("AUDIT_WORKER_CONCURRENCY", 4)
	v.SetDefault("AUDIT_QUEUE_BUFFER", 16)
	v.SetDefault("AUDIT_WORKER_RETRIES", 1)
	v.SetDefault("AUDIT_RESULT_CACHE_TTL", "10m")

	v.SetDefault("GRAPH_REBUILD_ON_START", true)
	v.SetDefault("GRAPH_CACHE_TTL", "24h")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
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
