package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	JWTSecret         string
	CacheDir          string
	MatchThreshold    float64
	IntakeConcurrency int
	AnalysisWorkers   int
	AnalysisCacheTTL  time.Duration
	ParseTimeout      time.Duration
	SofficeBinary     string
	PreviewTimeout    time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADEHUB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GradeHub API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cache.dir", "/var/lib/gradehub/cache")
	v.SetDefault("match.threshold", 0.82)
	v.SetDefault("intake.concurrency", 4)
	v.SetDefault("analysis.workers", 2)
	v.SetDefault("analysis.cache_ttl", "1h")
	v.SetDefault("parse.timeout", "30s")
	v.SetDefault("soffice.binary", "soffice")
	v.SetDefault("preview.timeout", "60s")

	cacheTTL, err := time.ParseDuration(v.GetString("analysis.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid analysis cache ttl: %w", err)
	}
	parseTimeout, err := time.ParseDuration(v.GetString("parse.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid parse timeout: %w", err)
	}
	previewTimeout, err := time.ParseDuration(v.GetString("preview.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid preview timeout: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		CacheDir:          v.GetString("cache.dir"),
		MatchThreshold:    v.GetFloat64("match.threshold"),
		IntakeConcurrency: v.GetInt("intake.concurrency"),
		AnalysisWorkers:   v.GetInt("analysis.workers"),
		AnalysisCacheTTL:  cacheTTL,
		ParseTimeout:      parseTimeout,
		SofficeBinary:     v.GetString("soffice.binary"),
		PreviewTimeout:    previewTimeout,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MatchThreshold <= 0 || cfg.MatchThreshold > 1 {
		cfg.MatchThreshold = 0.82
	}
	if cfg.IntakeConcurrency <= 0 {
		cfg.IntakeConcurrency = 4
	}
	if cfg.AnalysisWorkers <= 0 {
		cfg.AnalysisWorkers = 2
	}

	return cfg, nil
}
