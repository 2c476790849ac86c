package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	ServerPort  string
	MetricsPort string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	RedisURL    string
	JWTSecret   string
	TokenTTL    time.Duration
	LogLevel    string

	// Inbound frames per second allowed on a single channel.
	FrameRate  float64
	FrameBurst int
	// Empty means any origin is accepted on the WebSocket upgrade.
	AllowedOrigins []string
	// Access-Control-Allow-Origin for the REST API.
	CORSOrigin string

	RunMigrations bool
}

// Load reads the environment and then applies command-line overrides from args
// (typically os.Args[1:]).
func Load(args []string) (*Config, error) {
	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "dmchat"),
		DBPassword:     getEnv("DB_PASSWORD", "dmchat_dev_password"),
		DBName:         getEnv("DB_NAME", "dmchat"),
		RedisURL:       getEnv("REDIS_URL", "localhost:6379"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("WS_ALLOWED_ORIGINS", "")),
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),
		RunMigrations:  true,
	}

	var err error
	if cfg.TokenTTL, err = time.ParseDuration(getEnv("ACCESS_TOKEN_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL: %w", err)
	}
	if cfg.FrameRate, err = strconv.ParseFloat(getEnv("WS_FRAME_RATE", "10"), 64); err != nil {
		return nil, fmt.Errorf("WS_FRAME_RATE: %w", err)
	}
	if cfg.FrameBurst, err = strconv.Atoi(getEnv("WS_FRAME_BURST", "20")); err != nil {
		return nil, fmt.Errorf("WS_FRAME_BURST: %w", err)
	}

	fs := pflag.NewFlagSet("dmchat", pflag.ContinueOnError)
	fs.StringVar(&cfg.ServerPort, "port", cfg.ServerPort, "HTTP and WebSocket listen port")
	fs.StringVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "Prometheus metrics listen port")
	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis address or redis:// URL for the offline queue")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "lifetime of issued access tokens")
	fs.Float64Var(&cfg.FrameRate, "frame-rate", cfg.FrameRate, "inbound frames per second per channel")
	fs.IntVar(&cfg.FrameBurst, "frame-burst", cfg.FrameBurst, "inbound frame burst per channel")
	fs.StringVar(&cfg.CORSOrigin, "cors-origin", cfg.CORSOrigin, "Access-Control-Allow-Origin for the REST API")
	fs.BoolVar(&cfg.RunMigrations, "migrate", cfg.RunMigrations, "apply database migrations on startup")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.FrameRate <= 0 || cfg.FrameBurst <= 0 {
		return nil, fmt.Errorf("frame rate and burst must be positive")
	}

	return cfg, nil
}

// DatabaseURL returns the postgres:// connection string.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
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
