package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	DatabaseURL          string
	AdminSecretCode      string
	FrontendBaseURL      string
	JWTSecret            string
	AccessTokenTTL       time.Duration
	ServiceName          string
	RateLimitRPM         int
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	ResendAPIKey         string
	MailFrom             string
	ResendCooldown       time.Duration
	AdminEmail           string
	AdminPassword        string
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// IsProduction reports whether the service runs in production mode. Outside
// production the register response echoes the verification link for manual
// testing.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET_CODE"))
	if adminSecret == "" {
		return Config{}, fmt.Errorf("ADMIN_SECRET_CODE is required")
	}
	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		AdminSecretCode:      adminSecret,
		FrontendBaseURL:      strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		JWTSecret:            jwtSecret,
		AccessTokenTTL:       getDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		ServiceName:          getEnv("SERVICE_NAME", "car-pass-auth"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		ResendAPIKey:         os.Getenv("RESEND_API_KEY"),
		MailFrom:             getEnv("MAIL_FROM", "Campus Parking <onboarding@resend.dev>"),
		ResendCooldown:       getDuration("RESEND_COOLDOWN", time.Minute),
		AdminEmail:           strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
