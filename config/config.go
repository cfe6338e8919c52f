package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Feed      FeedConfig
	RateLimit RateLimitConfig
	Routes    RoutesConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PostgresConfig struct {
	URI     string
	Migrate bool
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr string
}

type AuthConfig struct {
	// provider tokens: OIDC discovery when Issuer is set, HS256 with ProviderSecret otherwise
	Issuer         string
	ClientID       string
	ProviderSecret string
	Audience       string

	// app tokens
	JWTSecret    string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SessionStore string // redis|mongo
	CookieSecure bool
}

type StorageConfig struct {
	Backend         string // gcs|minio
	Bucket          string
	CredentialsFile string
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOUseSSL     bool
	SignedURLTTL    time.Duration
	MaxUploadBytes  int64
}

type FeedConfig struct {
	Source string // app|postgres
}

type RateLimitConfig struct {
	Enabled bool
	Backend string // memory|redis
	RPS     float64
	Burst   int
	Window  time.Duration
}

type RoutesConfig struct {
	// BypassPrefixes never go through the access router
	BypassPrefixes []string
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("POSTGRES_MIGRATE", true)
	v.SetDefault("MONGO_DB", "resumedesk")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	v.SetDefault("SESSION_STORE", "redis")
	v.SetDefault("STORAGE_BACKEND", "gcs")
	v.SetDefault("STORAGE_BUCKET", "resumes")
	v.SetDefault("SIGNED_URL_TTL", 3600)
	v.SetDefault("MAX_UPLOAD_BYTES", 2<<20)
	v.SetDefault("FEED_SOURCE", "app")
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_BACKEND", "memory")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", 1)
	v.SetDefault("ROUTER_BYPASS", "/health,/ready,/metrics,/auth/logout,/static/")

	env := v.GetString("GO_ENV")
	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("PORT"),
			Environment:  env,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Postgres: PostgresConfig{
			URI:     v.GetString("POSTGRES_URI"),
			Migrate: v.GetBool("POSTGRES_MIGRATE"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DB"),
		},
		Redis: RedisConfig{
			Addr: firstNonEmpty(v.GetString("REDIS_ADDR"), v.GetString("REDIS_URI"), v.GetString("REDIS_URL")),
		},
		Auth: AuthConfig{
			Issuer:         v.GetString("OIDC_ISSUER"),
			ClientID:       v.GetString("OIDC_CLIENT_ID"),
			ProviderSecret: v.GetString("SUPABASE_JWT_SECRET"),
			Audience:       v.GetString("SUPABASE_JWT_AUDIENCE"),
			JWTSecret:      v.GetString("JWT_SECRET"),
			AccessTTL:      time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTTL:     time.Duration(v.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
			SessionStore:   strings.ToLower(v.GetString("SESSION_STORE")),
			CookieSecure:   env == "production",
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(v.GetString("STORAGE_BACKEND")),
			Bucket:          v.GetString("STORAGE_BUCKET"),
			CredentialsFile: v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
			MinIOEndpoint:   v.GetString("MINIO_ENDPOINT"),
			MinIOAccessKey:  v.GetString("MINIO_ACCESS_KEY"),
			MinIOSecretKey:  v.GetString("MINIO_SECRET_KEY"),
			MinIOUseSSL:     v.GetBool("MINIO_USE_SSL"),
			SignedURLTTL:    time.Duration(v.GetInt("SIGNED_URL_TTL")) * time.Second,
			MaxUploadBytes:  v.GetInt64("MAX_UPLOAD_BYTES"),
		},
		Feed: FeedConfig{
			Source: strings.ToLower(v.GetString("FEED_SOURCE")),
		},
		RateLimit: RateLimitConfig{
			Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
			Backend: strings.ToLower(v.GetString("RATE_LIMIT_BACKEND")),
			RPS:     v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:   v.GetInt("RATE_LIMIT_BURST"),
			Window:  time.Duration(v.GetInt("RATE_LIMIT_WINDOW")) * time.Second,
		},
		Routes: RoutesConfig{
			BypassPrefixes: splitList(v.GetString("ROUTER_BYPASS")),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
