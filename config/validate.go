package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	var errs []error

	if c.Postgres.URI == "" {
		errs = append(errs, errors.New("POSTGRES_URI is required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR (or REDIS_URI/REDIS_URL) is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.Issuer == "" && c.Auth.ProviderSecret == "" {
		errs = append(errs, errors.New("one of OIDC_ISSUER or SUPABASE_JWT_SECRET is required"))
	}
	if c.Auth.Issuer != "" && c.Auth.ClientID == "" {
		errs = append(errs, errors.New("OIDC_CLIENT_ID is required with OIDC_ISSUER"))
	}

	switch c.Auth.SessionStore {
	case "redis":
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when SESSION_STORE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be redis or mongo, got %q", c.Auth.SessionStore))
	}

	switch c.Storage.Backend {
	case "gcs":
	case "minio":
		if c.Storage.MinIOEndpoint == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT is required when STORAGE_BACKEND=minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be gcs or minio, got %q", c.Storage.Backend))
	}

	if c.Feed.Source != "app" && c.Feed.Source != "postgres" {
		errs = append(errs, fmt.Errorf("FEED_SOURCE must be app or postgres, got %q", c.Feed.Source))
	}
	if c.RateLimit.Backend != "memory" && c.RateLimit.Backend != "redis" {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.RateLimit.Backend))
	}

	return errors.Join(errs...)
}
