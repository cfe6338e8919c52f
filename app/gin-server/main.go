package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/config"
	"github.com/yoockh/resumedesk/internal/api/handlers"
	"github.com/yoockh/resumedesk/internal/api/middleware"
	"github.com/yoockh/resumedesk/internal/api/routes"
	"github.com/yoockh/resumedesk/internal/auth"
	"github.com/yoockh/resumedesk/internal/cache"
	"github.com/yoockh/resumedesk/internal/feed"
	"github.com/yoockh/resumedesk/internal/logger"
	"github.com/yoockh/resumedesk/internal/metrics"
	mongorepo "github.com/yoockh/resumedesk/internal/repositories/mongo"
	pgrepo "github.com/yoockh/resumedesk/internal/repositories/postgres"
	redisrepo "github.com/yoockh/resumedesk/internal/repositories/redis"
	"github.com/yoockh/resumedesk/internal/services"
	"github.com/yoockh/resumedesk/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().WithError(err).Fatal("config")
	}
	log := logger.NewWithLevel(cfg.LogLevel)
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init PostgreSQL
	if err := config.InitPostgres(cfg.Postgres); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	log.Info("PostgreSQL connected")
	if cfg.Postgres.Migrate {
		if err := pgrepo.Migrate(config.PostgresDB); err != nil {
			log.WithError(err).Fatal("PostgreSQL migrate error")
		}
	}

	// Init Redis
	if err := config.InitRedis(cfg.Redis); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")
	rdb := config.RedisClient

	// Sessions: Redis by default, MongoDB when configured
	var sessionStore services.SessionStore = redisrepo.NewSessionRepo(rdb, "session:")
	if cfg.Auth.SessionStore == "mongo" {
		if err := config.InitMongo(cfg.Mongo); err != nil {
			log.WithError(err).Fatal("MongoDB init error")
		}
		if err := config.EnsureMongoIndexes(cfg.Mongo); err != nil {
			log.WithError(err).Fatal("MongoDB index error")
		}
		log.Info("MongoDB connected")
		sessionStore = mongorepo.NewSessionRepo(config.MongoClient.Database(cfg.Mongo.Database))
	}

	store, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("object storage init error")
	}

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		log.WithError(err).Fatal("token verifier init error")
	}

	// Change feed: the app publishes its own writes unless Postgres notifications are the source
	resumeRepo := pgrepo.NewResumeRepo(config.PostgresDB)
	changes := feed.NewRedisFeed(rdb, logger.Component(log, "feed"))
	var publisher feed.Publisher = changes
	if cfg.Feed.Source == "postgres" {
		publisher = feed.Discard
		bridge := feed.NewPGBridge(cfg.Postgres.URI, resumeRepo, changes, logger.Component(log, "pg_bridge"))
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.WithError(err).Error("postgres change bridge stopped")
			}
		}()
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
	blacklist := redisrepo.NewTokenBlacklist(rdb)
	sessionSvc := services.NewSessionService(sessionStore, cfg.Auth.RefreshTTL)
	authSvc := services.NewAuthService(verifier, tokens, sessionSvc, blacklist, logger.Component(log, "auth"))
	profileSvc := services.NewProfileService(
		pgrepo.NewProfileRepo(config.PostgresDB),
		cache.NewRedisCache(rdb, "cache:"),
		logger.Component(log, "profiles"),
	)
	resumeSvc := services.NewResumeService(
		resumeRepo,
		store,
		publisher,
		cfg.Storage.SignedURLTTL,
		logger.Component(log, "resumes"),
	)

	resolver := auth.NewResolver(tokens, sessionSvc, blacklist, cfg.Auth.CookieSecure, logger.Component(log, "resolver"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Component(log, "http")))
	routes.RegisterRoutes(r, routes.Deps{
		Router:   middleware.AccessRouter(resolver, profileSvc, cfg.Routes.BypassPrefixes, logger.Component(log, "router")),
		Limiter:  newLimiter(cfg.RateLimit, rdb, log),
		Auth:     handlers.NewAuthHandler(authSvc, resolver),
		Profile:  handlers.NewProfileHandler(profileSvc),
		Resume:   handlers.NewResumeHandler(resumeSvc, cfg.Storage.MaxUploadBytes, cfg.Storage.SignedURLTTL),
		Live:     handlers.NewLiveHandler(resumeSvc, changes, logger.Component(log, "live")),
		Gatherer: reg,
		Ready: func(ctx context.Context) error {
			sqlDB, err := config.PostgresDB.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	_ = rdb.Close()
	if config.MongoClient != nil {
		_ = config.MongoClient.Disconnect(shutdownCtx)
	}
	if c, ok := store.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	if cfg.Backend == "minio" {
		return storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.Bucket,
		})
	}
	return storage.NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile)
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	if cfg.Issuer != "" {
		return auth.NewOIDCVerifier(ctx, cfg.Issuer, cfg.ClientID)
	}
	return auth.NewHS256Verifier(cfg.ProviderSecret, "", cfg.Audience), nil
}

func newLimiter(cfg config.RateLimitConfig, rdb *redis.Client, log *logrus.Logger) gin.HandlerFunc {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Backend == "redis" {
		return middleware.RedisRateLimit(rdb, cfg.RPS, cfg.Burst, cfg.Window, logger.Component(log, "rate_limit"))
	}
	return middleware.RateLimit(cfg.RPS, cfg.Burst)
}
