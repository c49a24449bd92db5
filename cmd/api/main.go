package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/andriansyh/safesight/internal/application"
	appins "github.com/andriansyh/safesight/internal/application/inspections"
	appusers "github.com/andriansyh/safesight/internal/application/users"
	"github.com/andriansyh/safesight/internal/config"
	domins "github.com/andriansyh/safesight/internal/domain/inspections"
	domusage "github.com/andriansyh/safesight/internal/domain/usage"
	domusers "github.com/andriansyh/safesight/internal/domain/users"
	openaiClient "github.com/andriansyh/safesight/internal/infra/ai/openai"
	mysqlp "github.com/andriansyh/safesight/internal/infra/db/mysql"
	postgresp "github.com/andriansyh/safesight/internal/infra/db/postgres"
	"github.com/andriansyh/safesight/internal/infra/httpserver"
	imagingp "github.com/andriansyh/safesight/internal/infra/imaging"
	minioStore "github.com/andriansyh/safesight/internal/infra/storage"
	"github.com/andriansyh/safesight/internal/jobs"
	logp "github.com/andriansyh/safesight/internal/log"
	"github.com/andriansyh/safesight/internal/middleware"
)

func main() {
	// optional .env for local secrets
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logp.New(cfg.Environment)
	ctx := context.Background()

	// connect database (driver selected via config)
	var (
		db       *sql.DB
		userRepo domusers.Repository
		insRepo  domins.Repository
		usageRep domusage.Repository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect error")
		}
		userRepo = postgresp.NewUserRepository(db)
		insRepo = postgresp.NewInspectionRepository(db)
		usageRep = postgresp.NewUsageRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			logger.Fatal().Err(err).Msg("mysql connect error")
		}
		userRepo = mysqlp.NewUserRepository(db)
		insRepo = mysqlp.NewInspectionRepository(db)
		usageRep = mysqlp.NewUsageRepository(db)
	}
	defer db.Close()

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
		cfg.Minio.PublicBase,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("minio init error")
	}

	// init vision client
	vision := openaiClient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	// init normalizer
	normalizer := imagingp.NewNormalizer(cfg.Limits.MaxImageBytes, cfg.Limits.MaxImageSide, cfg.Limits.JPEGQuality)

	// init services
	insSvc := &appins.Service{
		Users:       userRepo,
		Inspections: insRepo,
		Usage:       usageRep,
		Normalizer:  normalizer,
		Blobs:       store,
		AI:          vision,
		Clock:       application.SystemClock{},
		Limits: appins.Limits{
			MonthlyInspections: cfg.Limits.MonthlyInspections,
			MaxImageBytes:      cfg.Limits.MaxImageBytes,
			CostPer1KTokens:    cfg.Limits.CostPer1KTokens,
		},
		Logger: logger,
	}
	usersSvc := appusers.NewService(userRepo)

	// rate limiter: shared fixed window when redis is configured,
	// in-process token bucket otherwise
	var limiter middleware.Limiter
	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		limiter = middleware.NewRedisLimiter(rdb, cfg.Limits.RatePerMinute)
		checkers["redis"] = &middleware.RedisHealthChecker{Client: rdb}
	} else {
		limiter = middleware.NewLocalLimiter(cfg.Limits.RatePerMinute, cfg.Limits.RatePerMinute/60+1)
	}

	// scheduled sweeps
	scheduler := jobs.NewScheduler(userRepo, usageRep, cfg.Retention.UsageLogDays, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start error")
	}
	defer scheduler.Stop()

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(httpserver.Deps{
		Inspections: insSvc,
		Users:       usersSvc,
		Resolver:    middleware.NewJWTResolver(cfg.Auth.JWTSecret),
		Limiter:     limiter,
		Checkers:    checkers,
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSOrigins,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // model calls are slow
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
