/**
 * @description
 * Entry point for the FDR API. It loads configuration, connects to Postgres,
 * and connects the optional collaborators (RabbitMQ, Redis, GCS, OCR, LLM).
 * It then wires the service and serves HTTP until SIGINT/SIGTERM.
 *
 * @notes
 * - Every collaborator except Postgres is optional. A missing or unreachable
 *   one is logged and the matching feature degrades.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/procura/fdr-service/internal/api"
	"github.com/procura/fdr-service/internal/app"
	"github.com/procura/fdr-service/internal/config"
	"github.com/procura/fdr-service/internal/domain"
	"github.com/procura/fdr-service/internal/store"
	"github.com/procura/fdr-service/pkg/llmclient"
	"github.com/procura/fdr-service/pkg/ocrclient"
	"github.com/procura/fdr-service/pkg/rabbitmq"
	"github.com/procura/fdr-service/pkg/storage"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := dbpool.Ping(pingCtx); err != nil {
		cancelPing()
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	cancelPing()
	logger.Info("database connection established")

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		logger.Warn("RABBITMQ_URL not set; events disabled")
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback", "url", rabbitmq.MaskURL(cfg.RabbitMQURL), "error", err)
	} else {
		publisher = producer
		logger.Info("rabbitmq producer connected")
	}
	defer publisher.Close()

	var limiter api.RateLimiter
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set; extraction rate limiting disabled")
	} else if redisOptions, err := redis.ParseURL(cfg.RedisURL); err != nil {
		logger.Warn("redis url parse failed; extraction rate limiting disabled", "error", err)
	} else {
		redisClient := redis.NewClient(redisOptions)
		redisPingCtx, cancelRedisPing := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(redisPingCtx).Err(); err != nil {
			logger.Warn("redis ping failed; extraction rate limiting disabled", "error", err)
			redisClient.Close()
		} else {
			defer redisClient.Close()
			limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix, map[string]app.Quota{
				app.ScopeExtraction: {Limit: cfg.ExtractionRateLimitPerMinute, Window: time.Minute},
			})
			logger.Info("redis connected")
		}
		cancelRedisPing()
	}

	var blobs app.BlobStore
	if strings.TrimSpace(cfg.GCSBucket) == "" {
		logger.Warn("GCS_BUCKET not set; document uploads disabled")
	} else if gcs, err := storage.NewGCSClient(ctx, cfg.GCSBucket, cfg.GCSPublicBaseURL); err != nil {
		logger.Warn("gcs client unavailable; document uploads disabled", "error", err)
	} else {
		defer gcs.Close()
		blobs = gcs
		logger.Info("gcs client ready", "bucket", cfg.GCSBucket)
	}

	var ocr app.TextExtractor
	if strings.TrimSpace(cfg.OCRServiceURL) == "" {
		logger.Warn("OCR_SERVICE_URL not set; file extraction disabled")
	} else {
		ocr = ocrclient.NewClient(cfg.OCRServiceURL, cfg.OCRAPIKey)
	}

	llm := llmclient.NewClient(cfg.LLMAPIBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTemperature)
	if !llm.Configured() {
		logger.Warn("LLM_API_KEY not set; AI extraction disabled")
	}

	repository := store.NewPostgresRepository(dbpool)
	docs := app.NewDocumentPipeline(blobs, ocr, llm, cfg.GCSDocumentFolder, logger)
	service := app.NewService(repository, docs, publisher, logger, app.Config{
		DefaultBankName:    cfg.DefaultBankName,
		DefaultCategory:    domain.Category(cfg.DefaultCategory),
		Location:           cfg.Location,
		ExpiringWindowDays: cfg.ExpiringWindowDays,
		EventsExchange:     cfg.EventsExchange,
	})

	if cfg.AuthAllowHeaderFallback {
		logger.Warn("AUTH_ALLOW_HEADER_FALLBACK enabled; X-User-Id is trusted without a token")
	}

	handler := api.NewHandler(service, service.Documents(), logger, cfg.MaxUploadMB, cfg.Location)
	router := api.NewRouter(handler, api.RouterConfig{
		Auth: api.AuthConfig{
			JWKSURL:             cfg.AuthJWKSURL,
			Audience:            cfg.AuthAudience,
			Issuer:              cfg.AuthIssuer,
			AllowHeaderFallback: cfg.AuthAllowHeaderFallback,
		},
		InternalAPIKey: cfg.InternalAPIKey,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Limiter:        limiter,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("shutdown complete")
}
