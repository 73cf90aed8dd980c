package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cropscan-gateway/internal/analyze"
	"cropscan-gateway/internal/cache"
	"cropscan-gateway/internal/handlers"
	"cropscan-gateway/internal/httpserver"
	"cropscan-gateway/internal/identify"
	"cropscan-gateway/internal/metrics"
	"cropscan-gateway/internal/persist"
	"cropscan-gateway/internal/pipeline"
	"cropscan-gateway/internal/ratelimit"
	"cropscan-gateway/pkg/logging/logging"
)

type Config struct {
	Port      string
	VersionID string
	Debug     bool

	CacheBackend string // "memory" or "redis"
	RedisAddr    string
	AnalysisTTL  time.Duration
	QuestionTTL  time.Duration

	RateLimit  int
	RateWindow time.Duration

	FloraScanBaseURL string
	FloraScanAPIKey  string

	OpenAIAPIKey   string
	PrimaryModel   string
	SecondaryModel string

	TrainingBackend string // "memory" or "minio"
	Minio           persist.MinioConfig

	FeedbackBackend string // "memory" or "mysql"
	MySQLDSN        string

	AllowedOrigins []string
}

func LoadConfig() Config {
	return Config{
		Port:      getenv("PORT", "8080"),
		VersionID: getenv("SCAN_VERSION", "v1"),
		Debug:     getenv("DEBUG_ERRORS", "") == "1",

		CacheBackend: getenv("CACHE_BACKEND", "memory"),
		RedisAddr:    getenv("REDIS_ADDR", "127.0.0.1:6379"),
		AnalysisTTL:  getenvDuration("ANALYSIS_CACHE_TTL", 24*time.Hour),
		QuestionTTL:  getenvDuration("QUESTION_CACHE_TTL", 7*24*time.Hour),

		RateLimit:  getenvInt("RATE_LIMIT", ratelimit.DefaultLimit),
		RateWindow: getenvDuration("RATE_WINDOW", ratelimit.DefaultWindow),

		FloraScanBaseURL: getenv("FLORASCAN_BASE_URL", "https://api.florascan.io"),
		FloraScanAPIKey:  os.Getenv("FLORASCAN_API_KEY"),

		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		PrimaryModel:   getenv("ANALYSIS_MODEL", ""),
		SecondaryModel: getenv("ANALYSIS_FALLBACK_MODEL", ""),

		TrainingBackend: getenv("TRAINING_BACKEND", "memory"),
		Minio: persist.MinioConfig{
			Endpoint:  getenv("MINIO_ENDPOINT", "127.0.0.1:9000"),
			Region:    getenv("MINIO_REGION", ""),
			Bucket:    getenv("MINIO_BUCKET", "cropscan-training"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    getenv("MINIO_USE_SSL", "") == "1",
		},

		FeedbackBackend: getenv("FEEDBACK_BACKEND", "memory"),
		MySQLDSN:        os.Getenv("MYSQL_DSN"),

		AllowedOrigins: strings.Split(getenv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("version_id", cfg.VersionID),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("training_backend", cfg.TrainingBackend),
		zap.String("feedback_backend", cfg.FeedbackBackend),
		zap.Int("rate_limit", cfg.RateLimit),
		zap.Duration("rate_window", cfg.RateWindow),
		zap.Bool("debug_errors", cfg.Debug),
	)

	ctx := context.Background()

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured.
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established", zap.String("addr", cfg.RedisAddr))
	}

	// ----- Cache -----
	store := cache.NewStore(cache.Config{
		Backend:       cfg.CacheBackend,
		SweepInterval: 10 * time.Minute,
		Prefix:        "cropscan",
	}, redisClient)
	store = cache.NewLoggingStore(store)

	// ----- Identification chain -----
	// Missing credentials fail here, at startup, not per request.
	florascan, err := identify.NewFloraScanProvider(identify.FloraScanConfig{
		BaseURL: cfg.FloraScanBaseURL,
		APIKey:  cfg.FloraScanAPIKey,
	}, logger)
	if err != nil {
		return err
	}

	vision, err := identify.NewVisionProvider(identify.VisionConfig{
		APIKey: cfg.OpenAIAPIKey,
	}, logger)
	if err != nil {
		return err
	}

	chain := identify.NewChain(florascan, vision)

	// ----- Analysis stage -----
	primaryModel, secondaryModel, err := analyze.NewOpenAIModels(analyze.OpenAIModelConfig{
		APIKey:    cfg.OpenAIAPIKey,
		Primary:   cfg.PrimaryModel,
		Secondary: cfg.SecondaryModel,
	}, logger)
	if err != nil {
		return err
	}
	stage := analyze.NewStage(primaryModel, secondaryModel)

	// ----- Training log -----
	var sink persist.Sink
	switch cfg.TrainingBackend {
	case "minio":
		sink, err = persist.NewMinioSink(ctx, cfg.Minio)
		if err != nil {
			logger.Error("minio init failed", zap.Error(err))
			return err
		}
	default:
		sink = persist.NewMemorySink()
	}
	training := persist.NewTrainingLogger(sink, 256, logger)
	defer training.Close()

	// ----- Feedback store -----
	var feedback persist.FeedbackStore
	switch cfg.FeedbackBackend {
	case "mysql":
		db, err := persist.ConnectMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			logger.Error("mysql connect failed", zap.Error(err))
			return err
		}
		defer db.Close()
		feedback = persist.NewMySQLFeedbackStore(db)
	default:
		feedback = persist.NewMemoryFeedbackStore()
	}

	// ----- Pipeline + handlers -----
	service := pipeline.NewService(pipeline.Config{
		AnalysisTTL: cfg.AnalysisTTL,
		QuestionTTL: cfg.QuestionTTL,
		VersionID:   cfg.VersionID,
	}, store, chain, stage, training, feedback)

	h := handlers.New(service, cfg.Debug)

	limiter := ratelimit.New(cfg.RateLimit, cfg.RateWindow)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, h, limiter, cfg.AllowedOrigins)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("version_id", cfg.VersionID),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
