package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-crm/internal/auth"
	"order-crm/internal/config"
	"order-crm/internal/database"
	"order-crm/internal/database/migrations"
	"order-crm/internal/fields"
	field_db "order-crm/internal/fields/db"
	"order-crm/internal/fields/field_api"
	"order-crm/internal/kafka"
	"order-crm/internal/logger"
	"order-crm/internal/metrics"
	"order-crm/internal/order"
	order_db "order-crm/internal/order/db"
	"order-crm/internal/order/order_api"
	rediswrap "order-crm/internal/order/redis"
	"order-crm/internal/scheduler"
	"order-crm/internal/stats"
	"order-crm/internal/users"
	user_db "order-crm/internal/users/db"
	"order-crm/internal/users/user_api"
	"order-crm/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/rs/cors"
	"github.com/uptrace/bun"
)

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled() {
		log.Warn("REDIS", "REDIS_ADDR not set, running without distributed lock and stats cache")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func prepareSchema(ctx context.Context, cfg config.DatabaseConfig, bunDB *bun.DB, log *logger.Logger) error {
	if !cfg.AutoMigrate {
		return nil
	}
	if cfg.Driver == "postgres" {
		runner := migrations.NewRunner(bunDB, log)
		defer runner.Close()
		return runner.MigrateUp()
	}
	return database.CreateSchema(ctx, bunDB)
}

func eventPublisher(cfg config.KafkaConfig, log *logger.Logger) (kafka.EventPublisher, func()) {
	if !cfg.Enabled {
		log.Info("KAFKA", "Kafka disabled, order events are not published")
		return kafka.NoopPublisher{}, func() {}
	}

	topics := kafka.Topics{Prefix: cfg.TopicPrefix}
	if err := kafka.EnsureTopicsExist(cfg.Brokers, topics.All(), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	producer := kafka.NewProducer(cfg.Brokers)
	log.Info("KAFKA", "Kafka producer initialized successfully")
	return kafka.NewOrderEventPublisher(producer, topics, log), func() {
		if err := producer.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to close producer: %v", err))
		}
	}
}

func tokenVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) auth.Verifier {
	if cfg.OIDCIssuer != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", err.Error())
		}
		log.Info("AUTH", fmt.Sprintf("Verifying tokens issued by %s", cfg.OIDCIssuer))
		return verifier
	}
	log.Info("AUTH", "Verifying HS256 tokens signed with JWT_SECRET")
	return auth.NewHMACVerifier(cfg.JWTSecret)
}

func healthHandler(bunDB *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("database unavailable", err.Error()))
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "ok", nil)
	}
}

func main() {
	cfg := config.Load()

	log := logger.NewLogger(logger.Options{
		Level:      cfg.Log.Level,
		Dir:        cfg.Log.Dir,
		ToFile:     cfg.Log.ToFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer log.Close()

	log.Info("APP", "Starting order CRM initialization")
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := prepareSchema(ctx, cfg.Database, bunDB, log); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Schema preparation failed: %v", err))
	}
	if admin, created, err := database.EnsureAdmin(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", err.Error())
	} else if created {
		log.Warn("SECURITY", fmt.Sprintf("Created default administrator %q (id %d)", admin.Username, admin.ID))
	}

	redisClient := connectRedis(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	events, closeEvents := eventPublisher(cfg.Kafka, log)
	defer closeEvents()

	orderStore := &order_db.DB{Bun: bunDB}
	fieldService := fields.NewService(&field_db.DB{Bun: bunDB}, log)
	userService := users.NewService(&user_db.DB{Bun: bunDB}, orderStore, log)

	var lock order.DistributedLock
	var statsCache *stats.Cache
	if redisClient != nil {
		lock = rediswrap.NewRedis(redisClient, log)
		statsCache = stats.NewCache(redisClient, cfg.Stats.CacheTTL)
	}
	statsService := stats.NewService(orderStore, fieldService, statsCache, log)

	renumberer := order.NewRenumberer(orderStore, lock, cfg.Renumber.LockTTL, log)
	orderService := order.NewOrderService(orderStore, fieldService, renumberer, events, statsService, log)

	var sched *scheduler.Scheduler
	if cfg.Renumber.Schedule != "" {
		sched, err = scheduler.New(cfg.Renumber.Schedule, orderService, cfg.Renumber.LockTTL*2, log)
		if err != nil {
			log.Fatal("SCHEDULER", err.Error())
		}
	}

	orderHandler := order_api.NewHandler(orderService, statsService, log, cfg.Export.MaxRows)
	fieldHandler := field_api.NewHandler(fieldService, log)
	userHandler := user_api.NewHandler(userService, log)
	verifier := tokenVerifier(ctx, cfg.Auth, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.Middleware)

	// --- Public Routes ---
	r.Get("/api/health", healthHandler(bunDB))
	r.Handle("/metrics", metrics.Handler())

	// --- Protected Routes ---
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, userService, log))

		r.Get("/auth/me", userHandler.MeHandler)
		fieldHandler.RegisterRoutes(r)
		orderHandler.RegisterRoutes(r)
		userHandler.RegisterRoutes(r)
	})
	log.Info("ROUTER", "Routes registered under /api")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", order_api.RowsHeader, order_api.TruncatedHeader},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      c.Handler(r),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if sched != nil {
		sched.Start()
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Order CRM running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if sched != nil {
		sched.Stop(ctxShutdown)
	}
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Order CRM shutdown complete")
	}
}
