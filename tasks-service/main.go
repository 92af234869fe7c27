package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chepyr/task-boards/internal/auth"
	"github.com/chepyr/task-boards/internal/cache"
	"github.com/chepyr/task-boards/internal/config"
	"github.com/chepyr/task-boards/internal/db"
	"github.com/chepyr/task-boards/internal/events"
	"github.com/chepyr/task-boards/internal/handlers"
	"github.com/chepyr/task-boards/internal/service"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := cfg.NewLogger()

	dbConn := initDB(cfg, logger)
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.WithError(err).Error("closing database connection")
		}
	}()

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	handler := initHandler(cfg, logger, dbConn, redisClient)
	defer handler.RateLimiter.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler.TasksRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	startServer(server, logger)
}

func initDB(cfg *config.Config, logger *logrus.Logger) *sql.DB {
	dbConn, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.CreateSchema(ctx, dbConn); err != nil {
		logger.Fatalf("Failed to create schema: %v", err)
	}
	return dbConn
}

// initRedis returns nil when no cache is configured or Redis is unreachable;
// the service then reads roles from the database only.
func initRedis(cfg *config.Config, logger *logrus.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatalf("Invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unavailable, role cache disabled")
		client.Close()
		return nil
	}
	return client
}

func initHandler(cfg *config.Config, logger *logrus.Logger, dbConn *sql.DB, redisClient *redis.Client) *handlers.Handler {
	hub := events.NewHub(logger)
	var roles service.RoleCache
	if redisClient != nil {
		roles = cache.NewRoleCache(redisClient, cfg.RoleCacheTTL)
	}
	return &handlers.Handler{
		Boards:         service.NewBoardService(db.NewStore(dbConn), roles, hub, logger),
		Tokens:         auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		RateLimiter:    handlers.NewRateLimiter(5, time.Second),
		Hub:            hub,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            logger,
	}
}

func startServer(server *http.Server, logger *logrus.Logger) {
	logger.Infof("Starting tasks server on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}
