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
	"github.com/chepyr/task-boards/internal/config"
	"github.com/chepyr/task-boards/internal/db"
	"github.com/chepyr/task-boards/internal/handlers"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
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

	handler := &handlers.Handler{
		UserRepo: db.NewUserRepository(dbConn),
		Tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		// allow max 5 login or register attempts per 15 minutes from the same IP
		RateLimiter: handlers.NewRateLimiter(5, 15*time.Minute),
		Log:         logger,
	}
	defer handler.RateLimiter.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler.AuthRoutes(),
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

func startServer(server *http.Server, logger *logrus.Logger) {
	logger.Infof("Starting auth server on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
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
