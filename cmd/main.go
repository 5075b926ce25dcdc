package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/naano/linktrack/cmd/buildCFG"
	"github.com/naano/linktrack/internal/api"
	"github.com/naano/linktrack/internal/repo"
	"github.com/naano/linktrack/internal/service"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Info().Msg("Starting linktrack")

	cfg := viper.New()
	cfg.SetConfigFile("config.yaml")
	cfg.AutomaticEnv()
	if err := cfg.ReadInConfig(); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)
	port := serverCfg.Port

	dbCfg, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := sql.Open("postgres", dbCfg.DSN)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	if err := db.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	ctx := context.Background()

	var rdb *redis.Client
	redisCfg, err := buildCFG.BuildRedisConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load Redis config")
	}
	if redisCfg != nil {
		rdb = redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The cache is a fast path, not a dependency; redirects must
			// keep working without it.
			log.Warn().Msgf("failed to ping Redis, continuing without cache: %v", err)
			rdb = nil
		} else {
			log.Info().Msg("Redis connected successfully")
		}
	}

	repository, err := repo.NewRepository(ctx, db, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot get working directory")
	}
	migrationPath := filepath.Join(cwd, "migrations/postgres")
	if err := repository.MigrateUp(migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	serviceInstance := service.NewService(repository, &log, rdb, service.Config{
		BaseURL:       serverCfg.BaseURL,
		HomeURL:       serverCfg.HomeURL,
		SecureCookies: serverCfg.Env == "production",
	})
	app := api.NewRouters(&api.Routers{Service: serviceInstance, Log: &log})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      app,
		WriteTimeout: serverCfg.WriteTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Error shutting down server: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Error().Msgf("Error closing DB: %v", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error().Msgf("Error closing Redis: %v", err)
		}
	}
	log.Info().Msg("Shutdown complete")
}
