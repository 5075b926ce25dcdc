package buildCFG

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port         string
	Name         string
	WriteTimeout time.Duration
	BaseURL      string
	HomeURL      string
	Env          string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func BuildServerConfig(cfg *viper.Viper, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	serverName := cfg.GetString("server.name")
	writeTimeoutStr := cfg.GetString("server.write_timeout")

	writeTimeout, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		log.Fatal().Msgf("invalid write_timeout value: %v", err)
	}

	baseURL := cfg.GetString("server.base_url")
	homeURL := cfg.GetString("server.home_url")
	if homeURL == "" {
		homeURL = baseURL + "/"
	}

	log.Info().Msgf("Starting %s on port %s (timeout %s)", serverName, port, writeTimeout)

	return ServerConfig{
		Port:         port,
		Name:         serverName,
		WriteTimeout: writeTimeout,
		BaseURL:      baseURL,
		HomeURL:      homeURL,
		Env:          cfg.GetString("server.env"),
	}
}

func BuildDBConfig(cfg *viper.Viper, log *zerolog.Logger) (*DBConfig, error) {
	dbHost := cfg.GetString("database.host")
	dbPortStr := cfg.GetString("database.port")
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		log.Error().Msgf("invalid database.port: %v", err)
		return nil, fmt.Errorf("invalid database.port: %w", err)
	}

	dbName := cfg.GetString("database.name")
	dbUser := cfg.GetString("database.user")
	dbPass := cfg.GetString("database.password")
	sslMode := cfg.GetString("database.ssl_mode")

	maxOpenConns, err := strconv.Atoi(cfg.GetString("database.max_conns"))
	if err != nil {
		log.Error().Msgf("invalid database.max_conns: %v", err)
		return nil, fmt.Errorf("invalid database.max_conns: %w", err)
	}

	maxIdleConns, err := strconv.Atoi(cfg.GetString("database.max_idle_conns"))
	if err != nil {
		log.Error().Msgf("invalid database.max_idle_conns: %v", err)
		return nil, fmt.Errorf("invalid database.max_idle_conns: %w", err)
	}

	connMaxLifetime, err := time.ParseDuration(cfg.GetString("database.max_conn_lifetime"))
	if err != nil {
		log.Error().Msgf("invalid database.max_conn_lifetime: %v", err)
		return nil, fmt.Errorf("invalid database.max_conn_lifetime: %w", err)
	}

	log.Info().Msgf("Database config: host=%s port=%d dbname=%s user=%s sslmode=%s",
		dbHost, dbPort, dbName, dbUser, sslMode)

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbHost, dbPort, dbUser, dbPass, dbName, sslMode,
	)

	return &DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
	}, nil
}

func BuildRedisConfig(cfg *viper.Viper, log *zerolog.Logger) (*RedisConfig, error) {
	addr := cfg.GetString("redis.addr")
	password := cfg.GetString("redis.password")
	dbStr := cfg.GetString("redis.db")

	if addr == "" {
		return nil, nil
	}

	db, err := strconv.Atoi(dbStr)
	if err != nil {
		log.Error().Msgf("invalid redis.db value: %v", err)
		return nil, fmt.Errorf("invalid redis.db value: %w", err)
	}

	log.Info().Msgf("Redis config loaded: %s, db=%d", addr, db)

	return &RedisConfig{
		Addr:     addr,
		Password: password,
		DB:       db,
	}, nil
}
