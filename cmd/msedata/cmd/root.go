// Package cmd holds the msedata CLI commands
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/trogers1052/mse-market-data/internal/config"
	"github.com/trogers1052/mse-market-data/internal/database"
	"github.com/trogers1052/mse-market-data/internal/ingest"
	"github.com/trogers1052/mse-market-data/internal/logger"
)

var (
	envFile string
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "msedata",
	Short: "MSE market data service",
	Long: `MSE market data service

Stores issuers, daily historical trading data and trading signals for the
Macedonian Stock Exchange, and serves them over HTTP.

Commands:
    serve      HTTP API, Kafka ingestion consumer and issuer event producer
    migrate    apply database migrations
    ingest     load one batch from a JSON file
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load if present")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(ingestCmd)
}

// initConfig loads the env file, reads configuration and initializes logging
func initConfig() error {
	envErr := godotenv.Load(envFile)

	cfg = config.Load()
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := logger.Init(logger.Config{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		FilePath:      cfg.Logging.FilePath,
		RotationSize:  cfg.Logging.RotationSize,
		RetentionDays: cfg.Logging.RetentionDays,
		ServiceName:   "msedata",
	}); err != nil {
		return err
	}

	if envErr != nil {
		log.Debug().Str("file", envFile).Msg("Env file not loaded, using environment variables")
	}
	return nil
}

func connectDB(ctx context.Context) (*database.DB, error) {
	db, err := database.Connect(ctx, cfg.Database.ConnectionString(), database.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.DBName).Msg("Connected to database")
	return db, nil
}

// newIdempotency returns the Redis key store, or nil when Redis is not configured
func newIdempotency(ctx context.Context) (ingest.Idempotency, func(), error) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("Redis not configured, idempotency keys disabled")
		return nil, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

	closer := func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	return ingest.NewRedisIdempotency(rdb, cfg.Redis.IdempotencyTTL, ""), closer, nil
}
