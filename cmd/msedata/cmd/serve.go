package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/trogers1052/mse-market-data/internal/api"
	"github.com/trogers1052/mse-market-data/internal/ingest"
	"github.com/trogers1052/mse-market-data/internal/kafka"
	"github.com/trogers1052/mse-market-data/internal/query"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the Kafka ingestion consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	db, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
			return err
		}
	}

	idem, closeIdem, err := newIdempotency(ctx)
	if err != nil {
		return err
	}
	defer closeIdem()

	ingestSvc := ingest.NewService(db, idem)
	querySvc := query.NewService(db)

	var publisher api.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer producer.Close()
		publisher = producer

		// the consumer is stopped and joined before the producer, Redis and the database are closed
		consumerCtx, stopConsumer := context.WithCancel(ctx)
		var wg sync.WaitGroup
		defer func() {
			stopConsumer()
			wg.Wait()
		}()

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.IngestTopic, cfg.Kafka.GroupID, ingestSvc)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(consumerCtx); err != nil {
				log.Error().Err(err).Msg("Kafka consumer stopped")
			}
		}()
	} else {
		log.Info().Msg("Kafka brokers not configured, consumer and issuer events disabled")
	}

	cors := api.DefaultCORSConfig()
	cors.AllowOrigin = cfg.Server.AllowedOrigin

	handler := api.NewHandler(ingestSvc, querySvc, db, publisher)
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.SetupRoutes(handler, cors),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
