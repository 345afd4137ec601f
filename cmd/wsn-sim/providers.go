package main

import (
	"context"
	"log/slog"

	"github.com/HannahMarsh/onion-routing-wsn/config"
	"github.com/HannahMarsh/onion-routing-wsn/internal/repositories"
	"github.com/HannahMarsh/onion-routing-wsn/internal/telemetry"
	"github.com/HannahMarsh/onion-routing-wsn/internal/wsn"
	"github.com/google/uuid"
)

type app struct {
	Simulation *wsn.Simulation
	Recorder   *telemetry.Recorder
}

// provideObserver fans events out to the recorder and to every sink enabled in the
// output configuration. The returned cleanup closes the connections it opened.
func provideObserver(ctx context.Context, cfg *config.Config, rec *telemetry.Recorder, runID uuid.UUID) (telemetry.Observer, func(), error) {
	observers := telemetry.Multi{rec}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Output.PrometheusPort > 0 {
		observers = append(observers, telemetry.PrometheusObserver{})
	}

	if cfg.Output.PostgresDSN != "" {
		db, err := repositories.Open(ctx, cfg.Output.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := db.Close(); err != nil {
				slog.Error("Failed to close database", "err", err)
			}
		})
		repo, err := repositories.NewEventRepository(ctx, db, runID, cfg.Name())
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		repoObserver := telemetry.NewRepositoryObserver(ctx, repo)
		closers = append(closers, func() {
			if failed := repoObserver.Failed(); failed > 0 {
				slog.Warn("Events not stored in postgres", "run_id", repo.RunID(), "failed", failed)
			}
		})
		observers = append(observers, repoObserver)
		slog.Info("Recording events to postgres", "run_id", repo.RunID())
	}

	if cfg.Output.AMQPURL != "" {
		publisher, closeAMQP, err := telemetry.DialAMQP(ctx, cfg.Output.AMQPURL, cfg.Output.AMQPExchange, runID)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, closeAMQP, func() {
			if failed := publisher.Failed(); failed > 0 {
				slog.Warn("Events not published", "exchange", cfg.Output.AMQPExchange, "failed", failed)
			}
		})
		observers = append(observers, publisher)
		slog.Info("Publishing events", "exchange", cfg.Output.AMQPExchange, "run_id", runID)
	}

	return observers, cleanup, nil
}
