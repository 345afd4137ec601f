//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/HannahMarsh/onion-routing-wsn/config"
	"github.com/HannahMarsh/onion-routing-wsn/internal/sim"
	"github.com/HannahMarsh/onion-routing-wsn/internal/telemetry"
	"github.com/HannahMarsh/onion-routing-wsn/internal/validator"
	"github.com/HannahMarsh/onion-routing-wsn/internal/wsn"
	"github.com/google/uuid"
	"github.com/google/wire"
)

func initializeApp(ctx context.Context, cfg *config.Config, runID uuid.UUID) (*app, func(), error) {
	wire.Build(
		sim.NewScheduler,
		wsn.NewNetwork,
		validator.New,
		telemetry.NewRecorder,
		provideObserver,
		wsn.NewSimulation,
		wire.Struct(new(app), "*"),
	)
	return nil, nil, nil
}
