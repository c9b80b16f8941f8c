package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/requery/internal/adapters/config"
	"go.trai.ch/requery/internal/adapters/logger"
	"go.trai.ch/requery/internal/adapters/telemetry"
	"go.trai.ch/requery/internal/core/ports"
)

// NodeID is the unique identifier for the components Graft node.
const NodeID graft.ID = "app.components"

// Components bundles everything the command layer needs.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*Components]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID, telemetry.NodeID},
		Run: func(ctx context.Context) (*Components, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{
				App:    New(config.NewLoader(log), log, tracer),
				Logger: log,
			}, nil
		},
	})
}
