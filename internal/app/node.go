package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/tend/internal/adapters/config"          //nolint:depguard // Wired in app layer
	"go.trai.ch/tend/internal/adapters/fs"              //nolint:depguard // Wired in app layer
	"go.trai.ch/tend/internal/adapters/handlers/concat" //nolint:depguard // Wired in app layer
	"go.trai.ch/tend/internal/adapters/handlers/exec"   //nolint:depguard // Wired in app layer
	"go.trai.ch/tend/internal/adapters/handlers/minify" //nolint:depguard // Wired in app layer
	"go.trai.ch/tend/internal/adapters/logger"          //nolint:depguard // Wired in app layer
	"go.trai.ch/tend/internal/adapters/settings"        //nolint:depguard // Wired in app layer
	"go.trai.ch/tend/internal/adapters/telemetry"       //nolint:depguard // Wired in app layer
	"go.trai.ch/tend/internal/adapters/watcher"         //nolint:depguard // Wired in app layer
	"go.trai.ch/tend/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components are what the CLI needs from the dependency graph.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			settings.NodeID,
			fs.ResolverNodeID,
			fs.HasherNodeID,
			watcher.FactoryNodeID,
			telemetry.TracerNodeID,
			concat.NodeID,
			minify.NodeID,
			exec.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			a, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: a, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	settingsLoader, err := graft.Dep[*settings.Loader](ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := graft.Dep[ports.PathResolver](ctx)
	if err != nil {
		return nil, err
	}

	hasher, err := graft.Dep[ports.Fingerprinter](ctx)
	if err != nil {
		return nil, err
	}

	watchers, err := graft.Dep[ports.WatcherFactory](ctx)
	if err != nil {
		return nil, err
	}

	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}

	concatHandler, err := graft.Dep[*concat.Handler](ctx)
	if err != nil {
		return nil, err
	}

	minifyHandler, err := graft.Dep[*minify.Handler](ctx)
	if err != nil {
		return nil, err
	}

	execHandler, err := graft.Dep[*exec.Handler](ctx)
	if err != nil {
		return nil, err
	}

	return New(
		loader,
		log,
		settingsLoader,
		resolver,
		hasher,
		watchers,
		tracer,
		NamedHandler{Name: concat.Name, Handler: concatHandler},
		NamedHandler{Name: minify.Name, Handler: minifyHandler},
		NamedHandler{Name: exec.Name, Handler: execHandler},
	), nil
}
