// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/tend/internal/adapters/config"
	_ "go.trai.ch/tend/internal/adapters/fs"
	_ "go.trai.ch/tend/internal/adapters/handlers/concat"
	_ "go.trai.ch/tend/internal/adapters/handlers/exec"
	_ "go.trai.ch/tend/internal/adapters/handlers/minify"
	_ "go.trai.ch/tend/internal/adapters/linear"
	_ "go.trai.ch/tend/internal/adapters/logger"
	_ "go.trai.ch/tend/internal/adapters/settings"
	_ "go.trai.ch/tend/internal/adapters/shell"
	_ "go.trai.ch/tend/internal/adapters/telemetry"
	_ "go.trai.ch/tend/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/tend/internal/app"
)
