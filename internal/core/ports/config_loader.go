package ports

import "go.trai.ch/tend/internal/core/domain"

// ConfigLoader defines the interface for loading the task configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the task file. A directory is searched upwards for tend.yaml,
	// a file path is read directly.
	Load(path string) (*domain.TaskConfig, error)
}
