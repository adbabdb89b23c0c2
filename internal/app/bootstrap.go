package app

import (
	"fmt"
	"os"

	"cluster-inspection/pkg/logging"
)

// Application is the main application structure that wires cluster-inspection together
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, configures logging and initializes services.
func NewApplication(cfg *Config) (*Application, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.Inspection.Logging.Level)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	// stdout carries command output and the stdio MCP transport
	logging.Init(level, cfg.Inspection.Logging.Format, os.Stderr)

	if cfg.ConfigPath != "" {
		logging.Info("Bootstrap", "Loaded configuration from custom path: %s", cfg.ConfigPath)
	} else {
		logging.Debug("Bootstrap", "Loaded configuration using layered approach")
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Config returns the loaded configuration.
func (a *Application) Config() *Config {
	return a.config
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Close releases every service.
func (a *Application) Close() error {
	return a.services.Close()
}
