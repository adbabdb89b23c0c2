package app

import (
	"fmt"

	"cluster-inspection/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath overrides the layered configuration lookup when set.
	ConfigPath string

	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// Inspection configuration, filled in by NewApplication unless already set.
	Inspection *config.InspectionConfig
}

// NewConfig creates a new application configuration
func NewConfig(configPath string, debug bool) *Config {
	return &Config{
		ConfigPath: configPath,
		Debug:      debug,
	}
}

// Load fills in Inspection from ConfigPath, or from the layered lookup when no path is
// set. An already set Inspection is kept.
func (c *Config) Load() error {
	if c.Inspection != nil {
		return nil
	}

	var inspectionCfg config.InspectionConfig
	var err error
	if c.ConfigPath != "" {
		inspectionCfg, err = config.LoadConfigFromPath(c.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration from path %s: %w", c.ConfigPath, err)
		}
	} else {
		inspectionCfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	c.Inspection = &inspectionCfg
	return nil
}
