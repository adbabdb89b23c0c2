package config

import "time"

const (
	DefaultBaseURL       = "http://localhost:8088/cluster-inspection/api"
	DefaultNamespace     = "cluster-inspection"
	DefaultCacheMaxBytes = 9 * 1024 * 1024
	DefaultCacheTTL      = 24 * time.Hour
	DefaultMCPPort       = 8090
)

// GetDefaultConfig returns the built-in configuration. Every field that the rest of the
// program reads has a usable value here.
func GetDefaultConfig() InspectionConfig {
	return InspectionConfig{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
		},
		Storage: StorageConfig{
			Backend:   StorageBackendFile,
			Namespace: DefaultNamespace,
			RedisAddr: "localhost:6379",
		},
		Cache: CacheConfig{
			MaxBytes: DefaultCacheMaxBytes,
			TTL:      DefaultCacheTTL,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Host: "localhost",
			Port: DefaultMCPPort,
		},
		ClusterNames: map[string]string{},
		DefaultView:  "home",
	}
}
