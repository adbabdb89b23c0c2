package config

import (
	"time"
)

// InspectionConfig is the top-level configuration structure for cluster-inspection.
type InspectionConfig struct {
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	MCP     MCPConfig     `yaml:"mcp"`
	Update  UpdateConfig  `yaml:"update"`

	// ClusterNames maps cluster identifiers to display names. Clusters without an
	// entry are displayed by their identifier.
	ClusterNames map[string]string `yaml:"clusterNames,omitempty"`

	// DefaultView is the view used when the caller does not name one.
	DefaultView string `yaml:"defaultView,omitempty"`

	// Timezone is the IANA name used to build time windows. Empty means local time.
	Timezone string `yaml:"timezone,omitempty"`
}

// APIConfig describes the remote telemetry endpoint.
type APIConfig struct {
	BaseURL  string        `yaml:"baseURL,omitempty"`  // e.g. "http://localhost:8088/cluster-inspection/api"
	Timeout  time.Duration `yaml:"timeout,omitempty"`  // 0 means no client-side timeout
	RetryMax int           `yaml:"retryMax,omitempty"` // transport-level retries, 0 disables
}

// Storage backends.
const (
	StorageBackendMemory = "memory"
	StorageBackendFile   = "file"
	StorageBackendRedis  = "redis"
)

// StorageConfig selects and configures the durable storage realm behind the cache.
type StorageConfig struct {
	Backend   string `yaml:"backend,omitempty"`   // "memory", "file" or "redis"
	Namespace string `yaml:"namespace,omitempty"` // realm prefix shared by all keys
	Directory string `yaml:"directory,omitempty"` // file backend only

	RedisAddr     string `yaml:"redisAddr,omitempty"`
	RedisPassword string `yaml:"redisPassword,omitempty"`
	RedisDB       int    `yaml:"redisDB,omitempty"`

	// QuotaBytes caps the memory backend. 0 means unlimited.
	QuotaBytes int64 `yaml:"quotaBytes,omitempty"`
}

// CacheConfig bounds the persistent cache.
type CacheConfig struct {
	MaxBytes int64         `yaml:"maxBytes,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}

// MCPConfig configures the MCP tool server started by `cluster-inspection serve`.
type MCPConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// UpdateConfig points `cluster-inspection self-update` at a release repository.
type UpdateConfig struct {
	// Repository is the GitHub "owner/name" slug publishing release binaries. Empty
	// disables self-update.
	Repository string `yaml:"repository,omitempty"`
}

// Location resolves Timezone, falling back to time.Local.
func (c InspectionConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// DisplayName returns the configured display name for a cluster, or the cluster id itself.
func (c InspectionConfig) DisplayName(cluster string) string {
	if name, ok := c.ClusterNames[cluster]; ok && name != "" {
		return name
	}
	return cluster
}
