package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cluster-inspection/pkg/logging"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osUserCacheDir = os.UserCacheDir
var osGetwd = os.Getwd
var osLookupEnv = os.LookupEnv

const (
	userConfigDir    = ".config/cluster-inspection"
	projectConfigDir = ".cluster-inspection"
	configFileName   = "config.yaml"
	cacheDirName     = "cluster-inspection"
)

// Environment overrides, applied after all file layers.
const (
	EnvAPIBase       = "CLUSTER_INSPECTION_API_BASE"
	EnvStorage       = "CLUSTER_INSPECTION_STORAGE"
	EnvStorageDir    = "CLUSTER_INSPECTION_STORAGE_DIR"
	EnvRedisAddr     = "CLUSTER_INSPECTION_REDIS_ADDR"
	EnvCacheMaxBytes = "CLUSTER_INSPECTION_CACHE_MAX_BYTES"
	EnvUpdateRepo    = "CLUSTER_INSPECTION_UPDATE_REPOSITORY"
)

// LoadConfig loads the configuration by layering default, user, and project settings,
// then environment overrides.
func LoadConfig() (InspectionConfig, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// user config is optional
		logging.Warn("Config", "Could not determine user config path: %v", err)
	} else {
		config, err = overlayFile(config, userConfigPath)
		if err != nil {
			return InspectionConfig{}, err
		}
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine project config path: %v", err)
	} else {
		config, err = overlayFile(config, projectConfigPath)
		if err != nil {
			return InspectionConfig{}, err
		}
	}

	return finalize(config)
}

// LoadConfigFromPath loads defaults overlaid with a single explicit file. Unlike the
// layered lookup, a missing file is an error.
func LoadConfigFromPath(path string) (InspectionConfig, error) {
	fileConfig, err := loadConfigFromFile(path)
	if err != nil {
		return InspectionConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	return finalize(mergeConfigs(GetDefaultConfig(), fileConfig))
}

func overlayFile(base InspectionConfig, path string) (InspectionConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return InspectionConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	logging.Debug("Config", "Merged configuration from %s", path)
	return mergeConfigs(base, overlay), nil
}

func finalize(config InspectionConfig) (InspectionConfig, error) {
	config, err := applyEnvOverrides(config)
	if err != nil {
		return InspectionConfig{}, err
	}

	if config.Storage.Backend == StorageBackendFile && config.Storage.Directory == "" {
		dir, err := defaultStorageDir()
		if err != nil {
			return InspectionConfig{}, fmt.Errorf("could not determine storage directory: %w", err)
		}
		config.Storage.Directory = dir
	}

	if err := Validate(config); err != nil {
		return InspectionConfig{}, err
	}
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

func defaultStorageDir() (string, error) {
	cacheDir, err := osUserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, cacheDirName), nil
}

// loadConfigFromFile loads an InspectionConfig from a YAML file.
func loadConfigFromFile(filePath string) (InspectionConfig, error) {
	var config InspectionConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return InspectionConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return InspectionConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Zero values in overlay
// leave base untouched; cluster names are merged key by key.
func mergeConfigs(base, overlay InspectionConfig) InspectionConfig {
	merged := base

	if overlay.API.BaseURL != "" {
		merged.API.BaseURL = overlay.API.BaseURL
	}
	if overlay.API.Timeout != 0 {
		merged.API.Timeout = overlay.API.Timeout
	}
	if overlay.API.RetryMax != 0 {
		merged.API.RetryMax = overlay.API.RetryMax
	}

	if overlay.Storage.Backend != "" {
		merged.Storage.Backend = overlay.Storage.Backend
	}
	if overlay.Storage.Namespace != "" {
		merged.Storage.Namespace = overlay.Storage.Namespace
	}
	if overlay.Storage.Directory != "" {
		merged.Storage.Directory = overlay.Storage.Directory
	}
	if overlay.Storage.RedisAddr != "" {
		merged.Storage.RedisAddr = overlay.Storage.RedisAddr
	}
	if overlay.Storage.RedisPassword != "" {
		merged.Storage.RedisPassword = overlay.Storage.RedisPassword
	}
	if overlay.Storage.RedisDB != 0 {
		merged.Storage.RedisDB = overlay.Storage.RedisDB
	}
	if overlay.Storage.QuotaBytes != 0 {
		merged.Storage.QuotaBytes = overlay.Storage.QuotaBytes
	}

	if overlay.Cache.MaxBytes != 0 {
		merged.Cache.MaxBytes = overlay.Cache.MaxBytes
	}
	if overlay.Cache.TTL != 0 {
		merged.Cache.TTL = overlay.Cache.TTL
	}

	if overlay.Logging.Level != "" {
		merged.Logging.Level = overlay.Logging.Level
	}
	if overlay.Logging.Format != "" {
		merged.Logging.Format = overlay.Logging.Format
	}

	if overlay.MCP.Host != "" {
		merged.MCP.Host = overlay.MCP.Host
	}
	if overlay.MCP.Port != 0 {
		merged.MCP.Port = overlay.MCP.Port
	}

	if overlay.Update.Repository != "" {
		merged.Update.Repository = overlay.Update.Repository
	}

	if len(overlay.ClusterNames) > 0 {
		names := make(map[string]string, len(base.ClusterNames)+len(overlay.ClusterNames))
		for k, v := range base.ClusterNames {
			names[k] = v
		}
		for k, v := range overlay.ClusterNames {
			names[k] = v
		}
		merged.ClusterNames = names
	}

	if overlay.DefaultView != "" {
		merged.DefaultView = overlay.DefaultView
	}
	if overlay.Timezone != "" {
		merged.Timezone = overlay.Timezone
	}

	return merged
}

func applyEnvOverrides(config InspectionConfig) (InspectionConfig, error) {
	if v, ok := osLookupEnv(EnvAPIBase); ok && v != "" {
		config.API.BaseURL = v
	}
	if v, ok := osLookupEnv(EnvStorage); ok && v != "" {
		config.Storage.Backend = v
	}
	if v, ok := osLookupEnv(EnvStorageDir); ok && v != "" {
		config.Storage.Directory = v
	}
	if v, ok := osLookupEnv(EnvRedisAddr); ok && v != "" {
		config.Storage.RedisAddr = v
	}
	if v, ok := osLookupEnv(EnvCacheMaxBytes); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return InspectionConfig{}, fmt.Errorf("invalid %s value %q: %w", EnvCacheMaxBytes, v, err)
		}
		config.Cache.MaxBytes = n
	}
	if v, ok := osLookupEnv(EnvUpdateRepo); ok && v != "" {
		config.Update.Repository = v
	}
	return config, nil
}

// Validate rejects configurations the rest of the program cannot run with.
func Validate(config InspectionConfig) error {
	switch config.Storage.Backend {
	case StorageBackendMemory, StorageBackendFile, StorageBackendRedis:
	default:
		return fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}
	if config.API.BaseURL == "" {
		return fmt.Errorf("api.baseURL must not be empty")
	}
	if config.Cache.MaxBytes <= 0 {
		return fmt.Errorf("cache.maxBytes must be positive, got %d", config.Cache.MaxBytes)
	}
	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", config.Cache.TTL)
	}
	if config.API.RetryMax < 0 {
		return fmt.Errorf("api.retryMax must not be negative")
	}
	if repo := config.Update.Repository; repo != "" {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("update.repository must be \"owner/name\", got %q", repo)
		}
	}
	if _, err := config.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}
	return nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
