// Package config provides configuration management for cluster-inspection.
//
// Configuration is loaded from multiple sources and merged in order, with later
// sources overriding earlier ones:
//
//  1. Default Configuration (embedded in binary)
//  2. User Configuration (~/.config/cluster-inspection/config.yaml)
//  3. Project Configuration (./.cluster-inspection/config.yaml)
//  4. Environment variables (CLUSTER_INSPECTION_API_BASE, CLUSTER_INSPECTION_STORAGE,
//     CLUSTER_INSPECTION_STORAGE_DIR, CLUSTER_INSPECTION_REDIS_ADDR,
//     CLUSTER_INSPECTION_CACHE_MAX_BYTES)
//
// A single explicit file can be used instead of the user and project layers through
// LoadConfigFromPath (the --config flag).
//
// # Configuration Structure
//
//	api:
//	  baseURL: "http://localhost:8088/cluster-inspection/api"
//	  timeout: 30s
//	  retryMax: 0
//	storage:
//	  backend: file          # memory, file or redis
//	  namespace: cluster-inspection
//	  directory: ~/.cache/cluster-inspection
//	  redisAddr: localhost:6379
//	cache:
//	  maxBytes: 9437184
//	  ttl: 24h
//	logging:
//	  level: info
//	  format: text
//	clusterNames:
//	  prod-eu-1: "Production EU"
//	defaultView: home
//	timezone: Europe/Berlin
package config
