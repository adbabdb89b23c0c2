// Package storage provides the durable key/value realm that backs the persistent cache.
//
// A realm is a flat string-to-string namespace, the server-side analogue of a browser's
// local storage. Three backends are available:
//
//   - MemoryStorage: process memory, optional byte quota. Used by tests and one-shot runs.
//   - FileStorage: one file per key under <directory>/<namespace>. The default.
//   - RedisStorage: keys prefixed with "<namespace>:" in a Redis database, for sharing a
//     realm between several processes on one host.
//
// Values are opaque to this package; the cache package decides their format.
package storage
