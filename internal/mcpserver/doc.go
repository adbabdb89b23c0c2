// Package mcpserver exposes cluster inspection as MCP tools.
//
// The tools list and select clusters, fetch single collections, refresh a whole hour
// and manage the cache. They are served over SSE for long-running use or over stdio
// when the binary is launched by an MCP client.
package mcpserver
