// Package remote is the HTTP client for the cluster-inspection telemetry API.
//
// Every call is a GET against {base}/{endpoint}; a forced fetch uses
// {base}/report/{endpoint}, the authoritative route that bypasses the server-side cache.
// The client only passes the force flag through, it cannot verify what the server does
// with it.
//
// Time parameters (start_time, end_time) are normalized to "2006-01-02T15:04:05Z" before
// sending. Failures are returned as *FetchError, which matches ErrNetwork for transport and
// status errors. The client never returns partial data.
package remote
