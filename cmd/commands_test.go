package cmd

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/clusters", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"clusters":["c1","c2"]}`)
	})
	mux.HandleFunc("/api/nodes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"name":"node-`+r.URL.Query().Get("cluster")+`","memory":"2Gi"}]`)
	})
	mux.HandleFunc("/api/pods", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"p1":{"name":"api"}}`)
	})
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "api:\n  baseURL: " + baseURL + "/api\n" +
		"storage:\n  backend: file\n  directory: " + filepath.Join(dir, "store") + "\n" +
		"logging:\n  level: error\n" +
		"timezone: UTC\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func runCommand(args ...string) (string, error) {
	configPath, debug, outputFormat = "", false, "table"
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCommands_EndToEnd(t *testing.T) {
	srv := newTestBackend(t)
	cfg := writeTestConfig(t, srv.URL)

	out, err := runCommand("clusters", "-o", "json", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"id": "c1"`)
	assert.Contains(t, out, `"selected": true`)

	// the selection persisted by the previous run is restored
	out, err = runCommand("fetch", "--view", "nodes", "--json", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, "node-c1")
	assert.NotContains(t, out, `"pods"`)

	out, err = runCommand("select", "c2", "--view", "pods", "-o", "json", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"cluster": "c2"`)
	assert.Contains(t, out, `"pods": 1`)

	out, err = runCommand("refresh", "--date", "2024-01-01", "--hour", "10", "-o", "json", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"start": "2024-01-01T10:00:00Z"`)
	assert.Contains(t, out, `"nodes": 1`)

	out, err = runCommand("cache", "stats", "-o", "json", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"maxBytes": 9437184`)

	out, err = runCommand("cache", "clear", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Cache cleared")

	// clearing keeps the selection
	out, err = runCommand("fetch", "--view", "nodes", "-o", "yaml", "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, "node-c2")
}

func TestFetch_NoSelection(t *testing.T) {
	srv := newTestBackend(t)
	cfg := writeTestConfig(t, srv.URL)

	out, err := runCommand("fetch", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, out, "no cluster selected")
}

func TestRefresh_InvalidHour(t *testing.T) {
	srv := newTestBackend(t)
	cfg := writeTestConfig(t, srv.URL)

	_, err := runCommand("select", "c1", "--config", cfg)
	require.NoError(t, err)

	_, err = runCommand("refresh", "--hour", "24", "--config", cfg)
	assert.Error(t, err)
}

func TestInvalidOutputFormat(t *testing.T) {
	srv := newTestBackend(t)
	cfg := writeTestConfig(t, srv.URL)

	_, err := runCommand("cache", "stats", "-o", "xml", "--config", cfg)
	assert.Error(t, err)
}
