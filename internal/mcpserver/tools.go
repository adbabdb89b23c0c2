package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cluster-inspection/internal/cache"
	"cluster-inspection/internal/refresh"
	"cluster-inspection/internal/remote"
	"cluster-inspection/internal/state"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CacheAdmin is the part of the cache exposed to tools.
type CacheAdmin interface {
	Stats() (cache.Stats, error)
	Clear(key string) error
}

// Tools holds the handlers for the inspection tools.
type Tools struct {
	state   *state.ClusterState
	views   *state.ActiveView
	refresh *refresh.Controller
	cache   CacheAdmin
}

// NewTools wires the tool handlers. views and c may be nil.
func NewTools(s *state.ClusterState, views *state.ActiveView, ctrl *refresh.Controller, c CacheAdmin) *Tools {
	return &Tools{state: s, views: views, refresh: ctrl, cache: c}
}

// ServerTools returns every tool paired with its handler.
func (t *Tools) ServerTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("cluster_list",
				mcp.WithDescription("List known clusters and the current selection"),
				mcp.WithBoolean("refresh",
					mcp.Description("Fetch the cluster list from the server before listing"),
					mcp.DefaultBool(false),
				),
			),
			Handler: t.HandleClusterList,
		},
		{
			Tool: mcp.NewTool("cluster_select",
				mcp.WithDescription("Select a cluster and fetch the data of the active view"),
				mcp.WithString("cluster",
					mcp.Required(),
					mcp.Description("Cluster id to select"),
				),
				mcp.WithString("view",
					mcp.Description("View to activate before fetching"),
					mcp.Enum(viewNames()...),
				),
			),
			Handler: t.HandleClusterSelect,
		},
		{
			Tool: mcp.NewTool("resource_fetch",
				mcp.WithDescription("Fetch one resource collection for the selected cluster"),
				mcp.WithString("type",
					mcp.Required(),
					mcp.Description("Resource type"),
					mcp.Enum("nodes", "pods", "events"),
				),
				mcp.WithString("start",
					mcp.Description("Window start, e.g. 2024-01-01T10:00:00 (default: selected hour)"),
				),
				mcp.WithString("end",
					mcp.Description("Window end, e.g. 2024-01-01T10:59:59 (default: selected hour)"),
				),
				mcp.WithBoolean("force",
					mcp.Description("Use the authoritative report route"),
					mcp.DefaultBool(false),
				),
			),
			Handler: t.HandleResourceFetch,
		},
		{
			Tool: mcp.NewTool("refresh_all",
				mcp.WithDescription("Refresh nodes, pods and events for one hour"),
				mcp.WithString("date",
					mcp.Description("Date as YYYY-MM-DD (default: keep current)"),
				),
				mcp.WithString("hour",
					mcp.Description("Hour 0-23 or HH:00 (default: keep current)"),
				),
				mcp.WithBoolean("force",
					mcp.Description("Use the authoritative report routes"),
					mcp.DefaultBool(false),
				),
			),
			Handler: t.HandleRefreshAll,
		},
		{
			Tool: mcp.NewTool("cache_stats",
				mcp.WithDescription("Show cache usage"),
			),
			Handler: t.HandleCacheStats,
		},
		{
			Tool: mcp.NewTool("cache_clear",
				mcp.WithDescription("Clear one cache key, or the whole cache keeping the selected cluster"),
				mcp.WithString("key",
					mcp.Description("Key to clear (default: everything)"),
				),
			),
			Handler: t.HandleCacheClear,
		},
	}
}

type clusterInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// HandleClusterList handles the cluster_list tool call
func (t *Tools) HandleClusterList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if req.GetBool("refresh", false) || len(t.state.Clusters()) == 0 {
		if err := t.state.FetchClusters(ctx); err != nil && len(t.state.Clusters()) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list clusters: %v", err)), nil
		}
	}

	selected := t.state.SelectedCluster()
	clusters := []clusterInfo{}
	for _, id := range t.state.Clusters() {
		clusters = append(clusters, clusterInfo{ID: id, Name: t.state.ClusterName(id), Selected: id == selected})
	}

	return jsonResult(map[string]interface{}{
		"clusters": clusters,
		"selected": selected,
		"total":    len(clusters),
	})
}

// HandleClusterSelect handles the cluster_select tool call
func (t *Tools) HandleClusterSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cluster, err := req.RequireString("cluster")
	if err != nil || strings.TrimSpace(cluster) == "" {
		return mcp.NewToolResultError("cluster is required"), nil
	}

	if v := req.GetString("view", ""); v != "" && t.views != nil {
		t.views.Set(state.ParseView(v))
	}

	if err := t.state.SetSelectedCluster(ctx, cluster); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Selected %s but fetching failed: %v", cluster, err)), nil
	}

	return jsonResult(summary(t.state.Snapshot()))
}

// HandleResourceFetch handles the resource_fetch tool call
func (t *Tools) HandleResourceFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("type is required"), nil
	}
	rt, err := state.ParseResourceType(typ)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cluster := t.state.SelectedCluster()
	if cluster == "" {
		return mcp.NewToolResultError(state.ErrNoClusterSelected.Error()), nil
	}

	start, end := req.GetString("start", ""), req.GetString("end", "")
	if start == "" || end == "" {
		w := t.refresh.Window()
		if start == "" {
			start = remote.FormatTime(w.Start)
		}
		if end == "" {
			end = remote.FormatTime(w.End)
		}
	}

	if err := t.state.Refresh(ctx, rt, start, end, req.GetBool("force", false)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch %s: %v", rt, err)), nil
	}

	records := t.state.Collection(rt)
	return jsonResult(map[string]interface{}{
		"cluster": cluster,
		"type":    rt,
		"start":   start,
		"end":     end,
		"count":   len(records),
		"records": records,
	})
}

// HandleRefreshAll handles the refresh_all tool call
func (t *Tools) HandleRefreshAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if date := req.GetString("date", ""); date != "" {
		if err := t.refresh.SetDate(date); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if hour := req.GetString("hour", ""); hour != "" {
		h, err := refresh.ParseHour(hour)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := t.refresh.SetHour(h); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	err := t.refresh.RefreshAll(ctx, req.GetBool("force", false))
	if errors.Is(err, refresh.ErrRefreshInProgress) {
		return mcp.NewToolResultError("A refresh is already in progress"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(t.refresh.Err()), nil
	}

	w := t.refresh.Window()
	out := summary(t.state.Snapshot())
	out["start"] = remote.FormatTime(w.Start)
	out["end"] = remote.FormatTime(w.End)
	return jsonResult(out)
}

// HandleCacheStats handles the cache_stats tool call
func (t *Tools) HandleCacheStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.cache == nil {
		return mcp.NewToolResultError("cache is disabled"), nil
	}
	stats, err := t.cache.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read cache: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"entries":    stats.Entries,
		"raw":        stats.Raw,
		"totalBytes": stats.TotalBytes,
		"maxBytes":   stats.MaxBytes,
		"ttl":        stats.TTL.String(),
	})
}

// HandleCacheClear handles the cache_clear tool call
func (t *Tools) HandleCacheClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	if key == "" {
		if err := t.state.ClearCache(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Cache cleared"), nil
	}

	if t.cache == nil {
		return mcp.NewToolResultError("cache is disabled"), nil
	}
	if err := t.cache.Clear(key); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to clear %s: %v", key, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Cleared '%s'", key)), nil
}

func summary(snap state.Snapshot) map[string]interface{} {
	counts := map[string]int{}
	for _, rt := range state.ResourceTypes {
		counts[string(rt)] = len(snap.Collections[rt])
	}
	return map[string]interface{}{
		"selected": snap.SelectedCluster,
		"counts":   counts,
		"loading":  snap.FetchState.Loading,
		"error":    snap.FetchState.Error,
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	resultJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(resultJSON)),
		},
	}, nil
}

func viewNames() []string {
	return []string{
		string(state.ViewHome), string(state.ViewNodes), string(state.ViewNodeDetail),
		string(state.ViewPods), string(state.ViewPodDetail), string(state.ViewEvents), string(state.ViewReport),
	}
}
