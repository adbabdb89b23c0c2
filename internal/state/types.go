package state

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// ResourceType names one of the telemetry collections.
type ResourceType string

const (
	ResourceNodes  ResourceType = "nodes"
	ResourcePods   ResourceType = "pods"
	ResourceEvents ResourceType = "events"
)

// ResourceTypes lists every collection in fetch order.
var ResourceTypes = []ResourceType{ResourceNodes, ResourcePods, ResourceEvents}

// ParseResourceType validates a resource type name.
func ParseResourceType(s string) (ResourceType, error) {
	switch rt := ResourceType(strings.ToLower(strings.TrimSpace(s))); rt {
	case ResourceNodes, ResourcePods, ResourceEvents:
		return rt, nil
	}
	return "", errors.New("unknown resource type " + s + " (want nodes, pods or events)")
}

// Storage keys used in the cache realm.
const (
	KeyClusters        = "clusters"
	KeySelectedCluster = "selectedCluster"
)

var (
	// ErrInvalidShape is returned when a response is neither a sequence nor a keyed mapping.
	ErrInvalidShape = errors.New("invalid data shape")
	// ErrNoClusterSelected is the precondition failure of every fetch. Public operations
	// treat it as a silent no-op.
	ErrNoClusterSelected = errors.New("no cluster selected")
)

// FetchState is the global loading/error status shared by all collections.
type FetchState struct {
	Loading bool
	Error   string // empty when the last operation succeeded
}

// Snapshot is a consistent copy of the whole state.
type Snapshot struct {
	SelectedCluster string
	Clusters        []string
	ClusterNames    map[string]string
	Collections     map[ResourceType][]json.RawMessage
	FetchState      FetchState
}

// ChangeKind classifies a ChangeEvent.
type ChangeKind string

const (
	KindSelection  ChangeKind = "selection"
	KindCollection ChangeKind = "collection"
	KindFetchState ChangeKind = "fetch-state"
	KindClusters   ChangeKind = "clusters"
)

// ChangeEvent describes one mutation of ClusterState.
type ChangeEvent struct {
	Kind ChangeKind

	// Old and New carry the previous and current cluster for KindSelection.
	Old string
	New string

	// Resource is set for KindCollection.
	Resource ResourceType
	// Count is the new collection length for KindCollection, or the cluster count for KindClusters.
	Count int

	// State is set for KindFetchState.
	State FetchState
}

// View identifies the screen a consumer is showing; it decides which collections are fetched.
type View string

const (
	ViewHome       View = "home"
	ViewNodes      View = "nodes"
	ViewNodeDetail View = "node-detail"
	ViewPods       View = "pods"
	ViewPodDetail  View = "pod-detail"
	ViewEvents     View = "events"
	ViewReport     View = "report"
)

// ParseView maps an identifier to a View. Unknown identifiers are the home view.
func ParseView(s string) View {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewNodes, ViewNodeDetail, ViewPods, ViewPodDetail, ViewEvents, ViewReport, ViewHome:
		return v
	}
	return ViewHome
}

// Resources returns the collections the view needs.
func (v View) Resources() []ResourceType {
	switch v {
	case ViewNodes, ViewNodeDetail:
		return []ResourceType{ResourceNodes}
	case ViewPods, ViewPodDetail:
		return []ResourceType{ResourcePods}
	case ViewEvents:
		return []ResourceType{ResourceEvents}
	default:
		return ResourceTypes
	}
}

// ViewProvider reports the currently active view. An empty View means none is known.
type ViewProvider interface {
	View() View
}

// ActiveView is a mutex-guarded ViewProvider the consumer updates on navigation.
type ActiveView struct {
	mu   sync.RWMutex
	view View
}

// NewActiveView creates a holder starting at v.
func NewActiveView(v View) *ActiveView {
	return &ActiveView{view: v}
}

func (a *ActiveView) View() View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

func (a *ActiveView) Set(v View) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.view = v
}
