package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cluster-inspection/internal/remote"
	"cluster-inspection/pkg/logging"

	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// DataClient is the part of the remote client ClusterState needs.
type DataClient interface {
	FetchClusters(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, endpoint string, params remote.Params, force bool) (json.RawMessage, error)
}

// Cache is the persistent store used for the cluster list, the selection and
// fetched windows. *cache.Cache implements it.
type Cache interface {
	Set(key string, value interface{}) error
	Get(key string, out interface{}) error
	SetRaw(key, value string) error
	GetRaw(key string) (string, bool)
	ClearAll() error
}

// cachedCollection is what a successful fetch writes under the resource type key.
type cachedCollection struct {
	Cluster string            `json:"cluster"`
	Start   string            `json:"start"`
	End     string            `json:"end"`
	Records []json.RawMessage `json:"records"`
}

// ClusterState owns the selected cluster, the cluster list, the three collections and the
// global fetch state. It is shared by pointer; only its methods mutate it.
type ClusterState struct {
	client DataClient
	cache  Cache
	views  ViewProvider
	names  map[string]string
	now    func() time.Time
	loc    *time.Location

	mu           sync.RWMutex
	selected     string
	clusters     []string
	clusterNames map[string]string
	collections  map[ResourceType][]json.RawMessage
	inflight     int
	lastErr      string
	events       broadcaster

	// held for the duration of a FetchData batch
	batching atomic.Bool
}

// Option configures a ClusterState.
type Option func(*ClusterState)

// WithCache persists the selection and caches fetched data in c.
func WithCache(c Cache) Option {
	return func(s *ClusterState) { s.cache = c }
}

// WithViewProvider sets where the active view is read from.
func WithViewProvider(vp ViewProvider) Option {
	return func(s *ClusterState) { s.views = vp }
}

// WithClusterNames sets display names by cluster id.
func WithClusterNames(names map[string]string) Option {
	return func(s *ClusterState) {
		for k, v := range names {
			s.names[k] = v
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ClusterState) { s.now = now }
}

// WithLocation sets the zone the default window is built in.
func WithLocation(loc *time.Location) Option {
	return func(s *ClusterState) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates the state and restores a persisted selection from the cache.
func New(client DataClient, opts ...Option) *ClusterState {
	s := &ClusterState{
		client:       client,
		names:        make(map[string]string),
		now:          time.Now,
		loc:          time.Local,
		clusterNames: make(map[string]string),
		collections:  make(map[ResourceType][]json.RawMessage, len(ResourceTypes)),
		events:       newBroadcaster(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, rt := range ResourceTypes {
		s.collections[rt] = []json.RawMessage{}
	}

	if s.cache != nil {
		if sel, ok := s.cache.GetRaw(KeySelectedCluster); ok && sel != "" {
			s.selected = sel
			logging.Debug("State", "Restored selected cluster %s", sel)
		}
	}
	return s
}

// Subscribe returns a subscription to the given kinds, or to every kind when none are
// given. Only changes after the call are delivered.
func (s *ClusterState) Subscribe(kinds ...ChangeKind) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.subscribe(kinds)
}

// Unsubscribe closes sub.
func (s *ClusterState) Unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events.unsubscribe(sub)
}

// SubscriptionMetrics returns delivery counters.
func (s *ClusterState) SubscriptionMetrics() SubscriptionMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.metrics
}

// Close closes every subscription.
func (s *ClusterState) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events.closeAll()
}

// FetchClusters loads the authoritative cluster list. When nothing is selected the first
// cluster is selected, which fetches data for the active view. On failure a cached list is
// used if the state has none.
func (s *ClusterState) FetchClusters(ctx context.Context) error {
	_, err := s.fetchClusters(ctx)
	return err
}

// fetchClusters reports whether it selected a cluster (and thereby fetched data).
func (s *ClusterState) fetchClusters(ctx context.Context) (bool, error) {
	clusters, err := s.client.FetchClusters(ctx)
	if err != nil {
		logging.Error("State", err, "Error fetching clusters")

		var cached []string
		s.mu.Lock()
		s.lastErr = "Failed to fetch clusters"
		if len(s.clusters) == 0 && s.cache != nil && s.cache.Get(KeyClusters, &cached) == nil && len(cached) > 0 {
			logging.Info("State", "Using %d cached clusters", len(cached))
			s.setClustersLocked(cached)
		}
		s.publishFetchStateLocked()
		s.mu.Unlock()
		return false, fmt.Errorf("failed to fetch clusters: %w", err)
	}

	s.mu.Lock()
	s.setClustersLocked(clusters)
	needsSelection := s.selected == "" && len(clusters) > 0
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Set(KeyClusters, clusters); err != nil {
			logging.Warn("State", "Could not cache cluster list: %v", err)
		}
	}

	if needsSelection {
		return true, s.SetSelectedCluster(ctx, clusters[0])
	}
	return false, nil
}

// SetSelectedCluster selects and persists cluster, then fetches data for the active view.
func (s *ClusterState) SetSelectedCluster(ctx context.Context, cluster string) error {
	s.mu.Lock()
	old := s.selected
	s.selected = cluster
	if old != cluster {
		s.events.publish(ChangeEvent{Kind: KindSelection, Old: old, New: cluster})
	}
	s.mu.Unlock()

	if old != cluster {
		logging.Info("State", "Selected cluster %s", cluster)
	}
	if s.cache != nil {
		if err := s.cache.SetRaw(KeySelectedCluster, cluster); err != nil {
			logging.Error("State", err, "Failed to persist selected cluster")
		}
	}

	return s.FetchData(ctx, s.activeView(), "", "")
}

// FetchResource fetches one collection for the selected cluster. Without a selection it
// does nothing.
func (s *ClusterState) FetchResource(ctx context.Context, rt ResourceType, start, end string) error {
	return s.Refresh(ctx, rt, start, end, false)
}

// Refresh is FetchResource with the force flag carried to the remote client.
func (s *ClusterState) Refresh(ctx context.Context, rt ResourceType, start, end string, force bool) error {
	cluster := s.SelectedCluster()
	if cluster == "" {
		logging.Debug("State", "No cluster selected, skipping %s fetch", rt)
		return nil
	}

	s.begin()
	defer s.end("")
	return s.fetchOne(ctx, cluster, rt, start, end, force)
}

// FetchData fetches the collections view needs for the selected cluster. Empty start or
// end default to the current hour. While a batch runs further calls are dropped; if the
// selection changed in the meantime one follow-up batch runs for the new cluster.
func (s *ClusterState) FetchData(ctx context.Context, view View, start, end string) error {
	cluster := s.SelectedCluster()
	if cluster == "" {
		logging.Warn("State", "No cluster selected, skipping data fetch")
		return nil
	}
	if view == "" {
		view = s.activeView()
	}

	if !s.batching.CompareAndSwap(false, true) {
		logging.Debug("State", "Fetch already in progress, dropping request for %s", view)
		return nil
	}
	defer s.batching.Store(false)

	err := s.runBatch(ctx, cluster, view, start, end)
	if current := s.SelectedCluster(); current != "" && current != cluster {
		logging.Info("State", "Selected cluster changed to %s during fetch, fetching again", current)
		err = s.runBatch(ctx, current, view, start, end)
	}
	return err
}

func (s *ClusterState) runBatch(ctx context.Context, cluster string, view View, start, end string) error {
	defStart, defEnd := DefaultWindow(s.now(), s.loc)
	if start == "" {
		start = defStart
	}
	if end == "" {
		end = defEnd
	}
	logging.Debug("State", "Fetching %s data for %s from %s to %s", view, cluster, start, end)

	types := view.Resources()
	errs := make([]error, len(types))

	s.begin()
	var g errgroup.Group
	for i, rt := range types {
		g.Go(func() error {
			errs[i] = s.fetchOne(ctx, cluster, rt, start, end, false)
			return errs[i]
		})
	}
	_ = g.Wait()

	if agg := utilerrors.NewAggregate(errs); agg != nil {
		logging.Error("State", agg, "Error fetching data for %s", cluster)
		s.end("Failed to fetch data: " + agg.Error())
		return agg
	}
	s.end("")
	return nil
}

func (s *ClusterState) fetchOne(ctx context.Context, cluster string, rt ResourceType, start, end string, force bool) error {
	start, end = trimZeroSeconds(start), trimZeroSeconds(end)

	if !force {
		if records, ok := s.cachedWindow(cluster, rt, start, end); ok {
			logging.Debug("State", "Serving %s for %s from cache", rt, cluster)
			s.applyResult(cluster, rt, records, nil)
			return nil
		}
	}

	params := remote.Params{
		remote.ParamCluster:   cluster,
		remote.ParamStartTime: start,
		remote.ParamEndTime:   end,
	}
	raw, err := s.client.Fetch(ctx, string(rt), params, force)

	var records []json.RawMessage
	if err == nil {
		records, err = NormalizeRecords(rt, raw)
	}
	if !s.applyResult(cluster, rt, records, err) {
		return nil
	}
	if err != nil {
		logging.Error("State", err, "Error fetching %s", rt)
		return err
	}

	s.storeWindow(cluster, rt, start, end, records)
	return nil
}

// applyResult stores the outcome of a fetch. Results for a cluster that is no longer
// selected are discarded and false is returned.
func (s *ClusterState) applyResult(cluster string, rt ResourceType, records []json.RawMessage, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != cluster {
		logging.Debug("State", "Discarding %s for %s, selection is now %s", rt, cluster, s.selected)
		return false
	}

	if err != nil {
		s.collections[rt] = []json.RawMessage{}
		s.lastErr = fmt.Sprintf("Failed to fetch %s data: %v", rt, err)
		s.events.publish(ChangeEvent{Kind: KindCollection, Resource: rt})
		s.publishFetchStateLocked()
		return true
	}

	s.collections[rt] = records
	s.events.publish(ChangeEvent{Kind: KindCollection, Resource: rt, Count: len(records)})
	return true
}

// cachedWindow returns records cached for exactly this cluster and window, provided the
// window lies completely in the past.
func (s *ClusterState) cachedWindow(cluster string, rt ResourceType, start, end string) ([]json.RawMessage, bool) {
	if s.cache == nil {
		return nil, false
	}
	endTime, err := remote.ParseTime(end, s.loc)
	if err != nil || !endTime.Before(s.now()) {
		return nil, false
	}
	normStart, normEnd, ok := s.windowKey(start, end)
	if !ok {
		return nil, false
	}

	var cached cachedCollection
	if err := s.cache.Get(string(rt), &cached); err != nil {
		return nil, false
	}
	if cached.Cluster != cluster || cached.Start != normStart || cached.End != normEnd {
		return nil, false
	}
	if cached.Records == nil {
		cached.Records = []json.RawMessage{}
	}
	return cached.Records, true
}

func (s *ClusterState) storeWindow(cluster string, rt ResourceType, start, end string, records []json.RawMessage) {
	if s.cache == nil {
		return
	}
	normStart, normEnd, ok := s.windowKey(start, end)
	if !ok {
		return
	}
	entry := cachedCollection{Cluster: cluster, Start: normStart, End: normEnd, Records: records}
	if err := s.cache.Set(string(rt), entry); err != nil {
		logging.Warn("State", "Could not cache %s: %v", rt, err)
	}
}

func (s *ClusterState) windowKey(start, end string) (string, string, bool) {
	ns, err := remote.NormalizeTime(start, s.loc)
	if err != nil {
		return "", "", false
	}
	ne, err := remote.NormalizeTime(end, s.loc)
	if err != nil {
		return "", "", false
	}
	return ns, ne, true
}

// Initialize fetches the cluster list when none is loaded, then fetches data once when a
// cluster and an active view are known.
func (s *ClusterState) Initialize(ctx context.Context) error {
	var errs []error
	if len(s.Clusters()) == 0 {
		selected, err := s.fetchClusters(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		if selected {
			// selecting the first cluster already fetched data
			return utilerrors.NewAggregate(errs)
		}
	}

	if s.SelectedCluster() != "" && s.views != nil && s.views.View() != "" {
		if err := s.FetchData(ctx, s.views.View(), "", ""); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

// ClearCache empties the cache realm, keeping the persisted selection.
func (s *ClusterState) ClearCache() error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.ClearAll(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	if sel := s.SelectedCluster(); sel != "" {
		if err := s.cache.SetRaw(KeySelectedCluster, sel); err != nil {
			return fmt.Errorf("restoring selected cluster: %w", err)
		}
	}
	logging.Info("State", "Cache cleared")
	return nil
}

// SelectedCluster returns the selected cluster id, or "".
func (s *ClusterState) SelectedCluster() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Clusters returns a copy of the cluster list.
func (s *ClusterState) Clusters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.clusters...)
}

// ClusterName returns the display name of id, falling back to id.
func (s *ClusterState) ClusterName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.clusterNames[id]; ok {
		return name
	}
	if name := s.names[id]; name != "" {
		return name
	}
	return id
}

// Collection returns a copy of one collection; it is never nil.
func (s *ClusterState) Collection(rt ResourceType) []json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]json.RawMessage{}, s.collections[rt]...)
}

// FetchState returns the loading flag and last error.
func (s *ClusterState) FetchState() FetchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchStateLocked()
}

// Snapshot copies the whole state.
func (s *ClusterState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SelectedCluster: s.selected,
		Clusters:        append([]string(nil), s.clusters...),
		ClusterNames:    make(map[string]string, len(s.clusterNames)),
		Collections:     make(map[ResourceType][]json.RawMessage, len(s.collections)),
		FetchState:      s.fetchStateLocked(),
	}
	for k, v := range s.clusterNames {
		snap.ClusterNames[k] = v
	}
	for rt, records := range s.collections {
		snap.Collections[rt] = append([]json.RawMessage{}, records...)
	}
	return snap
}

func (s *ClusterState) activeView() View {
	if s.views == nil {
		return ViewHome
	}
	if v := s.views.View(); v != "" {
		return v
	}
	return ViewHome
}

func (s *ClusterState) setClustersLocked(clusters []string) {
	s.clusters = append([]string(nil), clusters...)
	s.clusterNames = make(map[string]string, len(clusters))
	for _, c := range clusters {
		name := s.names[c]
		if name == "" {
			name = c
		}
		s.clusterNames[c] = name
	}
	s.events.publish(ChangeEvent{Kind: KindClusters, Count: len(clusters)})
}

func (s *ClusterState) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.lastErr = ""
	s.publishFetchStateLocked()
}

func (s *ClusterState) end(errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if errMsg != "" {
		s.lastErr = errMsg
	}
	s.publishFetchStateLocked()
}

func (s *ClusterState) fetchStateLocked() FetchState {
	return FetchState{Loading: s.inflight > 0, Error: s.lastErr}
}

func (s *ClusterState) publishFetchStateLocked() {
	s.events.publish(ChangeEvent{Kind: KindFetchState, State: s.fetchStateLocked()})
}

// DefaultWindow is the current hour of now in loc: HH:00:00 to HH:59:59, zone-less.
func DefaultWindow(now time.Time, loc *time.Location) (string, string) {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	date := t.Format("2006-01-02")
	return fmt.Sprintf("%sT%02d:00:00", date, t.Hour()), fmt.Sprintf("%sT%02d:59:59", date, t.Hour())
}

// trimZeroSeconds drops a ":00" seconds field from zone-less times, so "T10:00:00" is
// sent as "T10:00". Minute-precision values and values with an offset are left alone.
func trimZeroSeconds(s string) string {
	if s == "" || hasZone(s) {
		return s
	}
	i := strings.IndexAny(s, "Tt ")
	if i < 0 || strings.Count(s[i:], ":") != 2 {
		return s
	}
	return strings.TrimSuffix(s, ":00")
}

func hasZone(s string) bool {
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		return true
	}
	i := strings.IndexAny(s, "Tt ")
	if i < 0 {
		return false
	}
	return strings.ContainsAny(s[i:], "+-")
}
