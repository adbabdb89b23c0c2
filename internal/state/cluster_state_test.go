package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cluster-inspection/internal/cache"
	"cluster-inspection/internal/remote"
	"cluster-inspection/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	windowStart = "2024-01-01T10:00:00Z"
	windowEnd   = "2024-01-01T10:59:59Z"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) FetchClusters(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	clusters, _ := args.Get(0).([]string)
	return clusters, args.Error(1)
}

func (m *mockClient) Fetch(ctx context.Context, endpoint string, params remote.Params, force bool) (json.RawMessage, error) {
	args := m.Called(ctx, endpoint, params, force)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func forCluster(cluster string) interface{} {
	return mock.MatchedBy(func(p remote.Params) bool { return p[remote.ParamCluster] == cluster })
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	return cache.New(storage.NewMemoryStorage(0))
}

// newSelected builds a state whose selection "c1" is restored from the cache.
func newSelected(t *testing.T, m *mockClient, opts ...Option) (*ClusterState, *cache.Cache) {
	t.Helper()
	c := newCache(t)
	require.NoError(t, c.SetRaw(KeySelectedCluster, "c1"))
	s := New(m, append([]Option{WithCache(c)}, opts...)...)
	require.Equal(t, "c1", s.SelectedCluster())
	return s, c
}

func collectionJSON(t *testing.T, s *ClusterState, rt ResourceType) string {
	t.Helper()
	data, err := json.Marshal(s.Collection(rt))
	require.NoError(t, err)
	return string(data)
}

func TestNoClusterSelected_IsSilentNoOp(t *testing.T) {
	m := &mockClient{}
	s := New(m)
	before := s.Snapshot()

	require.NoError(t, s.FetchData(context.Background(), ViewHome, "", ""))
	require.NoError(t, s.FetchResource(context.Background(), ResourceNodes, windowStart, windowEnd))
	require.NoError(t, s.Refresh(context.Background(), ResourcePods, windowStart, windowEnd, true))

	m.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, before, s.Snapshot())
}

func TestFetchData_SequenceResponse(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	params := remote.Params{remote.ParamCluster: "c1", remote.ParamStartTime: windowStart, remote.ParamEndTime: windowEnd}
	m.On("Fetch", mock.Anything, "nodes", params, false).Return(json.RawMessage(`[{"name":"n1"}]`), nil).Once()

	require.NoError(t, s.FetchData(context.Background(), ViewNodes, windowStart, windowEnd))

	assert.JSONEq(t, `[{"name":"n1"}]`, collectionJSON(t, s, ResourceNodes))
	assert.Equal(t, FetchState{Loading: false, Error: ""}, s.FetchState())
	m.AssertExpectations(t)
}

func TestFetchData_MappingResponse(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), false).Return(json.RawMessage(`{"a":{"name":"n1"}}`), nil).Once()

	require.NoError(t, s.FetchData(context.Background(), ViewNodes, windowStart, windowEnd))

	assert.JSONEq(t, `[{"name":"n1"}]`, collectionJSON(t, s, ResourceNodes))
	assert.False(t, s.FetchState().Loading)
	assert.Empty(t, s.FetchState().Error)
}

func TestFetchData_NetworkError(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	netErr := &remote.FetchError{Endpoint: "nodes", Err: errors.New("connection refused")}
	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), false).Return(json.RawMessage(`[{"name":"old"}]`), nil).Once()
	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), false).Return(nil, netErr).Once()

	require.NoError(t, s.FetchData(context.Background(), ViewNodes, "2024-01-01T10:00:00", "2024-01-01T10:59:59"))
	require.Len(t, s.Collection(ResourceNodes), 1)

	// a different window so the cached result is not reused
	err := s.FetchData(context.Background(), ViewNodes, "2024-01-01T11:00:00", "2024-01-01T11:59:59")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrNetwork)

	assert.NotNil(t, s.Collection(ResourceNodes))
	assert.Empty(t, s.Collection(ResourceNodes))
	st := s.FetchState()
	assert.False(t, st.Loading)
	assert.NotEmpty(t, st.Error)
	assert.Contains(t, st.Error, "Failed to fetch data")
}

func TestFetchResource_ErrorMessageNamesType(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	m.On("Fetch", mock.Anything, "pods", forCluster("c1"), false).Return(nil, &remote.FetchError{Endpoint: "pods", StatusCode: 502, Err: errors.New("Bad Gateway")})

	err := s.FetchResource(context.Background(), ResourcePods, windowStart, windowEnd)
	require.Error(t, err)
	assert.True(t, len(s.FetchState().Error) > 0)
	assert.Contains(t, s.FetchState().Error, "Failed to fetch pods data: ")
	assert.False(t, s.FetchState().Loading)
}

func TestFetchResource_InvalidShape(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	m.On("Fetch", mock.Anything, "events", forCluster("c1"), false).Return(json.RawMessage(`"not records"`), nil)

	err := s.FetchResource(context.Background(), ResourceEvents, windowStart, windowEnd)
	assert.ErrorIs(t, err, ErrInvalidShape)
	assert.Empty(t, s.Collection(ResourceEvents))
	assert.Contains(t, s.FetchState().Error, "invalid events data received")
}

func TestFetchResource_TrimsZeroSeconds(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	want := remote.Params{remote.ParamCluster: "c1", remote.ParamStartTime: "2024-01-01T10:00", remote.ParamEndTime: "2024-01-01T10:59:59"}
	m.On("Fetch", mock.Anything, "nodes", want, false).Return(json.RawMessage(`[]`), nil).Once()

	require.NoError(t, s.FetchResource(context.Background(), ResourceNodes, "2024-01-01T10:00:00", "2024-01-01T10:59:59"))
	m.AssertExpectations(t)
}

func TestFetchData_HomeFetchesAllAndAggregates(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), false).Return(json.RawMessage(`[{"n":1}]`), nil)
	m.On("Fetch", mock.Anything, "pods", forCluster("c1"), false).Return(nil, &remote.FetchError{Endpoint: "pods", Err: errors.New("timeout")})
	m.On("Fetch", mock.Anything, "events", forCluster("c1"), false).Return(nil, &remote.FetchError{Endpoint: "events", Err: errors.New("reset")})

	err := s.FetchData(context.Background(), ParseView("unknown-view"), windowStart, windowEnd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, err.Error(), "reset")

	assert.Len(t, s.Collection(ResourceNodes), 1, "a failing fetch does not block the others")
	assert.Empty(t, s.Collection(ResourcePods))
	assert.Empty(t, s.Collection(ResourceEvents))
	m.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestFetchData_LoadingUntilAllSettle(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	release := make(chan struct{})
	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), false).
		Run(func(mock.Arguments) { <-release }).
		Return(json.RawMessage(`[]`), nil)
	m.On("Fetch", mock.Anything, "pods", forCluster("c1"), false).Return(json.RawMessage(`[{"p":1}]`), nil)
	m.On("Fetch", mock.Anything, "events", forCluster("c1"), false).Return(json.RawMessage(`[{"e":1}]`), nil)

	done := make(chan error, 1)
	go func() { done <- s.FetchData(context.Background(), ViewHome, windowStart, windowEnd) }()

	assert.Eventually(t, func() bool {
		return len(s.Collection(ResourcePods)) == 1 && len(s.Collection(ResourceEvents)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.FetchState().Loading, "still loading while nodes is in flight")

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.FetchState().Loading)
}

func TestFetchData_ReentryDropped(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	started := make(chan struct{})
	release := make(chan struct{})
	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), false).
		Run(func(mock.Arguments) { close(started); <-release }).
		Return(json.RawMessage(`[]`), nil).Once()

	done := make(chan error, 1)
	go func() { done <- s.FetchData(context.Background(), ViewNodes, windowStart, windowEnd) }()
	<-started

	require.NoError(t, s.FetchData(context.Background(), ViewNodes, windowStart, windowEnd))
	close(release)
	require.NoError(t, <-done)

	m.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestFetchData_ClusterSwitchDuringBatch(t *testing.T) {
	m := &mockClient{}
	views := NewActiveView(ViewNodes)
	s, c := newSelected(t, m, WithViewProvider(views))

	started := make(chan struct{})
	release := make(chan struct{})
	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), false).
		Run(func(mock.Arguments) { close(started); <-release }).
		Return(json.RawMessage(`[{"name":"from-c1"}]`), nil).Once()
	m.On("Fetch", mock.Anything, "nodes", forCluster("c2"), false).
		Return(json.RawMessage(`[{"name":"from-c2"}]`), nil).Once()

	done := make(chan error, 1)
	go func() { done <- s.FetchData(context.Background(), ViewNodes, windowStart, windowEnd) }()
	<-started

	// dropped while the c1 batch runs; the follow-up batch picks it up
	require.NoError(t, s.SetSelectedCluster(context.Background(), "c2"))
	close(release)
	require.NoError(t, <-done)

	assert.JSONEq(t, `[{"name":"from-c2"}]`, collectionJSON(t, s, ResourceNodes))
	assert.False(t, s.FetchState().Loading)
	m.AssertExpectations(t)

	persisted, ok := c.GetRaw(KeySelectedCluster)
	assert.True(t, ok)
	assert.Equal(t, "c2", persisted)
}

func TestFetchResource_ElapsedWindowServedFromCache(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), false).Return(json.RawMessage(`[{"name":"n1"}]`), nil).Once()
	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), true).Return(json.RawMessage(`[{"name":"n2"}]`), nil).Once()

	require.NoError(t, s.FetchResource(context.Background(), ResourceNodes, windowStart, windowEnd))
	require.NoError(t, s.FetchResource(context.Background(), ResourceNodes, windowStart, windowEnd))
	m.AssertNumberOfCalls(t, "Fetch", 1)
	assert.JSONEq(t, `[{"name":"n1"}]`, collectionJSON(t, s, ResourceNodes))

	// forced refresh always reaches the server
	require.NoError(t, s.Refresh(context.Background(), ResourceNodes, windowStart, windowEnd, true))
	m.AssertNumberOfCalls(t, "Fetch", 2)
	assert.JSONEq(t, `[{"name":"n2"}]`, collectionJSON(t, s, ResourceNodes))
}

func TestFetchResource_CurrentWindowNotServedFromCache(t *testing.T) {
	m := &mockClient{}
	now := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	s, _ := newSelected(t, m, WithClock(func() time.Time { return now }), WithLocation(time.UTC))

	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), false).Return(json.RawMessage(`[]`), nil).Twice()

	require.NoError(t, s.FetchResource(context.Background(), ResourceNodes, windowStart, windowEnd))
	require.NoError(t, s.FetchResource(context.Background(), ResourceNodes, windowStart, windowEnd))
	m.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestFetchClusters_SelectsFirstAndFetches(t *testing.T) {
	m := &mockClient{}
	c := newCache(t)
	s := New(m, WithCache(c), WithClusterNames(map[string]string{"c1": "Production"}))
	sub := s.Subscribe(KindSelection)
	defer s.Unsubscribe(sub)

	m.On("FetchClusters", mock.Anything).Return([]string{"c1", "c2"}, nil).Once()
	m.On("Fetch", mock.Anything, mock.Anything, forCluster("c1"), false).Return(json.RawMessage(`[]`), nil)

	require.NoError(t, s.FetchClusters(context.Background()))

	assert.Equal(t, []string{"c1", "c2"}, s.Clusters())
	assert.Equal(t, "c1", s.SelectedCluster())
	assert.Equal(t, "Production", s.ClusterName("c1"))
	assert.Equal(t, "c2", s.ClusterName("c2"))
	m.AssertNumberOfCalls(t, "Fetch", 3)

	select {
	case ev := <-sub.Channel:
		assert.Equal(t, ChangeEvent{Kind: KindSelection, Old: "", New: "c1"}, ev)
	default:
		t.Fatal("expected a selection event")
	}

	persisted, ok := c.GetRaw(KeySelectedCluster)
	require.True(t, ok)
	assert.Equal(t, "c1", persisted)

	var cached []string
	require.NoError(t, c.Get(KeyClusters, &cached))
	assert.Equal(t, []string{"c1", "c2"}, cached)
}

func TestFetchClusters_KeepsExistingSelection(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	m.On("FetchClusters", mock.Anything).Return([]string{"c0", "c1"}, nil).Once()

	require.NoError(t, s.FetchClusters(context.Background()))
	assert.Equal(t, "c1", s.SelectedCluster())
	m.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchClusters_FallsBackToCache(t *testing.T) {
	m := &mockClient{}
	c := newCache(t)
	require.NoError(t, c.Set(KeyClusters, []string{"cached-1"}))
	s := New(m, WithCache(c))

	m.On("FetchClusters", mock.Anything).Return(nil, &remote.FetchError{Endpoint: "clusters", Err: errors.New("down")})

	err := s.FetchClusters(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrNetwork)
	assert.Equal(t, []string{"cached-1"}, s.Clusters())
	assert.Equal(t, "Failed to fetch clusters", s.FetchState().Error)
}

func TestInitialize_FetchesOnce(t *testing.T) {
	m := &mockClient{}
	s := New(m, WithCache(newCache(t)), WithViewProvider(NewActiveView(ViewHome)))

	m.On("FetchClusters", mock.Anything).Return([]string{"c1"}, nil).Once()
	m.On("Fetch", mock.Anything, mock.Anything, forCluster("c1"), false).Return(json.RawMessage(`[]`), nil)

	require.NoError(t, s.Initialize(context.Background()))
	m.AssertNumberOfCalls(t, "FetchClusters", 1)
	m.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestInitialize_RestoredSelection(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m, WithViewProvider(NewActiveView(ViewEvents)))

	m.On("FetchClusters", mock.Anything).Return([]string{"c0", "c1"}, nil).Once()
	m.On("Fetch", mock.Anything, "events", forCluster("c1"), false).Return(json.RawMessage(`[]`), nil).Once()

	require.NoError(t, s.Initialize(context.Background()))
	m.AssertExpectations(t)
}

func TestInitialize_NoViewNoFetch(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)

	m.On("FetchClusters", mock.Anything).Return([]string{"c1"}, nil).Once()

	require.NoError(t, s.Initialize(context.Background()))
	m.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClearCache_KeepsSelection(t *testing.T) {
	m := &mockClient{}
	s, c := newSelected(t, m)
	require.NoError(t, c.Set(KeyClusters, []string{"c1"}))

	require.NoError(t, s.ClearCache())

	assert.ErrorIs(t, c.Get(KeyClusters, nil), cache.ErrCacheMiss)
	sel, ok := c.GetRaw(KeySelectedCluster)
	assert.True(t, ok)
	assert.Equal(t, "c1", sel)
}

func TestSubscribe_FetchStateEvents(t *testing.T) {
	m := &mockClient{}
	s, _ := newSelected(t, m)
	sub := s.Subscribe(KindFetchState)
	defer s.Unsubscribe(sub)

	m.On("Fetch", mock.Anything, "nodes", forCluster("c1"), false).Return(json.RawMessage(`[]`), nil)
	require.NoError(t, s.FetchResource(context.Background(), ResourceNodes, windowStart, windowEnd))

	first := <-sub.Channel
	second := <-sub.Channel
	assert.True(t, first.State.Loading)
	assert.False(t, second.State.Loading)
}

func TestDefaultWindow(t *testing.T) {
	now := time.Date(2024, 3, 5, 23, 41, 12, 0, time.UTC)
	start, end := DefaultWindow(now, time.FixedZone("UTC+2", 2*3600))
	assert.Equal(t, "2024-03-06T01:00:00", start)
	assert.Equal(t, "2024-03-06T01:59:59", end)
}

func TestTrimZeroSeconds(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-01-01T10:00:00", "2024-01-01T10:00"},
		{"2024-01-01T10:59:59", "2024-01-01T10:59:59"},
		{"2024-01-01T10:00", "2024-01-01T10:00"},
		{"2024-01-01T10:00:00Z", "2024-01-01T10:00:00Z"},
		{"2024-01-01T10:00:00+02:00", "2024-01-01T10:00:00+02:00"},
		{"2024-01-01 10:30:00", "2024-01-01 10:30"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, trimZeroSeconds(tt.in), tt.in)
	}
}
