package app

import (
	"fmt"

	"cluster-inspection/internal/cache"
	"cluster-inspection/internal/refresh"
	"cluster-inspection/internal/remote"
	"cluster-inspection/internal/state"
	"cluster-inspection/internal/storage"
	"cluster-inspection/pkg/logging"
)

// Services holds all the initialized services
type Services struct {
	Storage storage.Storage
	Cache   *cache.Cache
	Remote  *remote.Client
	State   *state.ClusterState
	Views   *state.ActiveView
	Refresh *refresh.Controller
}

// InitializeServices builds the storage realm, the cache over it, the remote client, the
// cluster state and the refresh controller, in that order.
func InitializeServices(cfg *Config) (*Services, error) {
	ic := cfg.Inspection
	if ic == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	loc, err := ic.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", ic.Timezone, err)
	}

	store, err := storage.New(ic.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", ic.Storage.Backend, err)
	}
	logging.Debug("Bootstrap", "Using %s storage (namespace %s)", ic.Storage.Backend, ic.Storage.Namespace)

	c := cache.New(store,
		cache.WithMaxBytes(ic.Cache.MaxBytes),
		cache.WithTTL(ic.Cache.TTL),
	)

	client := remote.New(ic.API.BaseURL,
		remote.WithTimeout(ic.API.Timeout),
		remote.WithRetryMax(ic.API.RetryMax),
		remote.WithLocation(loc),
	)

	views := state.NewActiveView(state.ParseView(ic.DefaultView))
	s := state.New(client,
		state.WithCache(c),
		state.WithViewProvider(views),
		state.WithClusterNames(ic.ClusterNames),
		state.WithLocation(loc),
	)

	ctrl := refresh.NewController(refresh.StateFetchers(s), refresh.WithLocation(loc))

	return &Services{
		Storage: store,
		Cache:   c,
		Remote:  client,
		State:   s,
		Views:   views,
		Refresh: ctrl,
	}, nil
}

// Close stops state subscribers and closes the storage realm.
func (s *Services) Close() error {
	s.State.Close()
	if err := s.Storage.Close(); err != nil {
		return fmt.Errorf("closing storage: %w", err)
	}
	return nil
}
