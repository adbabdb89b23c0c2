package refresh

import (
	"context"
	"errors"

	"cluster-inspection/internal/state"
	"cluster-inspection/pkg/logging"
)

// SelectionSource publishes selection changes. *state.ClusterState implements it.
type SelectionSource interface {
	Subscribe(kinds ...state.ChangeKind) *state.Subscription
	Unsubscribe(sub *state.Subscription)
}

// RefreshFunc is called when the selected cluster changes, e.g. Controller.RefreshAll.
type RefreshFunc func(ctx context.Context, force bool) error

// ClusterChangeReactor refreshes whenever the selected cluster changes to a different,
// non-empty cluster. The selection at construction time is not a change.
type ClusterChangeReactor struct {
	source  SelectionSource
	refresh RefreshFunc
	sub     *state.Subscription
}

// NewClusterChangeReactor subscribes to source immediately; changes from here on are
// handled once Run is called.
func NewClusterChangeReactor(source SelectionSource, refresh RefreshFunc) *ClusterChangeReactor {
	return &ClusterChangeReactor{
		source:  source,
		refresh: refresh,
		sub:     source.Subscribe(state.KindSelection),
	}
}

// Run handles selection changes until ctx is done or the source closes the subscription.
func (r *ClusterChangeReactor) Run(ctx context.Context) error {
	defer r.source.Unsubscribe(r.sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-r.sub.Channel:
			if !ok {
				return nil
			}
			if ev.New == "" || ev.New == ev.Old {
				continue
			}
			logging.Info("Reactor", "Cluster switched to %s", ev.New)
			if err := r.refresh(ctx, false); err != nil && !errors.Is(err, ErrRefreshInProgress) {
				logging.Error("Reactor", err, "Refresh after cluster switch failed")
			}
		}
	}
}
