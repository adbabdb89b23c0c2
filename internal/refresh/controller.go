package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cluster-inspection/internal/remote"
	"cluster-inspection/internal/state"
	"cluster-inspection/pkg/logging"

	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

const dateLayout = "2006-01-02"

// ErrRefreshInProgress is returned by RefreshAll when another refresh is running. The
// dropped call performs no fetches.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// FetchFunc fetches one collection for the window [start, end].
type FetchFunc func(ctx context.Context, start, end string, force bool) error

// Fetcher is a named FetchFunc; the name prefixes its errors.
type Fetcher struct {
	Name  string
	Fetch FetchFunc
}

// Refresher is implemented by *state.ClusterState.
type Refresher interface {
	Refresh(ctx context.Context, rt state.ResourceType, start, end string, force bool) error
}

// StateFetchers binds one Fetcher per resource type to r.
func StateFetchers(r Refresher) []Fetcher {
	fetchers := make([]Fetcher, 0, len(state.ResourceTypes))
	for _, rt := range state.ResourceTypes {
		fetchers = append(fetchers, Fetcher{
			Name: string(rt),
			Fetch: func(ctx context.Context, start, end string, force bool) error {
				return r.Refresh(ctx, rt, start, end, force)
			},
		})
	}
	return fetchers
}

// TimeWindow is one hour of telemetry, both ends inclusive.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Controller holds the selected date and hour and refreshes every collection for that
// window. At most one refresh runs at a time.
type Controller struct {
	fetchers []Fetcher
	notifier Notifier
	loc      *time.Location

	mu      sync.RWMutex
	date    time.Time // midnight of the selected date in loc
	hour    int
	lastErr string

	inProgress atomic.Bool
}

// Option configures a Controller.
type Option func(*controllerOptions)

type controllerOptions struct {
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

// WithNotifier sets where refresh outcomes are reported. The default logs them.
func WithNotifier(n Notifier) Option {
	return func(o *controllerOptions) { o.notifier = n }
}

// WithLocation sets the zone the date and hour are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(o *controllerOptions) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithClock replaces time.Now for the initial date and hour.
func WithClock(now func() time.Time) Option {
	return func(o *controllerOptions) { o.now = now }
}

// NewController creates a controller starting at the current date and hour.
func NewController(fetchers []Fetcher, opts ...Option) *Controller {
	o := controllerOptions{notifier: LogNotifier{}, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	now := o.now().In(o.loc)
	return &Controller{
		fetchers: fetchers,
		notifier: o.notifier,
		loc:      o.loc,
		date:     time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, o.loc),
		hour:     now.Hour(),
	}
}

// Date returns the selected date as YYYY-MM-DD.
func (c *Controller) Date() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.date.Format(dateLayout)
}

// Hour returns the selected hour.
func (c *Controller) Hour() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hour
}

// SetDate selects a date in YYYY-MM-DD form.
func (c *Controller) SetDate(date string) error {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), c.loc)
	if err != nil {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", date, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.date = d
	return nil
}

// SetHour selects an hour between 0 and 23.
func (c *Controller) SetHour(hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("invalid hour %d, want 0-23", hour)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hour = hour
	return nil
}

// Window returns the selected hour: HH:00:00 to HH:59:59.
func (c *Controller) Window() TimeWindow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	y, m, d := c.date.Date()
	return TimeWindow{
		Start: time.Date(y, m, d, c.hour, 0, 0, 0, c.loc),
		End:   time.Date(y, m, d, c.hour, 59, 59, 0, c.loc),
	}
}

// Err returns the message of the last failed refresh, or "".
func (c *Controller) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// IsRefreshing reports whether a refresh is in flight.
func (c *Controller) IsRefreshing() bool {
	return c.inProgress.Load()
}

// RefreshAll runs every fetcher concurrently for the selected window. A failing fetcher
// does not stop the others; their errors are combined as "refresh failed: <type>: <cause>".
func (c *Controller) RefreshAll(ctx context.Context, force bool) error {
	if !c.inProgress.CompareAndSwap(false, true) {
		logging.Debug("Refresh", "Refresh already in progress, dropping request")
		return ErrRefreshInProgress
	}
	defer c.inProgress.Store(false)

	c.setErr("")
	w := c.Window()
	start, end := remote.FormatTime(w.Start), remote.FormatTime(w.End)
	logging.Debug("Refresh", "Refreshing %s to %s (force=%t)", start, end, force)

	errs := make([]error, len(c.fetchers))
	var g errgroup.Group
	for i, f := range c.fetchers {
		g.Go(func() error {
			if err := f.Fetch(ctx, start, end, force); err != nil {
				errs[i] = fmt.Errorf("%s: %w", f.Name, err)
			}
			return errs[i]
		})
	}
	_ = g.Wait()

	if agg := utilerrors.NewAggregate(errs); agg != nil {
		msg := "refresh failed: " + agg.Error()
		c.setErr(msg)
		logging.Error("Refresh", agg, "Error refreshing data")
		c.notifier.Notify(Notification{Kind: NotifyError, Forced: force, Message: msg, Time: time.Now()})
		return fmt.Errorf("refresh failed: %w", agg)
	}

	msg := "All data refreshed"
	if force {
		msg = "All data force refreshed"
	}
	c.notifier.Notify(Notification{Kind: NotifySuccess, Forced: force, Message: msg, Time: time.Now()})
	return nil
}

// OnDateTimeChange refreshes after the date or hour changed.
func (c *Controller) OnDateTimeChange(ctx context.Context) error {
	return c.RefreshAll(ctx, false)
}

// ForceRefresh refreshes through the authoritative report routes.
func (c *Controller) ForceRefresh(ctx context.Context) error {
	return c.RefreshAll(ctx, true)
}

func (c *Controller) setErr(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = msg
}

// ParseHour accepts "9", "09" or "09:00".
func ParseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		if s[i+1:] != "00" {
			return 0, fmt.Errorf("invalid hour %q, minutes must be 00", s)
		}
		s = s[:i]
	}
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour %q, want 0-23", s)
	}
	return h, nil
}
