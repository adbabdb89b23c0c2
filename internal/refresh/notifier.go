package refresh

import (
	"sync/atomic"
	"time"

	"cluster-inspection/pkg/logging"
)

// NotificationKind tells success from failure.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Notification reports the outcome of one RefreshAll.
type Notification struct {
	Kind    NotificationKind
	Forced  bool
	Message string
	Time    time.Time
}

// Notifier receives refresh outcomes. Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// ChannelNotifier delivers notifications on a buffered channel and drops them when the
// buffer is full.
type ChannelNotifier struct {
	ch      chan Notification
	dropped atomic.Int64
}

// NewChannelNotifier creates a notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelNotifier{ch: make(chan Notification, buffer)}
}

func (n *ChannelNotifier) Notify(note Notification) {
	select {
	case n.ch <- note:
	default:
		n.dropped.Add(1)
	}
}

// C returns the notification channel.
func (n *ChannelNotifier) C() <-chan Notification {
	return n.ch
}

// Dropped returns how many notifications were discarded.
func (n *ChannelNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// LogNotifier writes notifications to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(note Notification) {
	if note.Kind == NotifyError {
		logging.Error("Refresh", nil, "%s", note.Message)
		return
	}
	logging.Info("Refresh", "%s", note.Message)
}
