// Package notify delivers committed domain events to users: always to the
// realtime hub, and through a background queue to Telegram when configured.
package notify

import (
	"context"
	"sync"
	"time"

	"travelmate/backend/internal/config"
	"travelmate/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// Publisher pushes an event to a user's live connections.
type Publisher interface {
	Publish(ctx context.Context, userID string, event models.RealtimeEvent) error
}

// Pusher hands an event to an offline channel such as Telegram.
type Pusher interface {
	Push(ctx context.Context, userID string, event models.RealtimeEvent) error
}

// DispatcherService fans events out in the background. Failures are logged
// and never reach the caller, whose change is already committed.
type DispatcherService struct {
	realtime Publisher
	push     Pusher
	timeout  time.Duration
	log      *logrus.Logger
	wg       sync.WaitGroup
}

// NewDispatcherService creates a dispatcher. push may be nil.
func NewDispatcherService(realtime Publisher, push Pusher, timeout time.Duration, log *logrus.Logger) *DispatcherService {
	if timeout <= 0 {
		timeout = config.NotifyDefaultTimeout
	}
	return &DispatcherService{realtime: realtime, push: push, timeout: timeout, log: log}
}

// Dispatch delivers event to userID without blocking.
func (d *DispatcherService) Dispatch(userID string, event models.RealtimeEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.deliver(ctx, userID, event)
	}()
}

// Wait blocks until every dispatched event has been handled.
func (d *DispatcherService) Wait() {
	d.wg.Wait()
}

func (d *DispatcherService) deliver(ctx context.Context, userID string, event models.RealtimeEvent) {
	fields := logrus.Fields{"user_id": userID, "event": event.Type}

	if d.realtime != nil {
		if err := d.realtime.Publish(ctx, userID, event); err != nil {
			d.log.WithFields(fields).WithError(err).Warn("notify: realtime publish failed")
		}
	}

	if d.push != nil && Pushable(event.Type) {
		if err := d.push.Push(ctx, userID, event); err != nil {
			d.log.WithFields(fields).WithError(err).Warn("notify: enqueue push failed")
		}
	}
}

// Pushable reports whether an event type is worth a push notification.
// Counter refreshes only make sense on a live connection.
func Pushable(t models.EventType) bool {
	switch t {
	case models.EventRequestReceived, models.EventRequestAccepted, models.EventMessageNew:
		return true
	default:
		return false
	}
}
