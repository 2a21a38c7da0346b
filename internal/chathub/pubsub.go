package chathub

import (
	"context"
	"encoding/json"

	"travelmate/backend/internal/models"
)

// StartPubSubListener subscribes to the delivery channel and feeds every
// delivery published by any instance into DeliverCh.
func (m *ManagerService) StartPubSubListener(ctx context.Context) {
	pubsub := m.Redis.Subscribe(ctx, m.Channel)
	// Wait for the subscription so nothing published after Run starts is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		m.log.WithError(err).Error("chathub: subscribe failed")
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var d models.Delivery
				if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
					m.log.WithError(err).Warn("chathub: malformed delivery on pub/sub")
					continue
				}
				select {
				case m.DeliverCh <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}
