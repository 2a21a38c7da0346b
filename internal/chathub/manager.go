// Package chathub routes realtime events to users' live connections. With
// Redis configured, events are fanned out through pub/sub so every instance
// delivers to the connections it holds.
package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"travelmate/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultChannel = "realtime:deliveries"

var errStopped = errors.New("chathub: manager stopped")

type ManagerService struct {
	mu      sync.RWMutex
	clients map[string]map[Client]struct{}

	RegisterCh   chan Client
	UnregisterCh chan Client
	DeliverCh    chan models.Delivery

	Redis   *redis.Client
	Channel string

	log  *logrus.Logger
	done chan struct{}
}

// NewManagerService creates a hub. rdb may be nil for a single instance.
func NewManagerService(rdb *redis.Client, log *logrus.Logger) *ManagerService {
	return &ManagerService{
		clients:      make(map[string]map[Client]struct{}),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		DeliverCh:    make(chan models.Delivery, 256),
		Redis:        rdb,
		Channel:      DefaultChannel,
		log:          log,
		done:         make(chan struct{}),
	}
}

// Run processes registrations and deliveries until ctx is cancelled.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)

	if m.Redis != nil {
		m.StartPubSubListener(ctx)
	}
	m.log.Info("chathub: manager started")

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			m.log.Info("chathub: manager stopped")
			return

		case client := <-m.RegisterCh:
			m.register(client)

		case client := <-m.UnregisterCh:
			m.unregister(client)

		case d := <-m.DeliverCh:
			m.deliver(d)
		}
	}
}

// Done is closed once Run has returned.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

// Publish sends an event to every live connection of userID, on whichever
// instance holds it.
func (m *ManagerService) Publish(ctx context.Context, userID string, event models.RealtimeEvent) error {
	d := models.Delivery{UserID: userID, Event: event}
	if m.Redis == nil {
		select {
		case <-m.done:
			return errStopped
		default:
		}
		select {
		case m.DeliverCh <- d:
			return nil
		case <-m.done:
			return errStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return m.Redis.Publish(ctx, m.Channel, payload).Err()
}

// IsOnline reports whether userID has a live connection on this instance.
func (m *ManagerService) IsOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID]) > 0
}

// ConnectionCount returns the number of live connections of userID.
func (m *ManagerService) ConnectionCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID])
}

func (m *ManagerService) register(client Client) {
	m.mu.Lock()
	set, ok := m.clients[client.GetUserID()]
	if !ok {
		set = make(map[Client]struct{})
		m.clients[client.GetUserID()] = set
	}
	set[client] = struct{}{}
	m.mu.Unlock()

	m.log.WithField("user_id", client.GetUserID()).Debug("chathub: client registered")
}

func (m *ManagerService) unregister(client Client) {
	if m.remove(client) {
		client.Close()
		m.log.WithField("user_id", client.GetUserID()).Debug("chathub: client unregistered")
	}
}

// remove reports whether the client was still registered.
func (m *ManagerService) remove(client Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.clients[client.GetUserID()]
	if !ok {
		return false
	}
	if _, ok := set[client]; !ok {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(m.clients, client.GetUserID())
	}
	return true
}

func (m *ManagerService) deliver(d models.Delivery) {
	m.mu.RLock()
	targets := make([]Client, 0, len(m.clients[d.UserID]))
	for c := range m.clients[d.UserID] {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.GetSendChannel() <- d.Event:
		default:
			// Slow consumer: drop it, it reconnects and reconciles.
			m.log.WithField("user_id", d.UserID).Warn("chathub: send buffer full, dropping client")
			m.unregister(client)
		}
	}
}

func (m *ManagerService) shutdown() {
	m.mu.Lock()
	all := m.clients
	m.clients = make(map[string]map[Client]struct{})
	m.mu.Unlock()

	for _, set := range all {
		for client := range set {
			client.Close()
		}
	}
}
