package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"travelmate/backend/internal/logger"
	"travelmate/backend/internal/models"
	"travelmate/backend/internal/notify"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]models.RealtimeEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, userID string, event models.RealtimeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]models.RealtimeEvent)
	}
	p.events[userID] = append(p.events[userID], event)
	return p.err
}

func (p *recordingPublisher) For(userID string) []models.RealtimeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[userID]
}

type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Push(ctx context.Context, userID string, event models.RealtimeEvent) error {
	return m.Called(ctx, userID, event).Error(0)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, userID string, event models.RealtimeEvent) error {
	return m.Called(ctx, userID, event).Error(0)
}

func TestDispatcher_PublishesAndPushesPushableEvents(t *testing.T) {
	pub := &recordingPublisher{}
	pusher := new(MockPusher)
	received := models.RealtimeEvent{Type: models.EventRequestReceived, RequestID: "r1", SenderID: "a"}
	pusher.On("Push", mock.Anything, "b", received).Return(nil).Once()

	d := notify.NewDispatcherService(pub, pusher, time.Second, logger.Discard())
	d.Dispatch("b", received)
	d.Dispatch("b", models.RealtimeEvent{Type: models.EventCounters, Counters: &models.Counters{PendingRequests: 1}})
	d.Wait()

	assert.Len(t, pub.For("b"), 2)
	pusher.AssertExpectations(t)
	pusher.AssertNumberOfCalls(t, "Push", 1)
}

func TestDispatcher_SwallowsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	pusher := new(MockPusher)
	pusher.On("Push", mock.Anything, "b", mock.Anything).Return(errors.New("queue down"))

	d := notify.NewDispatcherService(pub, pusher, time.Second, logger.Discard())
	assert.NotPanics(t, func() {
		d.Dispatch("b", models.RealtimeEvent{Type: models.EventMessageNew, RoomID: "room"})
		d.Wait()
	})
	assert.Len(t, pub.For("b"), 1)
	pusher.AssertExpectations(t)
}

func TestDispatcher_WithoutPusher(t *testing.T) {
	pub := &recordingPublisher{}
	d := notify.NewDispatcherService(pub, nil, 0, logger.Discard())
	d.Dispatch("a", models.RealtimeEvent{Type: models.EventRequestAccepted})
	d.Wait()
	assert.Len(t, pub.For("a"), 1)
}

func TestQueueNotifier_EnqueuesDelivery(t *testing.T) {
	enq := new(MockEnqueuer)
	event := models.RealtimeEvent{Type: models.EventRequestAccepted, RequestID: "r1", RoomID: "room"}

	enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != notify.TypeTelegramPush {
			return false
		}
		var d models.Delivery
		if err := json.Unmarshal(task.Payload(), &d); err != nil {
			return false
		}
		return d.UserID == "a" && d.Event.RoomID == "room"
	}), mock.Anything).Return(&asynq.TaskInfo{ID: "t1"}, nil).Once()

	q := notify.NewQueueNotifier(enq, "")
	require.NoError(t, q.Push(context.Background(), "a", event))
	enq.AssertExpectations(t)
}

func TestQueueNotifier_PropagatesEnqueueError(t *testing.T) {
	enq := new(MockEnqueuer)
	enq.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("no redis"))

	q := notify.NewQueueNotifier(enq, "push")
	err := q.Push(context.Background(), "a", models.RealtimeEvent{Type: models.EventMessageNew})
	assert.ErrorContains(t, err, "no redis")
}

func TestPushHandler_SendsDecodedDelivery(t *testing.T) {
	sender := new(MockSender)
	event := models.RealtimeEvent{Type: models.EventMessageNew, RoomID: "room", SenderID: "a"}
	sender.On("Send", mock.Anything, "b", event).Return(nil).Once()

	payload, err := json.Marshal(models.Delivery{UserID: "b", Event: event})
	require.NoError(t, err)

	h := notify.NewPushHandler(sender, logger.Discard())
	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(notify.TypeTelegramPush, payload)))
	sender.AssertExpectations(t)
}

func TestPushHandler_MalformedPayloadIsNotRetried(t *testing.T) {
	h := notify.NewPushHandler(new(MockSender), logger.Discard())

	err := h.ProcessTask(context.Background(), asynq.NewTask(notify.TypeTelegramPush, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(notify.TypeTelegramPush, []byte(`{"event":{"type":"message_new"}}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestPushHandler_SendErrorIsReturnedForRetry(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, "b", mock.Anything).Return(errors.New("telegram 502"))

	payload, _ := json.Marshal(models.Delivery{UserID: "b", Event: models.RealtimeEvent{Type: models.EventRequestReceived}})
	h := notify.NewPushHandler(sender, logger.Discard())

	err := h.ProcessTask(context.Background(), asynq.NewTask(notify.TypeTelegramPush, payload))
	assert.ErrorContains(t, err, "telegram 502")
}

func TestPushHandler_UndeliverableIsDropped(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, "b", mock.Anything).Return(fmt.Errorf("blocked: %w", notify.ErrUndeliverable))

	payload, _ := json.Marshal(models.Delivery{UserID: "b", Event: models.RealtimeEvent{Type: models.EventMessageNew}})
	h := notify.NewPushHandler(sender, logger.Discard())

	assert.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(notify.TypeTelegramPush, payload)))
}

func TestPushable(t *testing.T) {
	assert.True(t, notify.Pushable(models.EventMessageNew))
	assert.False(t, notify.Pushable(models.EventCounters))
}
