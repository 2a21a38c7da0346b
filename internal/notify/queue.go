package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"travelmate/backend/internal/models"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	TypeTelegramPush = "notify:telegram_push"

	DefaultQueue  = "notifications"
	pushMaxRetry  = 3
	pushTimeout   = 30 * time.Second
	pushRetention = time.Hour
)

// ErrUndeliverable marks a push that can never succeed, such as one to a user
// without a linked channel. Such tasks are dropped instead of retried.
var ErrUndeliverable = errors.New("notify: undeliverable")

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier is a Pusher that schedules a Telegram push on the asynq queue.
type QueueNotifier struct {
	client Enqueuer
	queue  string
}

func NewQueueNotifier(client Enqueuer, queue string) *QueueNotifier {
	if queue == "" {
		queue = DefaultQueue
	}
	return &QueueNotifier{client: client, queue: queue}
}

func (q *QueueNotifier) Push(ctx context.Context, userID string, event models.RealtimeEvent) error {
	payload, err := json.Marshal(models.Delivery{UserID: userID, Event: event})
	if err != nil {
		return fmt.Errorf("notify: encode push: %w", err)
	}

	task := asynq.NewTask(TypeTelegramPush, payload)
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queue),
		asynq.MaxRetry(pushMaxRetry),
		asynq.Timeout(pushTimeout),
		asynq.Retention(pushRetention),
	)
	if err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", TypeTelegramPush, err)
	}
	return nil
}

// Sender delivers one event to a user's external channel.
type Sender interface {
	Send(ctx context.Context, userID string, event models.RealtimeEvent) error
}

// PushHandler is the asynq worker side of QueueNotifier.
type PushHandler struct {
	sender Sender
	log    *logrus.Logger
}

func NewPushHandler(sender Sender, log *logrus.Logger) *PushHandler {
	return &PushHandler{sender: sender, log: log}
}

// ProcessTask implements asynq.Handler. Malformed payloads are not retried.
func (h *PushHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var d models.Delivery
	if err := json.Unmarshal(t.Payload(), &d); err != nil {
		return fmt.Errorf("notify: decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if d.UserID == "" {
		return fmt.Errorf("notify: push without recipient: %w", asynq.SkipRetry)
	}

	err := h.sender.Send(ctx, d.UserID, d.Event)
	if errors.Is(err, ErrUndeliverable) {
		h.log.WithError(err).WithField("user_id", d.UserID).Warn("notify: push dropped")
		return nil
	}
	return err
}

// NewServeMux routes push tasks to h.
func NewServeMux(h *PushHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeTelegramPush, h)
	return mux
}

// NewWorker builds the asynq server consuming the push queue.
func NewWorker(opt asynq.RedisConnOpt, queue string, log *logrus.Logger) *asynq.Server {
	if queue == "" {
		queue = DefaultQueue
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{queue: 1},
		Logger:      log,
		LogLevel:    asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.WithError(err).WithField("task", task.Type()).Error("notify: task failed")
		}),
	})
}
