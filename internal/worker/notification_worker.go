package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/dinewithus/internal/events"
	"github.com/spec-kit/dinewithus/internal/service"
)

const defaultQueueSize = 256

// DeliverFunc sends one event to its destination.
type DeliverFunc func(ctx context.Context, event events.Event) error

// NotificationWorker delivers queued webhook events on its own goroutine so publishers
// such as role changes never wait on the webhook endpoint.
type NotificationWorker struct {
	queue   chan events.Event
	deliver DeliverFunc
	logger  *zap.Logger

	mu      sync.Mutex
	closed  bool
	started bool
	done    chan struct{}
}

// NewNotificationWorker builds a worker that delivers nothing until Start.
func NewNotificationWorker(deliver DeliverFunc, size int, logger *zap.Logger) *NotificationWorker {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &NotificationWorker{
		queue:   make(chan events.Event, size),
		deliver: deliver,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Enqueue schedules an event without blocking. It reports false when the queue is full or
// the worker has stopped.
func (w *NotificationWorker) Enqueue(event events.Event) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- event:
		return true
	default:
		return false
	}
}

// Start launches delivery on a new goroutine. Calling it again, or after Stop, does
// nothing.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	go w.run(ctx)
}

// run delivers events until Stop is called, then drains what is left.
func (w *NotificationWorker) run(ctx context.Context) {
	defer close(w.done)
	for event := range w.queue {
		if err := w.deliver(ctx, event); err != nil {
			w.logger.Warn("webhook delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
}

// Stop closes the queue and waits for delivery to drain it. A worker that was never
// started returns immediately and its queued events are discarded.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
}

// StartNotificationWorker registers notification handlers and starts asynchronous
// webhook delivery. Callers Stop the returned worker on shutdown.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, logger *zap.Logger) *NotificationWorker {
	if notificationService == nil {
		return nil
	}
	w := NewNotificationWorker(notificationService.DeliverWebhook, defaultQueueSize, logger)
	notificationService.RegisterHandlers(w)
	w.Start(ctx)
	return w
}
