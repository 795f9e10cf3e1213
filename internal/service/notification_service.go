package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/dinewithus/internal/config"
	"github.com/spec-kit/dinewithus/internal/events"
)

// WebhookQueue takes webhook deliveries off the publishing goroutine. Enqueue reports
// false when the event was dropped.
type WebhookQueue interface {
	Enqueue(event events.Event) bool
}

// NotificationService turns domain events into log lines and webhook deliveries.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	logCodes   bool
	http       *http.Client
	queue      WebhookQueue
}

// NewNotificationService creates the service. logCodes prints development sign-in codes,
// which is the only delivery channel of the built-in identity provider.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, logCodes bool) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		logCodes:   logCodes,
		http:       &http.Client{Timeout: 3 * time.Second},
	}
}

// RegisterHandlers subscribes to events. With a nil queue webhooks are delivered inline.
func (n *NotificationService) RegisterHandlers(queue WebhookQueue) {
	if n.dispatcher == nil {
		return
	}
	n.queue = queue
	n.dispatcher.Subscribe(events.EventPrincipalCreated, n.handlePrincipalCreated)
	n.dispatcher.Subscribe(events.EventRoleChanged, n.handleRoleChanged)
	n.dispatcher.Subscribe(events.EventRoleSyncDegraded, n.handleRoleSyncDegraded)
	n.dispatcher.Subscribe(events.EventOneTimeCodeIssued, n.handleOneTimeCodeIssued)
}

func (n *NotificationService) handlePrincipalCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("PrincipalCreated", zap.String("email", event.Subject), zap.Any("payload", event.Payload))
	return n.webhook(ctx, event)
}

func (n *NotificationService) handleRoleChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("RoleChanged", zap.String("email", event.Subject), zap.Any("payload", event.Payload))
	return n.webhook(ctx, event)
}

func (n *NotificationService) handleRoleSyncDegraded(ctx context.Context, event events.Event) error {
	n.logger.Warn("RoleSyncDegraded", zap.String("email", event.Subject), zap.Any("payload", event.Payload))
	return n.webhook(ctx, event)
}

func (n *NotificationService) handleOneTimeCodeIssued(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OneTimeCodeIssuedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if !n.logCodes {
		n.logger.Info("OneTimeCodeIssued", zap.String("email", event.Subject))
		return nil
	}
	n.logger.Info("OneTimeCodeIssued",
		zap.String("email", event.Subject),
		zap.String("code", payload.Code),
		zap.Time("expires_at", payload.ExpiresAt))
	return nil
}

func (n *NotificationService) webhook(ctx context.Context, event events.Event) error {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	if n.queue == nil {
		return n.DeliverWebhook(ctx, event)
	}
	if !n.queue.Enqueue(event) {
		n.logger.Warn("webhook queue full; event dropped", zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID))
	}
	return nil
}

// DeliverWebhook posts the event as JSON.
func (n *NotificationService) DeliverWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", event.Type, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook %s: status %d", event.Type, resp.StatusCode)
	}
	n.logger.Debug("webhook delivered", zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID))
	return nil
}
