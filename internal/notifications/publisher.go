package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/zipshift-backend/pkg/broadcast"
	"github.com/angelmondragon/zipshift-backend/pkg/db/models"
	"github.com/angelmondragon/zipshift-backend/pkg/enums"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
)

// Recipient identifies the account a notification is addressed to.
type Recipient struct {
	AccountID uuid.UUID
	Role      enums.AccountRole
}

// Message is one notification to deliver.
type Message struct {
	Recipient Recipient
	Type      enums.NotificationType
	Text      string
	Payload   any
}

// Notifier delivers notifications best-effort. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// NoopNotifier drops every message.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Message) {}

// FanoutFunc forwards an encoded notification to an external transport,
// such as (*pubsub.Client).PublishNotification.
type FanoutFunc func(ctx context.Context, data []byte, attrs map[string]string) error

// PublisherParams groups the publisher's collaborators. Only Repo is required.
type PublisherParams struct {
	Repo        Repository
	Broadcaster broadcast.Broadcaster
	Fanout      FanoutFunc
	Logger      *logger.Logger
	Clock       func() time.Time
}

// Publisher persists notifications, then pushes them over the broadcaster and the optional
// fan-out transport.
type Publisher struct {
	repo        Repository
	broadcaster broadcast.Broadcaster
	fanout      FanoutFunc
	logg        *logger.Logger
	now         func() time.Time
}

// NewPublisher builds a notification publisher.
func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	p := &Publisher{
		repo:        params.Repo,
		broadcaster: params.Broadcaster,
		fanout:      params.Fanout,
		logg:        params.Logger,
		now:         params.Clock,
	}
	if p.broadcaster == nil {
		p.broadcaster = broadcast.Noop{}
	}
	if p.logg == nil {
		p.logg = logger.Nop()
	}
	if p.now == nil {
		p.now = func() time.Time { return time.Now().UTC() }
	}
	return p, nil
}

// Notify stores and pushes msg. Every failure is logged and swallowed.
func (p *Publisher) Notify(ctx context.Context, msg Message) {
	logCtx := p.logg.WithFields(ctx, map[string]any{
		"recipient_id":      msg.Recipient.AccountID.String(),
		"recipient_role":    string(msg.Recipient.Role),
		"notification_type": string(msg.Type),
	})

	if msg.Recipient.AccountID == uuid.Nil || !msg.Recipient.Role.IsValid() || !msg.Type.IsValid() {
		p.logg.Warn(logCtx, "notification.invalid_recipient")
		return
	}

	var payload json.RawMessage
	if msg.Payload != nil {
		encoded, err := json.Marshal(msg.Payload)
		if err != nil {
			p.logg.Error(logCtx, "notification.encode_failed", err)
			return
		}
		payload = encoded
	}

	notification := &models.Notification{
		ID:          uuid.New(),
		AccountID:   msg.Recipient.AccountID,
		AccountRole: msg.Recipient.Role,
		Type:        msg.Type,
		Message:     msg.Text,
		Payload:     payload,
		CreatedAt:   p.now(),
	}
	if err := p.repo.Create(ctx, notification); err != nil {
		p.logg.Error(logCtx, "notification.persist_failed", err)
		return
	}

	target := broadcast.Account(msg.Recipient.AccountID, msg.Recipient.Role)
	if err := p.broadcaster.Publish(ctx, broadcast.EventNotification, notification, target); err != nil {
		p.logg.Warn(p.logg.WithField(logCtx, "error", err.Error()), "notification.broadcast_failed")
	}

	if p.fanout != nil {
		data, err := json.Marshal(notification)
		if err != nil {
			p.logg.Error(logCtx, "notification.encode_failed", err)
			return
		}
		attrs := map[string]string{
			"notification_type": string(msg.Type),
			"account_id":        msg.Recipient.AccountID.String(),
			"account_role":      string(msg.Recipient.Role),
		}
		if err := p.fanout(ctx, data, attrs); err != nil {
			p.logg.Warn(p.logg.WithField(logCtx, "error", err.Error()), "notification.fanout_failed")
		}
	}
}
