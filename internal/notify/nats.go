package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/nao1215/surveilscope/internal/model"
)

// Message kinds set in the x-surveilscope-kind header.
const (
	KindNotification = "notification"
	KindAlert        = "alert"
)

// msgPublisher is the part of *nats.Conn the publisher needs.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes notifications and raw alerts as JSON on a subject.
type NATSPublisher struct {
	conn    msgPublisher
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher publishes on subject through conn.
func NewNATSPublisher(conn *nats.Conn, subject string, logger *slog.Logger) *NATSPublisher {
	return newNATSPublisher(conn, subject, logger)
}

func newNATSPublisher(conn msgPublisher, subject string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

// Notify publishes n.
func (p *NATSPublisher) Notify(ctx context.Context, n model.Notification) error {
	msg, err := p.message(KindNotification, n)
	if err != nil {
		return err
	}
	msg.Header.Set("x-priority", strconv.Itoa(n.Priority))
	return p.publish(ctx, msg)
}

// PublishAlert publishes the full alert record.
func (p *NATSPublisher) PublishAlert(ctx context.Context, alert model.Alert) error {
	msg, err := p.message(KindAlert, alert)
	if err != nil {
		return err
	}
	msg.Header.Set("x-alert-id", alert.ID)
	msg.Header.Set("x-alert-type", string(alert.Type))
	msg.Header.Set("x-severity", alert.Severity.String())
	return p.publish(ctx, msg)
}

func (p *NATSPublisher) message(kind string, payload any) (*nats.Msg, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("x-surveilscope-kind", kind)
	return msg, nil
}

func (p *NATSPublisher) publish(ctx context.Context, msg *nats.Msg) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish canceled: %w", err)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	p.logger.DebugContext(ctx, "published to NATS", "subject", p.subject, "kind", msg.Header.Get("x-surveilscope-kind"))
	return nil
}
