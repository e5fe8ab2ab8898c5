package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/nao1215/surveilscope/internal/model"
)

// Notifier delivers a notification to one sink.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n model.Notification) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}

// Notification priorities.
const (
	PriorityNormal = 1
	PriorityHigh   = 2
)

// ShouldNotify reports whether an alert is worth interrupting the user for:
// real-time alerts must be enabled and the alert must be HIGH or above, or a
// beaconing detection.
func ShouldNotify(alert model.Alert, realTimeAlerts bool) bool {
	if !realTimeAlerts {
		return false
	}
	return alert.Severity >= model.SeverityHigh || alert.Type == model.AlertBeaconing
}

// FromAlert renders the notification shown for alert.
func FromAlert(alert model.Alert) model.Notification {
	priority := PriorityNormal
	if alert.Severity >= model.SeverityHigh {
		priority = PriorityHigh
	}
	return model.Notification{
		Title:    model.GetAlertInfo(alert.Type).Title,
		Message:  message(alert),
		Priority: priority,
	}
}

func message(alert model.Alert) string {
	switch alert.Type {
	case model.AlertDataExfiltration:
		return fmt.Sprintf("%s is exfiltrating: %s", alert.Data.Origin, strings.Join(alert.Data.DataTypes, ", "))
	case model.AlertBeaconing:
		return fmt.Sprintf("%s is beaconing every %ds", alert.Data.Origin, int64(math.Round(alert.Data.Interval.Seconds())))
	default:
		return "Security issue detected on " + alert.Data.Origin
	}
}

// LogNotifier writes notifications to a logger at warn level, so they show
// up without --verbose.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs n.
func (l *LogNotifier) Notify(ctx context.Context, n model.Notification) error {
	l.logger.WarnContext(ctx, n.Title, "message", n.Message, "priority", n.Priority)
	return nil
}

// Multi delivers to every sink and joins their errors.
type Multi []Notifier

// Notify calls every sink, even after one fails.
func (m Multi) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
