package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
	"github.com/nao1215/surveilscope/internal/notify"
)

// raise appends an alert, tells the subscribers and, when real-time alerts
// are on and the alert qualifies, sends a notification.
func (c *Coordinator) raise(ctx context.Context, alertType model.AlertType, data model.AlertData, ts time.Time) model.Alert {
	alert := model.NewAlert(c.newID(), alertType, data, ts)
	c.alerts.Append(alert)
	c.markDirty(keySecurityAlerts)
	c.metrics.Alert(string(alert.Type), alert.Severity.String())

	c.logger.InfoContext(ctx, "security alert",
		"type", string(alert.Type),
		"origin", alert.Data.Origin,
		"severity", alert.Severity.String(),
	)

	for _, o := range c.alertObservers {
		c.deliver(ctx, o, alert)
	}

	if c.notifier != nil && notify.ShouldNotify(alert, c.settings.RealTimeAlerts) {
		if err := c.notifier.Notify(ctx, notify.FromAlert(alert)); err != nil {
			c.metrics.NotifyError()
			c.logger.WarnContext(ctx, "failed to send notification",
				"alert_id", alert.ID,
				"error", err,
			)
		}
	}
	return alert
}

func (c *Coordinator) deliver(ctx context.Context, o alertObserver, alert model.Alert) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "alert subscriber panicked",
				"subscriber", o.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	if err := o.fn(alert); err != nil {
		c.logger.WarnContext(ctx, "alert subscriber failed",
			"subscriber", o.id,
			"error", err,
		)
	}
}
