package ledger

import (
	"slices"

	"github.com/nao1215/surveilscope/internal/model"
)

// MaxAlerts is the number of alerts the AlertLog keeps.
const MaxAlerts = 100

// AlertLog keeps the most recent MaxAlerts alerts, oldest first.
type AlertLog struct {
	alerts []model.Alert
}

// NewAlertLog returns an empty AlertLog.
func NewAlertLog() *AlertLog {
	return &AlertLog{}
}

// Append adds alert and drops the oldest alerts beyond MaxAlerts.
func (l *AlertLog) Append(alert model.Alert) {
	l.alerts = append(l.alerts, alert)
	if len(l.alerts) > MaxAlerts {
		l.alerts = slices.Clone(l.alerts[len(l.alerts)-MaxAlerts:])
	}
}

// Alerts returns a copy of every kept alert, oldest first.
func (l *AlertLog) Alerts() []model.Alert {
	return l.Last(len(l.alerts))
}

// Last returns a copy of the newest n alerts, oldest first.
func (l *AlertLog) Last(n int) []model.Alert {
	n = min(max(n, 0), len(l.alerts))
	out := make([]model.Alert, n)
	copy(out, l.alerts[len(l.alerts)-n:])
	return out
}

// Len returns the number of kept alerts.
func (l *AlertLog) Len() int {
	return len(l.alerts)
}

// CountAtLeast returns how many kept alerts have severity of at least floor.
func (l *AlertLog) CountAtLeast(floor model.Severity) int {
	n := 0
	for _, a := range l.alerts {
		if a.Severity >= floor {
			n++
		}
	}
	return n
}

// Restore replaces the log with alerts, keeping only the newest MaxAlerts.
func (l *AlertLog) Restore(alerts []model.Alert) {
	if len(alerts) > MaxAlerts {
		alerts = alerts[len(alerts)-MaxAlerts:]
	}
	l.alerts = slices.Clone(alerts)
}

// Clear removes every alert.
func (l *AlertLog) Clear() {
	l.alerts = nil
}
