package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/surveilscope/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// Output is plain ASCII so it can be piped to files or other tools.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to show are printed.
	showEmpty bool

	// verbose adds alert data and data-flow details.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the analysis in human-readable format.
func (w *SimpleWriter) Write(analysis *Analysis) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, analysis)
	w.writeSummary(&sb, analysis.Report)
	w.writeHighRisk(&sb, analysis.Report)
	w.writeDataFlow(&sb, analysis.Report)
	w.writeAlerts(&sb, analysis.Alerts)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, analysis *Analysis) {
	report := analysis.Report
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      SURVEILSCOPE REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Source:         %s\n", analysis.Source)
	fmt.Fprintf(sb, "Generated:      %s\n", report.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Events:         %d processed, %d skipped\n", analysis.EventsProcessed, analysis.EventsSkipped)
	fmt.Fprintf(sb, "Privacy Score:  %d/100 (%s)\n", report.PrivacyScore, privacyGrade(report.PrivacyScore))
	if analysis.Error != "" {
		fmt.Fprintf(sb, "Error:          %s\n", analysis.Error)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.SurveillanceReport) {
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Tracking origins:       %d\n", report.TotalTrackers)
	fmt.Fprintf(sb, "  Fingerprinting origins: %d\n", report.TotalFingerprinters)
	fmt.Fprintf(sb, "  High-risk origins:      %d (threshold %d)\n", len(report.HighRiskDomains), report.RiskThreshold)
	fmt.Fprintf(sb, "  Exfiltration:           %d origins, %d attempts\n", report.Exfiltration.Origins, report.Exfiltration.TotalAttempts)
	fmt.Fprintf(sb, "  Beaconing origins:      %d\n", len(report.BeaconingOrigins))
	fmt.Fprintf(sb, "  Personalized pricing:   %d\n", len(report.PersonalizedPricing))
	fmt.Fprintf(sb, "  Alerts:                 %d (%d high or critical)\n", report.AlertCount, report.CriticalAlertCount)
	if report.Pages.Analyzed > 0 || w.showEmpty {
		fmt.Fprintf(sb, "  Pages analyzed:         %d (%d pixels, %d widgets, %d canvases, %d analytics IDs)\n",
			report.Pages.Analyzed, report.Pages.TrackingPixels, report.Pages.SocialWidgets,
			report.Pages.Canvases, report.Pages.AnalyticsIDs)
	}
	sb.WriteString("\n")

	if len(report.TrackingMethods) > 0 {
		labels := make([]string, len(report.TrackingMethods))
		for i, m := range report.TrackingMethods {
			labels[i] = MethodLabel(m)
		}
		fmt.Fprintf(sb, "  Methods: %s\n\n", strings.Join(labels, ", "))
	}
}

func (w *SimpleWriter) writeHighRisk(sb *strings.Builder, report *model.SurveillanceReport) {
	if !report.HasHighRisk() && !w.showEmpty {
		return
	}
	section(sb, "HIGH-RISK ORIGINS")

	if !report.HasHighRisk() {
		sb.WriteString("  None\n\n")
		return
	}
	for _, d := range report.HighRiskDomains {
		fmt.Fprintf(sb, "  [%3d] %s (%d activities)\n", d.RiskScore, d.Domain, d.Activities)
		if w.verbose {
			fmt.Fprintf(sb, "        %s\n", strings.Join(d.Methods, ", "))
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDataFlow(sb *strings.Builder, report *model.SurveillanceReport) {
	if !w.verbose || (len(report.DataFlowMap) == 0 && !w.showEmpty) {
		return
	}
	section(sb, "DATA FLOW")

	for _, flow := range report.DataFlowMap {
		fmt.Fprintf(sb, "  %s\n", flow.Key)
		for _, origin := range flow.Value {
			fmt.Fprintf(sb, "    -> %s\n", origin)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeAlerts(sb *strings.Builder, alerts []model.Alert) {
	if len(alerts) == 0 && !w.showEmpty {
		return
	}
	section(sb, "ALERTS")

	if len(alerts) == 0 {
		sb.WriteString("  No alerts\n\n")
		return
	}
	for _, a := range alerts {
		fmt.Fprintf(sb, "  [%s] %s %s: %s\n",
			severityIndicator(a.Severity),
			a.Timestamp.Format("15:04:05"),
			model.GetAlertInfo(a.Type).Title,
			a.Data.Origin,
		)
		if w.verbose && len(a.Data.DataTypes) > 0 {
			fmt.Fprintf(sb, "        %s\n", strings.Join(a.Data.DataTypes, ", "))
		}
	}
	sb.WriteString("\n")
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	default:
		return "?"
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by surveilscope\n")
	sb.WriteString("https://github.com/nao1215/surveilscope\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
