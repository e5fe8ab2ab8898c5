package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/surveilscope/internal/model"
)

// MarkdownWriter outputs analyses in Markdown format for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the analysis in Markdown format.
func (w *MarkdownWriter) Write(analysis *Analysis) (int, error) {
	md := markdown.NewMarkdown(w.output)
	report := analysis.Report

	w.writeHeader(md, analysis)
	w.writeSummary(md, report)
	w.writeHighRisk(md, report)
	w.writeTrackingMethods(md, report)
	w.writeDataFlow(md, report)
	w.writeNetwork(md, report)
	w.writeAlerts(md, analysis.Alerts)
	w.writePages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, analysis *Analysis) {
	report := analysis.Report
	md.H1("Surveillance Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", "`" + analysis.Source + "`"},
			{"Generated", report.Timestamp.Format("2006-01-02 15:04:05 MST")},
			{"Events", strconv.Itoa(analysis.EventsProcessed) + " processed, " + strconv.Itoa(analysis.EventsSkipped) + " skipped"},
			{"Privacy Score", strconv.Itoa(report.PrivacyScore) + "/100 (" + privacyGrade(report.PrivacyScore) + ")"},
			{"Risk Threshold", strconv.Itoa(report.RiskThreshold)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.SurveillanceReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Signal", "Count"},
		Rows: [][]string{
			{"Tracking origins", strconv.Itoa(report.TotalTrackers)},
			{"Fingerprinting origins", strconv.Itoa(report.TotalFingerprinters)},
			{"High-risk origins", strconv.Itoa(len(report.HighRiskDomains))},
			{"Exfiltration origins", strconv.Itoa(report.Exfiltration.Origins)},
			{"Exfiltration attempts", strconv.Itoa(report.Exfiltration.TotalAttempts)},
			{"Beaconing origins", strconv.Itoa(len(report.BeaconingOrigins))},
			{"Personalized pricing", strconv.Itoa(len(report.PersonalizedPricing))},
			{"Alerts", strconv.Itoa(report.AlertCount)},
		},
	})
	md.PlainText("")

	if !report.IsClean() {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of the observed origins by signal.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.SurveillanceReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Origins by Signal"),
		piechart.WithShowData(true),
	)

	if report.TotalTrackers > 0 {
		chart.LabelAndIntValue("Tracking", uint64(report.TotalTrackers))
	}
	if report.TotalFingerprinters > 0 {
		chart.LabelAndIntValue("Fingerprinting", uint64(report.TotalFingerprinters))
	}
	if report.Exfiltration.Origins > 0 {
		chart.LabelAndIntValue("Exfiltration", uint64(report.Exfiltration.Origins))
	}
	if n := len(report.BeaconingOrigins); n > 0 {
		chart.LabelAndIntValue("Beaconing", uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.SurveillanceReport) {
	switch {
	case report.CriticalAlertCount > 0:
		md.Cautionf(
			"%d high-severity alert(s) raised. Sensitive data may be leaving the browser.",
			report.CriticalAlertCount,
		)
	case report.HasHighRisk():
		md.Warningf(
			"%d origin(s) exceed the risk threshold of %d.",
			len(report.HighRiskDomains), report.RiskThreshold,
		)
	case !report.IsClean():
		md.Importantf("Privacy score %d/100. Some tracking was observed.", report.PrivacyScore)
	default:
		md.Tip("No surveillance activity detected.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeHighRisk(md *markdown.Markdown, report *model.SurveillanceReport) {
	md.H2("High-Risk Origins")
	md.PlainText("")

	if !report.HasHighRisk() {
		md.PlainText("No origin exceeds the risk threshold.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.HighRiskDomains))
	for i, d := range report.HighRiskDomains {
		labels := make([]string, len(d.Methods))
		for j, m := range d.Methods {
			labels[j] = MethodLabel(m)
		}
		rows[i] = []string{
			"`" + d.Domain + "`",
			strconv.Itoa(d.RiskScore),
			strconv.Itoa(d.Activities),
			strings.Join(labels, ", "),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Origin", "Risk", "Activities", "Methods"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeTrackingMethods(md *markdown.Markdown, report *model.SurveillanceReport) {
	if len(report.TrackingMethods) == 0 {
		return
	}
	md.H2("Tracking Methods")
	md.PlainText("")

	labels := make([]string, len(report.TrackingMethods))
	for i, m := range report.TrackingMethods {
		labels[i] = MethodLabel(m)
	}
	md.BulletList(labels...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeDataFlow(md *markdown.Markdown, report *model.SurveillanceReport) {
	if len(report.DataFlowMap) == 0 {
		return
	}
	md.H2("Data Flow")
	md.PlainText("")

	for _, flow := range report.DataFlowMap {
		md.Details(flow.Key+" ("+strconv.Itoa(len(flow.Value))+" third parties)", strings.Join(flow.Value, "\n"))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeNetwork(md *markdown.Markdown, report *model.SurveillanceReport) {
	if len(report.BeaconingOrigins) == 0 && len(report.PersonalizedPricing) == 0 {
		return
	}
	md.H2("Network Patterns")
	md.PlainText("")

	if len(report.BeaconingOrigins) > 0 {
		md.PlainText("**Beaconing origins**")
		md.PlainText("")
		md.BulletList(report.BeaconingOrigins...)
		md.PlainText("")
	}
	if len(report.PersonalizedPricing) > 0 {
		md.PlainText("**Personalized pricing (origin_tab)**")
		md.PlainText("")
		md.BulletList(report.PersonalizedPricing...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeAlerts(md *markdown.Markdown, alerts []model.Alert) {
	md.H2("Alerts")
	md.PlainText("")

	if len(alerts) == 0 {
		md.PlainText("No alerts raised.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(alerts))
	for i, a := range alerts {
		rows[i] = []string{
			a.Timestamp.Format("15:04:05"),
			model.GetAlertInfo(a.Type).Title,
			a.Severity.String(),
			"`" + a.Data.Origin + "`",
			truncateString(strings.Join(a.Data.DataTypes, ", "), 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Time", "Alert", "Severity", "Origin", "Data"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeAlertGuidance(md, alerts)
}

// writeAlertGuidance explains each alert type present, once, in first-raised order.
func (w *MarkdownWriter) writeAlertGuidance(md *markdown.Markdown, alerts []model.Alert) {
	md.H3("Guidance")
	md.PlainText("")

	seen := model.NewOrderedSet()
	for _, a := range alerts {
		if !seen.Add(string(a.Type)) {
			continue
		}
		info := model.GetAlertInfo(a.Type)
		md.PlainTextf("**%s**", info.Title)
		md.PlainText("")
		md.BulletList("Impact: "+info.Impact, "Recommendation: "+info.Recommendation)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.SurveillanceReport) {
	if report.Pages.Analyzed == 0 {
		return
	}
	md.H2("Page Analysis")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Pages", "Tracking Pixels", "Social Widgets", "Canvases", "Analytics IDs"},
		Rows: [][]string{{
			strconv.Itoa(report.Pages.Analyzed),
			strconv.Itoa(report.Pages.TrackingPixels),
			strconv.Itoa(report.Pages.SocialWidgets),
			strconv.Itoa(report.Pages.Canvases),
			strconv.Itoa(report.Pages.AnalyticsIDs),
		}},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [surveilscope](https://github.com/nao1215/surveilscope)*")
}
