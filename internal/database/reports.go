package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
)

// ReportSummary is the small digest stored next to each saved report.
type ReportSummary struct {
	Trackers       int `json:"trackers"`
	Fingerprinters int `json:"fingerprinters"`
	HighRisk       int `json:"highRisk"`
	PrivacyScore   int `json:"privacyScore"`
	Alerts         int `json:"alerts"`
}

// ReportMetadata contains summary information about a saved report.
// The history command lists these without loading full reports.
type ReportMetadata struct {
	// ID is the unique identifier of the report in the database.
	ID int64

	// Source names what was analyzed (capture file name or "live").
	Source string

	// Timestamp is when the report was saved.
	Timestamp time.Time

	// Summary holds the report's headline numbers.
	Summary ReportSummary
}

func summarize(report *model.SurveillanceReport) ReportSummary {
	return ReportSummary{
		Trackers:       report.TotalTrackers,
		Fingerprinters: report.TotalFingerprinters,
		HighRisk:       len(report.HighRiskDomains),
		PrivacyScore:   report.PrivacyScore,
		Alerts:         report.AlertCount,
	}
}

// SaveReport saves a complete report as JSON and returns its ID.
func (sdb *DB) SaveReport(ctx context.Context, source string, report *model.SurveillanceReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err := json.Marshal(summarize(report))
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report summary: %w", err)
	}

	result, err := sdb.db.ExecContext(ctx, `
	INSERT INTO reports (source, report_json, summary)
	VALUES (?, ?, ?)
	`, source, string(reportJSON), string(summaryJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}
	return result.LastInsertId()
}

// GetReportByID retrieves a saved report by its database ID.
func (sdb *DB) GetReportByID(ctx context.Context, id int64) (*model.SurveillanceReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, `SELECT report_json FROM reports WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport(reportJSON)
}

// LatestReport retrieves the most recent report saved for source.
func (sdb *DB) LatestReport(ctx context.Context, source string) (*model.SurveillanceReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, `
	SELECT report_json FROM reports
	WHERE source = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`, source).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeReport(reportJSON)
}

// ListSources returns every source that has saved reports.
func (sdb *DB) ListSources(ctx context.Context) ([]string, error) {
	rows, err := sdb.db.QueryContext(ctx, `SELECT DISTINCT source FROM reports ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// ListReports returns report metadata, newest first.
// An empty source lists reports of every source.
func (sdb *DB) ListReports(ctx context.Context, source string) ([]ReportMetadata, error) {
	query := `SELECT id, source, timestamp, summary FROM reports`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY timestamp DESC, id DESC`

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var results []ReportMetadata
	for rows.Next() {
		var (
			meta      ReportMetadata
			timestamp string
			summary   sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Source, &timestamp, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan report metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		if summary.Valid && summary.String != "" {
			// A damaged summary leaves the zero digest; the full report is still readable.
			_ = json.Unmarshal([]byte(summary.String), &meta.Summary) //nolint:errcheck
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

func decodeReport(reportJSON string) (*model.SurveillanceReport, error) {
	var report model.SurveillanceReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}
