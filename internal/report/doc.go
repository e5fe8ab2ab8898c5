// Package report renders surveillance reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown with a mermaid chart for sharing
//
// Report data lives in the model package; writers only format it.
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
