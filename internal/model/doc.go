// Package model defines the core data structures shared across surveilscope.
//
// This package contains the following main types:
//   - Severity: ordered LOW < MEDIUM < HIGH < CRITICAL scale used by every ledger
//   - Alert / Notification: security alerts and what a sink displays for them
//   - SurveillanceReport: the aggregate view produced by the coordinator
//   - OrderedSet and Pair: insertion-ordered building blocks that serialize as lists
//
// Models live in their own package so that classifier, ledger, coordinator and
// report can share them without import cycles. Every type serializes to JSON
// for export documents and database storage.
package model
