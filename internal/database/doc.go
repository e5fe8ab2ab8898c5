// Package database provides SQLite-based storage for surveilscope.
//
// The DB stores two things:
//   - the coordinator's persisted state as a small key-value table of
//     compressed snapshots (one row per ledger)
//   - saved surveillance reports for the history command
//
// SQLite (via modernc.org/sqlite) keeps the store a single CGO-free file.
// Snapshot values are zstd-compressed and carry a SHA3-256 checksum of the
// uncompressed bytes, so a truncated or edited row is reported instead of
// being loaded as an empty ledger.
package database
