// Package ledger holds the per-origin aggregates the coordinator builds from
// classified observations: tracking profiles, header fingerprinting profiles,
// exfiltration profiles, beaconing windows, price histories and the alert log.
//
// Each ledger is backed by an OriginProfileStore so the aggregation logic does
// not depend on how profiles are kept. None of the ledgers lock; they are
// owned by a single coordinator that processes one observation at a time.
//
// Every ledger exports its state as an ordered list of key/profile pairs and
// restores from the same shape, so a persisted snapshot reloads losslessly.
package ledger
