// Package coordinator owns every detection ledger and routes observation
// events through the classifiers into them.
//
// A Coordinator is constructed explicitly with its collaborators (store,
// notifier, clock, logger, metrics) and is not safe for concurrent use:
// callers serialize access. Observers and alert subscribers run inline on the
// caller's goroutine. Persistence is best effort: after each mutation the
// changed ledgers are serialized and handed to a background writer that the
// Coordinator does not wait for; write failures are logged and counted.
package coordinator
