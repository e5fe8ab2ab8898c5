// Package fingerprint keeps the forensic timeline of fingerprinting
// attributes each origin has read.
//
// The Tracker answers two questions: which attributes has an origin touched
// (an insertion-ordered set per origin) and when did it touch them (a list of
// timeline entries per origin and calendar day). The first access to an
// attribute by an origin is marked as new; every later access is still
// appended to the timeline but never marked new again until Clear.
//
// Observers registered with Subscribe receive every entry synchronously.
// An observer that records another access is queued behind the entry being
// delivered, so it never sees the tracker halfway through an update.
package fingerprint
