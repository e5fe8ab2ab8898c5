// Package notify turns alerts into user-facing notifications and delivers
// them to sinks: the log, a NATS subject, or any function. Sinks compose
// with Multi and Dedupe.
package notify
