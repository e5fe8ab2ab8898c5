// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// surveilscope logs describe someone's browsing. The SecureHandler keeps the
// structure of those logs (origins, attributes, counts) and masks the parts
// that identify the person being tracked:
//   - HTTP credentials and cookies (Authorization, Cookie, Set-Cookie)
//   - tracking identifiers (visitor, session, tracking and client ids)
//   - secret-looking values (JWTs, bearer tokens, long opaque keys)
//   - identifier query parameters inside URLs (uid, email, gclid, _ga, ...)
//
// Even in verbose mode, sensitive values are masked so that logs can be
// shared when reporting a detection.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	logger.Info("tracking activity",
//	    "origin", "tracker.example",
//	    "url", "https://tracker.example/p?uid=42", // logged as ...?uid=***REDACTED***
//	    "visitor_id", "v-123",                     // masked
//	)
package log
