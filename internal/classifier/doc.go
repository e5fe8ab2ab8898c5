// Package classifier turns raw observations into semantic surveillance signals.
//
// Every function in this package is a pure predicate or extractor over a URL,
// a header list, a cookie header, a request body or page markup. Nothing here
// keeps history; aggregation per origin happens in the ledger package.
//
// Malformed input never produces an error from a predicate. It simply does not
// match. Callers that parse URLs themselves decide whether to skip the event.
package classifier
