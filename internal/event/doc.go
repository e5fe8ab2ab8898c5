// Package event defines the closed set of observations surveilscope accepts
// and the boundary that turns raw JSON documents into them.
//
// Every event arrives as an envelope:
//
//	{"kind": "request", "data": {"url": "https://...", "method": "POST", ...}}
//
// Decode validates the envelope against an embedded JSON schema
// (santhosh-tekuri/jsonschema, draft 2020-12), then normalizes it into one of
// Request, RequestHeaders, Response, APIAccess or Page. Timestamps may be RFC 3339
// strings or epoch milliseconds. Request bodies are reduced to primitive form
// values (at most MaxFormValues per field) or raw text, with the original
// payload size recorded.
//
// Nothing past this package sees loosely shaped payloads.
package event
