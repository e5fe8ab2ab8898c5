package event

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/event.schema.json
var schemaJSON []byte

const schemaURL = "https://surveilscope.local/schemas/event.schema.json"

// Decoder validates raw event documents against the event schema and
// converts them into typed events.
// A Decoder is safe for concurrent use.
type Decoder struct {
	schema *jsonschema.Schema
}

// NewDecoder compiles the embedded event schema.
func NewDecoder() (*Decoder, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to load event schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile event schema: %w", err)
	}
	return &Decoder{schema: schema}, nil
}

var defaultDecoder = sync.OnceValues(NewDecoder)

// Decode validates and decodes a single event document using a shared Decoder.
func Decode(data []byte) (Event, error) {
	d, err := defaultDecoder()
	if err != nil {
		return nil, err
	}
	return d.Decode(data)
}

// DecodeBatch decodes either a single event document or a JSON array of them
// using a shared Decoder.
func DecodeBatch(data []byte) ([]Event, error) {
	d, err := defaultDecoder()
	if err != nil {
		return nil, err
	}
	return d.DecodeBatch(data)
}

// DecodeEach decodes a batch using a shared Decoder, skipping invalid array
// elements.
func DecodeEach(data []byte) ([]Event, []error, error) {
	d, err := defaultDecoder()
	if err != nil {
		return nil, nil, err
	}
	return d.DecodeEach(data)
}

// Decode validates and decodes a single event document.
// Errors wrap ErrInvalidEvent.
func (d *Decoder) Decode(data []byte) (Event, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	return d.decodeDocument(data, doc)
}

// DecodeBatch decodes a single event document or an array of them.
// The first invalid element aborts the batch; its index is included in the error.
func (d *Decoder) DecodeBatch(data []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		ev, err := d.Decode(trimmed)
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	events := make([]Event, 0, len(items))
	for i, item := range items {
		ev, err := d.Decode(item)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// DecodeEach decodes a single event document or an array of them, skipping
// array elements that fail to decode. The errors of skipped elements are
// returned in invalid, each naming its index. err is set only when data is
// neither a valid event document nor a JSON array.
func (d *Decoder) DecodeEach(data []byte) (events []Event, invalid []error, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		ev, err := d.Decode(trimmed)
		if err != nil {
			return nil, nil, err
		}
		return []Event{ev}, nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	events = make([]Event, 0, len(items))
	for i, item := range items {
		ev, err := d.Decode(item)
		if err != nil {
			invalid = append(invalid, fmt.Errorf("event %d: %w", i, err))
			continue
		}
		events = append(events, ev)
	}
	return events, invalid, nil
}

func parseDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return doc, nil
}

func (d *Decoder) decodeDocument(data []byte, doc any) (Event, error) {
	if err := d.schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, verr.Error())
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	ev, err := fromWire(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return ev, nil
}

func fromWire(env envelope) (Event, error) {
	switch env.Kind {
	case KindRequest:
		var w wireRequest
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, err
		}
		return &Request{
			RequestID:    w.RequestID,
			URL:          w.URL,
			Method:       normalizeMethod(w.Method),
			TabID:        w.TabID,
			FrameID:      w.FrameID,
			Initiator:    w.Initiator,
			ResourceType: w.Type,
			Body:         normalizeBody(w.RequestBody),
			Timestamp:    timeOf(w.Timestamp),
		}, nil

	case KindRequestHeaders:
		var w wireRequestHeaders
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, err
		}
		return &RequestHeaders{
			RequestID: w.RequestID,
			URL:       w.URL,
			TabID:     w.TabID,
			Headers:   w.RequestHeaders,
			Timestamp: timeOf(w.Timestamp),
		}, nil

	case KindResponse:
		var w wireResponse
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, err
		}
		return &Response{
			RequestID:  w.RequestID,
			URL:        w.URL,
			TabID:      w.TabID,
			StatusCode: w.StatusCode,
			Headers:    w.ResponseHeaders,
			Timestamp:  timeOf(w.Timestamp),
		}, nil

	case KindAPIAccess:
		var w wireAPIAccess
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, err
		}
		origin := w.Origin
		if origin == "" {
			origin = hostOf(w.URL)
		}
		if origin == "" {
			return nil, ErrMissingOrigin
		}
		return &APIAccess{
			Origin:    origin,
			URL:       w.URL,
			Method:    strings.TrimSpace(w.Method),
			Category:  w.Category,
			Severity:  w.Severity,
			Timestamp: timeOf(w.Timestamp),
		}, nil

	case KindPage:
		var w wirePage
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, err
		}
		return &Page{
			URL:       w.URL,
			TabID:     w.TabID,
			HTML:      w.HTML,
			Timestamp: timeOf(w.Timestamp),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

// Encode renders an event in the wire format accepted by Decode.
func Encode(ev Event) ([]byte, error) {
	var data any
	switch e := ev.(type) {
	case *Request:
		data = wireRequest{
			RequestID:   e.RequestID,
			URL:         e.URL,
			Method:      e.Method,
			TabID:       e.TabID,
			FrameID:     e.FrameID,
			Initiator:   e.Initiator,
			Type:        e.ResourceType,
			RequestBody: toWireBody(e.Body),
			Timestamp:   wireTime(e.Timestamp),
		}
	case *RequestHeaders:
		headers := e.Headers
		if headers == nil {
			headers = Headers{}
		}
		data = wireRequestHeaders{
			RequestID:      e.RequestID,
			URL:            e.URL,
			TabID:          e.TabID,
			RequestHeaders: headers,
			Timestamp:      wireTime(e.Timestamp),
		}
	case *Response:
		data = wireResponse{
			RequestID:       e.RequestID,
			URL:             e.URL,
			TabID:           e.TabID,
			StatusCode:      e.StatusCode,
			ResponseHeaders: e.Headers,
			Timestamp:       wireTime(e.Timestamp),
		}
	case *APIAccess:
		data = wireAPIAccess{
			Origin:    e.Origin,
			URL:       e.URL,
			Method:    e.Method,
			Category:  e.Category,
			Severity:  e.Severity,
			Timestamp: wireTime(e.Timestamp),
		}
	case *Page:
		data = wirePage{
			URL:       e.URL,
			TabID:     e.TabID,
			HTML:      e.HTML,
			Timestamp: wireTime(e.Timestamp),
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, ev)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: ev.Kind(), Data: raw})
}

func normalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return "GET"
	}
	return method
}

func timeOf(w wireTime) time.Time {
	return time.Time(w)
}

// hostOf returns the hostname of rawURL, or "" if it does not parse.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
