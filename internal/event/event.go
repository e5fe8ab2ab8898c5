package event

import (
	"strings"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
)

// Kind identifies the observation source of an event.
type Kind string

const (
	// KindRequest is emitted once per outbound request before it is sent.
	KindRequest Kind = "request"
	// KindRequestHeaders is emitted when the request headers are about to be sent.
	KindRequestHeaders Kind = "request-headers"
	// KindResponse is emitted when the response starts.
	KindResponse Kind = "response"
	// KindAPIAccess is emitted by the page hook layer on a fingerprinting API call.
	KindAPIAccess Kind = "api-access"
	// KindPage is emitted once a page finished loading, with its rendered markup.
	KindPage Kind = "page"
)

// Kinds lists every event kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindRequest, KindRequestHeaders, KindResponse, KindAPIAccess, KindPage}
}

// Event is the closed set of observations the coordinator accepts.
// Only the types declared in this package implement it.
type Event interface {
	// Kind returns the observation source.
	Kind() Kind

	// OccurredAt returns when the observation was made.
	// The zero time means the source did not say, and the coordinator substitutes its clock.
	OccurredAt() time.Time

	sealed()
}

// Header is a single HTTP header as delivered by the network observation source.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an ordered header list. Names may repeat (e.g. several Set-Cookie headers).
type Headers []Header

// Get returns the value of the first header whose name matches case-insensitively.
func (h Headers) Get(name string) string {
	for _, header := range h {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// Values returns every value of the headers whose name matches case-insensitively.
func (h Headers) Values(name string) []string {
	var values []string
	for _, header := range h {
		if strings.EqualFold(header.Name, name) {
			values = append(values, header.Value)
		}
	}
	return values
}

// Body is a bounded request body descriptor.
// FormData holds only primitive-valued fields, each as at most MaxFormValues strings.
// Raw holds the textual raw body; analyzers cap it before scanning.
type Body struct {
	FormData map[string][]string
	Raw      string

	// Size is the estimated payload size in bytes as computed at the boundary.
	Size int
}

// MaxFormValues caps how many values of an array-valued form field are kept.
const MaxFormValues = 10

// Request is an outbound network request.
type Request struct {
	RequestID    string
	URL          string
	Method       string
	TabID        int
	FrameID      int
	Initiator    string
	ResourceType string
	Body         *Body
	Timestamp    time.Time
}

// RequestHeaders carries the headers of an outbound request.
type RequestHeaders struct {
	RequestID string
	URL       string
	TabID     int
	Headers   Headers
	Timestamp time.Time
}

// Response carries the headers of a response as it starts.
type Response struct {
	RequestID  string
	URL        string
	TabID      int
	StatusCode int
	Headers    Headers
	Timestamp  time.Time
}

// APIAccess is a fingerprinting-relevant JavaScript API call observed by the hook layer.
type APIAccess struct {
	// Origin is the hostname of the page that made the call.
	Origin string
	// URL is the page URL.
	URL string
	// Method is the attribute identifier, e.g. "navigator.userAgent" or "canvas.toDataURL".
	Method string
	// Category is the hook layer's category hint (e.g. "browser", "display").
	Category string
	// Severity is the hook layer's severity hint, nil when it sent none.
	Severity *model.Severity
	Timestamp time.Time
}

// Page is a loaded page with its markup for content analysis.
type Page struct {
	URL       string
	TabID     int
	HTML      string
	Timestamp time.Time
}

func (*Request) Kind() Kind        { return KindRequest }
func (*RequestHeaders) Kind() Kind { return KindRequestHeaders }
func (*Response) Kind() Kind       { return KindResponse }
func (*APIAccess) Kind() Kind      { return KindAPIAccess }
func (*Page) Kind() Kind           { return KindPage }

func (e *Request) OccurredAt() time.Time        { return e.Timestamp }
func (e *RequestHeaders) OccurredAt() time.Time { return e.Timestamp }
func (e *Response) OccurredAt() time.Time       { return e.Timestamp }
func (e *APIAccess) OccurredAt() time.Time      { return e.Timestamp }
func (e *Page) OccurredAt() time.Time           { return e.Timestamp }

func (*Request) sealed()        {}
func (*RequestHeaders) sealed() {}
func (*Response) sealed()       {}
func (*APIAccess) sealed()      {}
func (*Page) sealed()           {}
