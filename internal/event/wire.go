package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
)

// envelope is the on-the-wire shape of every event: {"kind": ..., "data": {...}}.
type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// wireTime accepts RFC 3339 strings or epoch milliseconds (what browser hooks emit).
type wireTime time.Time

func (w *wireTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*w = wireTime(time.Time{})
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*w = wireTime(time.Time{})
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		*w = wireTime(t)
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	whole, frac := math.Modf(ms)
	*w = wireTime(time.UnixMilli(int64(whole)).Add(time.Duration(frac * float64(time.Millisecond))))
	return nil
}

func (w wireTime) MarshalJSON() ([]byte, error) {
	t := time.Time(w)
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

type wireBody struct {
	FormData map[string]any `json:"formData,omitempty"`
	Raw      string         `json:"raw,omitempty"`
}

type wireRequest struct {
	RequestID   string    `json:"requestId,omitempty"`
	URL         string    `json:"url"`
	Method      string    `json:"method,omitempty"`
	TabID       int       `json:"tabId,omitempty"`
	FrameID     int       `json:"frameId,omitempty"`
	Initiator   string    `json:"initiator,omitempty"`
	Type        string    `json:"type,omitempty"`
	RequestBody *wireBody `json:"requestBody,omitempty"`
	Timestamp   wireTime  `json:"timestamp"`
}

type wireRequestHeaders struct {
	RequestID      string   `json:"requestId,omitempty"`
	URL            string   `json:"url"`
	TabID          int      `json:"tabId,omitempty"`
	RequestHeaders Headers  `json:"requestHeaders"`
	Timestamp      wireTime `json:"timestamp"`
}

type wireResponse struct {
	RequestID       string   `json:"requestId,omitempty"`
	URL             string   `json:"url"`
	TabID           int      `json:"tabId,omitempty"`
	StatusCode      int      `json:"statusCode,omitempty"`
	ResponseHeaders Headers  `json:"responseHeaders,omitempty"`
	Timestamp       wireTime `json:"timestamp"`
}

type wireAPIAccess struct {
	Origin    string          `json:"origin,omitempty"`
	URL       string          `json:"url,omitempty"`
	Method    string          `json:"method"`
	Category  string          `json:"category,omitempty"`
	Severity  *model.Severity `json:"severity,omitempty"`
	Timestamp wireTime        `json:"timestamp"`
}

type wirePage struct {
	URL       string   `json:"url"`
	TabID     int      `json:"tabId,omitempty"`
	HTML      string   `json:"html,omitempty"`
	Timestamp wireTime `json:"timestamp"`
}

// normalizeBody keeps primitive form values only and records the payload size
// estimated from the body as it was received.
func normalizeBody(w *wireBody) *Body {
	if w == nil || (w.FormData == nil && w.Raw == "") {
		return nil
	}

	if w.FormData == nil {
		return &Body{Raw: w.Raw, Size: len(w.Raw)}
	}

	body := &Body{FormData: make(map[string][]string, len(w.FormData))}
	if encoded, err := json.Marshal(w.FormData); err == nil {
		body.Size = len(encoded)
	}

	for key, value := range w.FormData {
		switch v := value.(type) {
		case string:
			body.FormData[key] = []string{v}
		case json.Number:
			body.FormData[key] = []string{v.String()}
		case float64:
			body.FormData[key] = []string{strconv.FormatFloat(v, 'f', -1, 64)}
		case []any:
			if len(v) > MaxFormValues {
				v = v[:MaxFormValues]
			}
			values := make([]string, 0, len(v))
			for _, item := range v {
				values = append(values, stringify(item))
			}
			body.FormData[key] = values
		}
	}
	return body
}

// stringify renders an array element the way a browser would with String(v).
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		return "[object Object]"
	}
}

func toWireBody(b *Body) *wireBody {
	if b == nil {
		return nil
	}
	if b.FormData == nil {
		return &wireBody{Raw: b.Raw}
	}
	form := make(map[string]any, len(b.FormData))
	for key, values := range b.FormData {
		items := make([]any, len(values))
		for i, v := range values {
			items[i] = v
		}
		form[key] = items
	}
	return &wireBody{FormData: form}
}
