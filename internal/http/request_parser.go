package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"balance/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 64 << 10

// RequestFields holds the flat key/value pairs of one request body. Browsers
// and htmx send form encoding; API clients send a JSON object. Both end up as
// url.Values so handlers read them the same way.
type RequestFields struct {
	values url.Values
	json   bool
}

// ReadRequestFields reads and decodes the body of r. An empty body falls back
// to the query string. JSON numbers keep their literal text so "42.50" stays
// "42.50".
func ReadRequestFields(w http.ResponseWriter, r *http.Request) (*RequestFields, error) {
	var body []byte
	if r.Body != nil {
		var err error
		if body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return &RequestFields{values: r.URL.Query()}, nil
	}

	if isJSON(r.Header.Get("Content-Type"), body) {
		values, err := decodeJSONObject(body)
		if err != nil {
			return nil, err
		}
		return &RequestFields{values: values, json: true}, nil
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	return &RequestFields{values: values}, nil
}

func isJSON(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "application/json" {
		return true
	}
	return body[0] == '{'
}

// decodeJSONObject flattens a JSON object of scalars. Nested values are
// ignored.
func decodeJSONObject(body []byte) (url.Values, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	values := make(url.Values, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			values.Set(k, val)
		case json.Number:
			values.Set(k, val.String())
		case bool:
			values.Set(k, fmt.Sprint(val))
		}
	}
	return values, nil
}

// Get returns the value for key with control characters removed.
func (f *RequestFields) Get(key string) string {
	return sanitizeInput(f.values.Get(key))
}

// JSON reports whether the body was a JSON object.
func (f *RequestFields) JSON() bool {
	return f.json
}

// DraftInput reads description, amount and kind. "type" is accepted for kind.
// An unrecognised kind is kept, lowercased, so validation reports it after
// description and amount.
func (f *RequestFields) DraftInput() core.DraftInput {
	raw := f.Get("kind")
	if raw == "" {
		raw = f.Get("type")
	}
	kind, err := core.ParseKind(raw)
	if err != nil {
		kind = core.Kind(strings.ToLower(raw))
	}
	return core.DraftInput{
		Description: f.Get("description"),
		Amount:      f.Get("amount"),
		Kind:        kind,
	}
}
