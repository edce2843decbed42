package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// HTMX event names sent in HX-Trigger.
const (
	EventLedgerChanged = "ledger:changed"
	EventFormReset     = "form:reset"
)

// Response collects status, headers, htmx triggers and body, and writes
// them in one go.
type Response struct {
	status   int
	header   http.Header
	triggers map[string]any
	body     []byte
}

// NewResponse starts a 200 response.
func NewResponse() *Response {
	return &Response{
		status:   http.StatusOK,
		header:   make(http.Header),
		triggers: make(map[string]any),
	}
}

func (b *Response) Status(code int) *Response {
	b.status = code
	return b
}

// Header sets a response header.
func (b *Response) Header(name, value string) *Response {
	b.header.Set(name, value)
	return b
}

// Trigger adds an event to HX-Trigger. data is sent as the event detail.
func (b *Response) Trigger(name string, data any) *Response {
	b.triggers[name] = data
	return b
}

// LedgerChanged tells the page the ledger now holds count entries with the
// given formatted balance.
func (b *Response) LedgerChanged(count int, balance string) *Response {
	return b.Trigger(EventLedgerChanged, map[string]any{"count": count, "balance": balance})
}

// FormReset clears description and amount on the page.
func (b *Response) FormReset() *Response {
	return b.Trigger(EventFormReset, struct{}{})
}

// Retarget swaps the body into selector instead of the requesting element's
// target.
func (b *Response) Retarget(selector, swap string) *Response {
	b.header.Set("HX-Retarget", selector)
	if swap != "" {
		b.header.Set("HX-Reswap", swap)
	}
	return b
}

func (b *Response) HTML(body []byte) *Response {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = body
	return b
}

func (b *Response) Text(body string) *Response {
	b.header.Set("Content-Type", "text/plain; charset=utf-8")
	b.body = []byte(body)
	return b
}

// JSON encodes v as the body. An encoding failure turns the response into a
// 500.
func (b *Response) JSON(v any) *Response {
	data, err := json.Marshal(v)
	if err != nil {
		b.status = http.StatusInternalServerError
		data = []byte(`{"error":"encoding failed"}`)
	}
	b.header.Set("Content-Type", "application/json")
	b.body = append(data, '\n')
	return b
}

// Redirect answers a plain form post with 303 See Other.
func (b *Response) Redirect(location string) *Response {
	b.status = http.StatusSeeOther
	b.header.Set("Location", location)
	return b
}

// Write sends the response.
func (b *Response) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.triggers) > 0 {
		if data, err := json.Marshal(b.triggers); err == nil {
			h.Set("HX-Trigger", string(data))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorFragment is the inline error markup used by every error response.
// The message is escaped.
func ErrorFragment(statusCode int, message string) *Response {
	return NewResponse().
		Status(statusCode).
		HTML([]byte(`<p class="error" role="alert">` + template.HTMLEscapeString(message) + `</p>`))
}

func BadRequest(message string) *Response {
	return ErrorFragment(http.StatusBadRequest, message)
}

func Unprocessable(message string) *Response {
	return ErrorFragment(http.StatusUnprocessableEntity, message)
}

func InternalError(message string) *Response {
	return ErrorFragment(http.StatusInternalServerError, message)
}
