package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResponse_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Text("test").
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want 'test'", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestResponse_LedgerTriggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		LedgerChanged(2, "₹995.50").
		FormReset().
		HTML([]byte("<div>ok</div>")).
		Write(w)

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	if _, ok := triggers[EventFormReset]; !ok {
		t.Error("missing form:reset")
	}
	var detail struct {
		Count   int    `json:"count"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(triggers[EventLedgerChanged], &detail); err != nil {
		t.Fatalf("ledger:changed detail: %v", err)
	}
	if detail.Count != 2 || detail.Balance != "₹995.50" {
		t.Errorf("ledger:changed detail = %+v", detail)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestResponse_NoTriggers(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().HTML([]byte("x")).Write(w)

	if _, ok := w.Header()["Hx-Trigger"]; ok {
		t.Error("HX-Trigger should be absent when no events are added")
	}
}

func TestResponse_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().JSON(map[string]int{"count": 3}).Write(w)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if strings.TrimSpace(w.Body.String()) != `{"count":3}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponse_JSONEncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().JSON(map[string]any{"bad": make(chan int)}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestResponse_Redirect(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().Redirect("/").Write(w)

	if w.Code != http.StatusSeeOther {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if w.Header().Get("Location") != "/" {
		t.Errorf("Location = %q, want /", w.Header().Get("Location"))
	}
}

func TestResponse_Retarget(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Retarget("#form-error", "innerHTML").
		Header("X-Custom", "value").
		Write(w)

	if w.Header().Get("HX-Retarget") != "#form-error" {
		t.Errorf("HX-Retarget = %q", w.Header().Get("HX-Retarget"))
	}
	if w.Header().Get("HX-Reswap") != "innerHTML" {
		t.Errorf("HX-Reswap = %q", w.Header().Get("HX-Reswap"))
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("X-Custom = %q", w.Header().Get("X-Custom"))
	}
}

func TestErrorFragment(t *testing.T) {
	tests := []struct {
		name       string
		builder    *Response
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequest("Invalid input"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<p class="error" role="alert">Invalid input</p>`,
		},
		{
			name:       "unprocessable entity",
			builder:    Unprocessable("Description is required."),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `<p class="error" role="alert">Description is required.</p>`,
		},
		{
			name:       "internal server error",
			builder:    InternalError("Something broke"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `<p class="error" role="alert">Something broke</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorFragment_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequest("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
}
