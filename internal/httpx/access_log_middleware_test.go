package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAccessLogMiddleware_LogsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := RequestIDMiddleware(AccessLogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		JSONDetail(w, http.StatusNotFound, "Film not found")
	})))

	req := httptest.NewRequest(http.MethodGet, "/films/9", nil)
	req.Header.Set("X-Request-Id", "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("access log is not JSON: %v (%q)", err, buf.String())
	}
	if line["status"] != float64(http.StatusNotFound) {
		t.Errorf("Expected status 404 in access log, got %v", line["status"])
	}
	if line["request_id"] != "req-1" {
		t.Errorf("Expected request id in access log, got %v", line["request_id"])
	}
	if line["path"] != "/films/9" {
		t.Errorf("Expected path in access log, got %v", line["path"])
	}
}

func TestRecoveryMiddleware_AnswersJSON500(t *testing.T) {
	var buf bytes.Buffer
	handler := AccessLogMiddleware(zerolog.New(&buf))(RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/characters/1", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Internal server error") {
		t.Errorf("Expected generic error body, got %q", w.Body.String())
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("Expected panic to be logged, got %q", buf.String())
	}
}
