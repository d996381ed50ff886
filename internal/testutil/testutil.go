package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Upstream is a fake SWAPI server. Collections are served as bare JSON
// arrays under /api/<collection>/, the way swapi.info does.
type Upstream struct {
	*httptest.Server

	mu      sync.Mutex
	records map[string][]map[string]any
	failing map[string]int
	hits    map[string]int
}

// NewUpstream starts a fake upstream seeded with records keyed by collection
// name ("people", "films", "starships"). Close it when done.
func NewUpstream(records map[string][]map[string]any) *Upstream {
	u := &Upstream{
		records: records,
		failing: make(map[string]int),
		hits:    make(map[string]int),
	}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	return u
}

// BaseURL is the value to configure as SWAPI_BASE_URL.
func (u *Upstream) BaseURL() string {
	return u.URL + "/api/"
}

// Seed replaces the served records.
func (u *Upstream) Seed(records map[string][]map[string]any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records = records
}

// Fail makes every request for collection answer with status.
func (u *Upstream) Fail(collection string, status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failing[collection] = status
}

// Hits reports how many requests reached collection.
func (u *Upstream) Hits(collection string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[collection]
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	collection := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/"), "/")

	u.mu.Lock()
	u.hits[collection]++
	status, failing := u.failing[collection]
	records, ok := u.records[collection]
	u.mu.Unlock()

	if failing {
		http.Error(w, "upstream down", status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if records == nil {
		records = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

// NewRequest creates a new HTTP request for testing
func NewRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	var r *http.Request
	if bodyBytes != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	return r
}

// RecordResponse is a decoded HTTP response. Body is set for JSON objects,
// List for JSON arrays.
type RecordResponse struct {
	Code   int
	Header http.Header
	Body   map[string]interface{}
	List   []map[string]interface{}
	Raw    []byte
}

// RecordHTTPResponse records the HTTP response
func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, _ := io.ReadAll(result.Body)

	rec := RecordResponse{
		Code:   result.StatusCode,
		Header: result.Header,
		Raw:    bodyBytes,
	}
	trimmed := bytes.TrimSpace(bodyBytes)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '[':
		_ = json.Unmarshal(trimmed, &rec.List)
	case trimmed[0] == '{':
		_ = json.Unmarshal(trimmed, &rec.Body)
	}
	return rec
}

// Serve runs req through h and records the response.
func Serve(h http.Handler, req *http.Request) RecordResponse {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return RecordHTTPResponse(w)
}

// AssertResponseCode checks if the response code matches expected
func AssertResponseCode(t interface {
	Errorf(format string, args ...any)
}, got, want int) {
	if got != want {
		t.Errorf("got status code %d, want %d", got, want)
	}
}

// AssertResponseBody checks if the response body contains expected field
func AssertResponseBody(t interface {
	Errorf(format string, args ...any)
}, body map[string]interface{}, key string, expectedValue interface{}) {
	value, ok := body[key]
	if !ok {
		t.Errorf("response body missing key %q", key)
		return
	}
	if value != expectedValue {
		t.Errorf("got %q for key %q, want %q", value, key, expectedValue)
	}
}
