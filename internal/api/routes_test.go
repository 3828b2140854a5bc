package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, stream bool) (*Server, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	server, err := NewServer(Config{Logger: logger, StreamEnabled: stream})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server, hook
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPredictEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"enemy after neutral", `{"entities": [{"type":"Neutral","id":"a"},{"type":"Enemy_Unit","id":"e1"}]}`, http.StatusOK, `{"target_id":"e1"}`},
		{"no enemy", `{"entities": [{"type":"Neutral","id":"a"}]}`, http.StatusOK, `{"target_id":null}`},
		{"empty scene", `{"entities": []}`, http.StatusOK, `{"target_id":null}`},
		{"missing entities", `{}`, http.StatusBadRequest, `{"error":"Invalid data format"}`},
		{"first enemy wins", `{"entities":[{"type":"Enemy_Unit","id":"e1"},{"type":"Enemy_Unit","id":"e2"}]}`, http.StatusOK, `{"target_id":"e1"}`},
		{"numeric id", `{"entities":[{"type":"Enemy_Unit","id":42,"position":{"x":1,"y":0,"z":3}}]}`, http.StatusOK, `{"target_id":42}`},
		{"empty body", ``, http.StatusBadRequest, `{"error":"Invalid data format"}`},
		{"malformed json", `{"entities": [`, http.StatusBadRequest, `{"error":"Invalid data format"}`},
		{"array payload", `[{"type":"Enemy_Unit","id":"e1"}]`, http.StatusBadRequest, `{"error":"Invalid data format"}`},
		{"string payload", `"entities"`, http.StatusBadRequest, `{"error":"Invalid data format"}`},
		{"null entities", `{"entities": null}`, http.StatusBadRequest, `{"error":"Invalid data format"}`},
		{"object id", `{"entities":[{"type":"Enemy_Unit","id":{"n":1}}]}`, http.StatusBadRequest, `{"error":"Invalid data format"}`},
		{"trailing garbage", `{"entities":[]} garbage`, http.StatusBadRequest, `{"error":"Invalid data format"}`},
		{"truncated second value", `{"entities":[{"type":"Enemy_Unit","id":"e1"}]}{"x":`, http.StatusBadRequest, `{"error":"Invalid data format"}`},
		{"two objects", `{"entities":[]}{"entities":[]}`, http.StatusBadRequest, `{"error":"Invalid data format"}`},
		{"trailing whitespace", "{\"entities\":[]}\n\t ", http.StatusOK, `{"target_id":null}`},
	}

	server, _ := newTestServer(t, false)
	router := server.Router()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/predict", tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d (%s)", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tc.wantBody {
				t.Fatalf("expected body %s got %s", tc.wantBody, got)
			}
		})
	}
}

func TestPredictEchoesSameIDValue(t *testing.T) {
	server, _ := newTestServer(t, false)
	rec := doRequest(t, server.Router(), http.MethodPost, "/predict", `{"entities":[{"type":"Enemy_Unit","id":"<e&1>"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var resp struct {
		TargetID string `json:"target_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TargetID != "<e&1>" {
		t.Fatalf("expected <e&1> got %q", resp.TargetID)
	}
}

func TestPredictIsIdempotentOverHTTP(t *testing.T) {
	server, _ := newTestServer(t, false)
	router := server.Router()
	body := `{"entities":[{"type":"Friendly_Unit","id":"f"},{"type":"Enemy_Unit","id":"e3"}]}`

	first := doRequest(t, router, http.MethodPost, "/predict", body)
	second := doRequest(t, router, http.MethodPost, "/predict", body)
	if first.Body.String() != second.Body.String() {
		t.Fatalf("expected identical responses, got %s and %s", first.Body.String(), second.Body.String())
	}
}

func TestPredictLogsValidationFailure(t *testing.T) {
	server, hook := newTestServer(t, false)
	rec := doRequest(t, server.Router(), http.MethodPost, "/predict", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	var found bool
	for _, entry := range hook.AllEntries() {
		if id, _ := entry.Data[requestIDKey].(string); entry.Level == logrus.ErrorLevel && id != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a request-scoped error log entry")
	}
}

func TestRequestIDHeader(t *testing.T) {
	server, _ := newTestServer(t, false)
	router := server.Router()

	rec := doRequest(t, router, http.MethodPost, "/predict", `{"entities":[]}`)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "sim-frame-12")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "sim-frame-12" {
		t.Fatalf("expected caller request id to be echoed, got %q", got)
	}
}

func TestRequestIDReplacedWhenInvalid(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"oversize", strings.Repeat("a", maxRequestIDLen+1)},
		{"huge", strings.Repeat("x", 60*1024)},
		{"control byte", "frame\x01id"},
		{"non-ascii", "frame-\u00e9"},
	}

	server, _ := newTestServer(t, false)
	router := server.Router()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set(requestIDHeader, tc.id)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			got := rec.Header().Get(requestIDHeader)
			if got == tc.id {
				t.Fatalf("expected invalid request id to be replaced")
			}
			if len(got) != 36 {
				t.Fatalf("expected generated uuid got %q", got)
			}
		})
	}
}

func TestRequestIDAcceptsMaxLength(t *testing.T) {
	id := strings.Repeat("z", maxRequestIDLen)
	if !validRequestID(id) {
		t.Fatalf("expected %d-byte id to be accepted", maxRequestIDLen)
	}
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	server, _ := newTestServer(t, false)
	router := server.Router()

	if rec := doRequest(t, router, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected health 200 got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/predict", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/predict/stream", ""); rec.Code != http.StatusMethodNotAllowed && rec.Code != http.StatusNotFound {
		t.Fatalf("expected stream route to be absent when disabled, got %d", rec.Code)
	}
}

func TestRecoverPanicRendersInternalError(t *testing.T) {
	server, hook := newTestServer(t, false)
	router := server.Router()
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := doRequest(t, router, http.MethodGet, "/boom", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"internal server error"}` {
		t.Fatalf("unexpected body %s", got)
	}
	if last := hook.LastEntry(); last == nil {
		t.Fatalf("expected log entries")
	}
}

func TestNewServerRequiresLogger(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatalf("expected error without logger")
	}
}
