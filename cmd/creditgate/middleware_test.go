package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	logpkg "github.com/kailas-cloud/creditgate/internal/logger"
	chiTransport "github.com/kailas-cloud/creditgate/internal/transport/chi"
)

func TestJSONRecoverer_WritesErrorBody(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := jsonRecoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/sum", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var body chiTransport.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body.Code != chiTransport.ErrorResponseCodeInternalError {
		t.Errorf("code = %q", body.Code)
	}
	if logs.FilterMessage("Handler panicked").Len() != 1 {
		t.Errorf("expected one panic log, got %v", logs.All())
	}
}

func TestJSONRecoverer_ReraisesAbort(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rvr := recover(); rvr != http.ErrAbortHandler { //nolint:errorlint // identity check
			t.Errorf("recovered %v, want http.ErrAbortHandler", rvr)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
}

func TestRequestLog_CanonicalLine(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLog(zap.New(core)))
	r.Get("/users/me", func(w http.ResponseWriter, r *http.Request) {
		logpkg.Annotate(r.Context(), zap.String("principal_id", "p-1"))
		logpkg.FromContext(r.Context()).Debug("inside handler")
		w.WriteHeader(http.StatusPaymentRequired)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/me", http.NoBody))

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}

	lines := logs.FilterMessage("http_request").All()
	if len(lines) != 1 {
		t.Fatalf("expected one canonical line, got %d", len(lines))
	}
	line := lines[0]
	if line.Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn for a 4xx", line.Level)
	}
	fields := line.ContextMap()
	if fields["status"] != int64(http.StatusPaymentRequired) {
		t.Errorf("status field = %v", fields["status"])
	}
	if fields["principal_id"] != "p-1" {
		t.Errorf("annotation missing: %v", fields)
	}
	if fields["request_id"] == "" || fields["request_id"] == nil {
		t.Errorf("request_id missing: %v", fields)
	}

	inner := logs.FilterMessage("inside handler").All()
	if len(inner) != 1 || inner[0].ContextMap()["request_id"] == nil {
		t.Errorf("handler logger is not request-scoped: %v", inner)
	}
}

func TestRequestLog_ImplicitOK(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := requestLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	lines := logs.FilterMessage("http_request").All()
	if len(lines) != 1 || lines[0].Level != zapcore.InfoLevel {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if got := lines[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Errorf("status = %v, want 200", got)
	}
}
