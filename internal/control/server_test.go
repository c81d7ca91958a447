package control

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osmscout-go/mapimport/internal/breaker"
	"github.com/osmscout-go/mapimport/internal/platform/logger"
	"github.com/osmscout-go/mapimport/internal/progress"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return NewServer(log, nil, breaker.NewThreaded())
}

func TestHealthzUnauthenticated(t *testing.T) {
	s := newTestServer(t)
	router := s.NewRouter("test-secret")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got=%d", rec.Code)
	}
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	router := s.NewRouter("test-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got=%d want=%d", rec.Code, http.StatusUnauthorized)
	}
}

func TestProtectedRouteAcceptsValidToken(t *testing.T) {
	s := newTestServer(t)
	router := s.NewRouter("test-secret")

	token, err := IssueToken("test-secret", "operator", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestActiveRunReflectsProgressSink(t *testing.T) {
	s := newTestServer(t)
	router := s.NewRouter("")

	s.SetActiveRun("run-123")
	s.Sink().Report(progress.Snapshot{Stage: "Preprocess", Processed: 10, Total: 100})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/active", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"run_id":"run-123"`) || !strings.Contains(body, `"stage":"Preprocess"`) {
		t.Fatalf("body missing expected fields: %s", body)
	}
}

func TestAbortActiveRunBreaksBreaker(t *testing.T) {
	s := newTestServer(t)
	router := s.NewRouter("")
	s.SetActiveRun("run-123")

	req := httptest.NewRequest(http.MethodPost, "/api/runs/active/abort", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	if !s.breaker.IsAborted() {
		t.Fatalf("expected breaker aborted")
	}
}

