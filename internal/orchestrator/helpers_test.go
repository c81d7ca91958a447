package orchestrator

import (
	"errors"
	"testing"

	"github.com/osmscout-go/mapimport/internal/pkg/logger"
)

var errBoom = errors.New("boom")

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}
