package gcsstore

import (
	"context"
	"testing"

	"github.com/osmscout-go/mapimport/internal/platform/gcp"
	"github.com/osmscout-go/mapimport/internal/platform/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return log
}

func TestObjectURLDefaultsToGoogleHost(t *testing.T) {
	s := &store{bucket: "osm-output"}
	got := s.ObjectURL("/extracts/andorra/nodes.dat")
	want := "https://storage.googleapis.com/osm-output/extracts/andorra/nodes.dat"
	if got != want {
		t.Fatalf("ObjectURL: want=%q got=%q", want, got)
	}
}

func TestObjectURLUsesPublicBaseURLWhenSet(t *testing.T) {
	s := &store{bucket: "osm-output", publicBaseURL: "http://fake-gcs:4443"}
	got := s.ObjectURL("nodes.dat")
	want := "http://fake-gcs:4443/osm-output/nodes.dat"
	if got != want {
		t.Fatalf("ObjectURL: want=%q got=%q", want, got)
	}
}

func TestNewStorageClientRejectsUnsupportedMode(t *testing.T) {
	_, err := newStorageClient(context.Background(), gcp.ObjectStorageConfig{Mode: "bogus"})
	if err == nil {
		t.Fatalf("expected error for unsupported mode")
	}
}

func TestNewFromEnvSkipsWhenBucketUnset(t *testing.T) {
	t.Setenv("MAPIMPORT_GCS_BUCKET", "")
	log := newTestLogger(t)
	s, err := NewFromEnv(log)
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if s != nil {
		t.Fatalf("expected nil store when bucket unset")
	}
}
