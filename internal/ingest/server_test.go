package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/osmscout-go/mapimport/internal/platform/logger"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
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

func TestServerNextDeliversPushedBlocksInOrder(t *testing.T) {
	s := NewServer(newTestLogger(t), 4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first := preprocess.Block{Coords: []rawdata.RawCoord{{OSMID: 1}}}
	second := preprocess.Block{Coords: []rawdata.RawCoord{{OSMID: 2}}}
	if err := s.PushBlock(ctx, first); err != nil {
		t.Fatalf("PushBlock: %v", err)
	}
	if err := s.PushBlock(ctx, second); err != nil {
		t.Fatalf("PushBlock: %v", err)
	}
	s.Close()

	got1, ok, err := s.Next(ctx)
	if err != nil || !ok || got1.Coords[0].OSMID != 1 {
		t.Fatalf("Next first: got=%+v ok=%v err=%v", got1, ok, err)
	}
	got2, ok, err := s.Next(ctx)
	if err != nil || !ok || got2.Coords[0].OSMID != 2 {
		t.Fatalf("Next second: got=%+v ok=%v err=%v", got2, ok, err)
	}
	_, ok, err = s.Next(ctx)
	if err != nil || ok {
		t.Fatalf("Next after close: expected ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestServerNextRespectsContextCancellation(t *testing.T) {
	s := NewServer(newTestLogger(t), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Next(ctx)
	if err == nil {
		t.Fatalf("expected context error")
	}
}
