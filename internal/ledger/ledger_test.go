package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenSqliteAndRunLifecycle(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	run := &Run{ID: "run-1", Status: RunStatusRunning}
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	sr, err := store.StartStage("run-1", "preprocess")
	if err != nil {
		t.Fatalf("StartStage: %v", err)
	}
	if err := store.FinishStage(sr.ID, RunStatusSucceeded, nil, 1024, 4); err != nil {
		t.Fatalf("FinishStage: %v", err)
	}
	if err := store.FinishRun("run-1", RunStatusSucceeded, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
}

func TestChecksumFileDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.dat")
	if err := os.WriteFile(path, []byte("hello import"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := ChecksumFile(path)
	if err != nil {
		t.Fatalf("ChecksumFile: %v", err)
	}
	b, err := ChecksumFile(path)
	if err != nil {
		t.Fatalf("ChecksumFile (2nd): %v", err)
	}
	if a != b {
		t.Fatalf("expected deterministic checksum, got %q and %q", a, b)
	}
}
