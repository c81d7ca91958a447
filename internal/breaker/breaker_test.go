package breaker

import "testing"

func TestDummyNeverAborts(t *testing.T) {
	var b Dummy
	b.Break()
	if b.IsAborted() {
		t.Fatalf("dummy breaker must never report aborted")
	}
}

func TestThreadedBreakAndReset(t *testing.T) {
	b := NewThreaded()
	if b.IsAborted() {
		t.Fatalf("expected fresh breaker to not be aborted")
	}
	b.Break()
	if !b.IsAborted() {
		t.Fatalf("expected aborted after Break")
	}
	b.Reset()
	if b.IsAborted() {
		t.Fatalf("expected not aborted after Reset")
	}
}
