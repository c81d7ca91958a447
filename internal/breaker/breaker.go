// Package breaker implements cooperative cancellation for long-running
// stages, matching libosmscout's Breaker/DummyBreaker/ThreadedBreaker
// (original_source/libosmscout/src/osmscout/util/Breaker.cpp): a stage
// polls IsAborted() at convenient checkpoints (between blocks, between
// records) rather than being preempted.
package breaker

import "sync/atomic"

// Breaker is polled cooperatively by stage loops.
type Breaker interface {
	Break()
	IsAborted() bool
	Reset()
}

// Dummy never aborts; used when no cancellation source is configured.
type Dummy struct{}

func (Dummy) Break()          {}
func (Dummy) IsAborted() bool { return false }
func (Dummy) Reset()          {}

// Threaded is an atomic-bool breaker safe to call Break() on from a signal
// handler or a separate goroutine while a stage loop polls IsAborted().
type Threaded struct {
	aborted atomic.Bool
}

func NewThreaded() *Threaded { return &Threaded{} }

func (b *Threaded) Break()          { b.aborted.Store(true) }
func (b *Threaded) IsAborted() bool { return b.aborted.Load() }
func (b *Threaded) Reset()          { b.aborted.Store(false) }
