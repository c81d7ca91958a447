// Package progress implements the progress-reporting protocol from the progress protocol
// §6: each stage periodically emits a Snapshot (current step, processed
// count, a steady-clock timestamp, and a resource-usage reading), and a Sink
// fans that out to whatever is listening (console, the run ledger, a Redis
// pub/sub channel for live dashboards).
package progress

import (
	"runtime"
	"time"
)

// Snapshot is one point-in-time report from a running stage.
type Snapshot struct {
	Stage     string
	Step      string
	Processed uint64
	Total     uint64
	At        time.Time
	Resources ResourceUsage
}

// ResourceUsage captures the memory snapshot requires the
// orchestrator to take around every stage.
type ResourceUsage struct {
	HeapAllocBytes uint64
	HeapSysBytes   uint64
	NumGoroutine   int
}

// CurrentResourceUsage reads Go runtime memory statistics, standing in for
// the "steady-clock reading and a memory-usage snapshot" the orchestrator
// takes before and after each stage.
func CurrentResourceUsage() ResourceUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return ResourceUsage{
		HeapAllocBytes: m.HeapAlloc,
		HeapSysBytes:   m.HeapSys,
		NumGoroutine:   runtime.NumGoroutine(),
	}
}

// Sink receives progress snapshots. Implementations must be safe for
// concurrent use: preprocess's block workers and the orchestrator's own
// per-stage timer may report concurrently.
type Sink interface {
	Report(Snapshot)
}

// NopSink discards every snapshot; used by stages run in tests or in
// one-shot CLI mode without a live dashboard attached.
type NopSink struct{}

func (NopSink) Report(Snapshot) {}

// FuncSink adapts a plain function to the Sink interface.
type FuncSink func(Snapshot)

func (f FuncSink) Report(s Snapshot) { f(s) }

// MultiSink fans a single snapshot out to every sink in the slice, used to
// report to the run ledger and a Redis-backed live bus at once.
type MultiSink []Sink

func (m MultiSink) Report(s Snapshot) {
	for _, sink := range m {
		if sink != nil {
			sink.Report(s)
		}
	}
}
