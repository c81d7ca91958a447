// Package orchestrator drives the ordered stage list: validates the
// file-provenance DAG across every stage before running anything,
// executes stages strictly in order with no retries, takes a resource
// snapshot around each stage, persists run/stage history to the ledger,
// and reclaims provided-temporary files in eco mode once every consumer
// has run.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/osmscout-go/mapimport/internal/breaker"
	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
	"github.com/osmscout-go/mapimport/internal/pkg/logger"
	"github.com/osmscout-go/mapimport/internal/ledger"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

// Named is a stage paired with its ordinal step number (the
// startStep/endStep range addresses steps by this number, 1-based, in
// declaration order).
type Named struct {
	Step  int
	Name  string
	Stage stage.Stage
}

// Engine runs an ordered stage list against one ImportParameter.
type Engine struct {
	log    *logger.Logger
	ledger *ledger.Store
	stages []Named
}

// New builds an Engine over stages, which must already be in execution
// order (step 1 first).
func New(log *logger.Logger, store *ledger.Store, stages []Named) *Engine {
	return &Engine{log: log, ledger: store, stages: stages}
}

// ValidateDAG checks the file-provenance invariant: for every stage, every
// required file must be provided, in any of the provided classes, by some
// stage with a strictly lower step number. It is a single forward scan over
// the ordered stage list. It does not check that every provided-temporary
// file is required by some stage.
func ValidateDAG(stages []Named) error {
	provided := make(map[string]int) // file -> step that provides it
	for _, s := range stages {
		desc := s.Stage.Describe(nil)
		for _, f := range desc.Required {
			if provStep, ok := provided[f]; !ok || provStep >= s.Step {
				return fmt.Errorf("stage %q (step %d) requires file %q which no earlier stage provides: %w", s.Name, s.Step, f, importerrors.ErrProvenanceViolation)
			}
		}
		for _, f := range allProvided(desc) {
			provided[f] = s.Step
		}
	}
	return nil
}

// allProvided concatenates every file class a stage provides.
func allProvided(d stage.Descriptor) []string {
	out := make([]string, 0, len(d.Provided)+len(d.ProvidedOptional)+len(d.ProvidedTemporary)+len(d.ProvidedDebugging))
	out = append(out, d.Provided...)
	out = append(out, d.ProvidedOptional...)
	out = append(out, d.ProvidedTemporary...)
	out = append(out, d.ProvidedDebugging...)
	return out
}

// ReclaimSet computes, in eco mode, the set of provided-temporary files
// produced by stages up to completedThroughStep that no stage with a higher
// step number requires, per D = (provided-temporary of completed
// stages) \ (required by any stage not yet run). Every later stage in the
// list counts; the list is not filtered by a step range.
func ReclaimSet(stages []Named, completedThroughStep int) []string {
	producedTemp := map[string]bool{}
	for _, s := range stages {
		if s.Step > completedThroughStep {
			continue
		}
		desc := s.Stage.Describe(nil)
		for _, f := range desc.ProvidedTemporary {
			producedTemp[f] = true
		}
	}
	for _, s := range stages {
		if s.Step <= completedThroughStep {
			continue
		}
		desc := s.Stage.Describe(nil)
		for _, f := range desc.Required {
			delete(producedTemp, f)
		}
	}
	out := make([]string, 0, len(producedTemp))
	for f := range producedTemp {
		out = append(out, f)
	}
	return out
}

// Run executes every stage with Step in [startStep, endStep], in order,
// with no retries: a stage failure aborts the entire run immediately
// ("the orchestrator never retries a stage"). In eco mode a range that does
// not cover every stage is refused with ErrConfigViolation before any stage
// runs.
func (e *Engine) Run(ctx context.Context, tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink, b breaker.Breaker) error {
	if b == nil {
		b = breaker.Dummy{}
	}
	if prog == nil {
		prog = progress.NopSink{}
	}

	startStep, endStep := 1, len(e.stages)
	if sp, ok := p.(interface{ StartEndStep() (int, int) }); ok {
		startStep, endStep = sp.StartEndStep()
	}
	if p.IsEco() && (startStep > 1 || endStep < len(e.stages)) {
		return fmt.Errorf("eco mode requires the full step range [1,%d], got [%d,%d]: %w", len(e.stages), startStep, endStep, importerrors.ErrConfigViolation)
	}

	runID := uuid.NewString()
	if e.ledger != nil {
		if err := e.ledger.CreateRun(&ledger.Run{ID: runID, Status: ledger.RunStatusRunning, StartedAt: time.Now()}); err != nil {
			e.log.Warn("failed to record run start", "error", err)
		}
	}

	completedThroughStep := 0
	var runErr error

runLoop:
	for _, s := range e.stages {
		if s.Step < startStep || s.Step > endStep {
			continue
		}
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break runLoop
		default:
		}
		if b.IsAborted() {
			runErr = fmt.Errorf("import aborted before stage %q", s.Name)
			break runLoop
		}

		e.log.Info("stage starting", "run_id", runID, "step", s.Step, "stage", s.Name)

		var stageRunID uint
		if e.ledger != nil {
			if sr, err := e.ledger.StartStage(runID, s.Name); err == nil {
				stageRunID = sr.ID
			}
		}

		before := progress.CurrentResourceUsage()
		start := time.Now()

		err := s.Stage.Import(tc, p, prog)

		usage := progress.CurrentResourceUsage()
		elapsed := time.Since(start)
		_ = before

		if e.ledger != nil && stageRunID != 0 {
			status := ledger.RunStatusSucceeded
			if err != nil {
				status = ledger.RunStatusFailed
			}
			if ferr := e.ledger.FinishStage(stageRunID, status, err, usage.HeapAllocBytes, usage.NumGoroutine); ferr != nil {
				e.log.Warn("failed to record stage finish", "error", ferr)
			}
		}

		if err != nil {
			e.log.Error("stage failed", "run_id", runID, "stage", s.Name, "error", err)
			runErr = fmt.Errorf("stage %q: %w", s.Name, err)
			break runLoop
		}

		e.log.Info("stage finished", "run_id", runID, "stage", s.Name, "elapsed", elapsed.String())
		completedThroughStep = s.Step

		if p.IsEco() {
			for _, f := range ReclaimSet(e.stages, completedThroughStep) {
				path := p.DataFile(f)
				if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
					e.log.Warn("eco-mode reclaim failed", "file", path, "error", rmErr)
				} else if rmErr == nil {
					e.log.Debug("eco-mode reclaimed temporary file", "file", path)
				}
			}
		}
	}

	status := ledger.RunStatusSucceeded
	if runErr != nil {
		status = ledger.RunStatusFailed
		if b.IsAborted() {
			status = ledger.RunStatusAborted
		}
	}
	if e.ledger != nil {
		if err := e.ledger.FinishRun(runID, status, runErr); err != nil {
			e.log.Warn("failed to record run finish", "error", err)
		}
	}

	return runErr
}
