package orchestrator

import (
	"context"
	"testing"

	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

type fakeStage struct {
	name     string
	required []string
	provided []string
	temp     []string
	ran      *bool
	fail     error
}

func (f fakeStage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{Name: f.name, Required: f.required, Provided: f.provided, ProvidedTemporary: f.temp}
}

func (f fakeStage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	if f.ran != nil {
		*f.ran = true
	}
	return f.fail
}

type fakeParam struct {
	dir string
	eco bool
}

func (p fakeParam) DestDir() string             { return p.dir }
func (p fakeParam) DataFile(base string) string { return p.dir + "/" + base }
func (p fakeParam) IsEco() bool                 { return p.eco }

func TestValidateDAGRejectsMissingProvider(t *testing.T) {
	stages := []Named{
		{Step: 1, Name: "a", Stage: fakeStage{name: "a", required: []string{"missing.dat"}}},
	}
	if err := ValidateDAG(stages); err == nil {
		t.Fatalf("expected provenance violation for unmet requirement")
	}
}

func TestValidateDAGAcceptsSatisfiedChain(t *testing.T) {
	stages := []Named{
		{Step: 1, Name: "a", Stage: fakeStage{name: "a", provided: []string{"rawnodes.dat"}}},
		{Step: 2, Name: "b", Stage: fakeStage{name: "b", required: []string{"rawnodes.dat"}}},
	}
	if err := ValidateDAG(stages); err != nil {
		t.Fatalf("expected satisfied chain to validate, got: %v", err)
	}
}

func TestReclaimSetDropsConsumedTemporaries(t *testing.T) {
	stages := []Named{
		{Step: 1, Name: "a", Stage: fakeStage{name: "a", temp: []string{"scratch.tmp"}}},
		{Step: 2, Name: "b", Stage: fakeStage{name: "b", required: []string{"scratch.tmp"}}},
		{Step: 3, Name: "c", Stage: fakeStage{name: "c"}},
	}
	// After step 1, scratch.tmp is still required by step 2: not reclaimable.
	if got := ReclaimSet(stages, 1); len(got) != 0 {
		t.Fatalf("expected nothing reclaimable yet, got %v", got)
	}
	// After step 2, no remaining stage requires scratch.tmp.
	got := ReclaimSet(stages, 2)
	if len(got) != 1 || got[0] != "scratch.tmp" {
		t.Fatalf("expected scratch.tmp reclaimable after step 2, got %v", got)
	}
}

func TestEngineRunStopsOnFirstFailure(t *testing.T) {
	var ranA, ranB, ranC bool
	stages := []Named{
		{Step: 1, Name: "a", Stage: fakeStage{name: "a", ran: &ranA}},
		{Step: 2, Name: "b", Stage: fakeStage{name: "b", ran: &ranB, fail: errBoom}},
		{Step: 3, Name: "c", Stage: fakeStage{name: "c", ran: &ranC}},
	}
	eng := New(mustTestLogger(t), nil, stages)
	err := eng.Run(context.Background(), typeinfo.NewTypeConfig(), fakeParam{dir: t.TempDir()}, progress.NopSink{}, nil)
	if err == nil {
		t.Fatalf("expected run to fail")
	}
	if !ranA || !ranB || ranC {
		t.Fatalf("expected a,b to run and c to be skipped: a=%v b=%v c=%v", ranA, ranB, ranC)
	}
}
