// Package rawrelationindex implements the RawRelationIndex stage: a by-id
// offset index over rawrels.dat (step 4). No later stage declares it as
// required: RelAreaData scans rawrels.dat sequentially.
package rawrelationindex

import (
	"bufio"

	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/rawindex"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const IndexDat = "rawrelidx.dat"

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:              "RawRelationIndex",
		Required:          []string{preprocess.RawRelsDat},
		ProvidedTemporary: []string{IndexDat},
	}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	n, err := rawindex.Build(p.DataFile(preprocess.RawRelsDat), p.DataFile(IndexDat), decodeRelationID)
	if err != nil {
		return err
	}
	prog.Report(progress.Snapshot{Stage: "RawRelationIndex", Step: "build", Processed: uint64(n), Total: uint64(n)})
	return nil
}

func decodeRelationID(r *bufio.Reader) (int64, error) {
	rel, err := rawdata.DecodeRawRelation(r)
	if err != nil {
		return 0, err
	}
	return rel.OSMID, nil
}
