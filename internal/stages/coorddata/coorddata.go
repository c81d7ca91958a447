// Package coorddata implements the CoordData stage: it consumes the
// unordered-by-id raw coordinate stream preprocess wrote and produces the
// sorted, page-indexed coordinate store every later stage resolves node
// references against (step 3, §3 "coordinate store completeness"
// invariant).
package coorddata

import (
	"github.com/osmscout-go/mapimport/internal/coordstore"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const (
	CoordDat      = "coord.dat"
	CoordIndexDat = "coordindex.dat"
)

type Stage struct {
	// PageSize mirrors ImportParameter.NumericIndexPageSize; 0 uses the
	// store's built-in default.
	PageSize int
}

func New(pageSize int) Stage { return Stage{PageSize: pageSize} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:              "CoordData",
		Required:          []string{preprocess.RawCoordsDat},
		ProvidedTemporary: []string{CoordDat, CoordIndexDat},
	}
}

func (s Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	n, err := coordstore.Build(p.DataFile(preprocess.RawCoordsDat), p.DataFile(CoordDat), p.DataFile(CoordIndexDat), s.PageSize)
	if err != nil {
		return err
	}
	prog.Report(progress.Snapshot{Stage: "CoordData", Step: "build", Processed: uint64(n), Total: uint64(n)})
	return nil
}
