// Package nodedata implements the NodeData stage: it resolves every raw
// tagged node to its coordinate and writes the final, persistent nodes.dat
// (step 7).
package nodedata

import (
	"context"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/coordstore"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/observability"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/coorddata"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const DataFile = "nodes.dat"

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "NodeData",
		Required: []string{preprocess.RawNodesDat, coorddata.CoordDat, coorddata.CoordIndexDat},
		Provided: []string{DataFile},
	}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	coords, err := coordstore.Open(p.DataFile(coorddata.CoordDat), p.DataFile(coorddata.CoordIndexDat))
	if err != nil {
		return err
	}
	defer coords.Close()

	rr, err := binio.NewRecordReader(p.DataFile(preprocess.RawNodesDat))
	if err != nil {
		return err
	}
	defer rr.Close()

	w, err := binio.NewRecordWriter(p.DataFile(DataFile))
	if err != nil {
		return err
	}

	unresolved := 0
	for i := uint32(0); i < rr.Count; i++ {
		n, err := rawdata.DecodeRawNode(rr.Reader())
		if err != nil {
			return err
		}
		c, found, err := coords.Lookup(n.OSMID)
		if err != nil {
			return err
		}
		if !found {
			unresolved++
			continue // data anomaly: node with no coordinate, drop with warning
		}
		final := objdata.Node{OSMID: n.OSMID, Point: objdata.Point{Lat: c.Lat, Lon: c.Lon}, Type: n.Type, Tags: n.Tags}
		if err := final.Encode(w.Writer()); err != nil {
			return err
		}
		w.Advance(1)
		prog.Report(progress.Snapshot{Stage: "NodeData", Step: "resolve", Processed: uint64(i + 1), Total: uint64(rr.Count)})
	}

	if unresolved > 0 {
		observability.ReportStageIssues(context.Background(), nil, "NodeData",
			map[string]int{"unresolved_node": unresolved}, nil, nil)
	}

	return w.Close()
}
