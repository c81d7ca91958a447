// Package typedata implements the first pipeline stage: it serializes the
// already-loaded TypeConfig arena to disk as "types.dat" so every
// downstream stage (and the final runtime database) can load type
// information without re-parsing the operator's type definition file.
package typedata

import (
	"fmt"

	"github.com/osmscout-go/mapimport/internal/binio"
	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const DataFile = "types.dat"

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{Name: "TypeData", Provided: []string{DataFile}}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	w, err := binio.NewRecordWriter(p.DataFile(DataFile))
	if err != nil {
		return err
	}
	for _, info := range tc.All() {
		if err := writeTypeInfo(w, info); err != nil {
			return err
		}
		w.Advance(1)
		prog.Report(progress.Snapshot{Stage: "TypeData", Step: "write", Processed: uint64(info.ID) + 1, Total: uint64(tc.TypeCount())})
	}
	return w.Close()
}

func writeTypeInfo(w *binio.RecordWriter, info typeinfo.TypeInfo) error {
	bw := w.Writer()
	if err := binio.PutUvarint(bw, uint64(len(info.Name))); err != nil {
		return err
	}
	if _, err := bw.WriteString(info.Name); err != nil {
		return fmt.Errorf("write type name: %w", importerrors.ErrIO)
	}
	flags := uint8(0)
	setBit := func(b uint8, cond bool) uint8 {
		if cond {
			return b
		}
		return 0
	}
	flags |= setBit(1<<0, info.CanBeNode)
	flags |= setBit(1<<1, info.CanBeWay)
	flags |= setBit(1<<2, info.CanBeArea)
	flags |= setBit(1<<3, info.CanRoute)
	flags |= setBit(1<<4, info.IsMultipolygon)
	flags |= setBit(1<<5, info.IndexAsAddress)
	flags |= setBit(1<<6, info.IndexAsLocation)
	flags |= setBit(1<<7, info.IndexAsPOI)
	return bw.WriteByte(flags)
}
