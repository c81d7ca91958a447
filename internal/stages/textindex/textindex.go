// Package textindex implements the optional TextIndex stage: a semantic
// search layer over place names, embedding every named node/area's
// canonical label and upserting the vectors into a pinecone.VectorStore
// (step 12, marked optional — disabled unless an Embedder is
// configured). It reads only the plain "name" tag; the
// lang_order/alt_lang_order resolution that internal/stages/locationindex
// applies is not used here.
package textindex

import (
	"context"
	"fmt"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/platform/pinecone"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/mergeareas"
	"github.com/osmscout-go/mapimport/internal/stages/nodedata"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

// Embedder is the subset of internal/platform/openai.Client this stage
// needs; it is a narrow interface so tests can fake it without pulling in
// an HTTP client.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

const (
	// Namespace is the pinecone.VectorStore namespace every run upserts
	// into; distinct place-name collections are distinguished by the
	// store's own namespace prefix (see qdrant.Config), not by this stage.
	Namespace = "osm-place-names"
	batchSize = 64
)

// Stage is a no-op when Embedder or Store is nil, so an import run that
// doesn't configure an embedding backend simply skips this stage instead
// of failing — it is the one stage this pipeline marks optional.
type Stage struct {
	Embedder Embedder
	Store    pinecone.VectorStore
}

func New(embedder Embedder, store pinecone.VectorStore) Stage {
	return Stage{Embedder: embedder, Store: store}
}

func (s Stage) Describe(stage.Parameter) stage.Descriptor {
	if s.Embedder == nil || s.Store == nil {
		return stage.Descriptor{Name: "TextIndex"}
	}
	return stage.Descriptor{
		Name:     "TextIndex",
		Required: []string{nodedata.DataFile, mergeareas.DataFile},
	}
}

type namedObject struct {
	id   string
	name string
}

func (s Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	if s.Embedder == nil || s.Store == nil {
		return nil
	}

	var objs []namedObject

	nr, err := binio.NewRecordReader(p.DataFile(nodedata.DataFile))
	if err != nil {
		return err
	}
	for i := uint32(0); i < nr.Count; i++ {
		n, err := objdata.DecodeNode(nr.Reader())
		if err != nil {
			_ = nr.Close()
			return err
		}
		if name := n.Tags["name"]; name != "" {
			objs = append(objs, namedObject{id: fmt.Sprintf("node:%d", n.OSMID), name: name})
		}
	}
	if err := nr.Close(); err != nil {
		return err
	}

	ar, err := binio.NewRecordReader(p.DataFile(mergeareas.DataFile))
	if err != nil {
		return err
	}
	for i := uint32(0); i < ar.Count; i++ {
		a, err := objdata.DecodeArea(ar.Reader())
		if err != nil {
			_ = ar.Close()
			return err
		}
		if name := a.Tags["name"]; name != "" {
			objs = append(objs, namedObject{id: fmt.Sprintf("area:%d", a.OSMID), name: name})
		}
	}
	if err := ar.Close(); err != nil {
		return err
	}

	ctx := context.Background()
	for start := 0; start < len(objs); start += batchSize {
		end := start + batchSize
		if end > len(objs) {
			end = len(objs)
		}
		batch := objs[start:end]

		names := make([]string, len(batch))
		for i, o := range batch {
			names[i] = o.name
		}
		vecs, err := s.Embedder.Embed(ctx, names)
		if err != nil {
			return fmt.Errorf("textindex: embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("textindex: embed returned %d vectors for %d inputs", len(vecs), len(batch))
		}

		points := make([]pinecone.Vector, len(batch))
		for i, o := range batch {
			points[i] = pinecone.Vector{
				ID:       o.id,
				Values:   vecs[i],
				Metadata: map[string]any{"name": o.name},
			}
		}
		if err := s.Store.Upsert(ctx, Namespace, points); err != nil {
			return fmt.Errorf("textindex: upsert batch: %w", err)
		}

		prog.Report(progress.Snapshot{Stage: "TextIndex", Step: "embed", Processed: uint64(end), Total: uint64(len(objs))})
	}

	return nil
}
