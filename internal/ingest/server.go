package ingest

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osmscout-go/mapimport/internal/platform/logger"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
)

// Server implements BlockIngestServer and preprocess.Source: blocks
// arriving over PushBlocks are handed to Next in submission order, so
// the Preprocess stage can run against a remote front end exactly as it
// would against an in-process parser.
type Server struct {
	log    *logger.Logger
	blocks chan preprocess.Block
	done   chan struct{}
}

func NewServer(log *logger.Logger, queueDepth int) *Server {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Server{
		log:    log.With("component", "IngestServer"),
		blocks: make(chan preprocess.Block, queueDepth),
		done:   make(chan struct{}),
	}
}

// PushBlocks drains one client stream into s.blocks. Only one stream is
// expected per import run; the channel is closed once the stream ends so
// Next's callers observe a clean end of input.
func (s *Server) PushBlocks(stream BlockIngest_PushBlocksServer) error {
	var blocksReceived, recordsReceived uint64
	defer close(s.blocks)

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			ack, _ := structpb.NewStruct(map[string]any{
				"blocks":  float64(blocksReceived),
				"records": float64(recordsReceived),
			})
			return stream.SendAndClose(ack)
		}
		if err != nil {
			return err
		}

		block, err := structToBlock(msg)
		if err != nil {
			return err
		}
		blocksReceived++
		recordsReceived += uint64(len(block.Coords) + len(block.Nodes) + len(block.Ways) + len(block.Relations))

		select {
		case s.blocks <- block:
		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
}

// Next implements preprocess.Source.
func (s *Server) Next(ctx context.Context) (preprocess.Block, bool, error) {
	select {
	case b, ok := <-s.blocks:
		if !ok {
			return preprocess.Block{}, false, nil
		}
		return b, true, nil
	case <-ctx.Done():
		return preprocess.Block{}, false, ctx.Err()
	}
}

// PushBlock is a convenience for in-process callers (tests, or a
// front end linked directly into the same binary) that want to feed
// Server without going over gRPC.
func (s *Server) PushBlock(ctx context.Context, b preprocess.Block) error {
	select {
	case s.blocks <- b:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ingest: push block: %w", ctx.Err())
	}
}

// Close signals no further blocks will be pushed in-process. Callers
// using PushBlocks (the gRPC path) should not call this directly;
// PushBlocks closes the channel itself once its stream ends.
func (s *Server) Close() { close(s.blocks) }
