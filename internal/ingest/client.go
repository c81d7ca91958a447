package ingest

import (
	"context"
	"fmt"

	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
)

// Pusher streams blocks to a BlockIngestClient, letting a front-end
// process (an OSM-PBF or OSM-XML parser running as its own binary) feed
// an importer run over the network instead of being compiled into it.
type Pusher struct {
	client BlockIngestClient
}

func NewPusher(client BlockIngestClient) *Pusher {
	return &Pusher{client: client}
}

// Run opens one PushBlocks stream, pushes every block src yields, and
// returns once src is exhausted or ctx is canceled.
func (p *Pusher) Run(ctx context.Context, src preprocess.Source) error {
	stream, err := p.client.PushBlocks(ctx)
	if err != nil {
		return fmt.Errorf("ingest: open push stream: %w", err)
	}
	for {
		block, ok, err := src.Next(ctx)
		if err != nil {
			return fmt.Errorf("ingest: read block: %w", err)
		}
		if !ok {
			_, err := stream.CloseAndRecv()
			if err != nil {
				return fmt.Errorf("ingest: close push stream: %w", err)
			}
			return nil
		}
		msg, err := blockToStruct(block)
		if err != nil {
			return fmt.Errorf("ingest: encode block: %w", err)
		}
		if err := stream.Send(msg); err != nil {
			return fmt.Errorf("ingest: send block: %w", err)
		}
	}
}
