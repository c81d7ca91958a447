// Package ingest exposes the Preprocess stage's block-callback contract
// (preprocess.Source) as a streaming gRPC service, so an OSM-XML or
// OSM-PBF front end can run as a separate, replaceable process that
// pushes parsed blocks to the importer rather than being compiled into
// it. No .proto/.pb.go pair exists anywhere in the retrieved corpus to
// imitate, so the service descriptor below is hand-wired directly
// against google.golang.org/grpc the way protoc-gen-go-grpc output
// would look, using structpb.Struct (a real generated protobuf message,
// not a hand-authored one) as the wire type in place of a
// domain-specific generated message.
package ingest

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "mapimport.ingest.BlockIngest"

// BlockIngestServer is implemented by Server.
type BlockIngestServer interface {
	PushBlocks(BlockIngest_PushBlocksServer) error
}

// BlockIngest_PushBlocksServer is the server-side handle for the
// PushBlocks client-streaming RPC.
type BlockIngest_PushBlocksServer interface {
	SendAndClose(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

type blockIngestPushBlocksServer struct {
	grpc.ServerStream
}

func (x *blockIngestPushBlocksServer) SendAndClose(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *blockIngestPushBlocksServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _BlockIngest_PushBlocks_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(BlockIngestServer).PushBlocks(&blockIngestPushBlocksServer{ServerStream: stream})
}

// ServiceDesc is registered against a *grpc.Server the way a generated
// _ServiceDesc var would be.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*BlockIngestServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "PushBlocks",
			Handler:       _BlockIngest_PushBlocks_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "ingest.proto",
}

// BlockIngestClient is the client stub a front-end process dials.
type BlockIngestClient interface {
	PushBlocks(ctx context.Context, opts ...grpc.CallOption) (BlockIngest_PushBlocksClient, error)
}

type blockIngestClient struct {
	cc grpc.ClientConnInterface
}

func NewBlockIngestClient(cc grpc.ClientConnInterface) BlockIngestClient {
	return &blockIngestClient{cc: cc}
}

func (c *blockIngestClient) PushBlocks(ctx context.Context, opts ...grpc.CallOption) (BlockIngest_PushBlocksClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+serviceName+"/PushBlocks", opts...)
	if err != nil {
		return nil, err
	}
	return &blockIngestPushBlocksClient{ClientStream: stream}, nil
}

// BlockIngest_PushBlocksClient is the client-side handle for PushBlocks.
type BlockIngest_PushBlocksClient interface {
	Send(*structpb.Struct) error
	CloseAndRecv() (*structpb.Struct, error)
	grpc.ClientStream
}

type blockIngestPushBlocksClient struct {
	grpc.ClientStream
}

func (x *blockIngestPushBlocksClient) Send(m *structpb.Struct) error {
	return x.ClientStream.SendMsg(m)
}

func (x *blockIngestPushBlocksClient) CloseAndRecv() (*structpb.Struct, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
