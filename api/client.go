package api

import (
	"context"

	"github.com/beka-birhanu/claw-arbiter/model"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ClawArbiterClient calls claw.v1.ClawArbiter over a client connection.
// Messages travel as google.protobuf.Struct, so any proto client can call
// the service the same way.
type ClawArbiterClient struct {
	cc grpc.ClientConnInterface
}

func NewClawArbiterClient(cc grpc.ClientConnInterface) *ClawArbiterClient {
	return &ClawArbiterClient{cc: cc}
}

func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	req, err := toStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	reply := new(structpb.Struct)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, req, reply, opts...); err != nil {
		return nil, err
	}
	out := new(Res)
	if err := fromStruct(reply, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (c *ClawArbiterClient) JoinQueue(ctx context.Context, in *JoinQueueRequest, opts ...grpc.CallOption) (*model.JoinResult, error) {
	return invoke[model.JoinResult](ctx, c.cc, "JoinQueue", in, opts)
}

func (c *ClawArbiterClient) LeaveQueue(ctx context.Context, in *LeaveQueueRequest, opts ...grpc.CallOption) (*model.LeaveResult, error) {
	return invoke[model.LeaveResult](ctx, c.cc, "LeaveQueue", in, opts)
}

func (c *ClawArbiterClient) QueueStatus(ctx context.Context, in *QueueStatusRequest, opts ...grpc.CallOption) (*model.Snapshot, error) {
	return invoke[model.Snapshot](ctx, c.cc, "QueueStatus", in, opts)
}

func (c *ClawArbiterClient) InitGame(ctx context.Context, in *InitGameRequest, opts ...grpc.CallOption) (*model.RoundState, error) {
	return invoke[model.RoundState](ctx, c.cc, "InitGame", in, opts)
}

func (c *ClawArbiterClient) Move(ctx context.Context, in *MoveRequest, opts ...grpc.CallOption) (*model.MoveResult, error) {
	return invoke[model.MoveResult](ctx, c.cc, "Move", in, opts)
}

func (c *ClawArbiterClient) Grab(ctx context.Context, in *GrabRequest, opts ...grpc.CallOption) (*model.GrabResult, error) {
	return invoke[model.GrabResult](ctx, c.cc, "Grab", in, opts)
}
