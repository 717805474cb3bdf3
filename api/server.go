package api

import (
	"context"
	"fmt"

	"github.com/beka-birhanu/claw-arbiter/model"
	"github.com/beka-birhanu/claw-arbiter/service/i"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "claw.v1.ClawArbiter"

type JoinQueueRequest struct {
	ClientID string `json:"clientId"`
}

type LeaveQueueRequest struct {
	ClientID string `json:"clientId"`
}

type QueueStatusRequest struct{}

type InitGameRequest struct {
	Source string `json:"source"`
	Force  bool   `json:"force"`
}

type MoveRequest struct {
	ClientID  string `json:"clientId"`
	Direction string `json:"direction"`
}

// GrabRequest asks for a grab. Active defaults to true; X and Y are the
// claw position as the client sees it.
type GrabRequest struct {
	ClientID string   `json:"clientId"`
	Active   *bool    `json:"active,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
}

func (r *GrabRequest) isActive() bool { return r.Active == nil || *r.Active }

func (r *GrabRequest) point() *model.Point {
	if r.X == nil || r.Y == nil {
		return nil
	}
	return &model.Point{X: *r.X, Y: *r.Y}
}

// ClawArbiterServer is the server API of claw.v1.ClawArbiter.
type ClawArbiterServer interface {
	JoinQueue(context.Context, *JoinQueueRequest) (*model.JoinResult, error)
	LeaveQueue(context.Context, *LeaveQueueRequest) (*model.LeaveResult, error)
	QueueStatus(context.Context, *QueueStatusRequest) (*model.Snapshot, error)
	InitGame(context.Context, *InitGameRequest) (*model.RoundState, error)
	Move(context.Context, *MoveRequest) (*model.MoveResult, error)
	Grab(context.Context, *GrabRequest) (*model.GrabResult, error)
}

type Server struct {
	router i.CommandRouter
}

// RegisterNewClawArbiter creates the arbiter service over router and
// registers it on gsr.
func RegisterNewClawArbiter(gsr grpc.ServiceRegistrar, router i.CommandRouter) error {
	if router == nil {
		return ErrMissingRouter
	}
	server := &Server{
		router: router,
	}

	gsr.RegisterService(&ClawArbiterServiceDesc, server)
	return nil
}

func (s *Server) JoinQueue(_ context.Context, r *JoinQueueRequest) (*model.JoinResult, error) {
	res, err := s.router.JoinQueue(r.ClientID)
	if err != nil {
		return nil, grpcError(err)
	}
	return &res, nil
}

func (s *Server) LeaveQueue(_ context.Context, r *LeaveQueueRequest) (*model.LeaveResult, error) {
	res, err := s.router.LeaveQueue(r.ClientID)
	if err != nil {
		return nil, grpcError(err)
	}
	return &res, nil
}

func (s *Server) QueueStatus(context.Context, *QueueStatusRequest) (*model.Snapshot, error) {
	snap := s.router.QueueStatus()
	return &snap, nil
}

func (s *Server) InitGame(ctx context.Context, r *InitGameRequest) (*model.RoundState, error) {
	source := r.Source
	if source == "" {
		source = "grpc"
	}
	state := s.router.InitGame(ctx, source, r.Force)
	return &state, nil
}

func (s *Server) Move(ctx context.Context, r *MoveRequest) (*model.MoveResult, error) {
	res, err := s.router.Move(ctx, r.ClientID, r.Direction)
	if err != nil {
		return nil, grpcError(err)
	}
	return &res, nil
}

func (s *Server) Grab(ctx context.Context, r *GrabRequest) (*model.GrabResult, error) {
	res, err := s.router.Grab(ctx, r.ClientID, r.isActive(), r.point())
	if err != nil {
		return nil, grpcError(err)
	}
	return &res, nil
}

// unaryHandler adapts a typed method to the wire, where every request and
// response is a google.protobuf.Struct under the default proto codec.
func unaryHandler[Req any, Res any](method string, call func(ClawArbiterServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	typed := func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		req := new(Req)
		if err := fromStruct(in, req); err != nil {
			return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("%s: %s", ErrBadPayload, err))
		}
		res, err := call(srv.(ClawArbiterServer), ctx, req)
		if err != nil {
			return nil, err
		}
		out, err := toStruct(res)
		if err != nil {
			return nil, status.Error(codes.Internal, fmt.Sprintf("encoding %s result: %s", method, err))
		}
		return out, nil
	}

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return typed(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + serviceName + "/" + method,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return typed(srv, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ClawArbiterServiceDesc describes claw.v1.ClawArbiter for grpc.Server.
var ClawArbiterServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ClawArbiterServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("JoinQueue", ClawArbiterServer.JoinQueue),
		unaryHandler("LeaveQueue", ClawArbiterServer.LeaveQueue),
		unaryHandler("QueueStatus", ClawArbiterServer.QueueStatus),
		unaryHandler("InitGame", ClawArbiterServer.InitGame),
		unaryHandler("Move", ClawArbiterServer.Move),
		unaryHandler("Grab", ClawArbiterServer.Grab),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "claw/v1/arbiter",
}
