package api

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestClient(t *testing.T) (*fakeRouter, *ClawArbiterClient) {
	t.Helper()
	router := newFakeRouter()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(nopLogger{})))
	require.NoError(t, RegisterNewClawArbiter(server, router))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return router, NewClawArbiterClient(conn)
}

func TestGRPCQueue(t *testing.T) {
	router, client := newTestClient(t)
	ctx := context.Background()

	joined, err := client.JoinQueue(ctx, &JoinQueueRequest{ClientID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, joined.Position)
	assert.Equal(t, "c1", router.last().clientID)

	snap, err := client.QueueStatus(ctx, &QueueStatusRequest{})
	require.NoError(t, err)
	require.NotNil(t, snap.ActiveClientID)
	assert.Equal(t, "holder", *snap.ActiveClientID)
	assert.Equal(t, 12, snap.RemainingSeconds)

	left, err := client.LeaveQueue(ctx, &LeaveQueueRequest{ClientID: "c1"})
	require.NoError(t, err)
	assert.True(t, left.WasQueued)
}

func TestGRPCGame(t *testing.T) {
	router, client := newTestClient(t)
	ctx := context.Background()

	state, err := client.InitGame(ctx, &InitGameRequest{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 3, state.Round)
	require.Len(t, state.Objects, 1)
	assert.Equal(t, "Donut", state.Objects[0].Label)
	assert.Equal(t, "grpc", router.last().arg)
	assert.True(t, router.last().force)

	moved, err := client.Move(ctx, &MoveRequest{ClientID: "holder", Direction: "up"})
	require.NoError(t, err)
	assert.Equal(t, -20, moved.Position.Y)

	grabbed, err := client.Grab(ctx, &GrabRequest{ClientID: "holder"})
	require.NoError(t, err)
	assert.True(t, grabbed.Captured)
	assert.Nil(t, router.last().at)

	inactive := false
	released, err := client.Grab(ctx, &GrabRequest{ClientID: "holder", Active: &inactive})
	require.NoError(t, err)
	assert.True(t, released.Released)
}

func TestGRPCErrorCodes(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Move(ctx, &MoveRequest{ClientID: "holder", Direction: "sideways"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Move(ctx, &MoveRequest{ClientID: "intruder", Direction: "up"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.JoinQueue(ctx, &JoinQueueRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRegisterRequiresRouter(t *testing.T) {
	assert.ErrorIs(t, RegisterNewClawArbiter(grpc.NewServer(), nil), ErrMissingRouter)
}

func TestGRPCServesPlainProtoClients(t *testing.T) {
	router, client := newTestClient(t)
	ctx := context.Background()

	in, err := structpb.NewStruct(map[string]any{"clientId": "holder", "direction": "up"})
	require.NoError(t, err)
	out := new(structpb.Struct)
	require.NoError(t, client.cc.Invoke(ctx, "/claw.v1.ClawArbiter/Move", in, out))

	assert.Equal(t, "up", router.last().arg)
	position := out.GetFields()["position"].GetStructValue()
	require.NotNil(t, position)
	assert.Equal(t, float64(-20), position.GetFields()["y"].GetNumberValue())

	bad, err := structpb.NewStruct(map[string]any{"clientId": 7})
	require.NoError(t, err)
	err = client.cc.Invoke(ctx, "/claw.v1.ClawArbiter/JoinQueue", bad, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
