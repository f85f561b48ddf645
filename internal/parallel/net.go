package parallel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// rawCodec lets the collective RPC carry a flat []byte payload with no
// .proto-defined message type — the broadcast/all-reduce payload is
// already a flat byte encoding produced by internal/codec, so there is
// nothing for a generated message type to add. See DESIGN.md's "grpc
// without codegen" note.
type rawCodec struct{}

func (rawCodec) Name() string { return "raw" }

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("parallel: rawCodec.Marshal: unsupported type %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("parallel: rawCodec.Unmarshal: unsupported type %T", v)
	}
	*b = append([]byte(nil), data...)
	return nil
}

func init() {
	encoding.RegisterCodec(rawCodec{})
}

const rawServiceName = "sddspage.parallel.RawExchange"
const rawMethodName = "Call"
const rawFullMethod = "/" + rawServiceName + "/" + rawMethodName

// rawExchangeServer is the single untyped RPC this package registers.
type rawExchangeServer interface {
	Call(ctx context.Context, req []byte) ([]byte, error)
}

func rawCallHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req []byte
	if err := dec(&req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rawExchangeServer).Call(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rawFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(rawExchangeServer).Call(ctx, req.([]byte))
	}
	return interceptor(ctx, req, info, handler)
}

// rawServiceDesc is the hand-registered ServiceDesc: no protoc run, no
// generated .pb.go, just one method name and a raw-bytes handler.
var rawServiceDesc = grpc.ServiceDesc{
	ServiceName: rawServiceName,
	HandlerType: (*rawExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: rawMethodName, Handler: rawCallHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/parallel/net.go",
}

// opcode selects which collective a raw RPC call performs.
type opcode byte

const (
	opBroadcast opcode = iota
	opAllReduce
	opAllReduceMin
	opBarrier
)

// encodeRequest packs [op:1][rank:4][root:4][payload...] — root is only
// meaningful for opBroadcast.
func encodeRequest(op opcode, rank, root int, payload []byte) []byte {
	buf := make([]byte, 9+len(payload))
	buf[0] = byte(op)
	binary.BigEndian.PutUint32(buf[1:5], uint32(rank))
	binary.BigEndian.PutUint32(buf[5:9], uint32(root))
	copy(buf[9:], payload)
	return buf
}

func decodeRequest(b []byte) (op opcode, rank, root int, payload []byte, err error) {
	if len(b) < 9 {
		return 0, 0, 0, nil, errors.New("parallel: malformed collective request")
	}
	op = opcode(b[0])
	rank = int(int32(binary.BigEndian.Uint32(b[1:5])))
	root = int(int32(binary.BigEndian.Uint32(b[5:9])))
	return op, rank, root, b[9:], nil
}

// netHubServer is the root-side RPC handler: it feeds every incoming call
// into the same rendezvous hub used by LocalCommunicator, plus the root's
// own local contribution, which is made directly (no loopback RPC).
type netHubServer struct {
	hub *hub
}

func (s *netHubServer) Call(_ context.Context, req []byte) ([]byte, error) {
	op, rank, root, payload, err := decodeRequest(req)
	if err != nil {
		return nil, err
	}
	switch op {
	case opBroadcast:
		return s.hub.broadcast(root, rank, payload), nil
	case opAllReduce:
		if len(payload) != 8 {
			return nil, errors.New("parallel: all-reduce payload must be 8 bytes")
		}
		local := int64(binary.BigEndian.Uint64(payload))
		total := s.hub.allReduceSum(local)
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, uint64(total))
		return out, nil
	case opAllReduceMin:
		if len(payload) != 8 {
			return nil, errors.New("parallel: all-reduce payload must be 8 bytes")
		}
		local := int64(binary.BigEndian.Uint64(payload))
		m := s.hub.allReduceMin(local)
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, uint64(m))
		return out, nil
	case opBarrier:
		s.hub.barrier()
		return nil, nil
	default:
		return nil, fmt.Errorf("parallel: unknown opcode %d", op)
	}
}

// NetServer hosts the root side of a NetCommunicator set: a gRPC server
// that peer processes dial into. Grounded on the teacher's
// cmd/server/main.go listener setup.
type NetServer struct {
	lis    net.Listener
	server *grpc.Server
	hub    *hub
	rank   int
	size   int

	mu      sync.Mutex
	started bool
}

// NewNetServer starts listening on addr as rank root of size ranks total.
func NewNetServer(addr string, size int) (*NetServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	h := newHub(size)
	gs.RegisterService(&rawServiceDesc, &netHubServer{hub: h})
	ns := &NetServer{lis: lis, server: gs, hub: h, rank: 0, size: size}
	return ns, nil
}

// Addr returns the address peers should dial.
func (s *NetServer) Addr() string { return s.lis.Addr().String() }

// Serve blocks, accepting peer connections, until Stop is called.
func (s *NetServer) Serve() error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return s.server.Serve(s.lis)
}

// Stop gracefully shuts the server down.
func (s *NetServer) Stop() { s.server.GracefulStop() }

// Communicator returns rank 0's own Communicator handle, sharing the
// server's hub directly (no RPC round-trip for the root's own calls).
func (s *NetServer) Communicator() Communicator {
	return &LocalCommunicator{hub: s.hub, rank: 0, size: s.size}
}

// NetCommunicator is a non-root rank's Communicator, talking to the root's
// NetServer over gRPC with the raw-bytes codec (no protoc run — see
// DESIGN.md's "grpc without codegen").
type NetCommunicator struct {
	conn *grpc.ClientConn
	rank int
	size int
}

// DialNetCommunicator connects to a NetServer at addr as the given rank.
func DialNetCommunicator(ctx context.Context, addr string, rank, size int) (*NetCommunicator, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &NetCommunicator{conn: conn, rank: rank, size: size}, nil
}

// Close releases the underlying gRPC connection.
func (c *NetCommunicator) Close() error { return c.conn.Close() }

func (c *NetCommunicator) Rank() int { return c.rank }
func (c *NetCommunicator) Size() int { return c.size }

func (c *NetCommunicator) call(ctx context.Context, req []byte) ([]byte, error) {
	var reply []byte
	err := c.conn.Invoke(ctx, rawFullMethod, &req, &reply, grpc.CallContentSubtype("raw"))
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *NetCommunicator) Broadcast(ctx context.Context, root int, data []byte) ([]byte, error) {
	return c.call(ctx, encodeRequest(opBroadcast, c.rank, root, data))
}

func (c *NetCommunicator) AllReduceSumInt64(ctx context.Context, local int64) (int64, error) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(local))
	reply, err := c.call(ctx, encodeRequest(opAllReduce, c.rank, 0, payload))
	if err != nil {
		return 0, err
	}
	if len(reply) != 8 {
		return 0, errors.New("parallel: malformed all-reduce reply")
	}
	return int64(binary.BigEndian.Uint64(reply)), nil
}

func (c *NetCommunicator) AllReduceMinInt64(ctx context.Context, local int64) (int64, error) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(local))
	reply, err := c.call(ctx, encodeRequest(opAllReduceMin, c.rank, 0, payload))
	if err != nil {
		return 0, err
	}
	if len(reply) != 8 {
		return 0, errors.New("parallel: malformed all-reduce reply")
	}
	return int64(binary.BigEndian.Uint64(reply)), nil
}

func (c *NetCommunicator) Barrier(ctx context.Context) error {
	_, err := c.call(ctx, encodeRequest(opBarrier, c.rank, 0, nil))
	return err
}
