package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/banshee-data/visionary.report/internal/monitoring"
)

var grpcLogf = monitoring.Tagged("gRPC")

// DefaultMaxMessageBytes fits a full-resolution point cloud with headroom.
const DefaultMaxMessageBytes = 16 * 1024 * 1024

const subscribeMethod = "/visionary.v1.RecordStream/Subscribe"

// recordStreamServer is the handler type for the RecordStream service. The
// request names a topic; each response carries one encoded record.
type recordStreamServer interface {
	Subscribe(req *wrapperspb.StringValue, stream grpc.ServerStream) error
}

var recordStreamDesc = grpc.ServiceDesc{
	ServiceName: "visionary.v1.RecordStream",
	HandlerType: (*recordStreamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "visionary/v1/record_stream.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(recordStreamServer).Subscribe(req, stream)
}

// ServerConfig configures the gRPC record server.
type ServerConfig struct {
	ListenAddr      string
	MaxMessageBytes int
	// SubscriberBuffer is the bus queue depth for each stream.
	SubscriberBuffer int
}

// Server streams bus topics to remote consumers. Each open stream holds one
// bus subscription, so it counts as demand for its topic until it ends.
type Server struct {
	cfg ServerConfig
	bus *Bus

	server   *grpc.Server
	listener net.Listener
	running  atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup

	streams atomic.Int64
}

var _ recordStreamServer = (*Server)(nil)

// NewServer creates a server over bus.
func NewServer(bus *Bus, cfg ServerConfig) *Server {
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	return &Server{cfg: cfg, bus: bus}
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}
	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on lis in the background. The server takes ownership of lis.
// A stopped server may be served again on a new listener.
func (s *Server) Serve(lis net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("server already running")
	}
	s.listener = lis
	s.stopCh = make(chan struct{})
	s.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(s.cfg.MaxMessageBytes),
		grpc.MaxSendMsgSize(s.cfg.MaxMessageBytes),
	)
	s.server.RegisterService(&recordStreamDesc, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		grpcLogf("listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			grpcLogf("server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveStreams reports the number of open Subscribe streams.
func (s *Server) ActiveStreams() int64 {
	return s.streams.Load()
}

// Stop ends every open stream and waits for the server to exit.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	s.server.GracefulStop()
	s.wg.Wait()
	grpcLogf("server stopped")
}

// Subscribe implements the RecordStream service.
func (s *Server) Subscribe(req *wrapperspb.StringValue, stream grpc.ServerStream) error {
	topic := req.GetValue()
	sub, err := s.bus.Subscribe(topic, s.cfg.SubscriberBuffer)
	switch {
	case errors.Is(err, ErrUnknownTopic):
		return status.Errorf(codes.NotFound, "unknown topic %q", topic)
	case errors.Is(err, ErrBusClosed):
		return status.Error(codes.Unavailable, "bus closed")
	case err != nil:
		return status.Error(codes.Internal, err.Error())
	}
	defer sub.Close()

	s.streams.Add(1)
	defer s.streams.Add(-1)
	grpcLogf("stream %s opened for %s", sub.ID, topic)

	ctx := stream.Context()
	stopCh := s.stopCh
	for {
		select {
		case <-ctx.Done():
			grpcLogf("stream %s cancelled", sub.ID)
			return ctx.Err()
		case <-stopCh:
			return status.Error(codes.Unavailable, "server stopping")
		case msg, ok := <-sub.C:
			if !ok {
				return status.Error(codes.Unavailable, "bus closed")
			}
			if err := stream.SendMsg(wrapperspb.Bytes(msg.Data)); err != nil {
				grpcLogf("send error on %s: %v", sub.ID, err)
				return err
			}
		}
	}
}

// Client subscribes to topics on a remote record server.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target. Without options the connection is plaintext and
// accepts messages up to DefaultMaxMessageBytes.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(DefaultMaxMessageBytes)),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Stream is one open subscription.
type Stream struct {
	cs grpc.ClientStream
}

// Subscribe opens a stream on topic. Cancel ctx to end it.
func (c *Client) Subscribe(ctx context.Context, topic string) (*Stream, error) {
	cs, err := c.conn.NewStream(ctx, &recordStreamDesc.Streams[0], subscribeMethod)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(wrapperspb.String(topic)); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &Stream{cs: cs}, nil
}

// Recv blocks for the next encoded record.
func (s *Stream) Recv() ([]byte, error) {
	msg := new(wrapperspb.BytesValue)
	if err := s.cs.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg.GetValue(), nil
}
