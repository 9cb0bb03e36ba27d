package overlapsvc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danielpatrickdp/benchcluster/internal/coverage"
	"github.com/danielpatrickdp/benchcluster/internal/ctxlog"
)

// #region server
// Server answers OverlapService calls from a local provider.
type Server struct {
	provider coverage.Provider
}

// NewServer wraps provider.
func NewServer(provider coverage.Provider) *Server {
	return &Server{provider: provider}
}

// Register attaches the service to r.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&serviceDesc, s)
}

func (s *Server) Benchmarks(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	targets, candidates, err := s.provider.Benchmarks(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list benchmarks: %v", err)
	}
	out, err := structpb.NewStruct(map[string]any{
		fieldTargets:    stringsToAny(targets),
		fieldCandidates: stringsToAny(candidates),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode benchmarks: %v", err)
	}
	return out, nil
}

func (s *Server) Score(ctx context.Context, req *structpb.Struct) (*wrapperspb.DoubleValue, error) {
	target := req.GetFields()[fieldTarget].GetStringValue()
	candidate := req.GetFields()[fieldCandidate].GetStringValue()
	if target == "" || candidate == "" {
		return nil, status.Error(codes.InvalidArgument, "target and candidate are required")
	}
	score, err := s.provider.Overlap(ctx, target, candidate)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "overlap %s/%s: %v", target, candidate, err)
	}
	return wrapperspb.Double(score), nil
}

// #endregion server

// #region serve
// Serve listens on addr and serves provider until ctx is done.
func Serve(ctx context.Context, addr string, provider coverage.Provider) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return ServeListener(ctx, lis, provider)
}

// ServeListener serves provider on lis until ctx is done.
func ServeListener(ctx context.Context, lis net.Listener, provider coverage.Provider) error {
	logger := ctxlog.FromContext(ctx)

	gs := grpc.NewServer()
	NewServer(provider).Register(gs)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	logger.Info("overlap service listening", "addr", lis.Addr().String())
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// #endregion serve

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
