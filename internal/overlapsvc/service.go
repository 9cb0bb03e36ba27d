// Package overlapsvc exposes a coverage.Provider over gRPC so overlap can be
// measured on the host that holds the coverage reports.
package overlapsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// #region service-desc
const (
	ServiceName      = "benchcluster.OverlapService"
	benchmarksMethod = "/" + ServiceName + "/Benchmarks"
	scoreMethod      = "/" + ServiceName + "/Score"
	fieldTargets     = "targets"
	fieldCandidates  = "candidates"
	fieldTarget      = "target"
	fieldCandidate   = "candidate"
)

// overlapServer is the handler type checked by grpc.Server.RegisterService.
type overlapServer interface {
	Benchmarks(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Score(context.Context, *structpb.Struct) (*wrapperspb.DoubleValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*overlapServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Benchmarks", Handler: benchmarksHandler},
		{MethodName: "Score", Handler: scoreHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "benchcluster/overlap.proto",
}

func benchmarksHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(overlapServer).Benchmarks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: benchmarksMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(overlapServer).Benchmarks(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func scoreHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(overlapServer).Score(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: scoreMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(overlapServer).Score(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service-desc
