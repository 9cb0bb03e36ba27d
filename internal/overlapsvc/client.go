package overlapsvc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danielpatrickdp/benchcluster/internal/coverage"
)

// #region client-struct
// Client is a coverage.Provider backed by a remote OverlapService.
type Client struct {
	conn   grpc.ClientConnInterface
	closer func() error
}

var _ coverage.Provider = (*Client)(nil)

// #endregion client-struct

// #region constructor
// NewClient connects to the overlap service at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, closer: conn.Close}, nil
}

// NewClientWithConn uses an existing connection. Close leaves it open.
func NewClientWithConn(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Close shuts down a connection opened by NewClient.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// #endregion constructor

// #region calls
func (c *Client) Benchmarks(ctx context.Context) ([]string, []string, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, benchmarksMethod, &emptypb.Empty{}, out); err != nil {
		return nil, nil, fmt.Errorf("benchmarks rpc: %w", err)
	}
	return listField(out, fieldTargets), listField(out, fieldCandidates), nil
}

func (c *Client) Overlap(ctx context.Context, target, candidate string) (float64, error) {
	req, err := structpb.NewStruct(map[string]any{
		fieldTarget:    target,
		fieldCandidate: candidate,
	})
	if err != nil {
		return 0, fmt.Errorf("encode score request: %w", err)
	}
	out := new(wrapperspb.DoubleValue)
	if err := c.conn.Invoke(ctx, scoreMethod, req, out); err != nil {
		return 0, fmt.Errorf("score rpc: %w", err)
	}
	return out.GetValue(), nil
}

func listField(s *structpb.Struct, key string) []string {
	values := s.GetFields()[key].GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}

// #endregion calls
