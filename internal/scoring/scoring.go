// Package scoring connects feature vectors to an external scoring service
// over gRPC. The service contract is a single unary method that takes the
// vector as a list of numbers and returns a score.
package scoring

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"DDoSDefender/internal/config"
	"DDoSDefender/internal/model"
)

const (
	serviceName  = "ddos.v1.ScoringService"
	scoreMethod  = "/" + serviceName + "/Score"
	versionMDKey = "x-feature-vector-version"
)

// Client calls a remote scoring service.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewClient creates a client for the service at cfg.Addr. The connection is
// established lazily on the first call.
func NewClient(cfg config.ScoringConfig, opts ...grpc.DialOption) (*Client, error) {
	timeout, err := config.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid scoring timeout: %w", err)
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to scoring service: %w", err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Score sends vec to the service and returns its score.
func (c *Client) Score(ctx context.Context, vec model.FeatureVector) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := vectorToList(vec)
	if err != nil {
		return 0, err
	}
	var resp wrapperspb.DoubleValue
	ctx = withVersion(ctx)
	if err := c.conn.Invoke(ctx, scoreMethod, req, &resp); err != nil {
		return 0, fmt.Errorf("scoring call failed: %w", err)
	}
	return resp.GetValue(), nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ScoringServer is implemented by scorers served with RegisterScoringServer.
type ScoringServer interface {
	Score(ctx context.Context, vec model.FeatureVector) (float64, error)
}

// RegisterScoringServer exposes srv on s under the scoring service name.
func RegisterScoringServer(s grpc.ServiceRegistrar, srv ScoringServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ScoringServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Score", Handler: scoreHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func scoreHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	handle := func(ctx context.Context, req interface{}) (interface{}, error) {
		if err := checkVersion(ctx); err != nil {
			return nil, err
		}
		vec, err := listToVector(req.(*structpb.ListValue))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		score, err := srv.(ScoringServer).Score(ctx, vec)
		if err != nil {
			return nil, err
		}
		return wrapperspb.Double(score), nil
	}
	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: scoreMethod}
	return interceptor(ctx, in, info, handle)
}

func vectorToList(vec model.FeatureVector) (*structpb.ListValue, error) {
	values := make([]interface{}, model.FeatureVectorLength)
	for i, v := range vec {
		values[i] = v
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode feature vector: %w", err)
	}
	return list, nil
}

func listToVector(list *structpb.ListValue) (model.FeatureVector, error) {
	var vec model.FeatureVector
	values := list.GetValues()
	if len(values) != model.FeatureVectorLength {
		return vec, fmt.Errorf("feature vector has %d elements, want %d", len(values), model.FeatureVectorLength)
	}
	for i, v := range values {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return vec, fmt.Errorf("feature vector element %d is not a number", i)
		}
		vec[i] = n.NumberValue
	}
	return vec, nil
}
