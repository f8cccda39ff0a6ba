package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"hackohio/invoker/pkg/invoker"
)

// Runner is the part of *invoker.Invoker the service needs.
type Runner interface {
	RunTo(diag io.Writer, argv []string) int
	Mode() invoker.Mode
}

// InvokerService adapts a Runner to the gRPC service.
type InvokerService struct {
	runner    Runner
	tailBytes int
	// Optional discovery data
	Features []string
	Metadata map[string]string
}

var _ InvokerServer = (*InvokerService)(nil)

// NewInvokerService creates the service. Diagnostics returned to callers are
// cut to the last tailBytes bytes.
func NewInvokerService(runner Runner, tailBytes int, features []string, metadata map[string]string) *InvokerService {
	return &InvokerService{runner: runner, tailBytes: tailBytes, Features: features, Metadata: metadata}
}

// Compile runs one compilation synchronously. A malformed argv is not an RPC
// error; it yields exit code 1 like any other failed compile. Diagnostics
// that are not valid UTF-8 are repaired so the exit code always reaches the
// caller.
func (s *InvokerService) Compile(ctx context.Context, req *structpb.ListValue) (*structpb.Struct, error) {
	argv := make([]string, 0, len(req.GetValues()))
	for i, v := range req.GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "argument %d is not a string", i)
		}
		argv = append(argv, sv.StringValue)
	}

	diag := newReplyDiag(s.tailBytes)
	code := s.runner.RunTo(diag, argv)

	reply, err := structpb.NewStruct(map[string]interface{}{
		"exit_code":   code,
		"command":     validUTF8(diag.head.String()),
		"diagnostics": validUTF8(diag.tail.String()),
		"truncated":   diag.tail.Truncated(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return reply, nil
}

// headLimit caps the first diagnostic line kept in a reply.
const headLimit = 4 << 10

// replyDiag keeps the first diagnostic line, which carries the command, next
// to a bounded tail of everything written.
type replyDiag struct {
	head     bytes.Buffer
	headDone bool
	tail     *invoker.TailBuffer
}

func newReplyDiag(tailBytes int) *replyDiag {
	return &replyDiag{tail: invoker.NewTailBuffer(tailBytes)}
}

func (d *replyDiag) Write(p []byte) (int, error) {
	if !d.headDone {
		line := p
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			line = p[:i]
			d.headDone = true
		}
		if room := headLimit - d.head.Len(); len(line) > room {
			line = line[:room]
			d.headDone = true
		}
		d.head.Write(line)
	}
	return d.tail.Write(p)
}

func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// Discover returns the selected mode and static capabilities.
func (s *InvokerService) Discover(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	features := make([]interface{}, len(s.Features))
	for i, f := range s.Features {
		features[i] = f
	}
	metadata := make(map[string]interface{}, len(s.Metadata))
	for k, v := range s.Metadata {
		metadata[k] = v
	}
	reply, err := structpb.NewStruct(map[string]interface{}{
		"mode":     s.runner.Mode().String(),
		"features": features,
		"metadata": metadata,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return reply, nil
}

// LoggingInterceptor logs every unary call with its status and duration.
func LoggingInterceptor(log invoker.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		if err != nil {
			log.Error("rpc failed", "method", info.FullMethod, "code", code.String(), "error", err, "duration_ms", int(time.Since(start)/time.Millisecond))
			return resp, err
		}
		log.Debug("rpc", "method", info.FullMethod, "code", code.String(), "duration_ms", int(time.Since(start)/time.Millisecond))
		return resp, nil
	}
}
