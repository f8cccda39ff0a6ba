package service

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "invoker.v1.Invoker"

// ProtoFile is the descriptor path registered for the service, so server
// reflection can describe it.
const ProtoFile = "invoker/v1/invoker.proto"

const (
	compileMethod  = "/" + ServiceName + "/Compile"
	discoverMethod = "/" + ServiceName + "/Discover"
)

// InvokerServer is the server API of invoker.v1.Invoker.
//
// Compile takes the command argument vector as a list of strings and replies
// with {"exit_code": number, "command": string, "diagnostics": string,
// "truncated": bool}. command is the first diagnostic line, kept even when
// diagnostics holds only the tail. Discover replies with
// {"mode": string, "features": [...], "metadata": {...}}.
type InvokerServer interface {
	Compile(context.Context, *structpb.ListValue) (*structpb.Struct, error)
	Discover(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterInvokerServer registers srv on s.
func RegisterInvokerServer(s grpc.ServiceRegistrar, srv InvokerServer) {
	s.RegisterService(&InvokerServiceDesc, srv)
}

// InvokerServiceDesc describes invoker.v1.Invoker for grpc.Server.
var InvokerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InvokerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compile", Handler: compileHandler},
		{MethodName: "Discover", Handler: discoverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: ProtoFile,
}

func init() {
	if _, err := registerFileDescriptor(protoregistry.GlobalFiles); err != nil {
		panic(err)
	}
}

// registerFileDescriptor builds the descriptor of invoker.v1.Invoker on top
// of the well-known struct and empty types and adds it to files. An already
// registered descriptor is returned as is.
func registerFileDescriptor(files *protoregistry.Files) (protoreflect.FileDescriptor, error) {
	if fd, err := files.FindFileByPath(ProtoFile); err == nil {
		return fd, nil
	}
	method := func(name, in, out string) *descriptorpb.MethodDescriptorProto {
		return &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(in),
			OutputType: proto.String(out),
		}
	}
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(ProtoFile),
		Package: proto.String("invoker.v1"),
		Dependency: []string{
			structpb.File_google_protobuf_struct_proto.Path(),
			emptypb.File_google_protobuf_empty_proto.Path(),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Invoker"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("Compile", ".google.protobuf.ListValue", ".google.protobuf.Struct"),
				method("Discover", ".google.protobuf.Empty", ".google.protobuf.Struct"),
			},
		}},
		Syntax: proto.String("proto3"),
	}
	fd, err := protodesc.NewFile(fdp, files)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", ProtoFile, err)
	}
	if err := files.RegisterFile(fd); err != nil {
		return nil, fmt.Errorf("register %s: %w", ProtoFile, err)
	}
	return fd, nil
}

func compileHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InvokerServer).Compile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: compileMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InvokerServer).Compile(ctx, req.(*structpb.ListValue))
	}
	return interceptor(ctx, in, info, handler)
}

func discoverHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InvokerServer).Discover(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: discoverMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InvokerServer).Discover(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// CompileResult is the decoded Compile reply.
type CompileResult struct {
	ExitCode    int
	Command     string
	Diagnostics string
	Truncated   bool
}

// Capabilities is the decoded Discover reply.
type Capabilities struct {
	Mode     string
	Features []string
	Metadata map[string]string
}

// Client calls invoker.v1.Invoker.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Compile sends argv verbatim and returns the remote outcome.
func (c *Client) Compile(ctx context.Context, argv []string, opts ...grpc.CallOption) (CompileResult, error) {
	vals := make([]interface{}, len(argv))
	for i, a := range argv {
		vals[i] = a
	}
	in, err := structpb.NewList(vals)
	if err != nil {
		return CompileResult{}, fmt.Errorf("encode argv: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, compileMethod, in, out, opts...); err != nil {
		return CompileResult{}, err
	}
	f := out.GetFields()
	return CompileResult{
		ExitCode:    int(f["exit_code"].GetNumberValue()),
		Command:     f["command"].GetStringValue(),
		Diagnostics: f["diagnostics"].GetStringValue(),
		Truncated:   f["truncated"].GetBoolValue(),
	}, nil
}

func (c *Client) Discover(ctx context.Context, opts ...grpc.CallOption) (Capabilities, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, discoverMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return Capabilities{}, err
	}
	f := out.GetFields()
	caps := Capabilities{
		Mode:     f["mode"].GetStringValue(),
		Metadata: map[string]string{},
	}
	for _, v := range f["features"].GetListValue().GetValues() {
		caps.Features = append(caps.Features, v.GetStringValue())
	}
	for k, v := range f["metadata"].GetStructValue().GetFields() {
		caps.Metadata[k] = v.GetStringValue()
	}
	return caps, nil
}
