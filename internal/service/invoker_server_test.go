package service_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/known/structpb"

	"hackohio/invoker/internal/adapter/logging"
	"hackohio/invoker/internal/service"
	"hackohio/invoker/pkg/invoker"
)

// fakeRunner fails any argv whose last element contains "Bad".
type fakeRunner struct {
	mode invoker.Mode

	mu    sync.Mutex
	calls [][]string
}

func (f *fakeRunner) RunTo(diag io.Writer, argv []string) int {
	f.mu.Lock()
	f.calls = append(f.calls, argv)
	f.mu.Unlock()
	if len(argv) < 2 {
		fmt.Fprintln(diag, "malformed command")
		return invoker.ExitFailure
	}
	fmt.Fprintf(diag, "calling: %s\n", strings.Join(argv, " "))
	switch src := argv[len(argv)-1]; {
	case strings.Contains(src, "Accent"):
		io.WriteString(diag, "é"+strings.Repeat("x", 31))
		return 3
	case strings.Contains(src, "Binary"):
		diag.Write([]byte{'e', 'r', 'r', 0xff, 0xfe, '\n'})
		return 4
	case strings.Contains(src, "Flood"):
		for i := 0; i < 1000; i++ {
			io.WriteString(diag, strings.Repeat("e", 199)+"\n")
		}
		return 5
	}
	if strings.Contains(argv[len(argv)-1], "Bad") {
		fmt.Fprintln(diag, strings.Repeat("x", 100)+"syntax error")
		return 2
	}
	return invoker.ExitSuccess
}

func (f *fakeRunner) Mode() invoker.Mode { return f.mode }

func startServer(t *testing.T, runner service.Runner, tailBytes int) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(service.LoggingInterceptor(logging.NewNopLogger())))
	service.RegisterInvokerServer(srv, service.NewInvokerService(runner, tailBytes, []string{"compile"}, map[string]string{"impl": "fake"}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestCompileSuccess(t *testing.T) {
	runner := &fakeRunner{mode: invoker.ModeEmbedded}
	client := service.NewClient(startServer(t, runner, 0))

	res, err := client.Compile(context.Background(), []string{"javac", "-d", "/tmp/out", "Good.java"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
	if res.Command != "calling: javac -d /tmp/out Good.java" {
		t.Fatalf("command = %q", res.Command)
	}
	if res.Truncated {
		t.Fatalf("truncated = true for short diagnostics")
	}
	if !strings.Contains(res.Diagnostics, "calling: javac -d /tmp/out Good.java") {
		t.Fatalf("diagnostics = %q, want reconstructed command", res.Diagnostics)
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 1 || len(runner.calls[0]) != 4 {
		t.Fatalf("calls = %v, want one call with 4 args", runner.calls)
	}
}

func TestCompileFailureKeepsTail(t *testing.T) {
	client := service.NewClient(startServer(t, &fakeRunner{}, 32))

	res, err := client.Compile(context.Background(), []string{"javac", "Bad.java"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 2 {
		t.Fatalf("exit code = %d, want 2", res.ExitCode)
	}
	if len(res.Diagnostics) != 32 {
		t.Fatalf("len(diagnostics) = %d, want 32", len(res.Diagnostics))
	}
	if !strings.HasSuffix(res.Diagnostics, "syntax error\n") {
		t.Fatalf("diagnostics = %q, want tail ending in the error", res.Diagnostics)
	}
}

func TestCompileMalformed(t *testing.T) {
	client := service.NewClient(startServer(t, &fakeRunner{}, 0))

	res, err := client.Compile(context.Background(), []string{"javac"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1", res.ExitCode)
	}
}

func TestCompileRejectsNonString(t *testing.T) {
	conn := startServer(t, &fakeRunner{}, 0)
	in, err := structpb.NewList([]interface{}{"javac", 3.0, "Good.java"})
	if err != nil {
		t.Fatal(err)
	}
	err = conn.Invoke(context.Background(), "/"+service.ServiceName+"/Compile", in, new(structpb.Struct))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestDiscover(t *testing.T) {
	client := service.NewClient(startServer(t, &fakeRunner{mode: invoker.ModeExternal}, 0))

	caps, err := client.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps.Mode != "external" {
		t.Fatalf("mode = %q, want external", caps.Mode)
	}
	if len(caps.Features) != 1 || caps.Features[0] != "compile" {
		t.Fatalf("features = %v", caps.Features)
	}
	if caps.Metadata["impl"] != "fake" {
		t.Fatalf("metadata[impl] = %q, want fake", caps.Metadata["impl"])
	}
}

func TestCompileTailCutInsideRune(t *testing.T) {
	client := service.NewClient(startServer(t, &fakeRunner{}, 32))

	res, err := client.Compile(context.Background(), []string{"javac", "Accent.java"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if res.Diagnostics != strings.Repeat("x", 31) {
		t.Fatalf("diagnostics = %q, want 31 x", res.Diagnostics)
	}
}

func TestCompileInvalidUTF8Diagnostics(t *testing.T) {
	client := service.NewClient(startServer(t, &fakeRunner{}, 0))

	res, err := client.Compile(context.Background(), []string{"javac", "Binary.java"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 4 {
		t.Fatalf("exit code = %d, want 4", res.ExitCode)
	}
	if !strings.Contains(res.Diagnostics, "err\uFFFD") {
		t.Fatalf("diagnostics = %q, want replacement character", res.Diagnostics)
	}
}

func TestCompileLargeDiagnosticsKeepCommand(t *testing.T) {
	client := service.NewClient(startServer(t, &fakeRunner{}, 8<<10))

	res, err := client.Compile(context.Background(), []string{"javac", "-d", "/tmp/out", "Flood.java"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 5 {
		t.Fatalf("exit code = %d, want 5", res.ExitCode)
	}
	if !res.Truncated {
		t.Fatalf("truncated = false, want true")
	}
	if strings.Contains(res.Diagnostics, "calling:") {
		t.Fatalf("tail unexpectedly holds the command line")
	}
	if res.Command != "calling: javac -d /tmp/out Flood.java" {
		t.Fatalf("command = %q", res.Command)
	}
}

func TestServiceDescriptorRegistered(t *testing.T) {
	d, err := protoregistry.GlobalFiles.FindDescriptorByName(protoreflect.FullName(service.ServiceName))
	if err != nil {
		t.Fatalf("find %s: %v", service.ServiceName, err)
	}
	sd, ok := d.(protoreflect.ServiceDescriptor)
	if !ok {
		t.Fatalf("descriptor = %T, want service", d)
	}
	if got := sd.ParentFile().Path(); got != service.InvokerServiceDesc.Metadata {
		t.Fatalf("file = %q, want %q", got, service.InvokerServiceDesc.Metadata)
	}
	compile := sd.Methods().ByName("Compile")
	if compile == nil || compile.Input().FullName() != "google.protobuf.ListValue" || compile.Output().FullName() != "google.protobuf.Struct" {
		t.Fatalf("Compile descriptor = %v", compile)
	}
	if sd.Methods().ByName("Discover") == nil {
		t.Fatalf("Discover missing")
	}
}
