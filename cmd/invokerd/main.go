package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"hackohio/invoker/internal/adapter/logging"
	"hackohio/invoker/internal/config"
	adminhttp "hackohio/invoker/internal/http"
	"hackohio/invoker/internal/service"
	"hackohio/invoker/pkg/embedded"
	"hackohio/invoker/pkg/invoker"
)

func main() {
	var (
		envFile  = flag.String("env", ".env", "optional env file")
		sock     = flag.String("socket", "", "unix socket path (overrides INVOKER_SOCKET)")
		admin    = flag.String("admin", "", "admin HTTP address (overrides INVOKER_ADMIN_ADDR)")
		compiler = flag.String("compiler", "", "compiler setting (overrides INVOKER_COMPILER)")
		feats    = flag.String("features", "", "comma-separated feature list")
		vmode    = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("load %s: %v", *envFile, err)
	}
	cfg := config.NewSystemConfig()
	if *sock != "" {
		cfg.Socket = *sock
	}
	if *admin != "" {
		cfg.AdminAddr = *admin
	}
	if *compiler != "" {
		cfg.Compiler = *compiler
	}

	logger := logging.NewZapLogger(cfg.DebugMode || *vmode)
	defer logger.Sync()

	inv := invoker.New(
		invoker.Config{Compiler: cfg.Compiler, Diag: os.Stderr},
		invoker.WithToolProvider(embedded.Provider{}),
		invoker.WithLogger(logger.Named("invoker")),
	)

	// Remove existing socket file if any
	if err := os.MkdirAll(filepath.Dir(cfg.Socket), 0o755); err != nil {
		logger.Error("mkdir socket dir", "error", err)
		os.Exit(1)
	}
	if _, err := os.Stat(cfg.Socket); err == nil {
		_ = os.Remove(cfg.Socket)
	}
	l, err := net.Listen("unix", cfg.Socket)
	if err != nil {
		logger.Error("listen", "socket", cfg.Socket, "error", err)
		os.Exit(1)
	}
	defer l.Close()
	_ = os.Chmod(cfg.Socket, 0o766)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(service.LoggingInterceptor(logger.Named("rpc"))))

	var features []string
	if *feats != "" {
		features = append(features, splitComma(*feats)...)
	}
	impl := service.NewInvokerService(inv, cfg.DiagTailBytes, features, map[string]string{"impl": "invoker"})
	service.RegisterInvokerServer(grpcServer, impl)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(service.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	// Enable server reflection for grpcurl and other tools
	reflection.Register(grpcServer)

	adminSrv := adminhttp.NewServer(cfg.AdminAddr, inv, logger.Named("admin"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gRPC invoker listening", "socket", cfg.Socket, "mode", inv.Mode().String())
		if err := grpcServer.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(adminSrv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		healthSrv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = adminSrv.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
