// Package example parses example server flags and runs an instrumented
// gRPC server that exposes the standard health service.
package example

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/louisbranch/grpcmetrics"
	"github.com/louisbranch/grpcmetrics/internal/config"
	"github.com/louisbranch/grpcmetrics/provider"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "grpcmetrics-example"

const shutdownTimeout = 5 * time.Second

// Config holds example server configuration.
type Config struct {
	Port int    `env:"GRPCMETRICS_EXAMPLE_PORT" envDefault:"8080"`
	Addr string `env:"GRPCMETRICS_EXAMPLE_ADDR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The example server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The example server listen address (overrides -port)")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the example server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := provider.Setup(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("setup metrics provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("metrics provider shutdown: %v", err)
		}
	}()

	metrics, err := grpcmetrics.NewServerMetrics(nil)
	if err != nil {
		return fmt.Errorf("build server metrics: %w", err)
	}

	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Port)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(metrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(metrics.StreamServerInterceptor()),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		healthServer.Shutdown()
		srv.GracefulStop()
	}()

	log.Printf("example server listening on %s", listener.Addr())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
