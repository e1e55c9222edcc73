package grpcapp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	authgrpc "github.com/FurmanovVitaliy/extension-auth/internal/grpc/auth"
	"github.com/FurmanovVitaliy/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"
)

// App serves the local identity provider on the SSO gRPC API.
type App struct {
	log        *slog.Logger
	gRPCServer *grpc.Server
	port       int
}

// New create a new gRPC Server
func New(
	log *slog.Logger,
	port int,
	timeout time.Duration,
	tlsCertFile string,
	tlsKeyFile string,
	authService authgrpc.Auth,
) *App {
	var opts []grpc.ServerOption
	if tlsCertFile != "" && tlsKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(tlsCertFile, tlsKeyFile)
		if err != nil {
			log.Error("failed to create TLS credentials", logger.ErrAttr(err))
			panic(err)
		}
		opts = append(opts, grpc.Creds(creds))
	}
	opts = append(opts, grpc.UnaryInterceptor(timeoutInterceptor(timeout)))

	gRPCServer := grpc.NewServer(opts...)
	authgrpc.Register(gRPCServer, authService)
	reflection.Register(gRPCServer)

	return &App{
		log:        log,
		gRPCServer: gRPCServer,
		port:       port,
	}
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "grpcapp.App.Run"

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", a.port))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return a.Serve(l)
}

func (a *App) Serve(l net.Listener) error {
	const op = "grpcapp.App.Serve"

	a.log.Info("grpc server is running", slog.String("op", op), slog.String("addr", l.Addr().String()))
	if err := a.gRPCServer.Serve(l); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (a *App) Stop() {
	const op = "grpcapp.App.Stop"
	a.log.With(slog.String("op", op)).
		Info("stopping gRPC server", slog.Int("port", a.port))
	a.gRPCServer.GracefulStop()
}

func timeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if timeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}
