// Package grpc exposes the server's gRPC endpoint: the standard health
// service plus reflection, behind a bearer-token interceptor.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dmitrijs2005/memberkeeper/internal/logging"
	"github.com/dmitrijs2005/memberkeeper/internal/server/auth"
)

type Server struct {
	address string
	guard   *auth.Guard
	logger  logging.Logger
	health  *health.Server
}

func NewServer(address string, guard *auth.Guard, l logging.Logger) *Server {
	return &Server{
		address: address,
		guard:   guard,
		logger:  l.With("module", "grpc_server"),
		health:  health.NewServer(),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)
	return s.serve(ctx, listen)
}

func (s *Server) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.accessTokenStreamInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	return srv.Serve(listen)
}
