// Package ops runs the gRPC side port every service exposes for health
// probes and reflection.
package ops

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
)

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	port       int
	logger     *logger.Logger
}

func NewServer(port int, logger *logger.Logger) *Server {
	s := &Server{
		health: health.NewServer(),
		port:   port,
		logger: logger,
	}

	s.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(s.loggingInterceptor),
	)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Start listens on the configured port (0 picks a free one) and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to listen on ops port")
	}
	s.listener = lis

	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error("gRPC ops server stopped", "error", err)
		}
	}()

	s.logger.Info(fmt.Sprintf("gRPC ops server listening on %s", lis.Addr()))
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetServing flips the overall health status reported to probes.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func (s *Server) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("gRPC call",
		"method", info.FullMethod,
		"duration", time.Since(start),
		"error", err,
	)
	if err != nil {
		return resp, apperrors.ToGRPCError(err)
	}
	return resp, nil
}
