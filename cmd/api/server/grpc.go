package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"user-doc-service/cmd/api/di"
	grpcadapter "user-doc-service/internal/adapter/grpc"
	"user-doc-service/internal/adapter/grpc/middleware"
	"user-doc-service/pkg/logger"
)

// SetupGRPC creates and configures the gRPC server
func SetupGRPC(c *di.Container, l *zap.Logger) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RequestIDInterceptor(),
			middleware.LoggingInterceptor(l),
			middleware.MetricsInterceptor(c.Metrics),
		),
	)
	grpcadapter.Register(grpcServer, c.GRPCService)

	return grpcServer
}
