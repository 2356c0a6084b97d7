package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/md-rashed-zaman/billboardrent/libs/config"
	"github.com/md-rashed-zaman/billboardrent/libs/grpcx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// startGrpcServer exposes the standard health service. Serving status flips
// to NOT_SERVING before the graceful stop so load balancers drain first.
func startGrpcServer(ctx context.Context, logger *slog.Logger) error {
	port, err := config.Port("GRPC_PORT", "9095")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv, health := grpcx.NewServer(logger)
	health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		health.Shutdown()
		srv.GracefulStop()
	}()

	return nil
}
