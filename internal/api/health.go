package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health service names.
const (
	EngineService = "sentry.engine"
	AlertsService = "sentry.alerts"
)

// HealthServer exposes the standard gRPC health protocol for the engine and the
// alert listener.
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
}

func NewHealthServer() *HealthServer {
	h := &HealthServer{srv: grpc.NewServer(), health: health.NewServer()}
	healthpb.RegisterHealthServer(h.srv, h.health)
	h.health.SetServingStatus(EngineService, healthpb.HealthCheckResponse_NOT_SERVING)
	h.health.SetServingStatus(AlertsService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// SetServing updates the status reported for service.
func (h *HealthServer) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(service, status)
}

// Serving reports whether service is currently SERVING.
func (h *HealthServer) Serving(service string) bool {
	resp, err := h.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return false
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

// ListenAndServe blocks serving gRPC on addr until Stop is called.
func (h *HealthServer) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	slog.Info("gRPC health server starting", "addr", lis.Addr().String())
	return h.srv.Serve(lis)
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.srv.GracefulStop()
}
