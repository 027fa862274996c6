package handler

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// CartServiceName is the health-check service name reported for the cart engine.
const CartServiceName = "cartsync.CartStore"

// GRPCHealth reports whether the cart engine finished its initial load.
// Both the overall status and CartServiceName start as NOT_SERVING.
type GRPCHealth struct {
	server *health.Server
}

func NewGRPCHealth() *GRPCHealth {
	s := health.NewServer()
	s.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	s.SetServingStatus(CartServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &GRPCHealth{server: s}
}

func (g *GRPCHealth) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, g.server)
}

// MarkInitialized reports SERVING when err is nil. Hosts call it again after
// a later successful refresh.
func (g *GRPCHealth) MarkInitialized(err error) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err != nil {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	g.server.SetServingStatus("", status)
	g.server.SetServingStatus(CartServiceName, status)
}

func (g *GRPCHealth) Shutdown() {
	g.server.Shutdown()
}

// Server exposes the underlying health server, mainly for in-process checks.
func (g *GRPCHealth) Server() grpc_health_v1.HealthServer {
	return g.server
}
