// Package health exposes the standard gRPC health service.
package health

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Service is the name health checkers ask about. The empty name reports overall status.
const Service = "storefront"

// Checker decides whether the storefront can serve, typically by pinging the API.
type Checker func(ctx context.Context) error

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	check  Checker
}

func NewServer(check Checker) *Server {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{grpc: gs, health: hs, check: check}
}

func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(Service, st)
}

// Watch runs the checker every interval until ctx is done and publishes the result.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	if s.check == nil {
		s.SetServing(true)
		<-ctx.Done()
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	last := true
	for {
		cctx, cancel := context.WithTimeout(ctx, interval)
		err := s.check(cctx)
		cancel()
		if ok := err == nil; ok != last {
			log.Warn().Err(err).Bool("serving", ok).Msg("health changed")
			last = ok
		}
		s.SetServing(err == nil)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Serve blocks serving gRPC on lis.
func (s *Server) Serve(lis net.Listener) error {
	log.Info().Str("addr", lis.Addr().String()).Msg("health gRPC listening")
	return s.grpc.Serve(lis)
}

// Shutdown flips to NOT_SERVING and stops accepting new RPCs.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
