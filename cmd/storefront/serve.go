package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ahinestrog/mybookstore-storefront/internal/catalog"
	"github.com/ahinestrog/mybookstore-storefront/internal/gateway"
	"github.com/ahinestrog/mybookstore-storefront/internal/health"
)

const (
	shutdownGrace   = 10 * time.Second
	sessionLifetime = 30 * 24 * time.Hour
	catalogTTL      = 30 * time.Second
	healthInterval  = 15 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront web gateway and the health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("health", cfg.HealthGRPCAddr).
		Str("api", cfg.APIBaseURL).
		Str("db", cfg.SessionDBPath).
		Msg("starting storefront")

	repo, err := a.sessions()
	if err != nil {
		return err
	}
	if n, err := repo.PurgeBefore(ctx, time.Now().Add(-sessionLifetime)); err != nil {
		log.Warn().Err(err).Msg("session purge failed")
	} else if n > 0 {
		log.Info().Int64("sessions", n).Msg("purged stale sessions")
	}

	client := a.client()
	pub := a.events()
	srv, err := gateway.New(gateway.Options{
		API:           client,
		Catalog:       catalog.NewService(client, catalogTTL, pub),
		Sessions:      repo,
		Events:        pub,
		CacheSize:     cfg.SessionCacheSize,
		CORSOrigins:   cfg.CORSOrigins,
		Timeout:       cfg.APITimeout,
		SecureCookies: cfg.ServiceEnv != "dev",
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	healthSrv := health.NewServer(func(ctx context.Context) error {
		_, err := client.ListBooks(ctx)
		return err
	})
	lis, err := net.Listen("tcp", cfg.HealthGRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthSrv.Serve(lis) })
	g.Go(func() error {
		healthSrv.Watch(gctx, healthInterval)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Warn().Msg("shutting down...")
		healthSrv.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}
