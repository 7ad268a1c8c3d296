package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"mcp-toolserver/httpapi"
	mcpserver "mcp-toolserver/mcp-server"
	"mcp-toolserver/shared"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	cmd := &cli.Command{
		Name:  "mcp-toolserver",
		Usage: "Serve get_current_time, calculate and echo as MCP tools over HTTP and SSE",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "listen port (overrides PORT)"},
			&cli.StringFlag{Name: "api-key", Usage: "bearer token (overrides API_KEY)"},
			&cli.BoolFlag{Name: "require-auth", Usage: "require the bearer token (overrides REQUIRE_AUTH)"},
			&cli.BoolFlag{Name: "single-tenant", Usage: "route uncorrelated messages to the newest session (overrides SINGLE_TENANT)"},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error (overrides LOG_LEVEL)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := shared.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("Run server failed")
		os.Exit(1)
	}
}

func loadConfig(cmd *cli.Command) (shared.Config, error) {
	cfg, err := shared.DecodeConfig()
	if err != nil {
		return cfg, err
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("api-key") {
		cfg.APIKey = cmd.String("api-key")
	}
	if cmd.IsSet("require-auth") {
		cfg.RequireAuth = cmd.Bool("require-auth")
	}
	if cmd.IsSet("single-tenant") {
		cfg.SingleTenant = cmd.Bool("single-tenant")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg shared.Config) error {
	if cfg.UsesDefaultAPIKey() {
		log.Warn().Msg("API_KEY is the built-in default, set a real key before exposing this server")
	}
	if !cfg.RequireAuth {
		log.Warn().Msg("authentication is disabled")
	}

	metrics := httpapi.NewMetrics()
	tools, err := mcpserver.NewServer(cfg.ServerName, mcpserver.WithToolObserver(metrics.ObserveToolCall))
	if err != nil {
		return fmt.Errorf("create mcp server: %w", err)
	}
	api := httpapi.New(httpapi.Options{
		Config:   cfg,
		Protocol: tools.MCP(),
		Metrics:  metrics,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(api.CloseSessions)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Bool("require_auth", cfg.RequireAuth).
			Bool("single_tenant", cfg.SingleTenant).
			Msg("mcp tool server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Int("sessions", api.Registry().Len()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
