package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/samcharles93/ashlar/internal/api"
	"github.com/samcharles93/ashlar/pkg/backend"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		spoolDir    string
		maxBody     int64
		perMinute   float64
	)

	flags := append([]cli.Flag{}, commonPoolFlags()...)
	flags = append(flags, loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
		&cli.StringFlag{
			Name:        "spool-dir",
			Usage:       "directory for staged containers (default: system temp)",
			Destination: &spoolDir,
		},
		&cli.Int64Flag{
			Name:        "max-body",
			Usage:       "request body cap in bytes (0 = uncapped)",
			Destination: &maxBody,
		},
		&cli.Float64Flag{
			Name:        "rate",
			Usage:       "factorize requests admitted per minute (0 = unlimited)",
			Destination: &perMinute,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the factorization REST API",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyPoolConfig(cmd, cfg)
			applyServeConfig(cmd, cfg, &addr, &spoolDir)
			log, slogger := buildLogging()

			pool, err := backend.Open(backendName, int(devices))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open backend: %v", err), 1)
			}
			service, err := api.NewFactorizationService(pool, slogger)
			if err != nil {
				_ = pool.Close()
				return cli.Exit(fmt.Sprintf("error: build service: %v", err), 1)
			}
			defer func() { _ = service.Close() }()

			server := api.NewServer(api.NewJobStore(), service)
			if spoolDir != "" {
				server.SpoolDir(spoolDir)
			}
			if maxBody > 0 {
				server.LimitBodyBytes(maxBody)
			}
			if perMinute > 0 {
				server.RateLimit(rate.Limit(perMinute/60), 1)
			}

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server",
				"address", addr, "backend", service.Backend(), "devices", len(service.Devices()))
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
