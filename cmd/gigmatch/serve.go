package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/gigmatch/internal/config"
	"github.com/jonathan/gigmatch/internal/logger"
	"github.com/jonathan/gigmatch/internal/server"
	"github.com/jonathan/gigmatch/internal/server/ratelimit"
	"github.com/jonathan/gigmatch/internal/sweep"
	"github.com/spf13/cobra"
)

var (
	servePort          int
	serveSweepInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the project, batch and invitation endpoints.
When SWEEP_INTERVAL is set the deadline sweep also runs in-process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().DurationVar(&serveSweepInterval, "sweep-interval", 0, "Run the sweep in-process at this interval (overrides SWEEP_INTERVAL)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != 0 {
		a.cfg.Port = servePort
	}
	if serveSweepInterval > 0 {
		a.cfg.SweepInterval = serveSweepInterval
	}

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	limitCfg := ratelimit.DefaultConfig()
	limitCfg.Limit = a.cfg.RateLimitMax
	limitCfg.Window = a.cfg.RateLimitWindow
	var limiter ratelimit.Limiter
	if a.redis != nil {
		limiter = ratelimit.NewRedisLimiter(a.redis, limitCfg)
	} else {
		limiter = ratelimit.NewMemoryLimiter(limitCfg)
	}

	sweeper := a.sweeper()
	if a.cfg.SweepInterval > 0 {
		worker := sweep.NewWorker(sweeper, a.cfg.SweepInterval)
		go worker.Start(ctx)
	}

	srv := server.New(server.Config{
		Addr:        a.cfg.Addr(),
		CORSOrigins: a.cfg.CORSOrigins,
		CronSecret:  a.cfg.CronSecret,
	}, server.Deps{
		Manager: a.manager,
		Sweeper: sweeper,
		JWT:     server.NewJWTService(jwtCfg),
		Limiter: limiter,
		Logger:  logger.GetHTTPLogger(),
	})

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
