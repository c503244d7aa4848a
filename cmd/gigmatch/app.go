package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/gigmatch/internal/assignment"
	"github.com/jonathan/gigmatch/internal/config"
	"github.com/jonathan/gigmatch/internal/db"
	"github.com/jonathan/gigmatch/internal/logger"
	"github.com/jonathan/gigmatch/internal/notify"
	"github.com/jonathan/gigmatch/internal/sweep"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg     *config.Config
	db      *db.DB
	redis   *redis.Client // nil when REDIS_URL is unset or unreachable
	manager *assignment.Manager
	log     *logrus.Logger
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if policyFile != "" {
		cfg.PolicyFile = policyFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logger()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// openApp connects to the store (and Redis when configured) and builds the manager.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	log := logger.GetAppLogger()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &app{cfg: cfg, db: database, log: log}
	a.redis = connectRedis(ctx, cfg.RedisURL, log)

	notifier := notify.Notifier(notify.NewLogNotifier(log))
	if a.redis != nil {
		notifier = notify.Multi{notifier, notify.NewRedisNotifier(a.redis, "")}
	}

	a.manager = assignment.NewManager(database, policy,
		assignment.WithNotifier(notifier),
		assignment.WithRetryPolicy(cfg.RetryPolicy()),
		assignment.WithLogger(log),
	)
	return a, nil
}

// connectRedis returns a client when url is set and the server answers a ping.
func connectRedis(ctx context.Context, url string, log *logrus.Logger) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.WithError(err).Error("redis url parse failed")
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Error("redis ping failed, continuing without redis")
		_ = client.Close()
		return nil
	}
	return client
}

// sweeper builds a Sweeper, locked through Redis when available.
func (a *app) sweeper() *sweep.Sweeper {
	cfg := sweep.DefaultConfig()
	cfg.Concurrency = a.cfg.SweepConcurrency
	cfg.BatchTimeout = a.cfg.SweepBatchTimeout

	opts := []sweep.Option{}
	if a.redis != nil {
		opts = append(opts, sweep.WithLocker(sweep.NewRedisLocker(a.redis)))
	}
	return sweep.New(a.manager, cfg, opts...)
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("redis close failed")
		}
	}
	a.db.Close()
}
