package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rubiojr/huddle/pkg/log"
	"github.com/rubiojr/huddle/pkg/notify"
	"github.com/urfave/cli/v3"
)

// WorkerCommand creates the worker command
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Drain queued notifications into the database",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Number of tasks processed in parallel",
				Value: 10,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runWorker(ctx, c.String("config"), c.Int("concurrency"))
		},
	}
}

func runWorker(ctx context.Context, configPath string, concurrency int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.LogLevel)
	n := cfg.Notifications
	if n.RedisURL == "" {
		return fmt.Errorf("notifications.redis_url is not configured")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	worker, err := notify.NewWorker(n.RedisURL, n.Queue, concurrency, notify.NewStoreSink(store))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.ForService("worker").Infof("draining queue %q (concurrency %d)", n.Queue, concurrency)
	return worker.Run(ctx)
}
