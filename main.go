package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/rubiojr/huddle/cmd"
	"github.com/rubiojr/huddle/pkg/config"
	"github.com/urfave/cli/v3"
)

func main() {
	// .env is optional; it only seeds HUDDLE_* variables for local runs
	_ = godotenv.Load()

	app := &cli.Command{
		Name:  "huddle",
		Usage: "Real-time team chat server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Value:   false,
				Sources: cli.EnvVars("HUDDLE_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Configuration file path",
				Value:   getDefaultConfigPathOrExit(),
				Sources: cli.EnvVars("HUDDLE_CONFIG"),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if c.Bool("debug") {
				cmd.ForceDebug()
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.MigrateCommand(),
			cmd.SeedCommand(),
			cmd.ServeCommand(),
			cmd.WorkerCommand(),
			cmd.TokenCommand(),
			cmd.ChannelsCommand(),
			cmd.NoticesCommand(),
			cmd.StatsCommand(),
			cmd.OptimizeCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		log.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
