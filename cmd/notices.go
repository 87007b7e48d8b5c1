package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rubiojr/huddle/pkg/notify"
	"github.com/rubiojr/huddle/pkg/storage"
	"github.com/urfave/cli/v3"
)

// NoticesCommand creates the notices command
func NoticesCommand() *cli.Command {
	return &cli.Command{
		Name:  "notices",
		Usage: "Tail or list notifications",
		Commands: []*cli.Command{
			{
				Name:  "tail",
				Usage: "Stream notices published on the notification socket",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "socket",
						Usage: "Socket path (defaults to notifications.socket_path)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print raw frames",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return tailNotices(ctx, c.String("config"), c.String("socket"), c.Bool("json"))
				},
			},
			{
				Name:  "list",
				Usage: "List stored notices for a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Usage:    "Recipient user id",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of notices",
						Value: 20,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c.String("config"), func(store *storage.Store) error {
						return listNotices(ctx, store, c.String("user"), c.Int("limit"))
					})
				},
			},
		},
	}
}

func tailNotices(ctx context.Context, configPath, socketPath string, raw bool) error {
	if socketPath == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		socketPath = cfg.Notifications.SocketPath
	}
	if socketPath == "" {
		return fmt.Errorf("no socket path: pass --socket or set notifications.socket_path")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	return notify.NewConsumer(socketPath).Run(ctx, func(f notify.Frame) {
		if raw {
			_ = enc.Encode(f)
			return
		}
		if f.Type != "notice" {
			return
		}
		fmt.Printf("%s %s [%s] %s: %s\n",
			metaStyle.Render(f.TS.Local().Format("15:04:05")),
			f.UserID, f.Category, headerStyle.Render(f.Title), f.Body)
	})
}

func listNotices(ctx context.Context, store *storage.Store, userID string, limit int) error {
	notes, err := store.ListNotifications(ctx, userID, limit)
	if err != nil {
		return fmt.Errorf("listing notices: %w", err)
	}
	if len(notes) == 0 {
		fmt.Println(noDataStyle.Render("No notices"))
		return nil
	}
	for _, n := range notes {
		fmt.Printf("%s [%s] %s: %s\n",
			metaStyle.Render(n.CreatedAt.Local().Format("2006-01-02 15:04")),
			n.Category, headerStyle.Render(n.Title), n.Body)
	}
	return nil
}
