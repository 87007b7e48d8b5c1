package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rubiojr/huddle/pkg/storage"
	"github.com/urfave/cli/v3"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(ctx, c.String("config"))
		},
	}
}

// showStats displays database statistics
func showStats(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}
	fmt.Print(formatStats(cfg.DBPath(), stats, time.Now()))
	return nil
}

func formatStats(dbPath string, stats *storage.Stats, now time.Time) string {
	out := titleStyle.Render("📊 Chat Statistics") + "\n"
	out += metaStyle.Render(dbPath) + "\n\n"

	rows := []struct {
		label string
		n     int
	}{
		{"Users", stats.Users},
		{"Departments", stats.Departments},
		{"Channels", stats.Channels},
		{"Memberships", stats.Memberships},
		{"Messages", stats.Messages},
		{"Notifications", stats.Notifications},
	}
	for _, r := range rows {
		out += fmt.Sprintf("%-14s %s\n", headerStyle.Render(r.label), formatNumber(r.n))
	}

	if stats.OldestMessage != nil && stats.NewestMessage != nil {
		out += "\n"
		out += fmt.Sprintf("Oldest message: %s\n", formatTime(*stats.OldestMessage, now))
		out += fmt.Sprintf("Newest message: %s\n", formatTime(*stats.NewestMessage, now))
	} else {
		out += noDataStyle.Render("No messages yet") + "\n"
	}
	return out
}
