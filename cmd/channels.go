package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/urfave/cli/v3"
)

// ChannelsCommand creates the channels command
func ChannelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "channels",
		Usage: "List a user's channels with unread counts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Usage:    "User id whose channel list to show",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return listChannels(ctx, c.String("config"), c.String("user"))
		},
	}
}

func listChannels(ctx context.Context, configPath, userID string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	summaries, err := chat.NewDirectory(store, chatOptions(cfg)...).ListChannelsFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing channels: %w", err)
	}
	fmt.Print(renderChannels(userID, summaries, time.Now()))
	return nil
}

func renderChannels(userID string, summaries []chat.ChannelSummary, now time.Time) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("💬 Channels for %s", userID)))
	b.WriteString("\n")

	if len(summaries) == 0 {
		b.WriteString(noDataStyle.Render("No channels yet. Run 'huddle seed' to create them."))
		b.WriteString("\n")
		return b.String()
	}

	for _, s := range summaries {
		var card strings.Builder
		name := s.Name
		if s.DMUser != nil {
			name = strings.TrimSpace(s.DMUser.FirstName + " " + s.DMUser.LastName)
		}
		card.WriteString(headerStyle.Render(name))
		card.WriteString(" " + metaStyle.Render(string(s.Kind)))
		if s.UnreadCount > 0 {
			card.WriteString(" " + unreadStyle.Render(fmt.Sprintf("(%d unread)", s.UnreadCount)))
		}
		if s.LastMessage != nil {
			card.WriteString("\n")
			card.WriteString(fmt.Sprintf("%s: %s", s.LastMessage.SenderName, s.LastMessage.Content))
			card.WriteString("\n")
			card.WriteString(metaStyle.Render(formatTime(s.LastMessage.CreatedAt, now)))
		}
		b.WriteString(blockStyle.Render(card.String()))
		b.WriteString("\n")
	}
	return b.String()
}
