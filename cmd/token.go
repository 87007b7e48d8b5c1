package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rubiojr/huddle/pkg/auth"
	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/urfave/cli/v3"
)

// TokenCommand creates the token command
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a connection token for a directory user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Usage:    "User id to issue the token for",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime (defaults to auth.token_ttl, 0 for no expiry)",
				Value: -1,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			token, err := IssueToken(ctx, c.String("config"), c.String("user"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

// IssueToken signs a token carrying the user's directory role and department.
// A negative ttl uses the configured default.
func IssueToken(ctx context.Context, configPath, userID string, ttl time.Duration) (string, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return "", err
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return "", err
	}
	defer closeStore(store)

	user, err := store.GetUser(ctx, userID)
	if errors.Is(err, chat.ErrNotFound) {
		return "", fmt.Errorf("user %q not found (run 'huddle seed' first)", userID)
	}
	if err != nil {
		return "", fmt.Errorf("loading user: %w", err)
	}

	if ttl < 0 {
		ttl = cfg.Auth.TokenTTL.Duration
	}
	return auth.NewJWT(cfg.Auth.Secret, cfg.Auth.Issuer).Issue(auth.Identity{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
	}, ttl)
}
