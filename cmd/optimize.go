package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/huddle/pkg/storage"
	"github.com/urfave/cli/v3"
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Database optimization and maintenance commands",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Run an integrity check on the chat database",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "quick",
						Usage: "Run PRAGMA quick_check instead of the full integrity check",
						Value: false,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c.String("config"), func(store *storage.Store) error {
						return checkDatabase(ctx, store, c.Bool("quick"))
					})
				},
			},
			{
				Name:  "analyze",
				Usage: "Run ANALYZE to update query planner statistics",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c.String("config"), func(store *storage.Store) error {
						return runStep(ctx, "ANALYZE", store.Analyze)
					})
				},
			},
			{
				Name:  "vacuum",
				Usage: "Run VACUUM to defragment the database",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c.String("config"), func(store *storage.Store) error {
						fmt.Println("This may take a while for large databases...")
						return runStep(ctx, "VACUUM", store.Vacuum)
					})
				},
			},
			{
				Name:  "checkpoint",
				Usage: "Run WAL checkpoint to flush changes",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c.String("config"), func(store *storage.Store) error {
						return runStep(ctx, "WAL checkpoint", store.WALCheckpoint)
					})
				},
			},
			{
				Name:  "all",
				Usage: "Run optimize, analyze and checkpoint in sequence",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c.String("config"), func(store *storage.Store) error {
						return optimizeAll(ctx, store)
					})
				},
			},
		},
	}
}

func withStore(configPath string, fn func(*storage.Store) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)
	return fn(store)
}

func runStep(ctx context.Context, name string, step func(context.Context) error) error {
	fmt.Printf("Running %s...\n", name)
	if err := step(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Printf("✓ %s completed\n", name)
	return nil
}

// checkDatabase reports integrity problems and fails when any are found
func checkDatabase(ctx context.Context, store *storage.Store, quick bool) error {
	fmt.Println("Checking database integrity...")
	problems, err := store.IntegrityCheck(ctx, quick)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Println("✓ OK")
		return nil
	}
	for _, p := range problems {
		fmt.Printf("  ✗ %s\n", p)
	}
	return fmt.Errorf("integrity check found %d problems", len(problems))
}

func optimizeAll(ctx context.Context, store *storage.Store) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"PRAGMA optimize", store.Optimize},
		{"ANALYZE", store.Analyze},
		{"WAL checkpoint", store.WALCheckpoint},
	}
	for _, s := range steps {
		if err := runStep(ctx, s.name, s.fn); err != nil {
			return err
		}
	}
	fmt.Println()
	fmt.Println("All optimization operations completed successfully")
	return nil
}
