package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/rubiojr/huddle/pkg/storage"
	"github.com/urfave/cli/v3"
)

// DirectoryFile is the TOML document imported by the seed command.
//
//	[[departments]]
//	id = "eng"
//	name = "Engineering"
//
//	[[users]]
//	id = "u1"
//	email = "ana@example.com"
//	first_name = "Ana"
//	role = "MANAGER"
//	department_id = "eng"
type DirectoryFile struct {
	Departments []chat.Department `toml:"departments"`
	Users       []chat.User       `toml:"users"`
}

// SeedCommand creates the seed command
func SeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Import users and departments, then create the standard channels",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "directory",
				Usage: "TOML file with [[departments]] and [[users]] tables",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return RunSeed(ctx, c.String("config"), c.String("directory"))
		},
	}
}

// RunSeed imports the directory file (when given) and seeds channels and
// memberships for every known user.
func RunSeed(ctx context.Context, configPath, directoryPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if directoryPath != "" {
		file, err := LoadDirectoryFile(directoryPath)
		if err != nil {
			return err
		}
		if err := importDirectory(ctx, store, file); err != nil {
			return err
		}
		fmt.Printf("Imported %d departments and %d users\n", len(file.Departments), len(file.Users))
	}

	if err := chat.NewDirectory(store, chatOptions(cfg)...).Seed(ctx); err != nil {
		return fmt.Errorf("seeding channels: %w", err)
	}
	fmt.Println("Channels seeded")
	return nil
}

func LoadDirectoryFile(path string) (*DirectoryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory file: %w", err)
	}
	var file DirectoryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing directory file %s: %w", path, err)
	}
	for i, u := range file.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("user #%d in %s has no id", i+1, path)
		}
	}
	for i, d := range file.Departments {
		if d.ID == "" {
			return nil, fmt.Errorf("department #%d in %s has no id", i+1, path)
		}
	}
	return &file, nil
}

func importDirectory(ctx context.Context, store *storage.Store, file *DirectoryFile) error {
	for _, d := range file.Departments {
		if err := store.UpsertDepartment(ctx, d); err != nil {
			return fmt.Errorf("importing department %s: %w", d.ID, err)
		}
	}
	for _, u := range file.Users {
		if err := store.UpsertUser(ctx, u); err != nil {
			return fmt.Errorf("importing user %s: %w", u.ID, err)
		}
	}
	return nil
}
