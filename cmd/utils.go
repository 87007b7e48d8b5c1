package cmd

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/rubiojr/huddle/pkg/config"
	"github.com/rubiojr/huddle/pkg/log"
	"github.com/rubiojr/huddle/pkg/notify"
	"github.com/rubiojr/huddle/pkg/storage"
)

// debugForced is set by the global --debug flag.
var debugForced atomic.Bool

// ForceDebug enables debug logging for the rest of the process, surviving
// config reloads.
func ForceDebug() {
	debugForced.Store(true)
	log.SetGlobalDebug(true)
}

// openStore opens the configured database and applies pending migrations.
func openStore(cfg *config.Config) (*storage.Store, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	store, err := storage.OpenMigrated(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return store, nil
}

func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		fmt.Printf("Warning: failed to close store: %v\n", err)
	}
}

func chatOptions(cfg *config.Config) []chat.Option {
	return []chat.Option{
		chat.WithPreviewLength(cfg.Chat.PreviewLength),
		chat.WithHistoryLimits(cfg.Chat.HistoryLimit, cfg.Chat.MaxHistoryLimit),
	}
}

// buildNoticeSink assembles the notification pipeline from config. Queued
// delivery replaces direct persistence; the socket bridge is added on top of
// either. The returned cleanup func releases whatever was started.
func buildNoticeSink(cfg *config.Config, store *storage.Store) (notify.Sink, func(), error) {
	l := log.ForService("notify")
	var (
		sinks    notify.Fanout
		cleanups []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	n := cfg.Notifications
	switch {
	case n.RedisURL != "":
		queue, err := notify.NewQueueSink(n.RedisURL, n.Queue)
		if err != nil {
			return nil, cleanup, err
		}
		cleanups = append(cleanups, func() {
			if err := queue.Close(); err != nil {
				l.Warnf("failed to close queue client: %v", err)
			}
		})
		sinks = append(sinks, queue)
		l.Infof("queueing notices on %q", n.Queue)
	case n.Persist:
		sinks = append(sinks, notify.NewStoreSink(store))
		l.Infof("storing notices in %s", cfg.DBPath())
	}

	if n.SocketPath != "" {
		bridge := notify.NewSocketBridge(n.SocketPath)
		if err := bridge.Start(); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		cleanups = append(cleanups, bridge.Stop)
		sinks = append(sinks, bridge)
	}

	if len(sinks) == 0 {
		l.Warnf("no notification sink configured, notices are discarded")
		return notify.Nop, cleanup, nil
	}
	return sinks, cleanup, nil
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
