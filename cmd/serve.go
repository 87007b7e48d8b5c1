package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/rubiojr/huddle/pkg/api"
	"github.com/rubiojr/huddle/pkg/auth"
	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/rubiojr/huddle/pkg/config"
	"github.com/rubiojr/huddle/pkg/gateway"
	"github.com/rubiojr/huddle/pkg/log"
	"github.com/rubiojr/huddle/pkg/realtime"
	"github.com/urfave/cli/v3"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the chat server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Listen address (overrides config)",
				Sources: cli.EnvVars("HUDDLE_LISTEN"),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

func serve(ctx context.Context, configPath, listen string) error {
	l := log.ForService("serve")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	applyLogLevel(cfg.LogLevel)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	notices, stopNotices, err := buildNoticeSink(cfg, store)
	if err != nil {
		return fmt.Errorf("setting up notifications: %w", err)
	}
	defer stopNotices()

	opts := chatOptions(cfg)
	dir := chat.NewDirectory(store, opts...)
	messages := chat.NewMessageService(store, opts...)
	verifier := auth.NewJWT(cfg.Auth.Secret, cfg.Auth.Issuer)

	gw := gateway.New(dir, messages, verifier,
		gateway.WithNotices(notices),
		gateway.WithPreviewLength(cfg.Chat.PreviewLength),
	)
	srv := api.NewServer(dir, messages, store, gw, verifier)
	srv.SetWebsocketOptions(realtime.WSOptions{
		SendBuffer: cfg.Chat.SendBuffer,
		WriteWait:  cfg.Chat.WriteWait.Duration,
		PingPeriod: cfg.Chat.PingPeriod.Duration,
	})

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		l.Infof("listening on %s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// A missing watcher only disables live reload
	var watchEvents <-chan fsnotify.Event
	var watchErrors <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				l.Warnf("failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			l.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			l.Infof("watching config file for changes: %s", configPath)
			watchEvents = watcher.Events
			watchErrors = watcher.Errors
		}
	}

	shutdown := func() error {
		l.Infof("shutting down")
		// hijacked websocket connections are not tracked by http.Server
		gw.Hub().Close(websocket.CloseGoingAway, "server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown()
		case err, ok := <-serveErr:
			if ok && err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				l.Infof("received SIGHUP, reloading configuration")
				reloadConfiguration(configPath)
			case syscall.SIGINT, syscall.SIGTERM:
				return shutdown()
			}
		case event, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			// editors often replace the file on save
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			l.Infof("config file changed: %s (event: %s)", event.Name, event.Op.String())
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					l.Warnf("config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					l.Warnf("failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reloadConfiguration(configPath)
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			l.Warnf("config file watcher error: %v", err)
		}
	}
}

// reloadConfiguration re-reads the config file and applies the settings that
// can change without a restart. Today that is the log level; listen address,
// secrets and storage need a restart.
func reloadConfiguration(configPath string) {
	l := log.ForService("serve")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		l.Errorf("failed to reload configuration: %v", err)
		return
	}
	applyLogLevel(cfg.LogLevel)
	l.Infof("configuration reloaded (log level %s)", cfg.LogLevel)
}

// applyLogLevel keeps --debug in force regardless of the configured level.
func applyLogLevel(level string) {
	if err := log.SetLevel(level); err != nil {
		log.ForService("config").Warnf("%v", err)
	}
	if debugForced.Load() {
		log.SetGlobalDebug(true)
	}
}
