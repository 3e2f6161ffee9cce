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
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"

	"github.com/rubiojr/jobsearch/pkg/api"
	"github.com/rubiojr/jobsearch/pkg/config"
	"github.com/rubiojr/jobsearch/pkg/log"
)

const shutdownTimeout = 10 * time.Second

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP and WebSocket API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (defaults to [server] listen)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

func serve(ctx context.Context, configPath, listen string) error {
	logger := log.ForService("serve")

	a, err := openApp(ctx, configPath, true)
	if err != nil {
		return err
	}
	defer a.Close()

	settings, err := settingsFromConfig(a.cfg)
	if err != nil {
		return fmt.Errorf("invalid [search] settings: %w", err)
	}

	server := api.NewServer(api.Options{
		Executor: a.exec,
		Source:   a.client,
		Store:    a.store,
		Settings: settings,
	})

	if listen == "" {
		listen = a.cfg.Server.Listen
	}
	httpServer := &http.Server{
		Addr:              listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(a.cfg.Cache.PruneSchedule, func() {
		if n := a.exec.Prune(time.Now()); n > 0 {
			logger.Debugf("pruned %d cache entries", n)
		}
	}); err != nil {
		return fmt.Errorf("invalid [cache] prune_schedule %q: %w", a.cfg.Cache.PruneSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on http://%s", listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	fmt.Println("Server started. Press Ctrl+C to stop, send SIGHUP to reload, or modify config file for automatic reload.")

	currentConfig := a.cfg
	reload := func(reason string) {
		newCfg, err := reloadConfiguration(configPath, currentConfig, server)
		if err != nil {
			logger.Errorf("failed to reload configuration (%s): %v", reason, err)
			return
		}
		currentConfig = newCfg
		logger.Infof("configuration reloaded (%s)", reason)
	}

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
			events, watchErrs = watcher.Events, watcher.Errors
		}
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown(httpServer)
		case err, ok := <-serverErr:
			if ok && err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				reload("SIGHUP")
			case syscall.SIGINT, syscall.SIGTERM:
				fmt.Println("\nShutting down...")
				return shutdown(httpServer)
			}
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)) {
				continue
			}
			// Editors often replace the file with an atomic rename.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload(event.Op.String())
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Warnf("config file watcher error: %v", err)
		}
	}
}

// reloadConfiguration applies the search settings of the file at configPath
// to the running server. Cache policy, API credentials and the listen address
// are fixed for the life of the process.
func reloadConfiguration(configPath string, current *config.Config, server *api.Server) (*config.Config, error) {
	newCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading new config: %w", err)
	}
	settings, err := settingsFromConfig(newCfg)
	if err != nil {
		return nil, err
	}
	server.UpdateSettings(settings)

	if newCfg.Cache != current.Cache || newCfg.API != current.API || newCfg.Server != current.Server ||
		newCfg.StorageDir != current.StorageDir {
		log.ForService("serve").Warnf("changes outside [search] take effect after a restart")
	}
	return newCfg, nil
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
