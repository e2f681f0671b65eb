package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"modelshelf/internal/catalog"
	"modelshelf/internal/config"
	"modelshelf/internal/daemon"
	"modelshelf/internal/daemonctl"
	"modelshelf/internal/ipc"
	"modelshelf/internal/logging"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/scanner"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the modelshelf daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the modelshelf daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Stop(ctx.socketPath(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", result.PID)
			} else {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			return nil
		},
	}
}

// newDaemonCommand runs the daemon in the foreground, mirroring what the
// modelshelfd binary does. Useful under process supervisors and for
// debugging.
func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runDaemon(cfg)
		},
	}
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := modelcache.Open(cfg)
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}

	var fetcher catalog.Fetcher
	if cfg.Catalog.Enabled {
		client, err := catalog.New(cfg.Catalog.BaseURL, cfg.Catalog.APIKey,
			catalog.WithMinInterval(time.Duration(cfg.Catalog.RequestDelayMS)*time.Millisecond),
			catalog.WithRetryAttempts(cfg.Catalog.RetryAttempts),
		)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("configure catalog client: %w", err)
		}
		fetcher = client
	}

	scan := scanner.New(cfg, store, fetcher, logger)
	d, err := daemon.New(cfg, store, scan, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger, cancel)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-ctx.Done()
	logger.Info("daemon shutting down")
	return nil
}

// daemonExecutable locates the modelshelfd binary next to the current
// executable, falling back to PATH lookup via exec at launch time.
func daemonExecutable() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	candidate := filepath.Join(filepath.Dir(self), "modelshelfd")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "modelshelfd", nil
}
