package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgesync/frg/internal/creds"
	"github.com/forgesync/frg/internal/daemon"
	"github.com/forgesync/frg/internal/daemonlock"
	"github.com/forgesync/frg/internal/syncer"
	"github.com/forgesync/frg/internal/telemetry"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the background reconciliation daemon",
}

// daemonRunCmd is the hidden verb the service manager (and `daemon
// start`) point at: it runs the loop in the foreground until signalled.
var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		logger := daemonLogger()
		shutdownMetrics, err := telemetry.Init(os.Stdout, time.Minute)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d := &daemon.Daemon{
			Store: a.store,
			Syncer: &syncer.Syncer{
				Store:    a.store,
				Resolver: &creds.Resolver{},
				Logger:   logger,
			},
			Logger:   logger,
			CacheDir: a.cacheDir,
			Version:  Version,
			Interval: cfg.SyncInterval,
		}
		runErr := d.Run(ctx)

		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownMetrics(flushCtx)
		return runErr
	},
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if info, ok := daemonlock.ReadInfo(a.cacheDir); ok {
			if proc, err := os.FindProcess(info.PID); err == nil && proc.Signal(syscall.Signal(0)) == nil {
				return fmt.Errorf("daemon already running (pid %d)", info.PID)
			}
		}

		exe, err := os.Executable()
		if err != nil {
			return err
		}
		logPath := filepath.Join(a.cacheDir, "daemon.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		defer logFile.Close()

		child := exec.Command(exe, "daemon", "run")
		child.Stdout = logFile
		child.Stderr = logFile
		if err := child.Start(); err != nil {
			return fmt.Errorf("start daemon: %w", err)
		}
		if err := child.Process.Release(); err != nil {
			return err
		}
		fmt.Printf("✓ Daemon started (log: %s)\n", logPath)
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		info, ok := daemonlock.ReadInfo(a.cacheDir)
		if !ok {
			return fmt.Errorf("no daemon lock metadata found")
		}
		proc, err := os.FindProcess(info.PID)
		if err != nil {
			return fmt.Errorf("find daemon process %d: %w", info.PID, err)
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("signal daemon %d: %w", info.PID, err)
		}
		fmt.Printf("✓ Sent stop signal to daemon (pid %d)\n", info.PID)
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon appears to be running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		info, ok := daemonlock.ReadInfo(a.cacheDir)
		if !ok {
			if jsonOutput {
				return emitJSON(map[string]any{"running": false})
			}
			fmt.Println("Daemon: not running")
			return nil
		}

		// The lock, not the metadata, is authoritative; a signal-0 probe
		// is the closest liveness check available without contending.
		alive := false
		if proc, err := os.FindProcess(info.PID); err == nil {
			alive = proc.Signal(syscall.Signal(0)) == nil
		}
		if jsonOutput {
			return emitJSON(map[string]any{
				"running": alive, "pid": info.PID, "version": info.Version, "started_at": info.StartedAt,
			})
		}
		if alive {
			fmt.Printf("Daemon: running (pid %d, v%s, since %s)\n", info.PID, info.Version, info.StartedAt.Format(time.RFC3339))
		} else {
			fmt.Printf("Daemon: stale metadata (pid %d not alive)\n", info.PID)
		}
		return nil
	},
}

var daemonWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Mark this source for background reconciliation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		src, err := a.handler.ResolveSource(cmd.Context(), a.cwd)
		if err != nil {
			return err
		}
		if err := a.store.AddWatchedSource(cmd.Context(), src.LocalPath, time.Now()); err != nil {
			return err
		}
		fmt.Printf("✓ Watching %s\n", src.LocalPath)
		return nil
	},
}

var daemonUnwatchCmd = &cobra.Command{
	Use:   "unwatch",
	Short: "Stop background reconciliation for this source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		src, err := a.handler.ResolveSource(cmd.Context(), a.cwd)
		if err != nil {
			return err
		}
		if err := a.store.RemoveWatchedSource(cmd.Context(), src.LocalPath); err != nil {
			return err
		}
		fmt.Printf("✓ Unwatched %s\n", src.LocalPath)
		return nil
	},
}

// daemonLogger writes JSON-structured logs; the service manager
// redirects stdout/stderr to the daemon log file.
func daemonLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
}

func init() {
	daemonCmd.AddCommand(daemonRunCmd, daemonStartCmd, daemonStopCmd, daemonStatusCmd, daemonWatchCmd, daemonUnwatchCmd)
}
