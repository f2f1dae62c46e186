// Command frg is an offline-first CLI for remote issue trackers: reads
// are served from a local cache, writes execute against the remote or
// queue for replay, and a background daemon keeps the cache warm.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgesync/frg/internal/config"
	"github.com/forgesync/frg/internal/creds"
	"github.com/forgesync/frg/internal/handlers"
	"github.com/forgesync/frg/internal/store"

	// Register the concrete forge backends.
	_ "github.com/forgesync/frg/internal/forge/graphql"
	_ "github.com/forgesync/frg/internal/forge/rest"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var (
	jsonOutput bool

	cfg config.Config
)

// app bundles the per-invocation collaborators the verb handlers need.
type app struct {
	handler  *handlers.Handler
	store    *store.Store
	cacheDir string
	cwd      string
}

// openApp opens the cache store and builds the handler. Callers must
// Close.
func openApp() (*app, error) {
	dbPath, err := config.DBPath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	cacheDir, err := config.CacheDir()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{
		handler: &handlers.Handler{
			Store:    st,
			Resolver: &creds.Resolver{},
			Logger:   cliLogger(),
		},
		store:    st,
		cacheDir: cacheDir,
		cwd:      cwd,
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
}

// cliLogger writes terse text to stderr at the configured level.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var rootCmd = &cobra.Command{
	Use:           "frg",
	Short:         "Offline-first issue tracking from your terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		return err
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(linkCmd, unlinkCmd, statusCmd, syncCmd, issueCmd, goalCmd, daemonCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
