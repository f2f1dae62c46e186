package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize this source with its remote now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		state, err := a.handler.Sync(cmd.Context(), a.cwd)
		if err != nil {
			return err
		}
		if jsonOutput {
			return emitJSON(state)
		}
		fmt.Printf("✓ Synced %s: %d issues\n", state.RemoteID, state.IssueCount)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report auth, source, queue, and rate-limit status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.handler.Status(cmd.Context(), a.cwd, a.cacheDir)
		if err != nil {
			return err
		}
		if jsonOutput {
			return emitJSON(report)
		}
		printStatus(report)
		return nil
	},
}
