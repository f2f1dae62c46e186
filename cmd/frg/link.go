package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgesync/frg/internal/types"
)

var linkName string

var linkCmd = &cobra.Command{
	Use:   "link <forge> <remote-id>",
	Short: "Link this directory to a remote container",
	Long: `Link the current directory to a remote issue container and perform the
initial sync. <forge> is one of: rest-forge, graphql-forge. <remote-id>
is owner/repo for rest-forge or team-key/team-id for graphql-forge.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		src, err := a.handler.Link(cmd.Context(), a.cwd, types.ForgeKind(args[0]), args[1], linkName)
		if err != nil {
			return err
		}
		if jsonOutput {
			return emitJSON(src)
		}
		fmt.Printf("✓ Linked %s to %s (%s)\n", src.LocalPath, src.RemoteID, src.ForgeKind)
		return nil
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Remove this directory's link to its remote",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.handler.Unlink(cmd.Context(), a.cwd); err != nil {
			return err
		}
		fmt.Println("✓ Unlinked")
		return nil
	},
}

func init() {
	linkCmd.Flags().StringVar(&linkName, "name", "", "Display name for the source (default: directory name)")
}
