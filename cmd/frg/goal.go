package main

import (
	"github.com/spf13/cobra"

	"github.com/forgesync/frg/internal/handlers"
	"github.com/forgesync/frg/internal/types"
)

var (
	goalStateFilter string
	goalTitle       string
	goalBody        string
	goalTarget      string
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Read and write goals (milestones/projects)",
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached goals for this source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		goals, err := a.handler.GoalList(cmd.Context(), a.cwd, goalStateFilter)
		if err != nil {
			return err
		}
		return emitGoals(goals)
	},
}

var goalShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a cached goal and its issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		detail, err := a.handler.GoalShow(cmd.Context(), a.cwd, args[0])
		if err != nil {
			return err
		}
		return emitGoalDetail(detail)
	},
}

var goalCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a goal on the remote (queued when offline)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := handlers.ParseTargetDate(goalTarget)
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.GoalCreate(cmd.Context(), a.cwd, types.CreateGoalRequest{
			Name:        goalTitle,
			Description: goalBody,
			TargetDate:  target,
		})
		if err != nil {
			return err
		}
		return emitWriteResult(res)
	},
}

var goalAssignCmd = &cobra.Command{
	Use:   "assign <name> <number>",
	Short: "Assign an issue to a goal (queued when offline)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := parseIssueNumber(args[1])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.GoalAssign(cmd.Context(), a.cwd, args[0], number)
		if err != nil {
			return err
		}
		return emitWriteResult(res)
	},
}

var goalCloseCmd = &cobra.Command{
	Use:   "close <name>",
	Short: "Close a goal (queued when offline)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.GoalClose(cmd.Context(), a.cwd, args[0])
		if err != nil {
			return err
		}
		return emitWriteResult(res)
	},
}

func init() {
	goalListCmd.Flags().StringVar(&goalStateFilter, "state", "", "Filter by state (open|closed)")

	goalCreateCmd.Flags().StringVar(&goalTitle, "title", "", "Goal name (required)")
	goalCreateCmd.Flags().StringVar(&goalBody, "body", "", "Goal description")
	goalCreateCmd.Flags().StringVar(&goalTarget, "target", "", `Target date (RFC-3339, YYYY-MM-DD, or natural language like "next friday")`)
	_ = goalCreateCmd.MarkFlagRequired("title")

	goalCmd.AddCommand(goalListCmd, goalShowCmd, goalCreateCmd, goalAssignCmd, goalCloseCmd)
}
