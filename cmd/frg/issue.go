package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/forgesync/frg/internal/types"
)

var (
	issueLabelFilter string
	issueStateFilter string
	issueTitle       string
	issueBody        string
	issueLabels      []string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Read and write issues",
}

var issueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached issues for this source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		issues, err := a.handler.IssueList(cmd.Context(), a.cwd, issueLabelFilter, issueStateFilter)
		if err != nil {
			return err
		}
		return emitIssues(issues)
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <number>",
	Short: "Show a cached issue and its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := parseIssueNumber(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		detail, err := a.handler.IssueShow(cmd.Context(), a.cwd, number)
		if err != nil {
			return err
		}
		return emitIssueDetail(detail)
	},
}

var issueCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an issue on the remote (queued when offline)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.IssueCreate(cmd.Context(), a.cwd, types.CreateIssueRequest{
			Title:  issueTitle,
			Body:   issueBody,
			Labels: issueLabels,
		})
		if err != nil {
			return err
		}
		return emitWriteResult(res)
	},
}

var issueCommentCmd = &cobra.Command{
	Use:   "comment <number> <body>",
	Short: "Comment on an issue (queued when offline)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := parseIssueNumber(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.IssueComment(cmd.Context(), a.cwd, number, args[1])
		if err != nil {
			return err
		}
		return emitWriteResult(res)
	},
}

var issueCloseCmd = &cobra.Command{
	Use:   "close <number>",
	Short: "Close an issue (queued when offline)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := parseIssueNumber(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.IssueClose(cmd.Context(), a.cwd, number)
		if err != nil {
			return err
		}
		return emitWriteResult(res)
	},
}

var issueReopenCmd = &cobra.Command{
	Use:   "reopen <number>",
	Short: "Reopen an issue (queued when offline)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := parseIssueNumber(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.IssueReopen(cmd.Context(), a.cwd, number)
		if err != nil {
			return err
		}
		return emitWriteResult(res)
	},
}

var issueLabelCmd = &cobra.Command{
	Use:   "label",
	Short: "Add or remove issue labels",
}

var issueLabelAddCmd = &cobra.Command{
	Use:   "add <number> <name>",
	Short: "Add a label to an issue (queued when offline)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := parseIssueNumber(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.IssueLabelAdd(cmd.Context(), a.cwd, number, args[1])
		if err != nil {
			return err
		}
		return emitWriteResult(res)
	},
}

var issueLabelRemoveCmd = &cobra.Command{
	Use:   "remove <number> <name>",
	Short: "Remove a label from an issue (queued when offline)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := parseIssueNumber(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.IssueLabelRemove(cmd.Context(), a.cwd, number, args[1])
		if err != nil {
			return err
		}
		return emitWriteResult(res)
	},
}

var issueAssignCmd = &cobra.Command{
	Use:   "assign <number> <user>",
	Short: "Assign an issue to a user (queued when offline)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := parseIssueNumber(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.handler.IssueAssign(cmd.Context(), a.cwd, number, args[1])
		if err != nil {
			return err
		}
		return emitWriteResult(res)
	},
}

func parseIssueNumber(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func init() {
	issueListCmd.Flags().StringVar(&issueLabelFilter, "label", "", "Filter by label substring")
	issueListCmd.Flags().StringVar(&issueStateFilter, "state", "", "Filter by state (open|closed)")

	issueCreateCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueCreateCmd.Flags().StringVar(&issueBody, "body", "", "Issue body")
	issueCreateCmd.Flags().StringSliceVar(&issueLabels, "label", nil, "Label to apply (repeatable)")
	_ = issueCreateCmd.MarkFlagRequired("title")

	issueLabelCmd.AddCommand(issueLabelAddCmd, issueLabelRemoveCmd)
	issueCmd.AddCommand(issueListCmd, issueShowCmd, issueCreateCmd, issueCommentCmd,
		issueCloseCmd, issueReopenCmd, issueLabelCmd, issueAssignCmd)
}
