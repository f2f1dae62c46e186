package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/forgesync/frg/internal/handlers"
	"github.com/forgesync/frg/internal/types"
)

// emitJSON prints v as indented JSON to stdout.
func emitJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emitWriteResult prints a write outcome: the exact JSON shape under
// --json, or the checkmark line otherwise.
func emitWriteResult(res *handlers.WriteResult) error {
	if jsonOutput {
		return emitJSON(res)
	}
	fmt.Printf("✓ %s\n", res.Message)
	return nil
}

func emitIssues(issues []types.Issue) error {
	if jsonOutput {
		if issues == nil {
			issues = []types.Issue{}
		}
		return emitJSON(issues)
	}
	if len(issues) == 0 {
		fmt.Println("No issues.")
		return nil
	}
	for _, issue := range issues {
		state := " "
		if issue.State == types.IssueClosed {
			state = "x"
		}
		line := fmt.Sprintf("[%s] #%-5d %s", state, issue.Number, issue.Title)
		if len(issue.Labels) > 0 {
			line += "  (" + strings.Join(issue.Labels, ", ") + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func emitIssueDetail(d *handlers.IssueDetail) error {
	if jsonOutput {
		return emitJSON(d)
	}
	issue := d.Issue
	fmt.Printf("#%d %s [%s]\n", issue.Number, issue.Title, issue.State)
	if issue.Author != "" {
		fmt.Printf("Author: %s\n", issue.Author)
	}
	if len(issue.Labels) > 0 {
		fmt.Printf("Labels: %s\n", strings.Join(issue.Labels, ", "))
	}
	if issue.GoalName != "" {
		fmt.Printf("Goal: %s\n", issue.GoalName)
	}
	if issue.Body != "" {
		fmt.Printf("\n%s\n", issue.Body)
	}
	for _, c := range d.Comments {
		fmt.Printf("\n--- %s (%s)\n%s\n", c.Author, c.CreatedAt.Format("2006-01-02 15:04"), c.Body)
	}
	return nil
}

func emitGoals(goals []types.Goal) error {
	if jsonOutput {
		if goals == nil {
			goals = []types.Goal{}
		}
		return emitJSON(goals)
	}
	if len(goals) == 0 {
		fmt.Println("No goals.")
		return nil
	}
	for _, g := range goals {
		line := fmt.Sprintf("%-30s %s  %3.0f%%", g.Name, g.State, g.Progress*100)
		if g.TargetDate != nil {
			line += "  due " + g.TargetDate.Format("2006-01-02")
		}
		fmt.Println(line)
	}
	return nil
}

func emitGoalDetail(d *handlers.GoalDetail) error {
	if jsonOutput {
		return emitJSON(d)
	}
	g := d.Goal
	fmt.Printf("%s [%s]  %.0f%% complete\n", g.Name, g.State, g.Progress*100)
	if g.TargetDate != nil {
		fmt.Printf("Target: %s\n", g.TargetDate.Format("2006-01-02"))
	}
	if g.Description != "" {
		fmt.Printf("\n%s\n", g.Description)
	}
	if len(d.Issues) > 0 {
		fmt.Println()
		return emitIssues(d.Issues)
	}
	return nil
}
