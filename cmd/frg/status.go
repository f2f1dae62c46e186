package main

import (
	"fmt"
	"time"

	"github.com/forgesync/frg/internal/handlers"
)

func printStatus(report *handlers.StatusReport) {
	fmt.Println("Auth:")
	for kind, ready := range report.Auth {
		mark := "✗"
		if ready {
			mark = "✓"
		}
		fmt.Printf("  %s %s\n", mark, kind)
	}

	if report.Source != nil {
		s := report.Source
		fmt.Printf("\nSource: %s → %s (%s)\n", s.LocalPath, s.RemoteID, s.ForgeKind)
		if s.LastSync.IsZero() {
			fmt.Println("  never synced")
		} else {
			fmt.Printf("  last sync %s ago, %d issues\n", time.Since(s.LastSync).Round(time.Second), s.IssueCount)
		}
		fmt.Printf("  %d pending ops\n", s.PendingOps)
	} else {
		fmt.Println("\nSource: not linked")
	}

	for _, rl := range report.RateLimits {
		line := fmt.Sprintf("\nRate limit (%s):", rl.ForgeKind)
		if rl.Remaining != nil {
			line += fmt.Sprintf(" %d remaining", *rl.Remaining)
		}
		if rl.CoolingOff && rl.ResetAt != nil {
			line += fmt.Sprintf(", cooling off until %s", time.Unix(*rl.ResetAt, 0).Format(time.Kitchen))
		}
		fmt.Println(line)
	}

	if report.Daemon != nil {
		fmt.Printf("\nDaemon: pid %d (v%s), started %s\n",
			report.Daemon.PID, report.Daemon.Version, report.Daemon.StartedAt.Format(time.RFC3339))
	} else {
		fmt.Println("\nDaemon: not running")
	}
}
