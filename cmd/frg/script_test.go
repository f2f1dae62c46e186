package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"rsc.io/script"
	"rsc.io/script/scripttest"
)

// frgBin is the binary under test, built once in TestMain and invoked
// from the testdata/script files as the `frg` command.
var frgBin string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "frg-scripttest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create temp dir: %v\n", err)
		os.Exit(1)
	}

	frgBin = filepath.Join(dir, "frg")
	if runtime.GOOS == "windows" {
		frgBin += ".exe"
	}
	out, err := exec.Command("go", "build", "-o", frgBin, ".").CombinedOutput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build frg: %v\n%s", err, out)
		os.Exit(1)
	}

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// TestScript runs the CLI end to end against the txtar scripts in
// testdata/script. Each script gets its own $WORK directory and points
// HOME and the XDG directories into it, so nothing leaks into the real
// user cache.
func TestScript(t *testing.T) {
	engine := &script.Engine{
		Cmds:  script.DefaultCmds(),
		Conds: script.DefaultConds(),
		Quiet: !testing.Verbose(),
	}
	engine.Cmds["frg"] = script.Program(frgBin, func(cmd *exec.Cmd) error { return cmd.Process.Signal(os.Interrupt) }, 100*time.Millisecond)

	env := []string{
		"PATH=" + os.Getenv("PATH"),
	}
	scripttest.Test(t, context.Background(), engine, env, "testdata/script/*.txt")
}
