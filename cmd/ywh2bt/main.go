package main

import (
	"context"
	"os"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/yeswehack/ywh2bt-go/internal/cli"
)

var (
	name    = "ywh2bt"
	version = "v0.0.0"
)

func main() {
	cli.SetVersion(version)

	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

// run executes the cobra command tree. into.Init owns the process
// lifecycle exactly as it does for cmd/at/main.go: SIGINT/SIGTERM cancel
// ctx, and a non-nil return here becomes a failing exit. The one case
// into has no notion of is spec §6's exit code 2 (usage error, as
// opposed to a core one) — run exits directly for that case rather than
// going back through into's success/failure split.
func run(ctx context.Context) error {
	root := cli.NewRootCommand()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	cli.PrintError(os.Stderr, err)
	if cli.ExitCode(err) == 2 {
		os.Exit(2)
	}
	return err
}
