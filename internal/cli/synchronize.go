package cli

import (
	"log/slog"

	"github.com/rakunlabs/logi"
	"github.com/spf13/cobra"

	"github.com/yeswehack/ywh2bt-go/internal/config"
	"github.com/yeswehack/ywh2bt-go/internal/events"
	"github.com/yeswehack/ywh2bt-go/internal/orchestrator"
)

func newSynchronizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "synchronize",
		Aliases: []string{"sync"},
		Short:   "Run the orchestrator end-to-end (spec §4.7)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguredFile()
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return orchestrator.Run(cmd.Context(), cfg, orchestrator.Options{
				Listener: runListener(cmd),
			})
		},
	}
}

// runListener wires orchestrator/reconcile events to the contextual
// logger the same way scheduler.go logs a workflow run's start/end,
// rather than inventing a separate reporting path.
func runListener(cmd *cobra.Command) *events.Listener {
	logger := logi.Ctx(cmd.Context())
	return &events.Listener{
		OnStart: func(s events.Start) {
			logger.Debug("phase started",
				"phase", s.Phase, "platform", s.Platform, "program", s.Program,
				"report_id", s.ReportID, "tracker", s.Tracker)
		},
		OnEnd: func(r events.Result) {
			level := slog.LevelInfo
			if r.Err != nil {
				level = slog.LevelError
			}
			logger.Log(cmd.Context(), level, "phase finished",
				"phase", r.Phase, "platform", r.Platform, "program", r.Program,
				"report_id", r.ReportID, "tracker", r.Tracker,
				"action", r.Action, "logs_sent", r.LogsSent,
				"comments_pulled", r.CommentsPulled, "duration", r.Duration,
				"error", r.Err)
		},
	}
}
