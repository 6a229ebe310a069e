package main

import (
	"github.com/spf13/cobra"

	"ThreatScanner/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single collection pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, true, func(a *app.Application) error {
			report, err := a.RunOnce(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("collected %d, duplicates %d, analyzed %d, threats %d, alerted %d, unscored %d\n",
				report.Collected, report.Duplicates, report.Analyzed, report.Threats, report.Alerted, report.Unscored)
			return nil
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run collection passes on the configured cron schedule",
	Long: `serve runs one pass immediately and then one per cron tick until
interrupted. Pending analyst feedback is applied before each pass.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, true, func(a *app.Application) error {
			logger.Info("serving", "schedule", cfg.Scheduler.CronExpression, "timezone", cfg.Scheduler.Timezone)
			return a.Serve(ctx)
		})
	},
}
