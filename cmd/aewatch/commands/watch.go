package commands

import (
	"aewatch/internal/components/chrono"
	"aewatch/internal/session"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refreshes on the configured cron schedule (\"watch\" in the config) until interrupted.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client, store, done := setup(ctx)
		defer done()

		spec := config.Watch
		if spec == "" {
			spec = defaultWatchSpec
		}

		stop := make(chan error, 1)
		job := func() {
			err := refresh(ctx, client, store)
			if session.IsFatal(err) {
				select {
				case stop <- err:
				default:
				}
				return
			}
			if err != nil {
				slog.Warn("refresh failed", "err", err)
			}
		}

		cron := chrono.NewStandardCron(timeApi, tel)
		err := cron.Cron(spec, job)
		if err != nil {
			fatal("invalid watch schedule", err)
		}
		slog.Info("watching", "schedule", spec)
		go job()

		select {
		case <-ctx.Done():
			slog.Info("stopping, waiting for a running refresh to finish")
		case err = <-stop:
			slog.Error("giving up", "err", err)
		}
		<-cron.Stop().Done()

		if err != nil {
			done()
			fatal("authentication failed", err)
		}
	},
}
