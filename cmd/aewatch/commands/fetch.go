package commands

import (
	"aewatch/internal/archive"
	"aewatch/internal/empire"
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

// openArchive returns nil when no archive is configured.
func openArchive() (*archive.Archive, *sql.DB, error) {
	if config.Archive.File == "" && config.Archive.Url == "" {
		return nil, nil, nil
	}
	db, err := config.Archive.OpenDB()
	if err != nil {
		return nil, nil, err
	}
	store := archive.NewArchive(db, tel)
	return &store, db, nil
}

// setup creates the client and, if configured, loads the archive into it and keeps the
// archive up to date with every write.
func setup(ctx context.Context) (*empire.Client, *archive.Archive, func()) {
	client, err := config.newClient(timeApi, tel)
	if err != nil {
		fatal("failed to create client", err)
	}

	store, db, err := openArchive()
	if err != nil {
		fatal("failed to open archive", err)
	}
	if store == nil {
		return client, nil, func() {}
	}

	err = store.Restore(ctx, client)
	if err != nil {
		fatal("failed to restore archive", err)
	}
	store.Attach(client)
	return client, store, func() { db.Close() }
}

func refresh(ctx context.Context, client *empire.Client, store *archive.Archive) error {
	err := client.Refresh(ctx, config.Pages...)
	if err != nil {
		return err
	}
	slog.Info(
		"refreshed",
		"guild_messages", client.Guild.Len(),
		"mail", client.Mail.Len(),
		"players", client.Players.Len(),
	)
	if store == nil {
		return nil
	}
	return store.Save(ctx, client, timeApi.Now().Unix())
}

func printStats(stats empire.Stats) {
	t := newTable()
	t.AppendHeader(table.Row{"Credits", "Income", "Fleet Size", "Technology", "Level", "Rank"})
	t.AppendRow(table.Row{
		stats.Credits,
		stats.Income,
		stats.FleetSize,
		stats.Technology,
		fmt.Sprintf("%.2f", stats.Level),
		stats.Rank,
	})
	t.Render()
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Logs in, requests the account, board and message pages once and archives what was found.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client, store, done := setup(cmd.Context())
		defer done()

		err := refresh(cmd.Context(), client, store)
		if err != nil {
			fatal("failed to refresh", err)
		}
		printStats(client.Stats())
		printMessages("Guild board", client.Guild.All())
		printMessages("Mail", client.Mail.All())
	},
}
