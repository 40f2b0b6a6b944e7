package commands

import (
	"aewatch/internal/archive"
	"aewatch/internal/empire"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var showLimit *int

func init() {
	showLimit = showCmd.Flags().Int("limit", 20, "The amount of most recent messages to show per board.")
	rootCmd.AddCommand(showCmd)
}

func formatTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).In(timeApi.Location()).Format("2006-01-02 15:04")
}

func printMessages(title string, messages []empire.Message) {
	if len(messages) > *showLimit {
		messages = messages[len(messages)-*showLimit:]
	}

	t := newTable()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Id", "Time", "From", "Status", "Text"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, m := range messages {
		t.AppendRow(table.Row{m.ID, formatTime(m.Time), m.PlayerName, m.Status, m.Text})
	}
	t.Render()
}

func messagesFromRows(rows []archive.MessageRow) []empire.Message {
	out := make([]empire.Message, len(rows))
	for i, r := range rows {
		out[i] = empire.Message{
			ID:         r.ID,
			Time:       r.Time,
			PlayerID:   r.PlayerID,
			PlayerName: r.PlayerName,
			Text:       r.Text,
			Status:     r.Status,
		}
	}
	return out
}

var showCmd = &cobra.Command{
	Use:   "show [--limit <n>]",
	Short: "Prints what the archive holds without contacting the server.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		store, db, err := openArchive()
		if err != nil {
			fatal("failed to open archive", err)
		}
		if store == nil {
			fatal("nothing to show", fmt.Errorf("no archive is configured"))
		}
		defer db.Close()

		stats, ok, err := store.LatestStats(ctx)
		if err != nil {
			fatal("failed to read stats", err)
		}
		if ok {
			printStats(empire.Stats{
				Credits:    stats.Credits,
				Income:     stats.Income,
				FleetSize:  stats.FleetSize,
				Technology: stats.Technology,
				Level:      stats.Level,
				Rank:       stats.Rank,
			})
			fmt.Println("as of", formatTime(stats.Time))
		}

		for _, board := range []struct{ name, title string }{
			{archive.BoardGuild, "Guild board"},
			{archive.BoardMail, "Mail"},
		} {
			rows, err := store.Messages(ctx, board.name)
			if err != nil {
				fatal("failed to read messages", err)
			}
			printMessages(board.title, messagesFromRows(rows))
		}

		players, err := store.Players(ctx)
		if err != nil {
			fatal("failed to read players", err)
		}
		t := newTable()
		t.SetTitle("Players")
		t.AppendHeader(table.Row{"Id", "Name", "Guild", "Level", "Rank", "Economy", "Age", "Seen"})
		for _, p := range players {
			t.AppendRow(table.Row{
				p.ID,
				p.Name,
				p.Guild,
				fmt.Sprintf("%.2f", p.Level),
				p.Rank,
				p.Economy,
				p.Age,
				formatTime(p.Time),
			})
		}
		t.Render()
	},
}
