// Package archive persists the contents of an empire client's stores so they survive restarts.
package archive

import (
	"aewatch/internal/components/assert"
	"aewatch/internal/components/telemetry"
	"aewatch/internal/empire"
	"aewatch/internal/recordstore"
	"context"
	"database/sql"
	"fmt"
)

const (
	report_db_query     = "db.query"
	report_archive_save = "archive.save"
)

const (
	BoardGuild = "guild"
	BoardMail  = "mail"
)

type Archive struct {
	qry    *Queries
	makeTx MakeTx
	tel    telemetry.API
}

func NewArchive(db *sql.DB, tel telemetry.API) Archive {
	assert.NotNil(db)
	assert.NotNil(tel)

	return Archive{
		qry:    New(db),
		makeTx: NewMakeTx(db),
		tel:    telemetry.NewScopedAPI("archive", tel),
	}
}

func messageRow(board string, m empire.Message) MessageRow {
	return MessageRow{
		Board:      board,
		ID:         m.ID,
		Time:       m.Time,
		PlayerID:   m.PlayerID,
		PlayerName: m.PlayerName,
		Text:       m.Text,
		Status:     m.Status,
	}
}

func playerRow(p empire.Player) PlayerRow {
	return PlayerRow{
		ID:      p.ID,
		Time:    p.Time,
		Name:    p.Name,
		Guild:   p.Guild,
		Level:   p.Level,
		Rank:    p.Rank,
		Economy: p.Economy,
		Age:     p.Age,
	}
}

// Save writes everything the client currently holds in a single transaction, `at` is
// the unix time the stats snapshot is recorded under.
func (a Archive) Save(ctx context.Context, client *empire.Client, at int64) error {
	tx, discard, commit, err := a.makeTx()
	if err != nil {
		a.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return err
	}
	defer discard()

	boards := []struct {
		name  string
		store *recordstore.Store[empire.Message]
	}{
		{BoardGuild, client.Guild},
		{BoardMail, client.Mail},
	}
	for _, board := range boards {
		for _, m := range board.store.All() {
			err = tx.UpsertMessage(ctx, messageRow(board.name, m))
			if err != nil {
				a.tel.ReportBroken(report_db_query, err, "UpsertMessage", board.name, m.ID)
				return err
			}
		}
	}

	for _, p := range client.Players.All() {
		err = tx.UpsertPlayer(ctx, playerRow(p))
		if err != nil {
			a.tel.ReportBroken(report_db_query, err, "UpsertPlayer", p.ID)
			return err
		}
	}

	stats := client.Stats()
	if stats != (empire.Stats{}) {
		err = tx.InsertStats(ctx, StatsRow{
			Time:       at,
			Credits:    stats.Credits,
			Income:     stats.Income,
			FleetSize:  stats.FleetSize,
			Technology: stats.Technology,
			Level:      stats.Level,
			Rank:       stats.Rank,
		})
		if err != nil {
			a.tel.ReportBroken(report_db_query, err, "InsertStats")
			return err
		}
	}

	err = commit()
	if err != nil {
		a.tel.ReportBroken(report_db_query, fmt.Errorf("commit: %w", err))
		return err
	}
	a.tel.ReportCount(report_archive_save, int64(client.Guild.Len()+client.Mail.Len()+client.Players.Len()))
	return nil
}

// Attach writes every record as soon as it is stored in one of the client's stores.
func (a Archive) Attach(client *empire.Client) {
	messageHandler := func(board string) func(context.Context, string, recordstore.WriteEvent[empire.Message]) (any, error) {
		return func(ctx context.Context, _ string, ev recordstore.WriteEvent[empire.Message]) (any, error) {
			err := a.qry.UpsertMessage(ctx, messageRow(board, ev.Record))
			if err != nil {
				a.tel.ReportBroken(report_db_query, err, "UpsertMessage", board, ev.ID)
			}
			return nil, err
		}
	}
	client.Guild.Subscribe(recordstore.TopicPostSet, messageHandler(BoardGuild))
	client.Mail.Subscribe(recordstore.TopicPostSet, messageHandler(BoardMail))

	client.Players.Subscribe(recordstore.TopicPostSet, func(ctx context.Context, _ string, ev recordstore.WriteEvent[empire.Player]) (any, error) {
		err := a.qry.UpsertPlayer(ctx, playerRow(ev.Record))
		if err != nil {
			a.tel.ReportBroken(report_db_query, err, "UpsertPlayer", ev.ID)
		}
		return nil, err
	})
}

// Restore loads archived records back into the client's stores.
func (a Archive) Restore(ctx context.Context, client *empire.Client) error {
	boards := []struct {
		name  string
		store *recordstore.Store[empire.Message]
	}{
		{BoardGuild, client.Guild},
		{BoardMail, client.Mail},
	}
	for _, board := range boards {
		rows, err := a.Messages(ctx, board.name)
		if err != nil {
			return err
		}
		for _, row := range rows {
			_, err = board.store.Set(ctx, row.ID, empire.Message{
				Time:       row.Time,
				PlayerID:   row.PlayerID,
				PlayerName: row.PlayerName,
				Text:       row.Text,
				Status:     row.Status,
			})
			if err != nil {
				return err
			}
		}
	}

	players, err := a.Players(ctx)
	if err != nil {
		return err
	}
	for _, row := range players {
		_, err = client.Players.Set(ctx, row.ID, empire.Player{
			Time:    row.Time,
			Name:    row.Name,
			Guild:   row.Guild,
			Level:   row.Level,
			Rank:    row.Rank,
			Economy: row.Economy,
			Age:     row.Age,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (a Archive) Messages(ctx context.Context, board string) ([]MessageRow, error) {
	rows, err := a.qry.ListMessages(ctx, board)
	if err != nil {
		a.tel.ReportBroken(report_db_query, err, "ListMessages", board)
		return nil, err
	}
	return rows, nil
}

func (a Archive) Players(ctx context.Context) ([]PlayerRow, error) {
	rows, err := a.qry.ListPlayers(ctx)
	if err != nil {
		a.tel.ReportBroken(report_db_query, err, "ListPlayers")
		return nil, err
	}
	return rows, nil
}

// LatestStats returns false if no stats were ever saved.
func (a Archive) LatestStats(ctx context.Context) (StatsRow, bool, error) {
	row, err := a.qry.LatestStats(ctx)
	if err == sql.ErrNoRows {
		return StatsRow{}, false, nil
	}
	if err != nil {
		a.tel.ReportBroken(report_db_query, err, "LatestStats")
		return StatsRow{}, false, err
	}
	return row, true, nil
}
