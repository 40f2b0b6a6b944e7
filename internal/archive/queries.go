package archive

import (
	"context"
)

type MessageRow struct {
	Board      string
	ID         string
	Time       int64
	PlayerID   string
	PlayerName string
	Text       string
	Status     string
}

const upsertMessage = `
insert into messages (board, id, time, player_id, player_name, text, status)
values (?, ?, ?, ?, ?, ?, ?)
on conflict (board, id) do update set
    time = excluded.time,
    player_id = excluded.player_id,
    player_name = excluded.player_name,
    text = excluded.text,
    status = excluded.status
`

func (q *Queries) UpsertMessage(ctx context.Context, arg MessageRow) error {
	_, err := q.db.ExecContext(ctx, upsertMessage,
		arg.Board,
		arg.ID,
		arg.Time,
		arg.PlayerID,
		arg.PlayerName,
		arg.Text,
		arg.Status,
	)
	return err
}

const listMessages = `
select board, id, time, player_id, player_name, text, status from messages
where board = ?
order by time, id
`

func (q *Queries) ListMessages(ctx context.Context, board string) ([]MessageRow, error) {
	rows, err := q.db.QueryContext(ctx, listMessages, board)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MessageRow
	for rows.Next() {
		var i MessageRow
		if err := rows.Scan(
			&i.Board,
			&i.ID,
			&i.Time,
			&i.PlayerID,
			&i.PlayerName,
			&i.Text,
			&i.Status,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type PlayerRow struct {
	ID      string
	Time    int64
	Name    string
	Guild   string
	Level   float64
	Rank    int64
	Economy int64
	Age     int64
}

const upsertPlayer = `
insert into players (id, time, name, guild, level, rank, economy, age)
values (?, ?, ?, ?, ?, ?, ?, ?)
on conflict (id) do update set
    time = excluded.time,
    name = excluded.name,
    guild = excluded.guild,
    level = excluded.level,
    rank = excluded.rank,
    economy = excluded.economy,
    age = excluded.age
`

func (q *Queries) UpsertPlayer(ctx context.Context, arg PlayerRow) error {
	_, err := q.db.ExecContext(ctx, upsertPlayer,
		arg.ID,
		arg.Time,
		arg.Name,
		arg.Guild,
		arg.Level,
		arg.Rank,
		arg.Economy,
		arg.Age,
	)
	return err
}

const listPlayers = `
select id, time, name, guild, level, rank, economy, age from players
order by time, id
`

func (q *Queries) ListPlayers(ctx context.Context) ([]PlayerRow, error) {
	rows, err := q.db.QueryContext(ctx, listPlayers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PlayerRow
	for rows.Next() {
		var i PlayerRow
		if err := rows.Scan(
			&i.ID,
			&i.Time,
			&i.Name,
			&i.Guild,
			&i.Level,
			&i.Rank,
			&i.Economy,
			&i.Age,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type StatsRow struct {
	Time       int64
	Credits    int64
	Income     int64
	FleetSize  int64
	Technology int64
	Level      float64
	Rank       int64
}

const insertStats = `
insert or replace into stats (time, credits, income, fleet_size, technology, level, rank)
values (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertStats(ctx context.Context, arg StatsRow) error {
	_, err := q.db.ExecContext(ctx, insertStats,
		arg.Time,
		arg.Credits,
		arg.Income,
		arg.FleetSize,
		arg.Technology,
		arg.Level,
		arg.Rank,
	)
	return err
}

const latestStats = `
select time, credits, income, fleet_size, technology, level, rank from stats
order by time desc
limit 1
`

func (q *Queries) LatestStats(ctx context.Context) (StatsRow, error) {
	row := q.db.QueryRowContext(ctx, latestStats)
	var i StatsRow
	err := row.Scan(
		&i.Time,
		&i.Credits,
		&i.Income,
		&i.FleetSize,
		&i.Technology,
		&i.Level,
		&i.Rank,
	)
	return i, err
}
