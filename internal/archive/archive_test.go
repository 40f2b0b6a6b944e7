package archive

import (
	"aewatch/internal/components/chrono"
	"aewatch/internal/components/telemetry"
	"aewatch/internal/empire"
	"aewatch/internal/session"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *empire.Client {
	client, err := empire.NewClient(
		session.Credentials{Server: "localhost", Email: "admiral@example.com", Password: "hunter2"},
		session.Options{},
		nil,
		chrono.FixedImpl{At: time.Unix(1362484800, 0)},
		&telemetry.Recorder{},
	)
	require.NoError(t, err)
	return client
}

func newTestArchive(t *testing.T) (Archive, *telemetry.Recorder) {
	db, err := Config{File: ":memory:"}.OpenDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tel := &telemetry.Recorder{}
	return NewArchive(db, tel), tel
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	archive, _ := newTestArchive(t)
	client := newTestClient(t)

	_, err := client.Guild.Set(ctx, "2", empire.Message{Time: 20, PlayerID: "7", PlayerName: "Zorg", Text: "second", Status: empire.StatusUnread})
	require.NoError(t, err)
	_, err = client.Guild.Set(ctx, "1", empire.Message{Time: 10, PlayerID: "8", PlayerName: "Kira", Text: "first", Status: empire.StatusRead})
	require.NoError(t, err)
	_, err = client.Mail.Set(ctx, "9", empire.Message{Time: 5, PlayerID: "7", Text: "hello", Status: empire.StatusUnread})
	require.NoError(t, err)
	_, err = client.Players.Set(ctx, "7", empire.Player{Time: 30, Name: "Zorg", Guild: "55", Level: 31.5, Rank: 42})
	require.NoError(t, err)
	_, err = client.UpdateStats(empire.Stats{Credits: 100, Level: 2.5})
	require.NoError(t, err)

	require.NoError(t, archive.Save(ctx, client, 1000))

	guild, err := archive.Messages(ctx, BoardGuild)
	require.NoError(t, err)
	expected := []MessageRow{
		{Board: BoardGuild, ID: "1", Time: 10, PlayerID: "8", PlayerName: "Kira", Text: "first", Status: empire.StatusRead},
		{Board: BoardGuild, ID: "2", Time: 20, PlayerID: "7", PlayerName: "Zorg", Text: "second", Status: empire.StatusUnread},
	}
	if diff := cmp.Diff(expected, guild); diff != "" {
		t.Fatal(diff)
	}

	mail, err := archive.Messages(ctx, BoardMail)
	require.NoError(t, err)
	require.Len(t, mail, 1)
	require.Equal(t, "hello", mail[0].Text)

	players, err := archive.Players(ctx)
	require.NoError(t, err)
	require.Equal(t, []PlayerRow{{ID: "7", Time: 30, Name: "Zorg", Guild: "55", Level: 31.5, Rank: 42}}, players)

	stats, ok, err := archive.LatestStats(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatsRow{Time: 1000, Credits: 100, Level: 2.5}, stats)

	// saving again updates rows in place
	_, err = client.Guild.Set(ctx, "1", empire.Message{Status: empire.StatusUnread})
	require.NoError(t, err)
	require.NoError(t, archive.Save(ctx, client, 2000))

	guild, err = archive.Messages(ctx, BoardGuild)
	require.NoError(t, err)
	require.Len(t, guild, 2)
	require.Equal(t, empire.StatusUnread, guild[0].Status)
	require.Equal(t, "first", guild[0].Text)
}

func TestLatestStatsEmpty(t *testing.T) {
	archive, _ := newTestArchive(t)
	_, ok, err := archive.LatestStats(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAttachAndRestore(t *testing.T) {
	ctx := context.Background()
	archive, _ := newTestArchive(t)

	client := newTestClient(t)
	archive.Attach(client)

	_, err := client.Mail.Set(ctx, "9", empire.Message{Time: 5, PlayerID: "7", Text: "hello", Status: empire.StatusUnread})
	require.NoError(t, err)
	_, err = client.Players.Set(ctx, "7", empire.Player{Time: 30, Name: "Zorg"})
	require.NoError(t, err)
	_, err = client.Players.Set(ctx, "7", empire.Player{Guild: "55"})
	require.NoError(t, err)

	players, err := archive.Players(ctx)
	require.NoError(t, err)
	require.Equal(t, []PlayerRow{{ID: "7", Time: 30, Name: "Zorg", Guild: "55"}}, players)

	restored := newTestClient(t)
	require.NoError(t, archive.Restore(ctx, restored))

	msg, ok := restored.Mail.Get("9")
	require.True(t, ok)
	require.Equal(t, empire.Message{ID: "9", Time: 5, PlayerID: "7", Text: "hello", Status: empire.StatusUnread}, msg)
	require.Equal(t, 0, restored.Guild.Len())

	player, ok := restored.Players.Get("7")
	require.True(t, ok)
	require.Equal(t, "55", player.Guild)
}

func TestOpenDB(t *testing.T) {
	_, err := Config{}.OpenDB()
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "nested", "aewatch.db")
	db, err := Config{File: path}.OpenDB()
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// opening an existing archive keeps its tables
	db, err = Config{File: path}.OpenDB()
	require.NoError(t, err)
	defer db.Close()
	_, err = New(db).ListPlayers(context.Background())
	require.NoError(t, err)
}
