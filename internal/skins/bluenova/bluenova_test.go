package bluenova

import (
	"aewatch/internal/components/chrono"
	"aewatch/internal/components/telemetry"
	"aewatch/internal/empire"
	"aewatch/internal/session"
	"context"
	_ "embed"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var (
	//go:embed testdata/account_display.html
	accountDisplayPage string
	//go:embed testdata/account.html
	accountPage string
	//go:embed testdata/board.html
	boardPage string
	//go:embed testdata/messages.html
	messagesPage string
	//go:embed testdata/map.html
	mapPage string
	//go:embed testdata/profile.html
	profilePage string
)

var now = time.Date(2013, time.March, 5, 12, 0, 0, 0, time.UTC)

func serve(t *testing.T, pages map[string]string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if view := r.URL.Query().Get("view"); view != "" {
			key += "?view=" + view
		}
		body, ok := pages[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) (*empire.Client, *telemetry.Recorder) {
	tel := &telemetry.Recorder{}
	client, err := empire.NewClient(
		session.Credentials{Server: srv.URL, Email: "admiral@example.com", Password: "hunter2"},
		session.Options{RequestsPerSecond: 1000},
		[]empire.Plugin{New(tel)},
		chrono.FixedImpl{At: now},
		tel,
	)
	require.NoError(t, err)
	return client, tel
}

func unix(year int, month time.Month, day, hour, min, sec int) int64 {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC).Unix()
}

func TestRefresh(t *testing.T) {
	srv := serve(t, map[string]string{
		"/account.aspx?view=display": accountDisplayPage,
		"/account.aspx":              accountPage,
		"/board.aspx":                boardPage,
		"/messages.aspx":             messagesPage,
		"/map.aspx":                  mapPage,
		"/profile.aspx":              profilePage,
	})
	client, tel := newClient(t, srv)

	err := client.Refresh(context.Background(), "map.aspx?loc=A12:34:56", "profile.aspx?player=1001")
	require.NoError(t, err)

	require.Equal(t, Skin, client.Session.Skin())
	require.Equal(t, "en", client.Session.Language())

	require.Equal(t, empire.Stats{
		Credits:    125430,
		Income:     1024,
		FleetSize:  98765,
		Technology: 412,
		Level:      25.14,
		Rank:       1337,
	}, client.Stats())

	expectedGuild := []empire.Message{
		{
			ID:         "5000",
			Time:       unix(2013, time.March, 3, 23, 5, 0),
			PlayerID:   "1002",
			PlayerName: "Kira",
			Text:       "Defend the home system.",
			Status:     empire.StatusRead,
		},
		{
			ID:         "5001",
			Time:       unix(2013, time.March, 4, 10, 22, 1),
			PlayerID:   "1001",
			PlayerName: "Zorg",
			Text:       "Attack at dawn.",
			Status:     empire.StatusUnread,
		},
	}
	if diff := cmp.Diff(expectedGuild, client.Guild.All()); diff != "" {
		t.Fatal(diff)
	}
	// the row without a quote link
	require.Len(t, tel.Warnings(report_board_row), 1)

	expectedMail := []empire.Message{{
		ID:         "9001",
		Time:       unix(2013, time.February, 12, 7, 30, 15),
		PlayerID:   "2002",
		PlayerName: "Vex",
		Text:       "Trade route?",
		Status:     empire.StatusUnread,
	}}
	if diff := cmp.Diff(expectedMail, client.Mail.All()); diff != "" {
		t.Fatal(diff)
	}

	zorg, ok := client.Players.Get("1001")
	require.True(t, ok)
	require.Equal(t, empire.Player{
		ID:      "1001",
		Time:    now.Unix(),
		Name:    "Zorg",
		Guild:   "55",
		Level:   31.5,
		Rank:    42,
		Economy: 12345,
		Age:     300,
	}, zorg)

	nyx, ok := client.Players.Get("3003")
	require.True(t, ok)
	require.Equal(t, "Nyx", nyx.Name)
	require.Equal(t, 2, client.Players.Len())
}

func TestBoardKeepsKnownMessages(t *testing.T) {
	srv := serve(t, map[string]string{"/board.aspx": boardPage})
	client, _ := newClient(t, srv)
	client.Session.SetSkin(Skin)

	_, err := client.Guild.Set(context.Background(), "5001", empire.Message{
		Time:   1,
		Text:   "edited locally",
		Status: empire.StatusRead,
	})
	require.NoError(t, err)

	delivery, err := client.Session.Get(context.Background(), client.Session.PageURL("board.aspx"))
	require.NoError(t, err)

	msg, ok := client.Guild.Get("5001")
	require.True(t, ok)
	require.Equal(t, "edited locally", msg.Text)
	require.Equal(t, 2, client.Guild.Len())

	var added []empire.Message
	for _, p := range delivery.Publications {
		if p.Topic == skinTopic("board") {
			added = p.Results.Values()[0].([]empire.Message)
		}
	}
	require.Len(t, added, 1)
	require.Equal(t, "5000", added[0].ID)
}

func TestSkinFallback(t *testing.T) {
	srv := serve(t, map[string]string{
		"/account.aspx?view=display": "<html><head><title>Account</title></head><body></body></html>",
	})
	client, tel := newClient(t, srv)

	_, err := client.Session.Get(context.Background(), client.Session.PageURL("account.aspx?view=display"))
	require.NoError(t, err)
	require.Equal(t, Skin, client.Session.Skin())
	require.Equal(t, "", client.Session.Language())

	require.Len(t, tel.Warnings(report_skin_detect), 1)
}

func TestOtherSkinIsIgnored(t *testing.T) {
	srv := serve(t, map[string]string{
		"/account.aspx?view=display": `<html><head><title>Account</title></head><body>
			<select name='skin'><option value='Classic' selected='selected'>Classic</option></select>
		</body></html>`,
		"/account.aspx": accountPage,
	})
	client, _ := newClient(t, srv)

	require.NoError(t, client.Refresh(context.Background()))
	require.Equal(t, "Classic", client.Session.Skin())
	require.Equal(t, empire.Stats{}, client.Stats())
}

func TestUnexpectedMarkup(t *testing.T) {
	srv := serve(t, map[string]string{
		"/account.aspx": "<html><head><title>Account</title></head><body>maintenance</body></html>",
		"/profile.aspx": "<html><head><title>Profile</title></head><body>no such player</body></html>",
	})
	client, tel := newClient(t, srv)
	client.Session.SetSkin(Skin)

	for _, page := range []string{"account.aspx", "profile.aspx?player=1"} {
		delivery, err := client.Session.Get(context.Background(), client.Session.PageURL(page))
		require.NoError(t, err)
		last := delivery.Publications[len(delivery.Publications)-1]
		require.ErrorIs(t, last.Results.Err(), ErrUnexpectedMarkup)
	}
	require.Len(t, tel.Broken("bus.publish"), 2)
}

func TestParseMessageTime(t *testing.T) {
	cases := []struct {
		text     string
		expected int64
	}{
		{"Zorg 4 Mar 2013, 10:22:01 Quote", unix(2013, time.March, 4, 10, 22, 1)},
		{"04 mar 2013, 09:05", unix(2013, time.March, 4, 9, 5, 0)},
		{"12 Feb 2013,7:30:15", unix(2013, time.February, 12, 7, 30, 15)},
	}
	for _, test := range cases {
		t.Run(test.text, func(t *testing.T) {
			got, err := parseMessageTime(test.text, time.UTC)
			require.NoError(t, err)
			require.Equal(t, test.expected, got)
		})
	}

	_, err := parseMessageTime("yesterday", time.UTC)
	require.Error(t, err)
}

func TestStripGuildTag(t *testing.T) {
	require.Equal(t, "Zorg", stripGuildTag("[ABC] Zorg"))
	require.Equal(t, "Zorg", stripGuildTag("[A.B]Zorg"))
	require.Equal(t, "Zorg the 2nd", stripGuildTag("Zorg the 2nd"))
}
