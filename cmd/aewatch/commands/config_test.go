package commands

import (
	"aewatch/internal/components/chrono"
	"aewatch/internal/components/telemetry"
	"aewatch/internal/empire"
	"aewatch/internal/skins/bluenova"
	"aewatch/pkg/configutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExampleConfig(t *testing.T) {
	cfg, err := configutil.ReadConfig[Config](filepath.Join("..", "..", "..", "aewatch.example.json5"))
	require.NoError(t, err)
	require.NoError(t, cfg.validate())
	require.Equal(t, []string{"bluenova"}, cfg.Skins)
	require.Equal(t, "aewatch.db", cfg.Archive.File)
}

func TestNewClient(t *testing.T) {
	timeApi := chrono.FixedImpl{At: time.Unix(0, 0).UTC()}
	tel := &telemetry.Recorder{}

	_, err := Config{Server: "alpha.astroempires.com"}.newClient(timeApi, tel)
	require.Error(t, err)

	cfg := Config{
		Server:   "alpha.astroempires.com",
		Email:    "admiral@example.com",
		Password: "hunter2",
	}
	client, err := cfg.newClient(timeApi, tel)
	require.NoError(t, err)
	require.Equal(t, "http://alpha.astroempires.com/board.aspx", client.Session.PageURL("board.aspx"))
	// every known skin is registered by default
	require.Equal(t, 1, client.Session.Bus().Subscribers("skin_"+bluenova.Skin+"_board"))

	cfg.Skins = []string{"classic"}
	_, err = cfg.newClient(timeApi, tel)
	require.ErrorIs(t, err, empire.ErrUnknownPlugin)
}
