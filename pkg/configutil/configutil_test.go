package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server  string   `json:"server"`
	Email   string   `json:"email"`
	Skins   []string `json:"skins"`
	Archive struct {
		File string `json:"file"`
	} `json:"archive"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "aewatch.local.json5", LocalPath("aewatch.json5"))
	require.Equal(t, filepath.Join("a", "b", "config.local.json"), LocalPath(filepath.Join("a", "b", "config.json")))
	require.Equal(t, "config.local", LocalPath("config"))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "aewatch.json5")

	writeFile(t, name, `{
		// comments are fine
		server: "alpha.astroempires.com",
		email: "someone@example.com",
		skins: ["bluenova"],
		archive: { file: "aewatch.db" },
	}`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "alpha.astroempires.com", cfg.Server)
	require.Equal(t, "aewatch.db", cfg.Archive.File)

	writeFile(t, filepath.Join(dir, "aewatch.local.json5"), `{
		email: "admiral@example.com",
		archive: { file: "/tmp/local.db" },
	}`)

	cfg, err = ReadConfig[testConfig](name)
	require.NoError(t, err)

	expected := testConfig{
		Server: "alpha.astroempires.com",
		Email:  "admiral@example.com",
		Skins:  []string{"bluenova"},
	}
	expected.Archive.File = "/tmp/local.db"
	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Fatal(diff)
	}
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "aewatch.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigInvalid(t *testing.T) {
	name := filepath.Join(t.TempDir(), "aewatch.json5")
	writeFile(t, name, `{ server: `)
	_, err := ReadConfig[testConfig](name)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	writeFile(t, filepath.Join(root, "aewatch.json5"), `{ server: "beta.astroempires.com" }`)

	cfg, err := ReadRecursively[testConfig](nested, "aewatch.json5")
	require.NoError(t, err)
	require.Equal(t, "beta.astroempires.com", cfg.Server)

	_, err = ReadRecursively[testConfig](nested, "missing.json5")
	require.ErrorIs(t, err, os.ErrNotExist)
}
