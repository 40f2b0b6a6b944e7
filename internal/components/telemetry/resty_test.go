package telemetry

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu    sync.Mutex
	dumps map[string]string
}

func (o *memoryOutput) Write(id, contents string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dumps[id] = contents
}

func TestInstrumentResty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-page", "board")
		w.Write([]byte("<title>Board</title>"))
	}))
	defer srv.Close()

	tel := &Recorder{}
	dump := &memoryOutput{dumps: map[string]string{}}
	client := resty.New()
	InstrumentResty(client, tel, dump)

	_, err := client.R().
		SetFormData(map[string]string{"email": "admiral@example.com"}).
		Post(srv.URL + "/login.aspx")
	require.NoError(t, err)
	_, err = client.R().Get(srv.URL + "/board.aspx")
	require.NoError(t, err)

	require.Len(t, dump.dumps, 2)
	require.Contains(t, dump.dumps["1"], "POST "+srv.URL+"/login.aspx")
	require.Contains(t, dump.dumps["2"], "X-Page: board")
	require.Contains(t, dump.dumps["2"], "<title>Board</title>")
	require.Empty(t, tel.Broken(""))
}

func TestInstrumentRestyError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tel := &Recorder{}
	client := resty.New()
	InstrumentResty(client, tel, nil)

	_, err := client.R().Get(url + "/board.aspx")
	require.Error(t, err)
	require.Len(t, tel.Broken(report_resty_response), 1)
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	require.NoError(t, os.MkdirAll(dir, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale"), nil, 0600))

	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)
	out.Write("1", "contents")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	contents, err := os.ReadFile(filepath.Join(dir, "1"))
	require.NoError(t, err)
	require.Equal(t, "contents", string(contents))
}

func TestScopedAPI(t *testing.T) {
	tel := &Recorder{}
	scoped := NewScopedAPI("outer", NewScopedAPI("inner", tel))
	scoped.ReportBroken("store.set", "param")
	scoped.ReportWarning("store.set")

	broken := tel.Broken("store.set")
	require.Len(t, broken, 1)
	require.Equal(t, "inner: outer: store.set", broken[0].Id)
	require.Equal(t, []any{"param"}, broken[0].Params)
	require.Len(t, tel.Warnings("outer"), 1)
}
