package www

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angas/awattar-go/config"
	"github.com/angas/awattar-go/database"
	"github.com/angas/awattar-go/store"
	"github.com/angas/awattar-go/types"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogs struct {
	minLvl         slog.Level
	page, pageSize int
}

func (f *fakeLogs) GetLogEntries(_ context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error) {
	f.minLvl, f.page, f.pageSize = minLvl, page, pageSize
	return []database.LogEntryRow{{Timestamp: time.Unix(0, 0).UTC(), Level: int(slog.LevelWarn), Message: "hello"}}, nil
}

type testServer struct {
	url    string
	hub    *Hub
	memory *store.Memory
	logs   *fakeLogs
	runs   chan struct{}
}

func newTestServer(t *testing.T, cnfg config.AppConfigApi) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ts := &testServer{
		hub:    NewHub(slog.Default()),
		memory: store.NewMemory(),
		logs:   &fakeLogs{},
		runs:   make(chan struct{}, 1),
	}
	go ts.hub.Run(ctx)

	run := func(ctx context.Context) error {
		ts.runs <- struct{}{}
		return nil
	}
	s := NewServer(cnfg, ts.hub, MemoryStates(ts.memory), ts.logs, run)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	ts.url = srv.URL
	return ts
}

func TestStatesHandler(t *testing.T) {
	ts := newTestServer(t, config.AppConfigApi{})
	ctx := context.Background()
	obj := types.StateObject{Name: "Preis", Type: types.StateTypeNumber, Role: "value", Read: true}
	require.NoError(t, ts.memory.SetObjectNotExists(ctx, "prices.0.nettoPriceKwh", obj))
	require.NoError(t, ts.memory.SetState(ctx, "prices.0.nettoPriceKwh", 3.5, true))
	require.NoError(t, ts.memory.SetObjectNotExists(ctx, "Rawdata", obj))

	resp, err := http.Get(ts.url + "/api/states?prefix=prices.")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var rows []database.StateRow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "prices.0.nettoPriceKwh", rows[0].Id)
	assert.Equal(t, 3.5, rows[0].Val)
	assert.True(t, rows[0].Ack)
	assert.Equal(t, "Preis", rows[0].Object.Name)
}

func TestStatesHandlerEmpty(t *testing.T) {
	ts := newTestServer(t, config.AppConfigApi{})

	resp, err := http.Get(ts.url + "/api/states?prefix=nothing")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body []any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotNil(t, body)
	assert.Empty(t, body)
}

func TestLogHandler(t *testing.T) {
	ts := newTestServer(t, config.AppConfigApi{})

	resp, err := http.Get(ts.url + "/api/log?page=2&pageSize=10&level=warn")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []database.LogEntryRow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, slog.LevelWarn, ts.logs.minLvl)
	assert.Equal(t, 2, ts.logs.page)
	assert.Equal(t, 10, ts.logs.pageSize)
}

func TestLogHandlerDefaults(t *testing.T) {
	ts := newTestServer(t, config.AppConfigApi{})

	resp, err := http.Get(ts.url + "/api/log?page=x")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, slog.LevelDebug, ts.logs.minLvl)
	assert.Equal(t, 1, ts.logs.page)
	assert.Equal(t, 25, ts.logs.pageSize)
}

func TestRunHandler(t *testing.T) {
	ts := newTestServer(t, config.AppConfigApi{})

	resp, err := http.Post(ts.url+"/api/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case <-ts.runs:
	case <-time.After(2 * time.Second):
		t.Fatal("run was not triggered")
	}

	resp, err = http.Get(ts.url + "/api/run")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCors(t *testing.T) {
	ts := newTestServer(t, config.AppConfigApi{AllowedOrigins: []string{"http://dashboard.local"}})

	req, err := http.NewRequest(http.MethodGet, ts.url+"/api/states", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.local")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://dashboard.local", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.local")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebsocketBroadcast(t *testing.T) {
	ts := newTestServer(t, config.AppConfigApi{})

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.url, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	notify := store.NewNotify(ts.memory, ts.hub.OnStateChange)
	require.NoError(t, notify.SetState(context.Background(), "prices.0.start", "23:00:00", true))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg StateChange
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "prices.0.start", msg.Id)
	assert.Equal(t, "23:00:00", msg.Value)
	assert.True(t, msg.Ack)

	conn.Close()
	assert.Eventually(t, func() bool { return ts.hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketOrigin(t *testing.T) {
	ts := newTestServer(t, config.AppConfigApi{AllowedOrigins: []string{"http://dashboard.local"}})
	url := "ws" + strings.TrimPrefix(ts.url, "http") + "/ws"

	conn, _, err := ws.DefaultDialer.Dial(url, http.Header{"Origin": {"http://dashboard.local"}})
	require.NoError(t, err, "an origin admitted by cors must be able to connect")
	conn.Close()

	_, resp, err := ws.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.local"}})
	require.ErrorIs(t, err, ws.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{[]string{"*"}, "http://anything.local", true},
		{[]string{"http://dashboard.local"}, "http://dashboard.local", true},
		{[]string{"http://dashboard.local"}, "HTTP://Dashboard.local", true},
		{[]string{"http://dashboard.local"}, "http://evil.local", false},
		{[]string{"http://dashboard.local"}, "", true},
		{nil, "http://dashboard.local", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, originAllowed(tt.allowed, tt.origin))
		})
	}
}
