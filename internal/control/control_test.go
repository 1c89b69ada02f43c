package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/roach88/bonfire/internal/present"
	"github.com/roach88/bonfire/internal/testutil"
)

type fakeCommander struct {
	mu       sync.Mutex
	shown    []present.Trigger
	tests    int
	reloads  int
	urls     []string
	failWith error
}

func (f *fakeCommander) ShowBanner(_ context.Context, t present.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, t)
	return f.failWith
}

func (f *fakeCommander) TestBanner(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tests++
	return f.failWith
}

func (f *fakeCommander) ReloadSettings(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return f.failWith
}

func (f *fakeCommander) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return f.failWith
}

func startServer(t *testing.T, cmd Commander) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(NewHandler(cmd))
	t.Cleanup(srv.Close)

	c := &Client{
		Addr:    srv.URL,
		IDs:     testutil.NewSequentialIDGenerator("req"),
		Timeout: 2 * time.Second,
	}
	return srv, c
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	return conn
}

func readAck(t *testing.T, dec *json.Decoder) (Frame, Ack) {
	t.Helper()
	var f Frame
	require.NoError(t, dec.Decode(&f))
	require.Equal(t, TypeAck, f.Type)
	var ack Ack
	require.NoError(t, json.Unmarshal(f.Payload, &ack))
	return f, ack
}

func TestClient_Commands(t *testing.T) {
	cmd := &fakeCommander{}
	_, c := startServer(t, cmd)
	ctx := context.Background()

	trigger := present.Trigger{MainText: "SHIPPED", SubText: "Release 1.2"}
	require.NoError(t, c.ShowBanner(ctx, trigger))
	require.NoError(t, c.TestBanner(ctx))
	require.NoError(t, c.ReloadSettings(ctx))
	require.NoError(t, c.Navigate(ctx, "https://example.atlassian.net/jira/software/projects/X/boards/3"))

	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	assert.Equal(t, []present.Trigger{trigger}, cmd.shown)
	assert.Equal(t, 1, cmd.tests)
	assert.Equal(t, 1, cmd.reloads)
	assert.Equal(t, []string{"https://example.atlassian.net/jira/software/projects/X/boards/3"}, cmd.urls)
}

func TestClient_NegativeAck(t *testing.T) {
	_, c := startServer(t, &fakeCommander{failWith: errors.New("settings store unavailable")})

	err := c.ReloadSettings(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, err.Error(), "settings store unavailable")
}

func TestClient_ValidationErrors(t *testing.T) {
	cmd := &fakeCommander{}
	_, c := startServer(t, cmd)

	err := c.Navigate(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.Empty(t, cmd.urls)

	err = c.Send(context.Background(), TypeShowBanner, "not an object")
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.Empty(t, cmd.shown)
}

func TestClient_NoWatcher(t *testing.T) {
	c := &Client{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond}
	err := c.TestBanner(context.Background())
	assert.ErrorContains(t, err, "connect to watcher")
}

func TestServer_AckEchoesRequestID(t *testing.T) {
	srv, _ := startServer(t, &fakeCommander{})
	conn := dialWS(t, srv)

	require.NoError(t, json.NewEncoder(conn).Encode(Frame{Type: TypeTestBanner, RequestID: "abc-1"}))

	f, ack := readAck(t, json.NewDecoder(conn))
	assert.Equal(t, "abc-1", f.RequestID)
	assert.True(t, ack.Success)
}

func TestServer_UnsupportedType(t *testing.T) {
	srv, _ := startServer(t, &fakeCommander{})
	conn := dialWS(t, srv)

	require.NoError(t, json.NewEncoder(conn).Encode(Frame{Type: "explode", RequestID: "r1"}))

	f, ack := readAck(t, json.NewDecoder(conn))
	assert.Equal(t, "r1", f.RequestID)
	assert.False(t, ack.Success)
	assert.Contains(t, ack.Error, "unsupported frame type")
}

func TestServer_PayloadTooLarge(t *testing.T) {
	srv, _ := startServer(t, &fakeCommander{})
	conn := dialWS(t, srv)

	big := ShowBanner{Trigger: present.Trigger{MainText: strings.Repeat("x", maxFramePayloadBytes+1)}}
	require.NoError(t, json.NewEncoder(conn).Encode(Frame{Type: TypeShowBanner, RequestID: "big", Payload: mustJSON(big)}))

	_, ack := readAck(t, json.NewDecoder(conn))
	assert.False(t, ack.Success)
	assert.Equal(t, "payload too large", ack.Error)
}

func TestServer_RejectsNonGet(t *testing.T) {
	srv, _ := startServer(t, &fakeCommander{})

	resp, err := http.Post(srv.URL+"/ws", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Up(t *testing.T) {
	srv, _ := startServer(t, &fakeCommander{})

	resp, err := http.Get(srv.URL + "/up")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClientURLs(t *testing.T) {
	tests := []struct {
		addr   string
		ws     string
		origin string
	}{
		{"127.0.0.1:7777", "ws://127.0.0.1:7777/ws", "http://127.0.0.1:7777"},
		{"http://localhost:7777", "ws://localhost:7777/ws", "http://localhost:7777"},
		{"ws://localhost:7777/ws", "ws://localhost:7777/ws", "http://localhost:7777"},
		{"https://bonfire.example", "wss://bonfire.example/ws", "https://bonfire.example"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			ws, origin := (&Client{Addr: tt.addr}).urls()
			assert.Equal(t, tt.ws, ws)
			assert.Equal(t, tt.origin, origin)
		})
	}
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "7", a[14:15], "version nibble")
}
