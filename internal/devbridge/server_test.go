package devbridge_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizmarket/wizapp/internal/devbridge"
)

func newServer(t *testing.T, inbound chan string) (*devbridge.Server, *httptest.Server) {
	t.Helper()
	s := devbridge.New(devbridge.Options{
		StartURL:  "http://localhost:5173/app?x=1",
		CookieKey: []byte("0123456789abcdef0123456789abcdef"),
		OnMessage: func(raw string) { inbound <- raw },
	})
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return s, srv
}

func bootstrap(t *testing.T, srv *httptest.Server) *url.URL {
	t.Helper()
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:5173", loc.Host)
	assert.Equal(t, "1", loc.Query().Get("x"))

	script, err := url.Parse(loc.Query().Get(devbridge.StartParam))
	require.NoError(t, err)
	assert.Equal(t, "/bridge.js", script.Path)
	assert.NotEmpty(t, script.Query().Get("t"))
	return script
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge?t=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServer_RoundTrip(t *testing.T) {
	inbound := make(chan string, 1)
	s, srv := newServer(t, inbound)
	script := bootstrap(t, srv)

	conn := dial(t, srv, script.Query().Get("t"))
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"WEB_READY"}`)))
	select {
	case raw := <-inbound:
		assert.Equal(t, `{"type":"WEB_READY"}`, raw)
	case <-time.After(time.Second):
		t.Fatal("inbound message not delivered")
	}

	require.NoError(t, s.PostMessage(`{"type":"WEB_READY_ACK","payload":{"at":1}}`))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"WEB_READY_ACK","payload":{"at":1}}`, string(msg))
}

func TestServer_RejectsMissingTicket(t *testing.T) {
	_, srv := newServer(t, make(chan string, 1))

	for _, token := range []string{"", "forged"} {
		u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge?t=" + token
		_, resp, err := websocket.DefaultDialer.Dial(u, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestServer_PostWithoutClient(t *testing.T) {
	s, _ := newServer(t, make(chan string, 1))
	assert.ErrorIs(t, s.PostMessage(`{}`), devbridge.ErrNoClient)
}

func TestServer_DisconnectUnregisters(t *testing.T) {
	s, srv := newServer(t, make(chan string, 1))
	script := bootstrap(t, srv)

	conn := dial(t, srv, script.Query().Get("t"))
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return s.Clients() == 0 }, time.Second, time.Millisecond)
}

func TestServer_Script(t *testing.T) {
	_, srv := newServer(t, make(chan string, 1))

	resp, err := http.Get(srv.URL + "/bridge.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	assert.Contains(t, string(body), "window.ReactNativeWebView")
	assert.Contains(t, string(body), `endpoint.pathname = "/bridge"`)
}
