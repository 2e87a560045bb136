package testutils

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nfrund/relay/internal/domain"
	"github.com/stretchr/testify/require"
)

// DialWS connects a WebSocket client to the /ws route of server. The
// connection is closed with a normal close frame when the test ends.
func DialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(context.Background(), wsURL, nil)
	require.NoError(t, err, "Failed to connect to websocket")
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	return conn
}

// SendFrame writes frame as a text message.
func SendFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// ReadMessage reads the next broadcast from conn and decodes it.
func ReadMessage(t *testing.T, conn *websocket.Conn) domain.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg domain.Message
	require.NoError(t, json.Unmarshal(p, &msg))
	return msg
}
