package websocket_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/testutils"
	ws "github.com/nfrund/relay/internal/websocket"
)

// mockPubSub records published messages for inspection.
type mockPubSub struct {
	mu       sync.RWMutex
	messages map[string][]pubsub.Message
}

func newMockPubSub() *mockPubSub {
	return &mockPubSub{messages: make(map[string][]pubsub.Message)}
}

func (m *mockPubSub) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.Topic] = append(m.messages[msg.Topic], msg)
	return nil
}

func (m *mockPubSub) Close() error { return nil }

func (m *mockPubSub) getMessages(topic string) []pubsub.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := make([]pubsub.Message, len(m.messages[topic]))
	copy(msgs, m.messages[topic])
	return msgs
}

// echoSubmitter broadcasts every submission back through the registry as a
// canonical message, like the relay engine does.
type echoSubmitter struct {
	registry *ws.Registry

	mu       sync.Mutex
	received []domain.InboundMessage
	connIDs  []string
}

func (s *echoSubmitter) Submit(ctx context.Context, in domain.InboundMessage) (*domain.Message, error) {
	s.mu.Lock()
	s.received = append(s.received, in)
	s.connIDs = append(s.connIDs, events.ConnectionIDFrom(ctx))
	n := len(s.received)
	s.mu.Unlock()

	msg := &domain.Message{ID: strconv.Itoa(n), Username: in.Username, Text: in.Text, Color: "#000000"}
	payload, _ := json.Marshal(msg)
	for _, p := range s.registry.Snapshot() {
		p.Send(payload)
	}
	return msg, nil
}

func (s *echoSubmitter) submissions() []domain.InboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.InboundMessage(nil), s.received...)
}

type testFixture struct {
	registry  *ws.Registry
	submitter *echoSubmitter
	ps        *mockPubSub
	server    *httptest.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	registry := ws.NewRegistry()
	submitter := &echoSubmitter{registry: registry}
	ps := newMockPubSub()
	cfg := testutils.ConfigForTests()
	cfg.MaxMessageSize = 4096
	cfg.SendBufferSize = 16

	e := echo.New()
	e.GET("/ws", ws.NewHandler(registry, submitter, ps, cfg).Serve)
	server := httptest.NewServer(e)
	t.Cleanup(func() {
		registry.CloseAll()
		server.Close()
	})

	return &testFixture{registry: registry, submitter: submitter, ps: ps, server: server}
}

func TestHandler_RelaysFrames(t *testing.T) {
	f := setupTestFixture(t)
	conn := testutils.DialWS(t, f.server)
	require.Eventually(t, func() bool { return f.registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"username":"Alice","text":"hi"}`)))
	msg := testutils.ReadMessage(t, conn)
	assert.Equal(t, "Alice", msg.Username)
	assert.Equal(t, "hi", msg.Text)

	t.Run("binary frames are decoded too", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(`{"username":"Bob","text":"bin"}`)))
		msg := testutils.ReadMessage(t, conn)
		assert.Equal(t, "bin", msg.Text)
	})

	t.Run("submissions carry the connection id", func(t *testing.T) {
		f.submitter.mu.Lock()
		defer f.submitter.mu.Unlock()
		require.NotEmpty(t, f.submitter.connIDs)
		assert.NotEmpty(t, f.submitter.connIDs[0])
	})
}

func TestHandler_MalformedFrameKeepsConnection(t *testing.T) {
	f := setupTestFixture(t)
	conn := testutils.DialWS(t, f.server)

	for _, frame := range []string{`not json`, `[1,2]`, `"text"`, `null`, `{"username":5}`} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
	}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"username":"Alice","text":"after"}`)))

	msg := testutils.ReadMessage(t, conn)
	assert.Equal(t, "after", msg.Text)
	assert.Equal(t, []domain.InboundMessage{{Username: "Alice", Text: "after"}}, f.submitter.submissions())
}

func TestHandler_EmptyObjectIsSubmitted(t *testing.T) {
	f := setupTestFixture(t)
	conn := testutils.DialWS(t, f.server)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	testutils.ReadMessage(t, conn)
	assert.Equal(t, []domain.InboundMessage{{}}, f.submitter.submissions())
}

func TestHandler_BroadcastReachesEveryClient(t *testing.T) {
	f := setupTestFixture(t)
	a := testutils.DialWS(t, f.server)
	b := testutils.DialWS(t, f.server)
	require.Eventually(t, func() bool { return f.registry.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"username":"Alice","text":"to all"}`)))

	assert.Equal(t, "to all", testutils.ReadMessage(t, a).Text)
	assert.Equal(t, "to all", testutils.ReadMessage(t, b).Text)
}

func TestHandler_UnregistersOnClose(t *testing.T) {
	f := setupTestFixture(t)
	conn := testutils.DialWS(t, f.server)
	require.Eventually(t, func() bool { return f.registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool { return f.registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(f.ps.getMessages(events.ConnectionClosed.Name())) == 1
	}, 2*time.Second, 10*time.Millisecond)

	opened := f.ps.getMessages(events.ConnectionOpened.Name())
	closed := f.ps.getMessages(events.ConnectionClosed.Name())
	require.Len(t, opened, 1)

	openedEvent, err := pubsub.Decode(events.ConnectionOpened, opened[0])
	require.NoError(t, err)
	closedEvent, err := pubsub.Decode(events.ConnectionClosed, closed[0])
	require.NoError(t, err)
	assert.Equal(t, openedEvent.ConnectionID, closedEvent.ConnectionID)
	assert.Equal(t, opened[0].ConnectionID, openedEvent.ConnectionID)
}

func TestHandler_CloseAllSendsCloseFrame(t *testing.T) {
	f := setupTestFixture(t)
	conn := testutils.DialWS(t, f.server)
	require.Eventually(t, func() bool { return f.registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.registry.CloseAll()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHandler_RejectsDisallowedOrigin(t *testing.T) {
	registry := ws.NewRegistry()
	cfg := testutils.ConfigForTests()
	cfg.AllowedOrigins = "example.com"

	e := echo.New()
	e.GET("/ws", ws.NewHandler(registry, &echoSubmitter{registry: registry}, nil, cfg).Serve)
	server := httptest.NewServer(e)
	defer server.Close()

	header := map[string][]string{"Origin": {"http://evil.test"}}
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, 0, registry.Len())
}

func TestHandler_OversizedFrameClosesConnection(t *testing.T) {
	registry := ws.NewRegistry()
	submitter := &echoSubmitter{registry: registry}
	cfg := testutils.ConfigForTests()
	cfg.MaxMessageSize = 64

	e := echo.New()
	e.GET("/ws", ws.NewHandler(registry, submitter, nil, cfg).Serve)
	server := httptest.NewServer(e)
	t.Cleanup(func() {
		registry.CloseAll()
		server.Close()
	})

	conn := testutils.DialWS(t, server)
	require.Eventually(t, func() bool { return registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	frame := `{"username":"Alice","text":"` + strings.Repeat("x", 128) + `"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
	require.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, submitter.submissions())
}
