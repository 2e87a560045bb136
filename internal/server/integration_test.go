package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nfrund/relay/internal/color"
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/database"
	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/presence"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/server"
	"github.com/nfrund/relay/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupIntegrationTest builds a full server on an in-memory store and bus.
func setupIntegrationTest(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()

	cfg := testutils.ConfigForTests()
	require.NoError(t, cfg.Validate())

	store, err := database.NewMessageStore(context.Background(), cfg)
	require.NoError(t, err)
	bus := pubsub.NewWatermillBridge()

	s, err := server.New(server.Dependencies{
		Config:     cfg,
		Store:      store,
		Publisher:  bus,
		Subscriber: bus,
	})
	require.NoError(t, err)
	s.RegisterRoutes()

	testServer := httptest.NewServer(s.E)
	t.Cleanup(func() {
		s.Registry.CloseAll()
		testServer.Close()
		_ = bus.Close()
		_ = store.Close()
	})
	return s, testServer
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRelay_EndToEnd(t *testing.T) {
	s, testServer := setupIntegrationTest(t)

	alice := testutils.DialWS(t, testServer)
	bob := testutils.DialWS(t, testServer)
	require.Eventually(t, func() bool { return s.Registry.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	testutils.SendFrame(t, alice, `{"username":"Alice","text":"hi"}`)
	first := testutils.ReadMessage(t, alice)
	assert.Equal(t, first, testutils.ReadMessage(t, bob), "every client receives the same canonical message")
	assert.Equal(t, "Alice", first.Username)
	assert.Equal(t, "hi", first.Text)
	assert.Equal(t, color.For("Alice"), first.Color)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	testutils.SendFrame(t, alice, `{"username":"Alice","text":"bye"}`)
	second := testutils.ReadMessage(t, bob)
	testutils.ReadMessage(t, alice)
	assert.Equal(t, first.Color, second.Color, "an author keeps their color")

	testutils.SendFrame(t, bob, `{"username":"","text":"who am I"}`)
	anon := testutils.ReadMessage(t, alice)
	testutils.ReadMessage(t, bob)
	assert.Equal(t, domain.DefaultUsername, anon.Username)
	assert.Equal(t, "#3079e9", anon.Color)

	t.Run("malformed frames are dropped", func(t *testing.T) {
		testutils.SendFrame(t, bob, `this is not json`)
		testutils.SendFrame(t, bob, `{"username":"Bob","text":"still here"}`)
		msg := testutils.ReadMessage(t, alice)
		testutils.ReadMessage(t, bob)
		assert.Equal(t, "still here", msg.Text)
	})

	t.Run("history", func(t *testing.T) {
		var history []domain.Message
		getJSON(t, testServer.URL+"/api/messages", &history)
		require.Len(t, history, 4)
		assert.Equal(t, []string{"hi", "bye", "who am I", "still here"},
			[]string{history[0].Text, history[1].Text, history[2].Text, history[3].Text})
		assert.Equal(t, first.ID, history[0].ID)
	})

	t.Run("presence", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			return len(s.Presence.Snapshot().Authors) == 3
		}, 2*time.Second, 20*time.Millisecond)

		var snap presence.Snapshot
		getJSON(t, testServer.URL+"/api/presence", &snap)
		assert.Equal(t, 2, snap.Connections)
		assert.Equal(t, []string{"Alice", "Anonimo", "Bob"}, snap.Authors)
	})
}

func TestRelay_DisconnectDoesNotAffectOthers(t *testing.T) {
	s, testServer := setupIntegrationTest(t)

	stayer := testutils.DialWS(t, testServer)
	leaver := testutils.DialWS(t, testServer)
	require.Eventually(t, func() bool { return s.Registry.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	leaver.Close()
	testutils.SendFrame(t, stayer, `{"username":"Alice","text":"anyone?"}`)
	assert.Equal(t, "anyone?", testutils.ReadMessage(t, stayer).Text)

	require.Eventually(t, func() bool { return s.Registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	testutils.SendFrame(t, stayer, `{"username":"Alice","text":"still works"}`)
	assert.Equal(t, "still works", testutils.ReadMessage(t, stayer).Text)
}

func TestRelay_Health(t *testing.T) {
	_, testServer := setupIntegrationTest(t)

	resp, err := http.Get(testServer.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestServer_Shutdown(t *testing.T) {
	s, testServer := setupIntegrationTest(t)
	conn := testutils.DialWS(t, testServer)
	require.Eventually(t, func() bool { return s.Registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	_, err = s.Store.FindLatestByAuthor(context.Background(), "Alice")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := server.New(server.Dependencies{})
	assert.Error(t, err)

	_, err = server.New(server.Dependencies{Config: &config.Config{}})
	assert.Error(t, err)
}
