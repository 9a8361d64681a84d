package browserrefresh

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/hotreload/internal/wire"
)

func startTestHub(t *testing.T) (*Hub, string, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(Handler(ctx, hub))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hotreload/ws"

	cleanup := func() {
		cancel()
		hub.Wait()
		srv.Close()
	}
	return hub, wsURL, cleanup
}

func TestHubBroadcastsUpdateToConnectedClient(t *testing.T) {
	hub, wsURL, cleanup := startTestHub(t)
	defer cleanup()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond) // allow registration to land

	require.NoError(t, hub.SendUpdate(wire.UpdatePayload{}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), wire.DeltaPayloadType)
}

func TestHubBroadcastsDiagnostics(t *testing.T) {
	hub, wsURL, cleanup := startTestHub(t)
	defer cleanup()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, hub.SendDiagnostics(wire.NewDiagnosticsMessage([]string{"boom"})))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "boom")
}

func TestHubStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after context cancellation")
	}
}
