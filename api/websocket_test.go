package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) *WSHub {
	t.Helper()
	hub := NewWSHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub
}

func newClient(hub *WSHub) *WSClient {
	return &WSClient{hub: hub, send: make(chan WSMessage, 256), pong: make(chan struct{}, 1)}
}

func TestWSHubRegisterAndUnregister(t *testing.T) {
	hub := runHub(t)
	client := newClient(hub)

	require.True(t, hub.Register(client))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-client.send
	assert.False(t, open, "send channel should be closed on unregister")
}

func TestWSHubBroadcastInOrder(t *testing.T) {
	hub := runHub(t)
	c1, c2 := newClient(hub), newClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	for i := 1; i <= 3; i++ {
		hub.Broadcast(WSMessage{Type: fmt.Sprintf("type%d", i)})
	}

	for _, c := range []*WSClient{c1, c2} {
		for i := 1; i <= 3; i++ {
			select {
			case got := <-c.send:
				assert.Equal(t, fmt.Sprintf("type%d", i), got.Type)
			case <-time.After(time.Second):
				t.Fatalf("message %d not delivered", i)
			}
		}
	}
}

func TestWSHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewWSHub(nil) // not running: the queue fills up

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.Broadcast(WSMessage{Type: "test"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked when buffer was full")
	}
}

func TestWSHubDropsSlowClient(t *testing.T) {
	hub := runHub(t)
	slow := &WSClient{hub: hub, send: make(chan WSMessage), pong: make(chan struct{}, 1)} // unbuffered, never read
	hub.Register(slow)

	hub.Broadcast(WSMessage{Type: "test"})
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWSHubConcurrentRegisterUnregister(t *testing.T) {
	hub := runHub(t)

	const n = 50
	clients := make([]*WSClient, n)
	for i := range clients {
		clients[i] = newClient(hub)
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Register(c)
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, time.Second, 5*time.Millisecond)

	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWSHubStopClosesClients(t *testing.T) {
	hub := NewWSHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := newClient(hub)
	require.True(t, hub.Register(client))
	cancel()
	<-hub.Done()

	_, open := <-client.send
	assert.False(t, open)
	assert.False(t, hub.Register(newClient(hub)), "register after stop should fail")
	hub.Unregister(client) // must not block
}

func TestWebSocketStreamsCalculations(t *testing.T) {
	srv := testServer(t, testOptions{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.wsHub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// ping/pong round trip
	require.NoError(t, conn.WriteJSON(WSMessage{Type: "ping"}))
	var msg WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)

	body := strings.NewReader(`{"value":200,"rate":15}`)
	httpResp, err := http.Post(ts.URL+"/api/v1/calculators/percentage-calculator/calculate", "application/json", body)
	require.NoError(t, err)
	httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventCalculationComplete, msg.Type)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "percentage-calculator", data["calculator"])
	assert.EqualValues(t, 30, data["result"])
}

func TestWebSocketStreamsQAProgress(t *testing.T) {
	srv := testServer(t, testOptions{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.wsHub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	body := strings.NewReader(`{"calculators":["roi-calculator","tip-calculator"]}`)
	httpResp, err := http.Post(ts.URL+"/api/v1/qa/run", "application/json", body)
	require.NoError(t, err)
	httpResp.Body.Close()

	var types []string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for len(types) < 3 {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		types = append(types, msg.Type)
	}
	assert.Equal(t, []string{EventQAProgress, EventQAProgress, EventQAComplete}, types)
}
