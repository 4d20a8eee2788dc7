package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Hub tests run without a real websocket: Clients get a nil conn, which the
// hub tolerates when it disconnects them.

func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(slog.Default(), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func newBareClient(hub *Hub, name string, buf int) *Client {
	return &Client{
		hub:        hub,
		send:       make(chan []byte, buf),
		remoteAddr: name,
		logger:     slog.Default(),
	}
}

func registerAndWait(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, c.remoteAddr+" not registered in time")
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 4, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	c1 := newBareClient(hub, "c1", 4)
	c2 := newBareClient(hub, "c2", 4)
	registerAndWait(t, hub, c1)
	registerAndWait(t, hub, c2)

	msg := []byte(`{"type":"dnd_changed","data":{"filter":"none","dnd_enabled":true}}`)

	// Not BroadcastBytes: it drops when the queue is momentarily full.
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.remoteAddr, got, msg)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive broadcast", c.remoteAddr)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for hub to stop")
	}
	if hub.Len() != 0 {
		t.Errorf("expected no clients after shutdown, got %d", hub.Len())
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 1, 8)
	go hub.Run(ctx)

	slow := newBareClient(hub, "slow", 1)
	fast := newBareClient(hub, "fast", 8)
	registerAndWait(t, hub, slow)
	registerAndWait(t, hub, fast)

	// Simulate a stuck client.
	slow.send <- []byte(`"already queued"`)

	msg := []byte(`{"type":"authorization_required","data":{"method":"enableDND"}}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", got, msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	// Drain the pre-filled frame, then expect the channel closed.
	select {
	case <-slow.send:
	default:
	}
	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")
}

func TestConvertBroadcast(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		in       StateBroadcast
		wantType string
		wantData string
	}{
		{"dnd on", BroadcastDNDChanged{Filter: FilterBlocked, At: at}, "dnd_changed", `{"filter":"none","dnd_enabled":true}`},
		{"dnd off", BroadcastDNDChanged{Filter: FilterUnrestricted, At: at}, "dnd_changed", `{"filter":"all","dnd_enabled":false}`},
		{"redirect", BroadcastAuthorizationRequired{Method: "enableDND", At: at}, "authorization_required", `{"method":"enableDND"}`},
		{"rejected", BroadcastCallRejected{Method: "disableDND", Reason: "boom", At: at}, "call_rejected", `{"method":"disableDND","reason":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := convertBroadcast(tt.in)
			if !ok {
				t.Fatalf("convertBroadcast returned !ok")
			}
			if ev.Type != tt.wantType {
				t.Errorf("type = %q, want %q", ev.Type, tt.wantType)
			}
			if !ev.At.Equal(at) {
				t.Errorf("at = %v, want %v", ev.At, at)
			}
			data, err := json.Marshal(ev.Data)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.wantData {
				t.Errorf("data = %s, want %s", data, tt.wantData)
			}
		})
	}
}

func TestStateServer_InitThenChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newFakePolicy(true)
	events := make(chan Event, 8)
	wsSrc := make(chan StateBroadcast, 8)

	go runDaemon(ctx, events, newTestChannel(p, &fakeNavigator{}, false), &DaemonState{}, []chan<- StateBroadcast{wsSrc}, discardLogger())

	stateWS := NewStateServer(discardLogger(), events, HubConfig{})
	go stateWS.Hub().Run(ctx)
	go RunBroadcaster(ctx, stateWS.Hub(), wsSrc, discardLogger())

	srv := httptest.NewServer(newHTTPMux(events, stateWS, discardLogger()))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first struct {
		Type string        `json:"type"`
		Data StateSnapshot `json:"data"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read state_init: %v", err)
	}
	if first.Type != "state_init" || first.Data.FilterKnown {
		t.Fatalf("state_init = %+v", first)
	}

	waitUntil(t, 500*time.Millisecond, func() bool { return stateWS.Hub().Len() == 1 }, "ws client not registered")

	resp, err := http.Post(srv.URL+"/channel/enableDND", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	var changed struct {
		Type string           `json:"type"`
		Ts   *time.Time       `json:"ts"`
		Data wsDNDChangedData `json:"data"`
	}
	if err := conn.ReadJSON(&changed); err != nil {
		t.Fatalf("read dnd_changed: %v", err)
	}
	if changed.Type != "dnd_changed" || !changed.Data.DNDEnabled || changed.Data.Filter != "none" {
		t.Errorf("frame = %+v", changed)
	}
	if changed.Ts == nil {
		t.Errorf("expected ts on dnd_changed")
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func TestStateServer_StateInitPrecedesBroadcasts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event)
	stateWS := NewStateServer(discardLogger(), events, HubConfig{})
	hub := stateWS.Hub()
	go hub.Run(ctx)

	early := []byte(`{"type":"dnd_changed","data":{"filter":"none","dnd_enabled":true}}`)
	late := []byte(`{"type":"dnd_changed","data":{"filter":"all","dnd_enabled":false}}`)

	// Stand-in for the daemon: broadcast while the snapshot is still pending.
	go func() {
		ev := <-events
		req, ok := ev.(RequestStateSnapshot)
		if !ok {
			return
		}
		hub.broadcast <- early
		for len(hub.broadcast) > 0 {
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(20 * time.Millisecond)
		req.Reply <- StateSnapshot{}
	}()

	srv := httptest.NewServer(stateWS)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first envelope
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.Type != "state_init" {
		t.Fatalf("first frame type = %q, want state_init", first.Type)
	}

	waitUntil(t, 500*time.Millisecond, func() bool { return hub.Len() == 1 }, "ws client not registered")
	hub.broadcast <- late

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != string(late) {
		t.Errorf("second frame = %s, want %s", msg, late)
	}
}
