package server

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func dialHub(t *testing.T, hub *EventHub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// The handshake can complete before the server registers the
	// connection; keep broadcasting until an event comes through.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				hub.Broadcast("ready", nil)
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("hub never delivered the first event: %v", err)
	}
	return conn
}

func TestEventHubBroadcast(t *testing.T) {
	hub := NewEventHub(zerolog.Nop())
	conn := dialHub(t, hub)

	hub.Broadcast("progress", map[string]int{"step": 1})

	// stray setup events may still be buffered; wait for the one that matters
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("ReadJSON failed: %v", err)
		}
		if event.Type == "progress" {
			return
		}
	}
}

func TestEventHubConcurrentBroadcasts(t *testing.T) {
	hub := NewEventHub(zerolog.Nop())
	conn := dialHub(t, hub)

	const bursts = 20
	var wg sync.WaitGroup
	for i := 0; i < bursts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast("burst", nil)
		}()
	}

	received := 0
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for received < bursts {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("lost the stream after %d events: %v", received, err)
		}
		if event.Type == "burst" {
			received++
		}
	}
	wg.Wait()
}
