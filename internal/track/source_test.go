package track

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kenanunal/lander/pkg/logger"
)

func TestObservationAge(t *testing.T) {
	obs := Observation{Timestamp: time.Now().Add(-2 * time.Second)}
	age := obs.Age(time.Now())
	if age < 1900*time.Millisecond || age > 2100*time.Millisecond {
		t.Errorf("age = %v", age)
	}
}

func TestHorizontalRange(t *testing.T) {
	obs := Observation{X: 3, Y: 4}
	if got := obs.HorizontalRange(); math.Abs(got-5) > 1e-9 {
		t.Errorf("HorizontalRange() = %f, want 5", got)
	}
}

func TestSourceDeliversObservations(t *testing.T) {
	var upgrader websocket.Upgrader
	connCh := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	src := NewSource("ws"+strings.TrimPrefix(server.URL, "http"), 50*time.Millisecond, logger.NewNop())

	var mu sync.Mutex
	var received []Observation
	src.SetHandler(func(obs Observation) {
		mu.Lock()
		received = append(received, obs)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	src.Start(ctx)
	defer func() {
		cancel()
		src.Wait()
	}()

	var conn *websocket.Conn
	select {
	case conn = <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("source did not connect")
	}

	stamped := Observation{Timestamp: time.Now().UTC(), X: 1.5, Y: -2, Z: 10, Confidence: 0.9}
	data, _ := json.Marshal(stamped)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Unstamped observation gets a timestamp on arrival.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"x":0.5,"confidence":0.7}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Malformed messages are skipped, not fatal.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{garbage`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("received %d observations, want 2", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0].X != 1.5 || received[0].Z != 10 {
		t.Errorf("first observation = %+v", received[0])
	}
	if received[1].Timestamp.IsZero() {
		t.Error("unstamped observation was not stamped on arrival")
	}
	if len(received) > 2 {
		t.Errorf("malformed message was delivered: %+v", received[2])
	}
}
