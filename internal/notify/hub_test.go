package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func TestHubPublish(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	subscribed := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.Subscribe("sess_1", conn)
		close(subscribed)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	select {
	case <-subscribed:
	case <-time.After(time.Second):
		t.Fatal("subscribe timed out")
	}

	hub.Publish(Event{
		Type:      EventOrderReplaced,
		SessionID: "sess_1",
		Key:       "paycrestReceiveAddress",
		Value:     "0xabc",
	})

	_ = client.SetReadDeadline(time.Now().Add(time.Second))
	var ev Event
	if err := client.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != EventOrderReplaced || ev.Value != "0xabc" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestHubPublish_OtherSessionUnaffected(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	subscribed := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.Subscribe("sess_1", conn)
		close(subscribed)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	select {
	case <-subscribed:
	case <-time.After(time.Second):
		t.Fatal("subscribe timed out")
	}

	hub.Publish(Event{Type: EventOrderStatus, SessionID: "sess_2", Value: "settled"})

	_ = client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var ev Event
	if err := client.ReadJSON(&ev); err == nil {
		t.Fatalf("unexpected event for foreign session: %+v", ev)
	}
}
