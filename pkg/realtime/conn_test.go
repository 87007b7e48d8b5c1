package realtime

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsPair starts a test server that hands its side of every upgraded socket to
// onConn, and returns the dialed client side.
func wsPair(t *testing.T, opts WSOptions, onConn func(*WSConn)) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn := NewWSConn(ws, opts)
		conn.Start()
		onConn(conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWSConnDeliversInOrder(t *testing.T) {
	client := wsPair(t, WSOptions{}, func(c *WSConn) {
		for _, msg := range []string{"one", "two", "three"} {
			if err := c.Send([]byte(msg)); err != nil {
				t.Errorf("send %s: %v", msg, err)
			}
		}
	})

	_ = client.SetReadDeadline(time.Now().Add(3 * time.Second))
	for _, want := range []string{"one", "two", "three"} {
		_, data, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != want {
			t.Fatalf("got %q, want %q", data, want)
		}
	}
}

func TestWSConnCloseSendsCode(t *testing.T) {
	closed := make(chan *WSConn, 1)
	client := wsPair(t, WSOptions{}, func(c *WSConn) {
		c.Close(CloseUnauthorized, "unauthorized")
		closed <- c
	})

	_ = client.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := client.ReadMessage()
	if !websocket.IsCloseError(err, CloseUnauthorized) {
		t.Fatalf("expected close code %d, got %v", CloseUnauthorized, err)
	}

	c := <-closed
	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
	if err := c.Send([]byte("late")); err != ErrClosed {
		t.Fatalf("send after close = %v, want ErrClosed", err)
	}
}

func TestWSConnReadsInbound(t *testing.T) {
	got := make(chan string, 1)
	client := wsPair(t, WSOptions{PingPeriod: time.Second}, func(c *WSConn) {
		c.KeepAlive()
		data, err := c.ReadMessage()
		if err != nil {
			t.Errorf("read: %v", err)
			return
		}
		got <- string(data)
	})

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"event":"x"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case msg := <-got:
		if msg != `{"event":"x"}` {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for inbound message")
	}
}

func TestWSConnReservedCodeSendsNoFrame(t *testing.T) {
	done := make(chan struct{})
	client := wsPair(t, WSOptions{}, func(c *WSConn) {
		c.Close(websocket.CloseAbnormalClosure, "write failed")
		close(done)
	})

	_ = client.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := client.ReadMessage()
	if err == nil {
		t.Fatal("expected the connection to drop")
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Text == "write failed" {
		t.Fatalf("reserved close code was sent on the wire: %v", err)
	}
	<-done
}

func TestSendableCloseCode(t *testing.T) {
	cases := map[int]bool{
		websocket.CloseNormalClosure:     true,
		websocket.CloseGoingAway:         true,
		websocket.CloseInternalServerErr: true,
		CloseUnauthorized:                true,
		websocket.CloseNoStatusReceived:  false,
		websocket.CloseAbnormalClosure:   false,
		websocket.CloseTLSHandshake:      false,
		999:                              false,
		5000:                             false,
	}
	for code, want := range cases {
		if got := sendableCloseCode(code); got != want {
			t.Errorf("sendableCloseCode(%d) = %v, want %v", code, got, want)
		}
	}
}
