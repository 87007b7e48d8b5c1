package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rubiojr/huddle/pkg/log"
)

// SocketBridge publishes notices to other local processes over a Unix domain
// socket. It is one-way: every connected client receives each notice.
//
// Protocol is newline delimited JSON, one object per line:
//
//	{"type":"notice","userId":"...","title":"...","body":"...","category":"...","ts":"RFC3339Nano"}
//	{"type":"heartbeat","ts":"RFC3339Nano"}
//	{"type":"info","message":"..."}
//
// There is no replay and no authentication; the socket path should sit in a
// directory only the service user can reach. Consumers that missed notices
// while disconnected read them back from storage.
type SocketBridge struct {
	path      string
	heartbeat time.Duration
	log       *log.Logger

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]struct{}
	running bool

	stopCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// Frame is one line of the socket protocol.
type Frame struct {
	Type     string    `json:"type"`
	UserID   string    `json:"userId,omitempty"`
	Title    string    `json:"title,omitempty"`
	Body     string    `json:"body,omitempty"`
	Category string    `json:"category,omitempty"`
	Message  string    `json:"message,omitempty"`
	TS       time.Time `json:"ts"`
}

// NewSocketBridge constructs (but does not start) a bridge listening on path.
func NewSocketBridge(path string) *SocketBridge {
	return &SocketBridge{
		path:      path,
		heartbeat: 30 * time.Second,
		log:       log.ForService("notify-socket"),
		conns:     make(map[net.Conn]struct{}),
		stopCh:    make(chan struct{}),
	}
}

// Start creates the socket, replacing a stale file, and begins accepting
// clients. Later calls are ignored.
func (b *SocketBridge) Start() error {
	var err error
	b.startOnce.Do(func() {
		if b.path == "" {
			err = errors.New("notification socket path is empty")
			return
		}

		if st, statErr := os.Stat(b.path); statErr == nil && !st.IsDir() {
			_ = os.Remove(b.path)
		}

		ln, listenErr := net.Listen("unix", b.path)
		if listenErr != nil {
			err = fmt.Errorf("listen on unix socket %s: %w", b.path, listenErr)
			return
		}
		_ = os.Chmod(b.path, 0660)

		b.mu.Lock()
		b.ln = ln
		b.running = true
		b.mu.Unlock()

		go b.acceptLoop(ln)
		go b.heartbeatLoop()
		b.log.Infof("publishing notifications on %s", b.path)
	})
	return err
}

func (b *SocketBridge) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-b.stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			b.log.Debugf("accept failed: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		b.mu.Lock()
		b.conns[conn] = struct{}{}
		b.mu.Unlock()

		go b.drain(conn)
	}
}

// drain discards inbound bytes and forgets the client once it hangs up.
func (b *SocketBridge) drain(c net.Conn) {
	sc := bufio.NewScanner(c)
	for sc.Scan() {
	}
	b.mu.Lock()
	delete(b.conns, c)
	b.mu.Unlock()
	_ = c.Close()
}

func (b *SocketBridge) heartbeatLoop() {
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case now := <-ticker.C:
			b.broadcast(Frame{Type: "heartbeat", TS: now.UTC()})
		}
	}
}

// CreateMany writes one notice frame per notice to every connected client.
// With no clients connected the notices are dropped.
func (b *SocketBridge) CreateMany(_ context.Context, notices []Notice) error {
	now := time.Now().UTC()
	for _, n := range notices {
		b.broadcast(Frame{
			Type:     "notice",
			UserID:   n.UserID,
			Title:    n.Title,
			Body:     n.Body,
			Category: n.Category,
			TS:       now,
		})
	}
	return nil
}

// Clients returns the number of connected consumers.
func (b *SocketBridge) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// broadcast writes f to every client, dropping clients whose write fails.
func (b *SocketBridge) broadcast(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		b.log.Warnf("failed to encode %s frame: %v", f.Type, err)
		return
	}
	data = append(data, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}

	for c := range b.conns {
		_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if _, werr := c.Write(data); werr != nil {
			_ = c.Close()
			delete(b.conns, c)
			continue
		}
		_ = c.SetWriteDeadline(time.Time{})
	}
}

// Stop sends a final info frame, closes every client and removes the socket
// file. Safe to call multiple times.
func (b *SocketBridge) Stop() {
	b.stopOnce.Do(func() {
		b.broadcast(Frame{Type: "info", Message: "shutting down", TS: time.Now().UTC()})
		close(b.stopCh)

		b.mu.Lock()
		if b.ln != nil {
			_ = b.ln.Close()
		}
		for c := range b.conns {
			_ = c.Close()
		}
		b.conns = make(map[net.Conn]struct{})
		b.running = false
		b.mu.Unlock()

		if b.path != "" {
			_ = os.Remove(b.path)
		}
	})
}
