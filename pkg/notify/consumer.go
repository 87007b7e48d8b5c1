package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/rubiojr/huddle/pkg/log"
)

// Consumer connects to a SocketBridge and hands every frame to a callback,
// reconnecting with exponential backoff when the socket goes away.
type Consumer struct {
	socketPath     string
	initialBackoff time.Duration
	maxBackoff     time.Duration
	log            *log.Logger
}

func NewConsumer(socketPath string) *Consumer {
	return &Consumer{
		socketPath:     socketPath,
		initialBackoff: time.Second,
		maxBackoff:     30 * time.Second,
		log:            log.ForService("notify-consumer"),
	}
}

// Run blocks until ctx is canceled, calling handle for each frame in order.
func (c *Consumer) Run(ctx context.Context, handle func(Frame)) error {
	if c.socketPath == "" {
		return errors.New("notification socket path is empty")
	}

	backoff := c.initialBackoff
	var dialer net.Dialer
	for {
		conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Debugf("connect failed (%v), retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			backoff = min(backoff*2, c.maxBackoff)
			continue
		}

		c.log.Infof("connected to %s", c.socketPath)
		backoff = c.initialBackoff
		c.readLoop(ctx, conn, handle)
		_ = conn.Close()

		select {
		case <-time.After(250 * time.Millisecond):
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) readLoop(ctx context.Context, conn net.Conn, handle func(Frame)) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), 512*1024)
	for sc.Scan() {
		var f Frame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil || f.Type == "" {
			continue
		}
		handle(f)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		c.log.Warnf("read error: %v", err)
	}
}
