package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type memConn struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	closed bool
	code   int
	fail   bool
}

func (c *memConn) ID() string { return c.id }

func (c *memConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.fail {
		return ErrBufferFull
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *memConn) Close(code int, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.code = code
}

func (c *memConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, p := range c.sent {
		out = append(out, string(p))
	}
	return out
}

func TestHubBroadcastToRoom(t *testing.T) {
	h := NewHub()
	a, b, c := &memConn{id: "a"}, &memConn{id: "b"}, &memConn{id: "c"}
	for _, conn := range []*memConn{a, b, c} {
		h.Add(conn)
	}
	h.Join("room", a)
	h.Join("room", b)

	assert.Equal(t, 2, h.Broadcast("room", []byte("hi"), ""))
	assert.Equal(t, []string{"hi"}, a.messages())
	assert.Equal(t, []string{"hi"}, b.messages())
	assert.Empty(t, c.messages())

	assert.Equal(t, 1, h.Broadcast("room", []byte("typing"), "a"))
	assert.Equal(t, []string{"hi"}, a.messages())
	assert.Equal(t, []string{"hi", "typing"}, b.messages())

	assert.Equal(t, 0, h.Broadcast("empty", []byte("x"), ""))
}

func TestHubBroadcastAll(t *testing.T) {
	h := NewHub()
	a, b := &memConn{id: "a"}, &memConn{id: "b", fail: true}
	h.Add(a)
	h.Add(b)

	assert.Equal(t, 1, h.BroadcastAll([]byte("online")))
	assert.Equal(t, []string{"online"}, a.messages())
	assert.Equal(t, 2, h.Size())
}

func TestHubRemoveLeavesRooms(t *testing.T) {
	h := NewHub()
	a := &memConn{id: "a"}
	h.Add(a)
	h.Join("r1", a)
	h.Join("r2", a)
	assert.Equal(t, []string{"r1", "r2"}, h.Rooms(a))

	h.Remove(a)
	assert.Equal(t, 0, h.RoomSize("r1"))
	assert.Equal(t, 0, h.RoomSize("r2"))
	assert.Empty(t, h.Rooms(a))
	assert.Equal(t, 0, h.Size())
	assert.Equal(t, 0, h.Broadcast("r1", []byte("x"), ""))

	// removed connections cannot rejoin
	assert.False(t, h.Join("r1", a))
	assert.Equal(t, 0, h.RoomSize("r1"))
}

func TestHubLeave(t *testing.T) {
	h := NewHub()
	a := &memConn{id: "a"}
	h.Add(a)
	assert.True(t, h.Join("r1", a))
	assert.True(t, h.Join("r1", a))
	assert.Equal(t, 1, h.RoomSize("r1"))
	assert.True(t, h.InRoom("r1", a))

	h.Leave("r1", a)
	assert.Equal(t, 0, h.RoomSize("r1"))
	assert.False(t, h.InRoom("r1", a))
	h.Leave("r1", a)
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	a, b := &memConn{id: "a"}, &memConn{id: "b"}
	h.Add(a)
	h.Add(b)
	h.Join("r", a)

	h.Close(1001, "shutdown")
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Equal(t, 1001, a.code)
	assert.Equal(t, 0, h.Size())
	assert.Equal(t, 0, h.RoomSize("r"))
}

func TestHubConcurrentUse(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := &memConn{id: string(rune('a' + i))}
			h.Add(conn)
			h.Join("room", conn)
			h.Broadcast("room", []byte("x"), conn.ID())
			h.Remove(conn)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, h.Size())
	assert.Equal(t, 0, h.RoomSize("room"))
}
