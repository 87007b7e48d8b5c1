package chat_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/rubiojr/huddle/pkg/storage"
	"github.com/stretchr/testify/require"
)

// stepClock advances by one millisecond on every reading so consecutive
// writes get distinct timestamps.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type fixture struct {
	store    *storage.Store
	dir      *chat.Directory
	messages *chat.MessageService
	clock    *stepClock
}

func newFixture(t *testing.T, opts ...chat.Option) *fixture {
	t.Helper()

	store, err := storage.OpenMigrated(filepath.Join(t.TempDir(), "huddle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := newStepClock()
	opts = append([]chat.Option{chat.WithClock(clock.Now)}, opts...)
	return &fixture{
		store:    store,
		dir:      chat.NewDirectory(store, opts...),
		messages: chat.NewMessageService(store, opts...),
		clock:    clock,
	}
}

func (f *fixture) user(t *testing.T, id, first, last, role, dept string) chat.User {
	t.Helper()
	u := chat.User{ID: id, Email: id + "@example.com", FirstName: first, LastName: last, Role: role, DepartmentID: dept}
	require.NoError(t, f.store.UpsertUser(context.Background(), u))
	return u
}

func (f *fixture) department(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, f.store.UpsertDepartment(context.Background(), chat.Department{ID: id, Name: name}))
}

func (f *fixture) channelIDs(t *testing.T, userID string) map[chat.ChannelKind][]string {
	t.Helper()
	summaries, err := f.dir.ListChannelsFor(context.Background(), userID)
	require.NoError(t, err)
	byKind := make(map[chat.ChannelKind][]string)
	for _, s := range summaries {
		byKind[s.Kind] = append(byKind[s.Kind], s.ID)
	}
	return byKind
}
