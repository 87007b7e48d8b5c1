package storage

import (
	"context"
	"testing"
	"time"

	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	empty, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Messages)
	assert.Nil(t, empty.OldestMessage)

	require.NoError(t, s.UpsertUser(ctx, chat.User{ID: "a", FirstName: "Ann"}))
	require.NoError(t, s.UpsertDepartment(ctx, chat.Department{ID: "eng", Name: "Engineering"}))
	ch, err := s.CreateChannel(ctx, &chat.Channel{Name: "General", Kind: chat.KindOrgWide})
	require.NoError(t, err)
	require.NoError(t, s.AddMembers(ctx, ch.ID, "a"))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertMessage(ctx, &chat.Message{ID: "m1", ChannelID: ch.ID, SenderID: "a", Content: "one", CreatedAt: base}))
	require.NoError(t, s.InsertMessage(ctx, &chat.Message{ID: "m2", ChannelID: ch.ID, SenderID: "a", Content: "two", CreatedAt: base.Add(time.Hour)}))

	st, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Users)
	assert.Equal(t, 1, st.Departments)
	assert.Equal(t, 1, st.Channels)
	assert.Equal(t, 1, st.Memberships)
	assert.Equal(t, 2, st.Messages)
	require.NotNil(t, st.OldestMessage)
	require.NotNil(t, st.NewestMessage)
	assert.True(t, st.OldestMessage.Equal(base))
	assert.True(t, st.NewestMessage.Equal(base.Add(time.Hour)))
}

func TestMaintenance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, quick := range []bool{true, false} {
		problems, err := s.IntegrityCheck(ctx, quick)
		require.NoError(t, err)
		assert.Empty(t, problems)
	}
	assert.NoError(t, s.Optimize(ctx))
	assert.NoError(t, s.Analyze(ctx))
	assert.NoError(t, s.WALCheckpoint(ctx))
	assert.NoError(t, s.Vacuum(ctx))
}
