package chat_test

import (
	"context"
	"testing"

	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureStandardMembershipEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.department(t, "eng", "Engineering")
	f.department(t, "ops", "Operations")
	f.user(t, "ana", "Ana", "Lopez", "EMPLOYEE", "eng")
	f.user(t, "bo", "Bo", "Chen", "EMPLOYEE", "ops")

	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "bo", "ops", "EMPLOYEE"))
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "ana", "eng", "EMPLOYEE"))

	kinds := f.channelIDs(t, "ana")
	assert.Len(t, kinds[chat.KindOrgWide], 1)
	assert.Len(t, kinds[chat.KindDepartment], 1)
	assert.Empty(t, kinds[chat.KindManagers])

	dept, err := f.store.FindDepartmentChannel(ctx, "eng")
	require.NoError(t, err)
	assert.Equal(t, dept.ID, kinds[chat.KindDepartment][0])
	assert.Equal(t, "Engineering", dept.Name)
	assert.Equal(t, "Channel for Engineering department", dept.Description)
}

func TestEnsureStandardMembershipIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "ana", "Ana", "Lopez", "EMPLOYEE", "eng")

	for i := 0; i < 3; i++ {
		require.NoError(t, f.dir.EnsureStandardMembership(ctx, "ana", "eng", "EMPLOYEE"))
	}

	general, err := f.store.FindChannel(ctx, chat.KindOrgWide)
	require.NoError(t, err)
	n, err := f.store.CountMembers(ctx, general.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	generals, err := f.store.ListChannels(ctx, chat.KindOrgWide)
	require.NoError(t, err)
	assert.Len(t, generals, 1)

	// no department record: the channel is named after the id
	dept, err := f.store.FindDepartmentChannel(ctx, "eng")
	require.NoError(t, err)
	assert.Equal(t, "eng", dept.Name)
}

func TestEnsureStandardMembershipWithoutDepartment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "ana", "Ana", "Lopez", "EMPLOYEE", "")

	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "ana", "", "EMPLOYEE"))

	kinds := f.channelIDs(t, "ana")
	assert.Len(t, kinds[chat.KindOrgWide], 1)
	assert.Empty(t, kinds[chat.KindDepartment])
}

func TestEnsureStandardMembershipManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, d := range []string{"eng", "ops", "sales"} {
		f.department(t, d, d)
	}
	f.user(t, "e1", "E", "One", "EMPLOYEE", "eng")
	f.user(t, "e2", "E", "Two", "EMPLOYEE", "ops")
	f.user(t, "e3", "E", "Three", "EMPLOYEE", "sales")
	f.user(t, "boss", "Big", "Boss", chat.RoleManager, "eng")

	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "e1", "eng", "EMPLOYEE"))
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "e2", "ops", "EMPLOYEE"))
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "e3", "sales", "EMPLOYEE"))
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "boss", "eng", chat.RoleManager))

	kinds := f.channelIDs(t, "boss")
	assert.Len(t, kinds[chat.KindOrgWide], 1)
	assert.Len(t, kinds[chat.KindManagers], 1)
	assert.Len(t, kinds[chat.KindDepartment], 3)

	// employees never see the managers channel
	assert.Empty(t, f.channelIDs(t, "e1")[chat.KindManagers])
}

func TestGetOrCreateDirect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Uma", "One", "EMPLOYEE", "")
	f.user(t, "u2", "Ulf", "Two", "EMPLOYEE", "")

	first, created, err := f.dir.GetOrCreateDirect(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, chat.KindDirect, first.Kind)

	second, created, err := f.dir.GetOrCreateDirect(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	reversed, created, err := f.dir.GetOrCreateDirect(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, reversed.ID)

	members, err := f.dir.MemberIDs(ctx, first.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, members)
}

func TestGetOrCreateDirectIgnoresLargerChannels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	group, err := f.store.CreateChannel(ctx, &chat.Channel{Name: "group", Kind: chat.KindDirect})
	require.NoError(t, err)
	require.NoError(t, f.store.AddMembers(ctx, group.ID, "u1", "u2", "u3"))

	ch, created, err := f.dir.GetOrCreateDirect(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, group.ID, ch.ID)
}

func TestGetOrCreateDirectRejectsSelf(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.dir.GetOrCreateDirect(context.Background(), "u1", "u1")
	assert.ErrorIs(t, err, chat.ErrSelfDirect)
}

func TestListChannelsForSummaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Uma", "One", "EMPLOYEE", "")
	f.user(t, "u2", "Ulf", "Two", "EMPLOYEE", "")
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "u1", "", "EMPLOYEE"))
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "u2", "", "EMPLOYEE"))

	general, err := f.store.FindChannel(ctx, chat.KindOrgWide)
	require.NoError(t, err)
	dm, _, err := f.dir.GetOrCreateDirect(ctx, "u1", "u2")
	require.NoError(t, err)

	// no messages anywhere yet
	summaries, err := f.dir.ListChannelsFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Nil(t, s.LastMessage)
		assert.Zero(t, s.UnreadCount)
	}

	_, err = f.messages.Create(ctx, dm.ID, "u2", "hi there", "", nil, nil)
	require.NoError(t, err)
	_, err = f.messages.Create(ctx, general.ID, "u2", "morning all", "", nil, nil)
	require.NoError(t, err)

	summaries, err = f.dir.ListChannelsFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, general.ID, summaries[0].ID)
	assert.Equal(t, "morning all", summaries[0].LastMessage.Content)
	assert.Equal(t, "Ulf Two", summaries[0].LastMessage.SenderName)
	assert.Nil(t, summaries[0].DMUser)

	assert.Equal(t, dm.ID, summaries[1].ID)
	assert.Equal(t, "Ulf Two", summaries[1].Name)
	require.NotNil(t, summaries[1].DMUser)
	assert.Equal(t, "u2", summaries[1].DMUser.UserID)
	assert.Equal(t, 1, summaries[1].UnreadCount)
}

func TestListChannelsForEmptyChannelsSortLast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Uma", "One", "EMPLOYEE", "eng")
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "u1", "eng", "EMPLOYEE"))

	dept, err := f.store.FindDepartmentChannel(ctx, "eng")
	require.NoError(t, err)
	_, err = f.messages.Create(ctx, dept.ID, "u1", "first", "", nil, nil)
	require.NoError(t, err)

	summaries, err := f.dir.ListChannelsFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, dept.ID, summaries[0].ID)
	assert.Nil(t, summaries[1].LastMessage)
}

func TestListChannelsForPreviewTruncated(t *testing.T) {
	f := newFixture(t, chat.WithPreviewLength(5))
	ctx := context.Background()
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "u1", "", "EMPLOYEE"))
	general, err := f.store.FindChannel(ctx, chat.KindOrgWide)
	require.NoError(t, err)

	_, err = f.messages.Create(ctx, general.ID, "ghost", "abcdefghij", "", nil, nil)
	require.NoError(t, err)

	summaries, err := f.dir.ListChannelsFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "abcde...", summaries[0].LastMessage.Content)
	assert.Equal(t, "Unknown", summaries[0].LastMessage.SenderName)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "u1", "", "EMPLOYEE"))
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "u2", "", "EMPLOYEE"))
	general, err := f.store.FindChannel(ctx, chat.KindOrgWide)
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.messages.Create(ctx, general.ID, "u2", text, "", nil, nil)
		require.NoError(t, err)
	}

	unread := func() int {
		s, err := f.dir.Summary(ctx, "u1", general.ID)
		require.NoError(t, err)
		return s.UnreadCount
	}
	assert.Equal(t, 3, unread())

	readAt, err := f.messages.MarkRead(ctx, general.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, unread())

	_, err = f.messages.Create(ctx, general.ID, "u2", "four", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, unread())

	members, err := f.dir.MembersOf(ctx, general.ID)
	require.NoError(t, err)
	for _, m := range members {
		if m.UserID == "u1" {
			require.NotNil(t, m.LastReadAt)
			assert.True(t, readAt.Equal(*m.LastReadAt))
		} else {
			assert.Nil(t, m.LastReadAt)
		}
	}
}

func TestMarkReadRequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.dir.EnsureStandardMembership(ctx, "u1", "", "EMPLOYEE"))
	general, err := f.store.FindChannel(ctx, chat.KindOrgWide)
	require.NoError(t, err)

	_, err = f.messages.MarkRead(ctx, general.ID, "stranger")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestMembersOf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Uma", "One", "EMPLOYEE", "")
	f.user(t, "u2", "Ulf", "Two", "EMPLOYEE", "")
	dm, _, err := f.dir.GetOrCreateDirect(ctx, "u1", "u2")
	require.NoError(t, err)

	members, err := f.dir.MembersOf(ctx, dm.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Uma", members[0].FirstName)
	assert.Equal(t, "Ulf", members[1].FirstName)

	ok, err := f.dir.IsMember(ctx, dm.ID, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.dir.IsMember(ctx, dm.ID, "u3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUsersExcludesCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.department(t, "eng", "Engineering")
	f.user(t, "u1", "Uma", "One", "EMPLOYEE", "eng")
	f.user(t, "u2", "Ulf", "Two", "EMPLOYEE", "eng")

	entries, err := f.dir.Users(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "u2", entries[0].UserID)
	assert.Equal(t, "Engineering", entries[0].DepartmentName)
	assert.Equal(t, "u2@example.com", entries[0].Email)
}

func TestSeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.department(t, "eng", "Engineering")
	f.department(t, "ops", "Operations")
	f.user(t, "e1", "E", "One", "EMPLOYEE", "eng")
	f.user(t, "boss", "Big", "Boss", chat.RoleManager, "")

	require.NoError(t, f.dir.Seed(ctx))
	require.NoError(t, f.dir.Seed(ctx))

	departments, err := f.store.ListChannels(ctx, chat.KindDepartment)
	require.NoError(t, err)
	assert.Len(t, departments, 2)

	boss := f.channelIDs(t, "boss")
	assert.Len(t, boss[chat.KindDepartment], 2)
	assert.Len(t, boss[chat.KindManagers], 1)

	e1 := f.channelIDs(t, "e1")
	assert.Len(t, e1[chat.KindDepartment], 1)
	assert.Len(t, e1[chat.KindOrgWide], 1)
}
