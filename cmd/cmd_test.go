package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/huddle/pkg/auth"
	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/rubiojr/huddle/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "cmd-test-secret-0123456789"

const testDirectory = `
[[departments]]
id = "eng"
name = "Engineering"

[[users]]
id = "u1"
email = "ana@example.com"
first_name = "Ana"
last_name = "Lima"
role = "MANAGER"
department_id = "eng"

[[users]]
id = "u2"
email = "bo@example.com"
first_name = "Bo"
last_name = "Berg"
role = "EMPLOYEE"
department_id = "eng"
`

func writeTestConfig(t *testing.T) (configPath, storageDir string) {
	t.Helper()
	dir := t.TempDir()
	storageDir = filepath.Join(dir, "data")
	configPath = filepath.Join(dir, "config.toml")
	content := "storage_dir = \"" + storageDir + "\"\n\n[auth]\nsecret = \"" + testSecret + "\"\nissuer = \"huddle-test\"\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath, storageDir
}

func writeDirectory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, initConfig(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[auth]")

	assert.Error(t, initConfig(path, false))
	assert.NoError(t, initConfig(path, true))
}

func TestRunMigrations(t *testing.T) {
	configPath, storageDir := writeTestConfig(t)

	require.NoError(t, RunMigrations(configPath, true))
	require.NoError(t, RunMigrations(configPath, false))

	_, err := os.Stat(filepath.Join(storageDir, "huddle.db"))
	assert.NoError(t, err)
}

func TestSeedAndIssueToken(t *testing.T) {
	ctx := context.Background()
	configPath, storageDir := writeTestConfig(t)

	require.NoError(t, RunSeed(ctx, configPath, writeDirectory(t, testDirectory)))
	// seeding again must not duplicate anything
	require.NoError(t, RunSeed(ctx, configPath, ""))

	store, err := storage.OpenMigrated(filepath.Join(storageDir, "huddle.db"))
	require.NoError(t, err)
	dir := chat.NewDirectory(store)
	managerChannels, err := dir.ListChannelsFor(ctx, "u1")
	require.NoError(t, err)
	employeeChannels, err := dir.ListChannelsFor(ctx, "u2")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.Len(t, managerChannels, 3)
	assert.Len(t, employeeChannels, 2)

	token, err := IssueToken(ctx, configPath, "u1", time.Hour)
	require.NoError(t, err)

	id, err := auth.NewJWT(testSecret, "huddle-test").Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, chat.RoleManager, id.Role)
	assert.Equal(t, "eng", id.DepartmentID)

	_, err = IssueToken(ctx, configPath, "nobody", time.Hour)
	assert.ErrorContains(t, err, "not found")
}

func TestLoadDirectoryFileRejectsMissingIDs(t *testing.T) {
	_, err := LoadDirectoryFile(writeDirectory(t, "[[users]]\nemail = \"x@example.com\"\n"))
	assert.ErrorContains(t, err, "no id")

	_, err = LoadDirectoryFile(writeDirectory(t, "[[departments]]\nname = \"Sales\"\n"))
	assert.ErrorContains(t, err, "no id")

	_, err = LoadDirectoryFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "storage_dir = \"" + filepath.Join(t.TempDir(), "data") + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := IssueToken(context.Background(), path, "u1", time.Hour)
	assert.ErrorContains(t, err, "auth.secret")
}

func TestRenderChannels(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := renderChannels("u1", []chat.ChannelSummary{
		{
			ID:          "c1",
			Name:        "General",
			Kind:        chat.KindOrgWide,
			UnreadCount: 2,
			LastMessage: &chat.LastMessage{Content: "hello", SenderName: "Bo", CreatedAt: now.Add(-5 * time.Minute)},
		},
		{
			ID:     "c2",
			Kind:   chat.KindDirect,
			DMUser: &chat.DMUser{UserID: "u2", FirstName: "Bo", LastName: "Berg"},
		},
	}, now)

	assert.Contains(t, out, "General")
	assert.Contains(t, out, "2 unread")
	assert.Contains(t, out, "Bo: hello")
	assert.Contains(t, out, "5 minutes ago")
	assert.Contains(t, out, "Bo Berg")

	empty := renderChannels("u1", nil, now)
	assert.True(t, strings.Contains(empty, "No channels yet"))
}

func TestFormatStats(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	oldest := now.Add(-2 * time.Hour)
	out := formatStats("/tmp/huddle.db", &storage.Stats{
		Users:         3,
		Messages:      1500,
		OldestMessage: &oldest,
		NewestMessage: &now,
	}, now)

	assert.Contains(t, out, "1.5K")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "just now")

	assert.Contains(t, formatStats("/tmp/huddle.db", &storage.Stats{}, now), "No messages yet")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1.0K", formatNumber(1000))
	assert.Equal(t, "2.5M", formatNumber(2500000))
}
