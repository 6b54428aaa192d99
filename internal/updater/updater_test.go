package updater

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsetup/internal/config"
)

func TestShouldCheck(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	on := config.UpdateConfig{Enabled: true, AutoCheck: true}

	tests := []struct {
		name      string
		settings  config.UpdateConfig
		lastCheck time.Time
		want      bool
	}{
		{name: "never checked", settings: on, want: true},
		{name: "checked recently", settings: on, lastCheck: now.Add(-time.Hour), want: false},
		{name: "interval elapsed", settings: on, lastCheck: now.Add(-CheckInterval), want: true},
		{name: "auto check off", settings: config.UpdateConfig{Enabled: true}, want: false},
		{name: "updates disabled", settings: config.UpdateConfig{AutoCheck: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			state := &config.State{UpdateState: config.UpdateState{LastCheck: tt.lastCheck}}
			assert.Equal(t, tt.want, shouldCheck(tt.settings, state, now))
		})
	}
}

func TestCleanVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.2.3", cleanVersion("v1.2.3"))
	assert.Equal(t, "1.2.3", cleanVersion(" 1.2.3\n"))

	assert.True(t, isRelease("1.2.3"))
	assert.False(t, isRelease("dev"))
	assert.False(t, isRelease(""))
}

func TestCheckForUpdateRefusesDevelopmentBuild(t *testing.T) {
	t.Parallel()

	state, err := config.LoadStateFrom(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	u, err := NewUpdater(config.UpdateConfig{Enabled: true, Repository: "hsetup/hsetup"}, state, "dev")
	require.NoError(t, err)

	_, err = u.CheckForUpdate(context.Background())
	assert.ErrorIs(t, err, ErrDevelopmentBuild)
	assert.True(t, state.UpdateState.LastCheck.IsZero())
}

func TestSkipVersionPersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	state, err := config.LoadStateFrom(path)
	require.NoError(t, err)

	u, err := NewUpdater(config.UpdateConfig{Enabled: true}, state, "v1.0.0")
	require.NoError(t, err)
	require.NoError(t, u.SkipVersion("1.1.0"))

	reloaded, err := config.LoadStateFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", reloaded.UpdateState.SkipVersion)
}

func TestCopyExecutable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "hsetup")
	require.NoError(t, os.WriteFile(src, []byte("binary"), 0o755))

	dst := filepath.Join(dir, "hsetup.old")
	require.NoError(t, copyExecutable(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestTruncateChangelog(t *testing.T) {
	t.Parallel()

	short := "- fixed namenode format detection"
	assert.Equal(t, short, truncateChangelog(short, 200))
	assert.Equal(t, "See the release notes for details.", truncateChangelog("  \n", 200))
	assert.LessOrEqual(t, len(truncateChangelog(short+" and more words after that", 40)), 44)
}

func TestNotices(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ShowCheckingForUpdates(&buf)
	ShowAlreadyUpToDate(&buf, "1.0.0")
	ShowUpdateNotification(&buf, "1.0.0", "1.1.0")

	out := buf.String()
	assert.Contains(t, out, "Checking for updates...")
	assert.Contains(t, out, "hsetup 1.0.0 is the latest release")
	assert.Contains(t, out, "1.1.0")
	assert.Contains(t, out, "hsetup update")
}
