package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsetup/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	assert.Equal(t, "2.7.3", cfg.Hadoop.Version)
	assert.Equal(t, "/usr/local/hadoop", cfg.Hadoop.InstallDir)
	assert.Equal(t, "hdfs://localhost:9000", cfg.Hadoop.DefaultFS)
	assert.Equal(t, 1, cfg.Hadoop.Replication)
	assert.Equal(t, "hduser", cfg.Account.User)
	assert.Equal(t, "hadoop", cfg.Account.Group)
	assert.Equal(t, []string{"openjdk-8-jdk", "ssh", "rsync"}, cfg.Apt.Packages)
	assert.True(t, cfg.SSH.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadSearchesConfigDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	writeFile(t, xdg, "hsetup/hsetup.yaml", `
hadoop:
  version: 3.3.6
  replication: 2
account:
  user: hdfs
apt:
  packages: [openjdk-11-jdk]
`)

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "3.3.6", cfg.Hadoop.Version)
	assert.Equal(t, 2, cfg.Hadoop.Replication)
	assert.Equal(t, "hdfs", cfg.Account.User)
	assert.Equal(t, "hadoop", cfg.Account.Group)
	assert.Equal(t, []string{"openjdk-11-jdk"}, cfg.Apt.Packages)
	assert.Equal(t, filepath.Join(xdg, "hsetup", "hsetup.yaml"), cfg.ConfigFileUsed())
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultVersion, cfg.Hadoop.Version)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.yaml", "hadoop:\n  version: 3.3.6\n  install_dir: /opt/hadoop\n")
	t.Setenv("HSETUP_HADOOP_VERSION", "2.10.2")

	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "2.10.2", cfg.Hadoop.Version)
	assert.Equal(t, "/opt/hadoop", cfg.Hadoop.InstallDir)
	assert.Equal(t, path, cfg.ConfigFileUsed())
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	t.Parallel()

	_, err := config.Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "hsetup.yaml", "hadoop:\n  install_dir: relative/path\n")

	_, err := config.Load(viper.New(), path)
	assert.ErrorContains(t, err, "must be absolute")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{name: "empty version", mutate: func(c *config.Config) { c.Hadoop.Version = " " }, errMsg: "hadoop.version"},
		{name: "relative data dir", mutate: func(c *config.Config) { c.Hadoop.DataDir = "data" }, errMsg: "hadoop.data_dir"},
		{name: "zero replication", mutate: func(c *config.Config) { c.Hadoop.Replication = 0 }, errMsg: "hadoop.replication"},
		{name: "missing group", mutate: func(c *config.Config) { c.Account.Group = "" }, errMsg: "account.group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "state.json")

	st, err := config.LoadStateFrom(path)
	require.NoError(t, err)
	assert.Empty(t, st.Installs)
	assert.Nil(t, st.GetInstall("/usr/local/hadoop"))

	st.AddInstall(config.InstallRecord{Version: "2.7.2", Path: "/usr/local/hadoop/"})
	st.AddInstall(config.InstallRecord{Version: "2.7.3", Path: "/usr/local/hadoop", User: "hduser"})
	st.UpdateState.SkipVersion = "1.2.0"
	require.NoError(t, st.Save())

	loaded, err := config.LoadStateFrom(path)
	require.NoError(t, err)
	require.Len(t, loaded.Installs, 1)

	rec := loaded.GetInstall("/usr/local/hadoop/")
	require.NotNil(t, rec)
	assert.Equal(t, "2.7.3", rec.Version)
	assert.Equal(t, "hduser", rec.User)
	assert.Equal(t, "1.2.0", loaded.UpdateState.SkipVersion)
}

func TestStateStripsBOM(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "state.json", "\xEF\xBB\xBF{\"installs\":[{\"version\":\"2.7.3\",\"path\":\"/usr/local/hadoop\"}]}")

	st, err := config.LoadStateFrom(path)
	require.NoError(t, err)
	require.Len(t, st.Installs, 1)
	assert.Equal(t, "2.7.3", st.Installs[0].Version)
}
