package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults for a single-node Hadoop 2.7.3 install
const (
	DefaultVersion         = "2.7.3"
	DefaultInstallDir      = "/usr/local/hadoop"
	DefaultMirror          = "https://archive.apache.org/dist/hadoop/common/hadoop-{{.Version}}/hadoop-{{.Version}}.tar.gz"
	DefaultCacheDir        = "/var/cache/hsetup"
	DefaultFS              = "hdfs://localhost:9000"
	DefaultReplication     = 1
	DefaultFramework       = "yarn"
	DefaultResourceManager = "localhost"
	DefaultUser            = "hduser"
	DefaultGroup           = "hadoop"

	// EnvPrefix is prepended to every environment override (HSETUP_HADOOP_VERSION, ...)
	EnvPrefix = "HSETUP"
)

// Config holds the provisioning configuration
type Config struct {
	Hadoop  HadoopConfig  `mapstructure:"hadoop"`
	Java    JavaConfig    `mapstructure:"java"`
	Apt     AptConfig     `mapstructure:"apt"`
	Account AccountConfig `mapstructure:"account"`
	SSH     SSHConfig     `mapstructure:"ssh"`
	Profile ProfileConfig `mapstructure:"profile"`
	Log     LogConfig     `mapstructure:"log"`
	Update  UpdateConfig  `mapstructure:"update"`

	configFile string
}

// HadoopConfig describes the release to install and the values templated into its site files
type HadoopConfig struct {
	Version         string `mapstructure:"version"`
	InstallDir      string `mapstructure:"install_dir"`
	DataDir         string `mapstructure:"data_dir"`  // Defaults to <install_dir>/hadoop_data/hdfs
	Mirror          string `mapstructure:"mirror"`    // URL template, {{.Version}} is substituted
	Checksum        string `mapstructure:"checksum"`  // Optional "sha256:<hex>" or "sha512:<hex>"
	CacheDir        string `mapstructure:"cache_dir"` // Where the tarball is kept between runs
	DefaultFS       string `mapstructure:"default_fs"`
	Replication     int    `mapstructure:"replication"`
	Framework       string `mapstructure:"framework"`
	ResourceManager string `mapstructure:"resource_manager"`
}

// JavaConfig controls how the Java runtime is located
type JavaConfig struct {
	Home string `mapstructure:"home"` // Skips detection when set
}

// AptConfig lists the packages installed before anything else
type AptConfig struct {
	Packages []string `mapstructure:"packages"`
}

// AccountConfig names the service account that owns the installation
type AccountConfig struct {
	User  string `mapstructure:"user"`
	Group string `mapstructure:"group"`
}

// SSHConfig controls passwordless localhost SSH for the service account
type SSHConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ProfileConfig points at the shell profile receiving the environment exports
type ProfileConfig struct {
	Path string `mapstructure:"path"` // Defaults to ~<user>/.bashrc
}

// LogConfig configures the structured log
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	Output     string `mapstructure:"output"` // stderr, stdout or file
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// UpdateConfig holds settings for the self-update feature
type UpdateConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AutoCheck  bool   `mapstructure:"auto_check"`
	Repository string `mapstructure:"repository"` // owner/name of the release repository
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("hadoop.version", DefaultVersion)
	v.SetDefault("hadoop.install_dir", DefaultInstallDir)
	v.SetDefault("hadoop.data_dir", "")
	v.SetDefault("hadoop.mirror", DefaultMirror)
	v.SetDefault("hadoop.checksum", "")
	v.SetDefault("hadoop.cache_dir", DefaultCacheDir)
	v.SetDefault("hadoop.default_fs", DefaultFS)
	v.SetDefault("hadoop.replication", DefaultReplication)
	v.SetDefault("hadoop.framework", DefaultFramework)
	v.SetDefault("hadoop.resource_manager", DefaultResourceManager)

	v.SetDefault("java.home", "")
	v.SetDefault("apt.packages", []string{"openjdk-8-jdk", "ssh", "rsync"})

	v.SetDefault("account.user", DefaultUser)
	v.SetDefault("account.group", DefaultGroup)
	v.SetDefault("ssh.enabled", true)
	v.SetDefault("profile.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "file")
	v.SetDefault("log.file_path", "/var/log/hsetup/hsetup.log")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("update.enabled", true)
	v.SetDefault("update.auto_check", false)
	v.SetDefault("update.repository", "hsetup/hsetup")
}

// Load reads configuration into a Config. An explicit configFile must exist;
// otherwise hsetup.yaml is searched in the standard locations and may be absent.
// Environment variables (HSETUP_HADOOP_VERSION, ...) override file values, and a
// .env file in the working directory is loaded first without clobbering the environment.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("hsetup")
		v.SetConfigType("yaml")
		for _, dir := range searchDirs() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.configFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when no file or environment override is present
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("invalid defaults: %v", err))
	}
	return cfg
}

// Validate checks the fields nothing downstream can default
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Hadoop.Version) == "":
		return errors.New("hadoop.version must not be empty")
	case !filepath.IsAbs(c.Hadoop.InstallDir):
		return fmt.Errorf("hadoop.install_dir must be absolute, got %q", c.Hadoop.InstallDir)
	case c.Hadoop.DataDir != "" && !filepath.IsAbs(c.Hadoop.DataDir):
		return fmt.Errorf("hadoop.data_dir must be absolute, got %q", c.Hadoop.DataDir)
	case c.Hadoop.Replication < 1:
		return fmt.Errorf("hadoop.replication must be at least 1, got %d", c.Hadoop.Replication)
	case c.Account.User == "" || c.Account.Group == "":
		return errors.New("account.user and account.group must not be empty")
	}
	return nil
}

// ConfigFileUsed returns the file the configuration was read from, if any
func (c *Config) ConfigFileUsed() string {
	return c.configFile
}

// loadDotEnv loads KEY=value pairs without overriding variables already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// searchDirs returns the directories searched for hsetup.yaml, in priority order
func searchDirs() []string {
	dirs := []string{Dir()}
	return append(dirs, "/etc/hsetup")
}

// Dir returns the per-user configuration directory.
// $XDG_CONFIG_HOME is honoured when set
func Dir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome != "" {
		return filepath.Join(configHome, "hsetup")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return filepath.Join(homeDir, ".config", "hsetup")
}
