// Package target resolves the parameters of a single install run.
package target

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/semver/v3"

	"hsetup/internal/config"
)

// InstallationTarget is computed once per run and never mutated afterwards.
type InstallationTarget struct {
	Version     string
	InstallDir  string
	ConfigDir   string
	DataDir     string
	NameNodeDir string
	DataNodeDir string
	TmpDir      string

	DownloadURL string
	ArchiveName string
	ArchivePath string
	Checksum    string

	JavaHome string
	User     string
	Group    string

	DefaultFS       string
	Replication     int
	Framework       string
	ResourceManager string
}

// Resolve builds the target from cfg and the detected Java home
func Resolve(cfg *config.Config, javaHome string) (*InstallationTarget, error) {
	h := cfg.Hadoop

	v, err := semver.NewVersion(h.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid hadoop version %q: %w", h.Version, err)
	}
	version := strings.TrimPrefix(v.Original(), "v")

	downloadURL, err := renderURL(h.Mirror, version)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(downloadURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid download URL %q", downloadURL)
	}
	archiveName := path.Base(u.Path)

	installDir := filepath.Clean(h.InstallDir)
	dataDir := h.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(installDir, "hadoop_data", "hdfs")
	}
	dataDir = filepath.Clean(dataDir)

	cacheDir := h.CacheDir
	if cacheDir == "" {
		cacheDir = config.DefaultCacheDir
	}

	return &InstallationTarget{
		Version:     version,
		InstallDir:  installDir,
		ConfigDir:   filepath.Join(installDir, "etc", "hadoop"),
		DataDir:     dataDir,
		NameNodeDir: filepath.Join(dataDir, "namenode"),
		DataNodeDir: filepath.Join(dataDir, "datanode"),
		TmpDir:      filepath.Join(installDir, "tmp"),

		DownloadURL: downloadURL,
		ArchiveName: archiveName,
		ArchivePath: filepath.Join(cacheDir, archiveName),
		Checksum:    h.Checksum,

		JavaHome: filepath.Clean(javaHome),
		User:     cfg.Account.User,
		Group:    cfg.Account.Group,

		DefaultFS:       h.DefaultFS,
		Replication:     h.Replication,
		Framework:       h.Framework,
		ResourceManager: h.ResourceManager,
	}, nil
}

// Bin returns the path of a command in the installation's bin directory
func (t *InstallationTarget) Bin(name string) string {
	return filepath.Join(t.InstallDir, "bin", name)
}

// Sbin returns the path of a command in the installation's sbin directory
func (t *InstallationTarget) Sbin(name string) string {
	return filepath.Join(t.InstallDir, "sbin", name)
}

// Env returns the environment the platform's own commands need
func (t *InstallationTarget) Env() []string {
	return []string{
		"JAVA_HOME=" + t.JavaHome,
		"HADOOP_HOME=" + t.InstallDir,
		"HADOOP_CONF_DIR=" + t.ConfigDir,
	}
}

func renderURL(mirror, version string) (string, error) {
	tmpl, err := template.New("mirror").Option("missingkey=error").Parse(mirror)
	if err != nil {
		return "", fmt.Errorf("invalid mirror template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Version string }{version}); err != nil {
		return "", fmt.Errorf("failed to render mirror template: %w", err)
	}
	return buf.String(), nil
}
