package java

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrJavaNotFound is returned when no java executable can be located
var ErrJavaNotFound = errors.New("java executable not found")

var (
	versionOutputRe = regexp.MustCompile(`(?:openjdk|java)?\s*version\s+"([^"]+)"`)
	jdkDirRe        = regexp.MustCompile(`(?:jdk|jre)-?(\d+(?:\.\d+)*(?:_\d+)?)`)
	javaDirRe       = regexp.MustCompile(`java-?(\d+(?:\.\d+)*)`)
)

// Detector resolves the Java home of the runtime on PATH
type Detector struct {
	lookPath     func(string) (string, error)
	evalSymlinks func(string) (string, error)
	runVersion   func(ctx context.Context, javaBin string) ([]byte, error)
}

// NewDetector creates a new Java detector
func NewDetector() *Detector {
	return &Detector{
		lookPath:     exec.LookPath,
		evalSymlinks: filepath.EvalSymlinks,
		runVersion: func(ctx context.Context, javaBin string) ([]byte, error) {
			return exec.CommandContext(ctx, javaBin, "-version").CombinedOutput()
		},
	}
}

// NewDetectorWithLookPath creates a detector that locates java through lookPath
func NewDetectorWithLookPath(lookPath func(string) (string, error)) *Detector {
	d := NewDetector()
	d.lookPath = lookPath
	return d
}

// JavaHome finds java on PATH, follows its symlink chain to the real binary
// and strips the trailing bin/java. A JDK 8 jre/ directory is stripped too
// when its parent is itself a Java installation.
func (d *Detector) JavaHome() (string, error) {
	javaBin, err := d.lookPath("java")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrJavaNotFound, err)
	}

	real, err := d.evalSymlinks(javaBin)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", javaBin, err)
	}

	return HomeFromBinary(real)
}

// HomeFromBinary derives the installation directory from a resolved java binary path
func HomeFromBinary(javaBin string) (string, error) {
	javaBin = filepath.Clean(javaBin)
	if filepath.Base(javaBin) != "java" || filepath.Base(filepath.Dir(javaBin)) != "bin" {
		return "", fmt.Errorf("%w: %s is not a bin/java path", ErrJavaNotFound, javaBin)
	}

	home := filepath.Dir(filepath.Dir(javaBin))
	if filepath.Base(home) == "jre" && IsValidJavaPath(filepath.Dir(home)) {
		home = filepath.Dir(home)
	}

	return home, nil
}

// IsValidJavaPath checks if a path is a valid Java installation
func IsValidJavaPath(path string) bool {
	info, err := os.Stat(filepath.Join(path, "bin", "java"))
	return err == nil && !info.IsDir()
}

// Version returns the version of the installation at javaHome
func (d *Detector) Version(ctx context.Context, javaHome string) Version {
	v := Version{Path: javaHome}

	output, err := d.runVersion(ctx, filepath.Join(javaHome, "bin", "java"))
	if err == nil {
		v.Version = parseVersionOutput(string(output))
	}

	// Fallback: extract from directory name
	if v.Version == "" {
		v.Version = parseVersionFromDirName(filepath.Base(javaHome))
	}

	return v
}

// parseVersionOutput parses the output of 'java -version'
func parseVersionOutput(output string) string {
	matches := versionOutputRe.FindStringSubmatch(output)
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// parseVersionFromDirName extracts version from directory names like
// "java-8-openjdk-amd64", "jdk-17" or "jdk1.8.0_322"
func parseVersionFromDirName(dirName string) string {
	dirName = strings.ToLower(dirName)

	if matches := jdkDirRe.FindStringSubmatch(dirName); len(matches) > 1 {
		return matches[1]
	}

	if matches := javaDirRe.FindStringSubmatch(dirName); len(matches) > 1 {
		return matches[1]
	}

	return dirName
}
