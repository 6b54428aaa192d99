// Package env exports the runtime and platform paths into a shell profile.
package env

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hsetup/internal/target"
)

const (
	beginMarker = "# >>> hsetup environment >>>"
	endMarker   = "# <<< hsetup environment <<<"
)

// Var is one exported variable
type Var struct {
	Name  string
	Value string
}

// Exports returns the variables the platform's tools expect, in write order
func Exports(t *target.InstallationTarget) []Var {
	return []Var{
		{Name: "JAVA_HOME", Value: t.JavaHome},
		{Name: "HADOOP_HOME", Value: t.InstallDir},
		{Name: "HADOOP_CONF_DIR", Value: t.ConfigDir},
		{Name: "PATH", Value: "$PATH:$HADOOP_HOME/bin:$HADOOP_HOME/sbin"},
	}
}

// Block renders vars as a marker-delimited block of export lines
func Block(vars []Var) string {
	var b strings.Builder
	b.WriteString(beginMarker + "\n")
	for _, v := range vars {
		fmt.Fprintf(&b, "export %s=%s\n", v.Name, v.Value)
	}
	b.WriteString(endMarker + "\n")
	return b.String()
}

// HasBlock reports whether the profile at path already carries exactly block
func HasBlock(path, block string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), block)
}

// UpdateProfile writes block into the profile at path, replacing an earlier
// hsetup block in place. Content outside the markers is left untouched.
// Returns true when the file was created.
func UpdateProfile(path, block string) (bool, error) {
	data, err := os.ReadFile(path)
	created := errors.Is(err, os.ErrNotExist)
	if err != nil && !created {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	updated := replaceBlock(string(data), block)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return created, nil
}

// replaceBlock swaps the marker-delimited region of content for block, or
// appends block when content has none. An unterminated region is replaced
// through the end of the content.
func replaceBlock(content, block string) string {
	start := strings.Index(content, beginMarker)
	if start < 0 {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		if content != "" {
			content += "\n"
		}
		return content + block
	}

	rest := content[start:]
	end := strings.Index(rest, endMarker)
	tail := ""
	if end >= 0 {
		tail = rest[end+len(endMarker):]
		tail = strings.TrimPrefix(tail, "\n")
	}

	return content[:start] + block + tail
}
