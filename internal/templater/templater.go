// Package templater renders the platform's site configuration documents.
package templater

import (
	"bufio"
	"bytes"
	"embed"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"hsetup/internal/target"
)

//go:embed templates/*.xml.tmpl
var templateFS embed.FS

// Documents lists the rendered files in render order
var Documents = []string{
	"core-site.xml",
	"hdfs-site.xml",
	"mapred-site.xml",
	"yarn-site.xml",
}

const filePerm = 0o644

var templates = template.Must(
	template.New("site").
		Option("missingkey=error").
		Funcs(template.FuncMap{"xml": escapeXML}).
		ParseFS(templateFS, "templates/*.xml.tmpl"),
)

// ConfigFile is a rendered document and the path it belongs at
type ConfigFile struct {
	Name    string
	Path    string
	Content []byte
}

// Render produces every document in Documents for t. Output depends only on t.
func Render(t *target.InstallationTarget) ([]ConfigFile, error) {
	files := make([]ConfigFile, 0, len(Documents))

	for _, name := range Documents {
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, name+".tmpl", t); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", name, err)
		}

		files = append(files, ConfigFile{
			Name:    name,
			Path:    filepath.Join(t.ConfigDir, name),
			Content: buf.Bytes(),
		})
	}

	return files, nil
}

// Write overwrites each file in full. Earlier content is never merged.
func Write(files []ConfigFile) error {
	for _, f := range files {
		if f.Path == "" {
			return fmt.Errorf("config file %s has no path", f.Name)
		}

		if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(f.Path), err)
		}

		if err := os.WriteFile(f.Path, f.Content, filePerm); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}
	return nil
}

// PinJavaHome rewrites every "export JAVA_HOME=" line of the env script at path
// to javaHome, appending one when none exists. A missing script is created.
func PinJavaHome(path, javaHome string) error {
	line := "export JAVA_HOME=" + javaHome

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var out bytes.Buffer
	found := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		text := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(text), "export JAVA_HOME=") {
			text = line
			found = true
		}
		out.WriteString(text)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan %s: %w", path, err)
	}

	if !found {
		out.WriteString(line)
		out.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}

	return os.WriteFile(path, out.Bytes(), filePerm)
}

func escapeXML(v any) (string, error) {
	var buf strings.Builder
	if err := xml.EscapeText(&buf, []byte(fmt.Sprint(v))); err != nil {
		return "", err
	}
	return buf.String(), nil
}
