// Package installer downloads and unpacks platform release tarballs.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hsetup/internal/target"
	"hsetup/internal/theme"
)

// Installer places a release archive's contents into the install directory
type Installer struct {
	downloader  *Downloader
	out         io.Writer
	interactive bool
}

// NewInstaller creates a new Installer
func NewInstaller(downloader *Downloader, out io.Writer, interactive bool) *Installer {
	return &Installer{
		downloader:  downloader,
		out:         out,
		interactive: interactive,
	}
}

// IsInstalled reports whether the release is already unpacked in t.InstallDir
func IsInstalled(t *target.InstallationTarget) bool {
	info, err := os.Stat(t.Bin("hadoop"))
	return err == nil && !info.IsDir()
}

// HasArchive reports whether a complete archive is already cached
func HasArchive(t *target.InstallationTarget) bool {
	_, err := os.Stat(t.ArchivePath)
	return err == nil
}

// Fetch downloads the release archive to t.ArchivePath and verifies its checksum
func (i *Installer) Fetch(ctx context.Context, t *target.InstallationTarget) error {
	fmt.Fprintf(i.out, "%s %s\n", theme.LabelStyle.Render("Package:"), theme.ValueStyle.Render(t.ArchiveName))
	fmt.Fprintf(i.out, "%s %s\n", theme.LabelStyle.Render("From:   "), theme.PathStyle.Render(t.DownloadURL))

	written, err := i.downloader.Download(ctx, t.DownloadURL, t.ArchivePath)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	fmt.Fprintf(i.out, "%s %s\n", theme.LabelStyle.Render("Size:   "), theme.ValueStyle.Render(FormatSize(written)))

	if t.Checksum == "" {
		return nil
	}

	err = WithSpinner(ctx, i.interactive, "Verifying checksum...", func(context.Context) error {
		return VerifyChecksum(t.ArchivePath, t.Checksum)
	})
	if err != nil {
		// A corrupt archive must not satisfy the next run's cache check
		os.Remove(t.ArchivePath)
		return fmt.Errorf("checksum verification failed: %w", err)
	}
	fmt.Fprintln(i.out, theme.SuccessMessage("Checksum verified successfully"))

	return nil
}

// Unpack extracts the cached archive into t.InstallDir. Extraction goes to a
// staging directory first so a failed run never leaves a half-populated bin/.
func (i *Installer) Unpack(ctx context.Context, t *target.InstallationTarget) error {
	staging := t.InstallDir + ".partial"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("failed to clear staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	err := WithSpinner(ctx, i.interactive, "Extracting "+t.ArchiveName+"...", func(ctx context.Context) error {
		return ExtractTarGz(ctx, t.ArchivePath, staging, 1)
	})
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if _, err := os.Stat(filepath.Join(staging, "bin", "hadoop")); err != nil {
		return fmt.Errorf("invalid release structure: bin/hadoop not found")
	}

	if err := moveContents(staging, t.InstallDir); err != nil {
		return fmt.Errorf("failed to move release to %s: %w", t.InstallDir, err)
	}

	fmt.Fprintf(i.out, "%s %s\n", theme.SuccessMessage("Release unpacked to"), theme.PathStyle.Render(t.InstallDir))
	return nil
}

// moveContents renames src to dst, or moves src's entries into dst when dst
// already exists. Existing entries in dst are replaced.
func moveContents(src, dst string) error {
	if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		return os.Rename(src, dst)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		if err := os.RemoveAll(to); err != nil {
			return err
		}
		if err := os.Rename(from, to); err != nil {
			return err
		}
	}
	return nil
}
