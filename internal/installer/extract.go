package installer

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrUnsafePath is returned for archive entries that would land outside the destination
var ErrUnsafePath = errors.New("archive entry escapes destination")

const maxLinkHops = 40

// ExtractTarGz unpacks a gzip-compressed tarball into destDir, dropping the
// first strip path components of every entry (1 removes "hadoop-2.7.3/").
// Every write is checked against what is already on disk, so links created
// by earlier entries cannot redirect later ones outside destDir.
func ExtractTarGz(ctx context.Context, archivePath string, destDir string, strip int) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	root, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction interrupted: %w", err)
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		name := stripComponents(hdr.Name, strip)
		if name == "" {
			continue
		}
		if !filepath.IsLocal(name) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}

		if err := extractEntry(tr, hdr, root, name, strip); err != nil {
			return err
		}
	}
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, root, name string, strip int) error {
	mode := os.FileMode(hdr.Mode).Perm()

	if hdr.Typeflag == tar.TypeDir {
		dir, err := resolveInside(root, root, name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, mode|0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}

	parent, err := resolveInside(root, root, filepath.Dir(name))
	if err != nil {
		return err
	}
	target := filepath.Join(parent, filepath.Base(name))

	switch hdr.Typeflag {
	case tar.TypeReg:
		if err := clearEntry(parent, target); err != nil {
			return err
		}

		outFile, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}

		_, err = io.Copy(outFile, tr)
		outFile.Close()
		if err != nil {
			return fmt.Errorf("failed to extract file: %w", err)
		}

	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, hdr.Name, hdr.Linkname)
		}
		if _, err := resolveInside(root, parent, hdr.Linkname); err != nil {
			return fmt.Errorf("symlink %s -> %s: %w", hdr.Name, hdr.Linkname, err)
		}

		if err := clearEntry(parent, target); err != nil {
			return err
		}
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return fmt.Errorf("failed to create symlink: %w", err)
		}

	case tar.TypeLink:
		source := stripComponents(hdr.Linkname, strip)
		if source == "" || !filepath.IsLocal(source) {
			return fmt.Errorf("%w: hard link %s -> %s", ErrUnsafePath, hdr.Name, hdr.Linkname)
		}
		src, err := resolveInside(root, root, source)
		if err != nil {
			return fmt.Errorf("hard link %s -> %s: %w", hdr.Name, hdr.Linkname, err)
		}

		if err := clearEntry(parent, target); err != nil {
			return err
		}
		if err := os.Link(src, target); err != nil {
			return fmt.Errorf("failed to create hard link: %w", err)
		}

	default:
		return fmt.Errorf("unsupported archive entry %s (type %q)", hdr.Name, hdr.Typeflag)
	}

	return nil
}

// clearEntry makes room for a new non-directory entry at target
func clearEntry(parent, target string) error {
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	return nil
}

// resolveInside walks rel from base one element at a time, following the
// symlinks already on disk, and fails with ErrUnsafePath as soon as the walk
// leaves root. Elements that do not exist yet are joined as they are.
func resolveInside(root, base, rel string) (string, error) {
	cur := base
	pending := strings.Split(filepath.ToSlash(rel), "/")
	hops := 0

	for len(pending) > 0 {
		elem := pending[0]
		pending = pending[1:]

		switch elem {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
		default:
			next := filepath.Join(cur, elem)
			info, err := os.Lstat(next)
			if err != nil || info.Mode()&os.ModeSymlink == 0 {
				cur = next
				break
			}

			if hops++; hops > maxLinkHops {
				return "", fmt.Errorf("%w: too many links in %s", ErrUnsafePath, rel)
			}
			link, err := os.Readlink(next)
			if err != nil {
				return "", fmt.Errorf("failed to read link: %w", err)
			}
			if filepath.IsAbs(link) {
				return "", fmt.Errorf("%w: %s -> %s", ErrUnsafePath, next, link)
			}
			pending = append(strings.Split(filepath.ToSlash(link), "/"), pending...)
		}

		if !within(root, cur) {
			return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
		}
	}

	return cur, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func stripComponents(name string, strip int) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	parts := strings.Split(strings.Trim(name, "/"), "/")
	if len(parts) <= strip {
		return ""
	}
	return filepath.Join(parts[strip:]...)
}
