package installer

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-cleanhttp"
)

// Downloader fetches release archives over HTTP
type Downloader struct {
	client      *http.Client
	interactive bool
}

// NewDownloader creates a downloader. When interactive is set a progress bar is drawn.
func NewDownloader(interactive bool) *Downloader {
	return &Downloader{
		client:      cleanhttp.DefaultClient(),
		interactive: interactive,
	}
}

// NewDownloaderWithClient creates a non-interactive downloader using client
func NewDownloaderWithClient(client *http.Client) *Downloader {
	return &Downloader{client: client}
}

// Download streams url into destPath and returns the number of bytes written.
// The body is written to destPath.part and renamed on success, so destPath only
// ever holds a complete archive.
func (d *Downloader) Download(ctx context.Context, url string, destPath string) (int64, error) {
	ctx, interrupt := context.WithCancel(ctx)
	defer interrupt()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create download directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	partPath := destPath + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := d.copy(ctx, interrupt, out, resp.Body, filepath.Base(destPath), resp.ContentLength)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partPath)
		return written, err
	}

	if err := os.Rename(partPath, destPath); err != nil {
		os.Remove(partPath)
		return written, fmt.Errorf("failed to move download into place: %w", err)
	}

	return written, nil
}

// copy streams src into dst. With a terminal and a known size the transfer is
// drawn as a progress bar; the bar is torn down before copy returns. Ctrl-C on
// the bar calls interrupt, which cancels ctx and with it the response body.
func (d *Downloader) copy(ctx context.Context, interrupt func(), dst io.Writer, src io.Reader, name string, size int64) (int64, error) {
	var (
		p  *tea.Program
		ui chan struct{}
	)
	if d.interactive && size > 0 {
		p = tea.NewProgram(newDownloadModel(name, size, interrupt))
		ui = make(chan struct{})
		go func() {
			defer close(ui)
			_, _ = p.Run()
		}()
		src = newProgressReader(src, p.Send)
	}

	written, err := io.Copy(dst, src)
	switch {
	case err != nil:
		err = fmt.Errorf("failed to write file: %w", err)
	case size >= 0 && written != size:
		err = fmt.Errorf("incomplete download: got %d bytes, expected %d", written, size)
	}

	if p != nil {
		if err != nil {
			p.Send(transferFailedMsg{err: err})
		} else {
			p.Send(transferDoneMsg{})
		}
		<-ui
	}

	if ctx.Err() != nil {
		err = fmt.Errorf("download interrupted: %w", ctx.Err())
	}
	return written, err
}

// VerifyChecksum checks filePath against a "sha256:<hex>" or "sha512:<hex>" digest.
// A bare hex digest is treated as SHA-256.
func VerifyChecksum(filePath string, expected string) error {
	algo, digest, found := strings.Cut(strings.TrimSpace(expected), ":")
	if !found {
		algo, digest = "sha256", algo
	}

	var hasher hash.Hash
	switch strings.ToLower(algo) {
	case "sha256":
		hasher = sha256.New()
	case "sha512":
		hasher = sha512.New()
	default:
		return fmt.Errorf("unsupported checksum algorithm: %s", algo)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(hasher, file); err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(actual, digest) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", digest, actual)
	}

	return nil
}
