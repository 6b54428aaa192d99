package installer

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReaderThrottles(t *testing.T) {
	t.Parallel()

	var sent []transferMsg
	pr := newProgressReader(bytes.NewReader(make([]byte, 4096)), func(msg tea.Msg) {
		sent = append(sent, msg.(transferMsg))
	})

	clock := pr.started
	pr.now = func() time.Time { return clock }

	buf := make([]byte, 1024)
	for range 3 {
		clock = clock.Add(60 * time.Millisecond)
		_, err := pr.Read(buf)
		require.NoError(t, err)
	}

	// Reads land 60ms, 120ms and 180ms after start; the 120ms one is throttled
	require.Len(t, sent, 2)
	assert.Equal(t, int64(1024), sent[0].received)
	assert.Equal(t, int64(3072), sent[1].received)
	assert.InDelta(t, 3072/0.18, sent[1].rate, 1)

	n, err := io.Copy(io.Discard, pr)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n)
	assert.Equal(t, int64(4096), pr.received.Load())
}

func TestDownloadModel(t *testing.T) {
	t.Parallel()

	m := newDownloadModel("hadoop-2.7.3.tar.gz", 2048, func() {})

	next, _ := m.Update(transferMsg{received: 1024, rate: 512})
	m = next.(downloadModel)
	assert.InDelta(t, 0.5, m.fraction(), 0.001)
	assert.Equal(t, "2s", m.remaining())
	assert.Contains(t, m.View(), "1.0 KiB of 2.0 KiB")

	next, cmd := m.Update(transferDoneMsg{})
	m = next.(downloadModel)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())

	failed, _ := newDownloadModel("x.tar.gz", 10, func() {}).Update(transferFailedMsg{err: io.ErrUnexpectedEOF})
	assert.Contains(t, failed.View(), "unexpected EOF")
}

func TestCtrlCInterruptsTransfer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, cmd := newDownloadModel("hadoop-2.7.3.tar.gz", 2048, cancel).Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestCtrlCInterruptsTask(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newTaskModel("Extracting...", cancel)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd)
	assert.NoError(t, ctx.Err())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

// cancellingReader cancels its transfer after the first read, the way Ctrl-C
// on the progress bar does mid-download
type cancellingReader struct {
	io.Reader
	cancel func()
}

func (r cancellingReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.cancel()
	return n, err
}

func TestCopyReportsInterrupt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	body := make([]byte, 64)
	src := cancellingReader{Reader: bytes.NewReader(body), cancel: cancel}

	var dst bytes.Buffer
	_, err := NewDownloader(false).copy(ctx, cancel, &dst, src, "hadoop-2.7.3.tar.gz", int64(len(body)))

	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "download interrupted")
}
