package installer

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"hsetup/internal/theme"
)

// progressInterval throttles updates sent to the UI
const progressInterval = 100 * time.Millisecond

type (
	transferMsg struct {
		received int64
		rate     float64 // bytes per second
	}
	transferFailedMsg struct{ err error }
	transferDoneMsg   struct{}
)

// FormatSize formats bytes in human-readable format
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(bytes))
}

// downloadModel draws a progress bar for one archive transfer. The terminal is
// in raw mode while it runs, so Ctrl-C arrives as a key and calls interrupt.
type downloadModel struct {
	bar       progress.Model
	interrupt func()
	name      string
	total     int64
	received  int64
	rate      float64
	err       error
	finished  bool
}

func newDownloadModel(name string, total int64, interrupt func()) downloadModel {
	return downloadModel{
		bar: progress.New(
			progress.WithGradient(string(theme.Secondary), string(theme.Primary)),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		interrupt: interrupt,
		name:      name,
		total:     total,
	}
}

func (m downloadModel) Init() tea.Cmd {
	return nil
}

func (m downloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.interrupt()
			return m, tea.Quit
		}
	case transferMsg:
		m.received, m.rate = msg.received, msg.rate
		return m, m.bar.SetPercent(m.fraction())
	case transferDoneMsg:
		m.received = m.total
		m.finished = true
		return m, tea.Quit
	case transferFailedMsg:
		m.err = msg.err
		return m, tea.Quit
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m downloadModel) View() string {
	switch {
	case m.err != nil:
		return "  " + theme.ErrorMessage(m.name+": "+m.err.Error()) + "\n"
	case m.finished:
		return ""
	}

	status := fmt.Sprintf("%s of %s, %s/s, %s left",
		FormatSize(m.received), FormatSize(m.total), humanize.IBytes(uint64(m.rate)), m.remaining())

	return "\n  " + m.bar.View() + "\n  " + theme.Faint.Render(status) + "\n"
}

func (m downloadModel) fraction() float64 {
	if m.total <= 0 {
		return 0
	}
	return min(float64(m.received)/float64(m.total), 1)
}

func (m downloadModel) remaining() string {
	if m.rate <= 0 || m.received >= m.total {
		return "0s"
	}
	secs := float64(m.total-m.received) / m.rate
	return (time.Duration(secs) * time.Second).String()
}

// progressReader counts bytes read from r and reports them to send at most
// once per progressInterval
type progressReader struct {
	r        io.Reader
	send     func(tea.Msg)
	received atomic.Int64
	started  time.Time
	lastSent time.Time
	now      func() time.Time
}

func newProgressReader(r io.Reader, send func(tea.Msg)) *progressReader {
	pr := &progressReader{r: r, send: send, now: time.Now}
	pr.started = pr.now()
	return pr
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	total := pr.received.Add(int64(n))

	if now := pr.now(); now.Sub(pr.lastSent) >= progressInterval {
		pr.lastSent = now
		rate := 0.0
		if elapsed := now.Sub(pr.started).Seconds(); elapsed > 0 {
			rate = float64(total) / elapsed
		}
		pr.send(transferMsg{received: total, rate: rate})
	}
	return n, err
}
