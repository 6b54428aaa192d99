// Package theme holds the terminal styles shared by every command.
package theme

import "github.com/charmbracelet/lipgloss"

// Palette after the Hadoop elephant logo
var (
	Primary   = lipgloss.Color("#f6c915") // elephant yellow
	Secondary = lipgloss.Color("#66ccff") // sky blue

	green  = lipgloss.Color("#00d26a")
	red    = lipgloss.Color("#ff3b30")
	amber  = lipgloss.Color("#ffcc00")
	cyan   = lipgloss.Color("#5ac8fa")
	white  = lipgloss.Color("#ffffff")
	gray   = lipgloss.Color("#8e8e93")
	orange = lipgloss.Color("#ff9f1c")
)

// Headings
var (
	Title    = lipgloss.NewStyle().Foreground(Primary).Bold(true).Underline(true)
	Subtitle = lipgloss.NewStyle().Foreground(Secondary).Bold(true)
	TitleBox = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Primary).
			Padding(1, 2).
			Align(lipgloss.Center)
)

// Status lines
var (
	SuccessStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(red).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(amber).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(cyan)
	Faint        = lipgloss.NewStyle().Foreground(gray).Faint(true)

	SuccessBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(green).
			Padding(1, 3).
			Align(lipgloss.Center)
	ErrorBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(red).
			Padding(1, 2)
)

// Key/value output
var (
	LabelStyle   = lipgloss.NewStyle().Foreground(Secondary).Bold(true)
	ValueStyle   = lipgloss.NewStyle().Foreground(white)
	PathStyle    = lipgloss.NewStyle().Foreground(cyan)
	CurrentStyle = lipgloss.NewStyle().Foreground(Primary).Bold(true) // versions
	Code         = lipgloss.NewStyle().Foreground(orange)

	// StepStyle renders the "[3/18]" counters of a provisioning run
	StepStyle = lipgloss.NewStyle().Foreground(amber).Bold(true)
)

func SuccessMessage(msg string) string { return SuccessStyle.Render("✓ " + msg) }
func ErrorMessage(msg string) string   { return ErrorStyle.Render("✗ " + msg) }
func WarningMessage(msg string) string { return WarningStyle.Render("⚠ " + msg) }
func InfoMessage(msg string) string    { return InfoStyle.Render("ℹ " + msg) }

// SkipMessage marks work found already done
func SkipMessage(msg string) string { return Faint.Render("↷ " + msg) }
