package updater

import (
	"fmt"
	"io"
	"strings"

	"hsetup/internal/theme"

	"github.com/charmbracelet/huh"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/dustin/go-humanize"
)

// Update prompt choices
const (
	ActionUpdate = "update"
	ActionSkip   = "skip"
	ActionLater  = "later"
)

const changelogLimit = 400

// PromptForUpdate asks whether to install release now, skip it for good or
// ask again later. Choosing skip is remembered in the state file.
func (u *Updater) PromptForUpdate(w io.Writer, release *selfupdate.Release) (string, error) {
	description := fmt.Sprintf("Download size: %s\n\n%s",
		humanize.IBytes(uint64(max(release.AssetByteSize, 0))),
		truncateChangelog(release.ReleaseNotes, changelogLimit))

	var action string
	err := huh.NewSelect[string]().
		Title(theme.Subtitle.Render(fmt.Sprintf("hsetup %s is available (you have %s)", release.Version(), u.current))).
		Description(theme.Faint.Render(description)).
		Options(
			huh.NewOption(theme.SuccessStyle.Render("Update now"), ActionUpdate),
			huh.NewOption(theme.InfoStyle.Render("Skip this version"), ActionSkip),
			huh.NewOption(theme.WarningStyle.Render("Remind me later"), ActionLater),
		).
		Value(&action).
		Run()
	if err != nil {
		return "", err
	}

	if action == ActionSkip {
		if err := u.SkipVersion(release.Version()); err != nil {
			fmt.Fprintln(w, theme.WarningMessage("Could not remember skipped version: "+err.Error()))
		}
	}

	return action, nil
}

// ShowUpdateNotification prints a one-line notice about a newer release
func ShowUpdateNotification(w io.Writer, currentVersion, latestVersion string) {
	fmt.Fprintf(w, "\n%s %s → %s %s\n\n",
		theme.InfoMessage("hsetup update available:"),
		theme.Faint.Render(currentVersion),
		theme.CurrentStyle.Render(latestVersion),
		theme.Faint.Render("(run 'sudo hsetup update')"))
}

// ShowUpdateSuccess reports the version now installed
func ShowUpdateSuccess(w io.Writer, version string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, theme.SuccessBox.Render(theme.SuccessStyle.Render("✓ hsetup updated")))
	fmt.Fprintf(w, "%s %s\n\n", theme.LabelStyle.Render("Version:"), theme.CurrentStyle.Render(version))
}

// ShowAlreadyUpToDate reports that no newer release exists
func ShowAlreadyUpToDate(w io.Writer, version string) {
	fmt.Fprintln(w, theme.SuccessMessage(fmt.Sprintf("hsetup %s is the latest release", version)))
}

// ShowCheckingForUpdates announces the release lookup
func ShowCheckingForUpdates(w io.Writer) {
	fmt.Fprintln(w, theme.InfoStyle.Render("Checking for updates..."))
}

// ShowDownloadingUpdate announces the binary download
func ShowDownloadingUpdate(w io.Writer, version string) {
	fmt.Fprintln(w, theme.InfoStyle.Render(fmt.Sprintf("Downloading hsetup %s...", version)))
}

// truncateChangelog cuts changelog to at most maxLen bytes plus an ellipsis,
// preferring a line or word boundary in the second half
func truncateChangelog(changelog string, maxLen int) string {
	changelog = strings.TrimSpace(changelog)
	if changelog == "" {
		return "See the release notes for details."
	}
	if len(changelog) <= maxLen {
		return changelog
	}

	cut := changelog[:maxLen]
	for _, sep := range []string{"\n", " "} {
		if idx := strings.LastIndex(cut, sep); idx > maxLen/2 {
			cut = cut[:idx]
			break
		}
	}
	return cut + "..."
}
