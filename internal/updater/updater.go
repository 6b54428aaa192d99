// Package updater replaces the running hsetup binary with a newer release.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"

	"hsetup/internal/config"
)

const (
	// CheckInterval is the minimum time between automatic checks
	CheckInterval = 24 * time.Hour

	// UpdateTimeout bounds a whole check-and-apply cycle
	UpdateTimeout = 5 * time.Minute

	checksumFile = "SHA256SUMS.txt"
)

// ErrDevelopmentBuild is returned when the running binary carries no release version
var ErrDevelopmentBuild = errors.New("development build cannot be updated")

// Updater checks the release repository and applies updates
type Updater struct {
	settings config.UpdateConfig
	state    *config.State
	current  string
	releases *selfupdate.Updater
}

// NewUpdater creates an Updater for the binary built as version
func NewUpdater(settings config.UpdateConfig, state *config.State, version string) (*Updater, error) {
	releases, err := selfupdate.NewUpdater(selfupdate.Config{
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: checksumFile},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	return &Updater{
		settings: settings,
		state:    state,
		current:  cleanVersion(version),
		releases: releases,
	}, nil
}

// ShouldCheckForUpdate reports whether an automatic check is due
func (u *Updater) ShouldCheckForUpdate() bool {
	return shouldCheck(u.settings, u.state, time.Now())
}

func shouldCheck(settings config.UpdateConfig, state *config.State, now time.Time) bool {
	if !settings.Enabled || !settings.AutoCheck {
		return false
	}
	return now.Sub(state.UpdateState.LastCheck) >= CheckInterval
}

// CheckForUpdate returns the latest release when it is newer than the running
// binary and has not been skipped, or nil otherwise
func (u *Updater) CheckForUpdate(ctx context.Context) (*selfupdate.Release, error) {
	if !isRelease(u.current) {
		return nil, fmt.Errorf("%w (version %q)", ErrDevelopmentBuild, u.current)
	}

	latest, found, err := u.releases.DetectLatest(ctx, selfupdate.ParseSlug(u.settings.Repository))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", u.settings.Repository, err)
	}
	if !found {
		return nil, fmt.Errorf("no releases published in %s", u.settings.Repository)
	}

	// A failed save only means the next run checks again
	u.state.UpdateState.LastCheck = time.Now()
	_ = u.state.Save()

	if latest.LessOrEqual(u.current) || u.state.UpdateState.SkipVersion == latest.Version() {
		return nil, nil
	}
	return latest, nil
}

// PerformUpdate swaps the running executable for release. The old binary is
// kept aside until the new one is in place and restored if the swap fails.
func (u *Updater) PerformUpdate(ctx context.Context, release *selfupdate.Release) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	saved := exe + ".old"
	if err := copyExecutable(exe, saved); err != nil {
		return fmt.Errorf("failed to save current binary: %w", err)
	}
	defer os.Remove(saved)

	if err := selfupdate.UpdateTo(ctx, release.AssetURL, release.AssetName, exe); err != nil {
		if restoreErr := os.Rename(saved, exe); restoreErr != nil {
			return fmt.Errorf("update failed: %w (restoring %s also failed: %v)", err, exe, restoreErr)
		}
		return fmt.Errorf("update failed, previous binary restored: %w", err)
	}
	return nil
}

// SkipVersion stops version from being offered again
func (u *Updater) SkipVersion(version string) error {
	u.state.UpdateState.SkipVersion = version
	return u.state.Save()
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func cleanVersion(version string) string {
	return strings.TrimPrefix(strings.TrimSpace(version), "v")
}

func isRelease(version string) bool {
	_, err := semver.StrictNewVersion(version)
	return err == nil
}
