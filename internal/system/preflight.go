package system

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"golang.org/x/sys/unix"
)

// ErrNotRoot is returned when provisioning runs without root privileges
var ErrNotRoot = errors.New("root privileges required (run with sudo)")

// Preflight checks the host before anything is changed
type Preflight struct {
	euid     func() int
	hostInfo func(ctx context.Context) (*host.InfoStat, error)
}

// NewPreflight creates a Preflight against the running host
func NewPreflight() *Preflight {
	return &Preflight{
		euid:     unix.Geteuid,
		hostInfo: host.InfoWithContext,
	}
}

// NewPreflightWith creates a Preflight with custom host probes
func NewPreflightWith(euid func() int, hostInfo func(ctx context.Context) (*host.InfoStat, error)) *Preflight {
	return &Preflight{euid: euid, hostInfo: hostInfo}
}

// IsRoot reports whether the effective user is root
func (p *Preflight) IsRoot() bool {
	return p.euid() == 0
}

// Platform returns a short description of the host OS
func (p *Preflight) Platform(ctx context.Context) (string, error) {
	info, err := p.hostInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read host info: %w", err)
	}
	return strings.TrimSpace(info.Platform + " " + info.PlatformVersion), nil
}

// Check fails when not root and returns warnings for conditions that may
// still work, such as a non-Ubuntu distribution.
func (p *Preflight) Check(ctx context.Context) ([]string, error) {
	if !p.IsRoot() {
		return nil, ErrNotRoot
	}

	var warnings []string

	info, err := p.hostInfo(ctx)
	switch {
	case err != nil:
		warnings = append(warnings, fmt.Sprintf("could not determine host platform: %v", err))
	case info.OS != "linux":
		return nil, fmt.Errorf("unsupported operating system: %s", info.OS)
	case !strings.EqualFold(info.Platform, "ubuntu"):
		warnings = append(warnings, fmt.Sprintf("untested platform %s %s, expected ubuntu", info.Platform, info.PlatformVersion))
	}

	return warnings, nil
}
