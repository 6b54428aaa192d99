package system

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"strings"
)

// ErrAlreadyExists marks a failure that only means the work was done before
var ErrAlreadyExists = errors.New("already exists")

// exitNameInUse is the groupadd/useradd status for "name already in use"
const exitNameInUse = 9

// IsAlreadyExists reports whether err is a benign "already exists" failure
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// Accounts creates the service group and user
type Accounts struct {
	runner      Runner
	lookupGroup func(string) (*user.Group, error)
	lookupUser  func(string) (*user.User, error)
}

// NewAccounts creates an Accounts using the host's account database
func NewAccounts(runner Runner) *Accounts {
	return &Accounts{
		runner:      runner,
		lookupGroup: user.LookupGroup,
		lookupUser:  user.Lookup,
	}
}

// NewAccountsWithLookup creates an Accounts with custom account lookups
func NewAccountsWithLookup(runner Runner, lookupGroup func(string) (*user.Group, error), lookupUser func(string) (*user.User, error)) *Accounts {
	return &Accounts{
		runner:      runner,
		lookupGroup: lookupGroup,
		lookupUser:  lookupUser,
	}
}

// GroupExists reports whether the group is known to the host
func (a *Accounts) GroupExists(name string) bool {
	_, err := a.lookupGroup(name)
	return err == nil
}

// UserExists reports whether the user is known to the host
func (a *Accounts) UserExists(name string) bool {
	_, err := a.lookupUser(name)
	return err == nil
}

// EnsureGroup creates a system group. An existing group yields ErrAlreadyExists.
func (a *Accounts) EnsureGroup(ctx context.Context, name string) error {
	_, err := a.runner.Run(ctx, Command{Name: "groupadd", Args: []string{name}})
	return classifyAccountError(err, "group", name)
}

// EnsureUser creates a login user in group with a home directory.
// An existing user yields ErrAlreadyExists.
func (a *Accounts) EnsureUser(ctx context.Context, name, group string) error {
	_, err := a.runner.Run(ctx, Command{
		Name: "useradd",
		Args: []string{"-m", "-g", group, "-s", "/bin/bash", name},
	})
	return classifyAccountError(err, "user", name)
}

// Home returns the home directory of the named user
func (a *Accounts) Home(name string) (string, error) {
	u, err := a.lookupUser(name)
	if err != nil {
		return "", fmt.Errorf("failed to look up user %s: %w", name, err)
	}
	return u.HomeDir, nil
}

// IDs returns the numeric uid and gid of the named user and group
func (a *Accounts) IDs(userName, groupName string) (int, int, error) {
	u, err := a.lookupUser(userName)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to look up user %s: %w", userName, err)
	}
	g, err := a.lookupGroup(groupName)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to look up group %s: %w", groupName, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid gid %q: %w", g.Gid, err)
	}
	return uid, gid, nil
}

func classifyAccountError(err error, kind, name string) error {
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode == exitNameInUse || strings.Contains(exitErr.Output, "already exists") {
			return fmt.Errorf("%s %s: %w", kind, name, ErrAlreadyExists)
		}
	}
	return fmt.Errorf("failed to create %s %s: %w", kind, name, err)
}
