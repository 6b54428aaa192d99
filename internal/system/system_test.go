package system_test

import (
	"context"
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsetup/internal/system"
	"hsetup/internal/testutil"
)

func noGroup(string) (*user.Group, error) { return nil, user.UnknownGroupError("hadoop") }
func noUser(string) (*user.User, error)   { return nil, user.UnknownUserError("hduser") }

func TestEnsureGroup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		runner   *testutil.FakeRunner
		exists   bool
		wantErr  bool
		wantArgs []string
	}{
		{
			name:     "created",
			runner:   testutil.NewFakeRunner(),
			wantArgs: []string{"hadoop"},
		},
		{
			name:    "exit 9 means already exists",
			runner:  testutil.NewFakeRunner().Fail("groupadd", 9, "groupadd: group 'hadoop' already exists"),
			exists:  true,
			wantErr: true,
		},
		{
			name:    "other failures propagate",
			runner:  testutil.NewFakeRunner().Fail("groupadd", 10, "groupadd: cannot lock /etc/group"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := system.NewAccountsWithLookup(tt.runner, noGroup, noUser)
			err := a.EnsureGroup(context.Background(), "hadoop")

			if !tt.wantErr {
				require.NoError(t, err)
				require.Len(t, tt.runner.Calls(), 1)
				assert.Equal(t, tt.wantArgs, tt.runner.Calls()[0].Args)
				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.exists, system.IsAlreadyExists(err))
		})
	}
}

func TestEnsureUser(t *testing.T) {
	t.Parallel()

	r := testutil.NewFakeRunner()
	a := system.NewAccountsWithLookup(r, noGroup, noUser)

	require.NoError(t, a.EnsureUser(context.Background(), "hduser", "hadoop"))
	require.Len(t, r.Calls(), 1)
	assert.Equal(t, "useradd", r.Calls()[0].Name)
	assert.Equal(t, []string{"-m", "-g", "hadoop", "-s", "/bin/bash", "hduser"}, r.Calls()[0].Args)

	r.Fail("useradd", 1, "useradd: user 'hduser' already exists")
	err := a.EnsureUser(context.Background(), "hduser", "hadoop")
	assert.True(t, system.IsAlreadyExists(err))
}

func TestAccountLookups(t *testing.T) {
	t.Parallel()

	a := system.NewAccountsWithLookup(testutil.NewFakeRunner(),
		func(name string) (*user.Group, error) { return &user.Group{Name: name, Gid: "1001"}, nil },
		func(name string) (*user.User, error) {
			return &user.User{Username: name, Uid: "1002", HomeDir: "/home/" + name}, nil
		},
	)

	assert.True(t, a.GroupExists("hadoop"))
	assert.True(t, a.UserExists("hduser"))

	home, err := a.Home("hduser")
	require.NoError(t, err)
	assert.Equal(t, "/home/hduser", home)

	uid, gid, err := a.IDs("hduser", "hadoop")
	require.NoError(t, err)
	assert.Equal(t, 1002, uid)
	assert.Equal(t, 1001, gid)

	missing := system.NewAccountsWithLookup(testutil.NewFakeRunner(), noGroup, noUser)
	assert.False(t, missing.GroupExists("hadoop"))
	assert.False(t, missing.UserExists("hduser"))
	_, err = missing.Home("hduser")
	assert.Error(t, err)
}

func TestPackageCommands(t *testing.T) {
	t.Parallel()

	r := testutil.NewFakeRunner()
	ctx := context.Background()

	require.NoError(t, system.AptUpdate(ctx, r))
	require.NoError(t, system.AptInstall(ctx, r, "openjdk-8-jdk", "ssh"))
	require.NoError(t, system.AptInstall(ctx, r))
	require.NoError(t, system.Chown(ctx, r, "/usr/local/hadoop", "hduser", "hadoop"))

	calls := r.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "DEBIAN_FRONTEND=noninteractive apt-get update", calls[0].String())
	assert.Equal(t, []string{"install", "-y", "openjdk-8-jdk", "ssh"}, calls[1].Args)
	assert.Equal(t, "chown -R hduser:hadoop /usr/local/hadoop", calls[2].String())
}

func TestAsUser(t *testing.T) {
	t.Parallel()

	cmd := system.AsUser("hduser", system.Command{
		Name: "/usr/local/hadoop/bin/hdfs",
		Args: []string{"namenode", "-format"},
		Env:  []string{"JAVA_HOME=/opt/jdk"},
	})

	assert.Equal(t, "sudo", cmd.Name)
	assert.Equal(t, []string{
		"-u", "hduser", "-H", "env", "JAVA_HOME=/opt/jdk",
		"/usr/local/hadoop/bin/hdfs", "namenode", "-format",
	}, cmd.Args)
	assert.Empty(t, cmd.Env)
	assert.Equal(t, "hdfs", testutil.Key(cmd))
}

func TestExitError(t *testing.T) {
	t.Parallel()

	err := &system.ExitError{
		Command:  system.Command{Name: "hdfs"},
		ExitCode: 1,
		Output:   "line1\nline2\n\nline3\nline4\n",
	}

	assert.Equal(t, "hdfs exited with status 1: line2 | line3 | line4", err.Error())
	assert.Equal(t, 1, system.ExitCode(err))
	assert.Equal(t, -1, system.ExitCode(errors.New("plain")))
}

func TestExecRunner(t *testing.T) {
	t.Parallel()

	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	r := system.NewExecRunner(logger)

	out, err := r.Run(context.Background(), system.Command{
		Name: "/bin/sh",
		Args: []string{"-c", "echo $HSETUP_TEST_VALUE"},
		Env:  []string{"HSETUP_TEST_VALUE=hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	_, err = r.Run(context.Background(), system.Command{Name: "/bin/sh", Args: []string{"-c", "echo nope >&2; exit 3"}})
	var exitErr *system.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Contains(t, exitErr.Output, "nope")

	_, err = r.Run(context.Background(), system.Command{Name: "hsetup-definitely-missing-binary"})
	require.Error(t, err)
	assert.Equal(t, -1, system.ExitCode(err))
}

func TestEnsureSSHKey(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	key, authorized := system.SSHKeyPaths(home)

	r := testutil.NewFakeRunner().On("ssh-keygen", func(system.Command) ([]byte, error) {
		if err := os.WriteFile(key, []byte("PRIVATE"), 0o600); err != nil {
			return nil, err
		}
		return nil, os.WriteFile(key+".pub", []byte("ssh-rsa AAAA hduser@host\n"), 0o644)
	})

	assert.False(t, system.HasSSHKey(home))
	require.NoError(t, system.EnsureSSHKey(context.Background(), r, "hduser", "hadoop", home))
	assert.True(t, system.HasSSHKey(home))

	// Second run neither regenerates nor duplicates the authorization
	require.NoError(t, system.EnsureSSHKey(context.Background(), r, "hduser", "hadoop", home))

	data, err := os.ReadFile(authorized)
	require.NoError(t, err)
	assert.Equal(t, "ssh-rsa AAAA hduser@host\n", string(data))

	assert.Equal(t, []string{"ssh-keygen", "chown", "chown"}, r.Keys())
	assert.Equal(t, filepath.Join(home, ".ssh"), r.Calls()[1].Args[2])
}

func TestPreflight(t *testing.T) {
	t.Parallel()

	root := func() int { return 0 }
	info := func(platform string) func(context.Context) (*host.InfoStat, error) {
		return func(context.Context) (*host.InfoStat, error) {
			return &host.InfoStat{OS: "linux", Platform: platform, PlatformVersion: "22.04"}, nil
		}
	}

	warnings, err := system.NewPreflightWith(root, info("ubuntu")).Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	warnings, err = system.NewPreflightWith(root, info("centos")).Check(context.Background())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "centos")

	_, err = system.NewPreflightWith(func() int { return 1000 }, info("ubuntu")).Check(context.Background())
	assert.ErrorIs(t, err, system.ErrNotRoot)

	darwin := func(context.Context) (*host.InfoStat, error) { return &host.InfoStat{OS: "darwin"}, nil }
	_, err = system.NewPreflightWith(root, darwin).Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported operating system")

	broken := func(context.Context) (*host.InfoStat, error) { return nil, errors.New("no /etc/os-release") }
	warnings, err = system.NewPreflightWith(root, broken).Check(context.Background())
	require.NoError(t, err)
	assert.Len(t, warnings, 1)

	platform, err := system.NewPreflightWith(root, info("ubuntu")).Platform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ubuntu 22.04", platform)
}
