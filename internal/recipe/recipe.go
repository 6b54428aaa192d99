// Package recipe assembles the single-node install sequence.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"hsetup/internal/config"
	"hsetup/internal/env"
	"hsetup/internal/installer"
	"hsetup/internal/java"
	"hsetup/internal/provision"
	"hsetup/internal/system"
	"hsetup/internal/target"
	"hsetup/internal/templater"
	"hsetup/internal/theme"
)

// ErrTargetUnresolved is returned by steps that run before Java detection
var ErrTargetUnresolved = errors.New("installation target not resolved")

// Options select the optional parts of the sequence
type Options struct {
	SkipPackages bool // Do not run apt-get
	SkipSSH      bool // Do not set up passwordless SSH
	Start        bool // Run start-dfs.sh and start-yarn.sh at the end
}

// Deps are the collaborators the steps drive
type Deps struct {
	Runner    system.Runner
	Accounts  *system.Accounts
	Preflight *system.Preflight
	Detector  *java.Detector
	Installer *installer.Installer
	Out       io.Writer
	Log       logrus.FieldLogger
}

// Recipe builds install steps for one configuration. The target is resolved
// by the Java detection step and read by every later step.
type Recipe struct {
	cfg    *config.Config
	deps   Deps
	opts   Options
	target *target.InstallationTarget
}

// New creates a Recipe
func New(cfg *config.Config, deps Deps, opts Options) *Recipe {
	return &Recipe{cfg: cfg, deps: deps, opts: opts}
}

// Target returns the resolved target, or nil before Java detection ran
func (r *Recipe) Target() *target.InstallationTarget {
	return r.target
}

// Steps returns the install sequence
func (r *Recipe) Steps() []provision.Step {
	steps := []provision.Step{r.preflightStep()}

	if !r.opts.SkipPackages {
		steps = append(steps, r.aptUpdateStep(), r.aptInstallStep())
	}

	steps = append(steps,
		r.detectJavaStep(),
		r.groupStep(),
		r.userStep(),
	)

	if r.cfg.SSH.Enabled && !r.opts.SkipSSH {
		steps = append(steps, r.sshStep())
	}

	steps = append(steps,
		r.downloadStep(),
		r.extractStep(),
		r.renderStep(),
		r.pinJavaHomeStep(),
		r.chownStep("set installation ownership", func(t *target.InstallationTarget) string { return t.InstallDir }),
		r.dataDirsStep(),
		r.chownStep("set data directory ownership", func(t *target.InstallationTarget) string { return t.DataDir }),
		r.profileStep(),
		r.formatStep(),
		r.versionStep(),
	)

	if r.opts.Start {
		steps = append(steps,
			r.platformStep("start HDFS daemons", "start-dfs.sh"),
			r.platformStep("start YARN daemons", "start-yarn.sh"),
		)
	}

	return steps
}

// withTarget adapts a target-dependent action so it fails cleanly when
// detection has not run yet
func (r *Recipe) withTarget(fn func(ctx context.Context, t *target.InstallationTarget) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if r.target == nil {
			return ErrTargetUnresolved
		}
		return fn(ctx, r.target)
	}
}

func (r *Recipe) checkTarget(fn func(t *target.InstallationTarget) bool) func(context.Context) (bool, error) {
	return func(context.Context) (bool, error) {
		if r.target == nil {
			return false, ErrTargetUnresolved
		}
		return fn(r.target), nil
	}
}

func (r *Recipe) preflightStep() provision.Step {
	return provision.Step{
		Name: "check host",
		Action: func(ctx context.Context) error {
			warnings, err := r.deps.Preflight.Check(ctx)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				r.deps.Log.Warn(w)
				fmt.Fprintln(r.deps.Out, "  "+theme.WarningMessage(w))
			}
			return nil
		},
		Describe: func() string { return "require root, expect ubuntu" },
	}
}

func (r *Recipe) aptUpdateStep() provision.Step {
	return provision.Step{
		Name: "refresh package index",
		Action: func(ctx context.Context) error {
			return system.AptUpdate(ctx, r.deps.Runner)
		},
		Describe: func() string { return "apt-get update" },
	}
}

func (r *Recipe) aptInstallStep() provision.Step {
	return provision.Step{
		Name: "install packages",
		Action: func(ctx context.Context) error {
			return system.AptInstall(ctx, r.deps.Runner, r.cfg.Apt.Packages...)
		},
		Describe: func() string { return "apt-get install -y " + strings.Join(r.cfg.Apt.Packages, " ") },
	}
}

func (r *Recipe) detectJavaStep() provision.Step {
	return provision.Step{
		Name: "detect java home",
		Action: func(ctx context.Context) error {
			javaHome := r.cfg.Java.Home
			if javaHome == "" {
				home, err := r.deps.Detector.JavaHome()
				if err != nil {
					return err
				}
				javaHome = home
			} else if !java.IsValidJavaPath(javaHome) {
				return fmt.Errorf("%w: java.home %s has no bin/java", java.ErrJavaNotFound, javaHome)
			}

			t, err := target.Resolve(r.cfg, javaHome)
			if err != nil {
				return err
			}
			r.target = t

			v := r.deps.Detector.Version(ctx, javaHome)
			r.deps.Log.WithFields(logrus.Fields{"java_home": javaHome, "java_version": v.Version}).Info("resolved java")
			fmt.Fprintf(r.deps.Out, "  %s %s (%s)\n", theme.LabelStyle.Render("JAVA_HOME:"),
				theme.PathStyle.Render(javaHome), v.Version)
			return nil
		},
		Describe: func() string { return "readlink -f $(which java), strip bin/java" },
	}
}

func (r *Recipe) groupStep() provision.Step {
	group := r.cfg.Account.Group
	return provision.Step{
		Name: "create group " + group,
		Satisfied: func(context.Context) (bool, error) {
			return r.deps.Accounts.GroupExists(group), nil
		},
		Action: func(ctx context.Context) error {
			return r.deps.Accounts.EnsureGroup(ctx, group)
		},
		Tolerate: system.IsAlreadyExists,
		Describe: func() string { return "groupadd " + group },
	}
}

func (r *Recipe) userStep() provision.Step {
	user, group := r.cfg.Account.User, r.cfg.Account.Group
	return provision.Step{
		Name: "create user " + user,
		Satisfied: func(context.Context) (bool, error) {
			return r.deps.Accounts.UserExists(user), nil
		},
		Action: func(ctx context.Context) error {
			return r.deps.Accounts.EnsureUser(ctx, user, group)
		},
		Tolerate: system.IsAlreadyExists,
		Describe: func() string { return "useradd -m -g " + group + " -s /bin/bash " + user },
	}
}

func (r *Recipe) sshStep() provision.Step {
	user, group := r.cfg.Account.User, r.cfg.Account.Group
	return provision.Step{
		Name: "set up passwordless ssh",
		Satisfied: func(context.Context) (bool, error) {
			home, err := r.deps.Accounts.Home(user)
			if err != nil {
				return false, err
			}
			return system.HasSSHKey(home), nil
		},
		Action: func(ctx context.Context) error {
			home, err := r.deps.Accounts.Home(user)
			if err != nil {
				return err
			}
			return system.EnsureSSHKey(ctx, r.deps.Runner, user, group, home)
		},
		Describe: func() string { return `ssh-keygen -t rsa -P "" -f ~` + user + "/.ssh/id_rsa" },
	}
}

func (r *Recipe) downloadStep() provision.Step {
	return provision.Step{
		Name: "download release",
		Satisfied: r.checkTarget(func(t *target.InstallationTarget) bool {
			return installer.IsInstalled(t) || installer.HasArchive(t)
		}),
		Action: r.withTarget(func(ctx context.Context, t *target.InstallationTarget) error {
			return r.deps.Installer.Fetch(ctx, t)
		}),
		Describe: func() string { return "download hadoop " + r.cfg.Hadoop.Version },
	}
}

func (r *Recipe) extractStep() provision.Step {
	return provision.Step{
		Name:      "unpack release",
		Satisfied: r.checkTarget(installer.IsInstalled),
		Action: r.withTarget(func(ctx context.Context, t *target.InstallationTarget) error {
			return r.deps.Installer.Unpack(ctx, t)
		}),
		Describe: func() string { return "tar -xzf into " + r.cfg.Hadoop.InstallDir },
	}
}

func (r *Recipe) renderStep() provision.Step {
	return provision.Step{
		Name: "write site configuration",
		Action: r.withTarget(func(_ context.Context, t *target.InstallationTarget) error {
			files, err := templater.Render(t)
			if err != nil {
				return err
			}
			if err := templater.Write(files); err != nil {
				return err
			}
			for _, f := range files {
				r.deps.Log.WithField("path", f.Path).Info("wrote config file")
			}
			return nil
		}),
		Describe: func() string { return strings.Join(templater.Documents, ", ") },
	}
}

func (r *Recipe) pinJavaHomeStep() provision.Step {
	return provision.Step{
		Name: "pin JAVA_HOME in hadoop-env.sh",
		Action: r.withTarget(func(_ context.Context, t *target.InstallationTarget) error {
			return templater.PinJavaHome(filepath.Join(t.ConfigDir, "hadoop-env.sh"), t.JavaHome)
		}),
	}
}

func (r *Recipe) chownStep(name string, path func(t *target.InstallationTarget) string) provision.Step {
	return provision.Step{
		Name: name,
		Action: r.withTarget(func(ctx context.Context, t *target.InstallationTarget) error {
			return system.Chown(ctx, r.deps.Runner, path(t), t.User, t.Group)
		}),
		Describe: func() string { return "chown -R " + r.cfg.Account.User + ":" + r.cfg.Account.Group },
	}
}

func (r *Recipe) dataDirsStep() provision.Step {
	return provision.Step{
		Name: "create data directories",
		Satisfied: r.checkTarget(func(t *target.InstallationTarget) bool {
			return isDir(t.NameNodeDir) && isDir(t.DataNodeDir)
		}),
		Action: r.withTarget(func(_ context.Context, t *target.InstallationTarget) error {
			for _, dir := range []string{t.NameNodeDir, t.DataNodeDir} {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}
			return nil
		}),
		Describe: func() string { return "namenode, datanode" },
	}
}

func (r *Recipe) profileStep() provision.Step {
	return provision.Step{
		Name: "export environment",
		Satisfied: r.checkTarget(func(t *target.InstallationTarget) bool {
			path, err := r.profilePath()
			if err != nil {
				return false
			}
			return env.HasBlock(path, env.Block(env.Exports(t)))
		}),
		Action: r.withTarget(func(_ context.Context, t *target.InstallationTarget) error {
			path, err := r.profilePath()
			if err != nil {
				return err
			}

			created, err := env.UpdateProfile(path, env.Block(env.Exports(t)))
			if err != nil {
				return err
			}
			if created {
				uid, gid, err := r.deps.Accounts.IDs(t.User, t.Group)
				if err != nil {
					return err
				}
				if err := os.Chown(path, uid, gid); err != nil {
					return fmt.Errorf("failed to chown %s: %w", path, err)
				}
			}
			r.deps.Log.WithField("path", path).Info("exported environment")
			return nil
		}),
		Describe: func() string { return "JAVA_HOME, HADOOP_HOME, HADOOP_CONF_DIR, PATH" },
	}
}

// profilePath returns the shell profile receiving the exports
func (r *Recipe) profilePath() (string, error) {
	if r.cfg.Profile.Path != "" {
		return r.cfg.Profile.Path, nil
	}
	home, err := r.deps.Accounts.Home(r.cfg.Account.User)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bashrc"), nil
}

func (r *Recipe) formatStep() provision.Step {
	return provision.Step{
		Name: "format namenode",
		Satisfied: r.checkTarget(func(t *target.InstallationTarget) bool {
			_, err := os.Stat(filepath.Join(t.NameNodeDir, "current", "VERSION"))
			return err == nil
		}),
		Action: r.withTarget(func(ctx context.Context, t *target.InstallationTarget) error {
			cmd := system.AsUser(t.User, system.Command{
				Name: t.Bin("hdfs"),
				Args: []string{"namenode", "-format", "-nonInteractive"},
				Env:  t.Env(),
			})
			_, err := r.deps.Runner.Run(ctx, cmd)
			return err
		}),
		Describe: func() string { return "hdfs namenode -format -nonInteractive" },
	}
}

func (r *Recipe) versionStep() provision.Step {
	return provision.Step{
		Name: "verify installation",
		Action: r.withTarget(func(ctx context.Context, t *target.InstallationTarget) error {
			out, err := r.deps.Runner.Run(ctx, system.AsUser(t.User, system.Command{
				Name: t.Bin("hadoop"),
				Args: []string{"version"},
				Env:  t.Env(),
			}))
			if err != nil {
				return err
			}
			if first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n"); first != "" {
				fmt.Fprintln(r.deps.Out, "  "+theme.Faint.Render(first))
			}
			return nil
		}),
		Describe: func() string { return "hadoop version" },
	}
}

func (r *Recipe) platformStep(name, script string) provision.Step {
	return provision.Step{
		Name: name,
		Action: r.withTarget(func(ctx context.Context, t *target.InstallationTarget) error {
			_, err := r.deps.Runner.Run(ctx, system.AsUser(t.User, system.Command{
				Name: t.Sbin(script),
				Env:  t.Env(),
			}))
			return err
		}),
		Describe: func() string { return script },
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
