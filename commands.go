package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"hsetup/internal/config"
	"hsetup/internal/env"
	"hsetup/internal/installer"
	"hsetup/internal/java"
	"hsetup/internal/logging"
	"hsetup/internal/provision"
	"hsetup/internal/recipe"
	"hsetup/internal/system"
	"hsetup/internal/target"
	"hsetup/internal/templater"
	"hsetup/internal/theme"
	"hsetup/internal/updater"
)

// app carries what every command needs once flags are parsed
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "hsetup",
		Short:         "Provision a single-node Hadoop installation on Ubuntu",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default: hsetup.yaml in ~/.config/hsetup or /etc/hsetup)")
	flags.String("hadoop-version", config.DefaultVersion, "platform release to install")
	flags.String("install-dir", config.DefaultInstallDir, "installation directory")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-output", "file", "log output (file, stderr, stdout)")
	mustBind(a.v, "hadoop.version", flags.Lookup("hadoop-version"))
	mustBind(a.v, "hadoop.install_dir", flags.Lookup("install-dir"))
	mustBind(a.v, "log.level", flags.Lookup("log-level"))
	mustBind(a.v, "log.output", flags.Lookup("log-output"))

	root.AddCommand(
		newInstallCmd(a),
		newPlanCmd(a),
		newRenderCmd(a),
		newEnvCmd(a),
		newDoctorCmd(a),
		newUpdateCmd(a),
	)

	return root
}

func newInstallCmd(a *app) *cobra.Command {
	var opts recipe.Options
	var yes bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Run the full provisioning sequence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.install(ctx, cmd, opts, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.SkipPackages, "skip-packages", false, "do not run apt-get (Java must already be installed)")
	cmd.Flags().BoolVar(&opts.SkipSSH, "skip-ssh", false, "do not set up passwordless ssh")
	cmd.Flags().BoolVar(&opts.Start, "start", false, "start HDFS and YARN after installing")

	return cmd
}

func (a *app) install(ctx context.Context, cmd *cobra.Command, opts recipe.Options, yes bool) error {
	out := cmd.OutOrStdout()
	interactive := isTerminal()

	log, err := logging.New(a.cfg.Log)
	if err != nil {
		return err
	}

	title := theme.Title.Padding(0, 2).Render("Hadoop " + a.cfg.Hadoop.Version + " single-node setup")
	fmt.Fprintln(out, theme.TitleBox.Render(title))
	fmt.Fprintln(out)

	if interactive && !yes {
		confirmed, err := confirmAction(
			fmt.Sprintf("Install Hadoop %s?", a.cfg.Hadoop.Version),
			fmt.Sprintf("Path: %s\nUser: %s:%s", a.cfg.Hadoop.InstallDir, a.cfg.Account.User, a.cfg.Account.Group),
		)
		if err != nil || !confirmed {
			fmt.Fprintln(out, theme.WarningMessage("Operation cancelled."))
			return nil
		}
	}

	rec := recipe.New(a.cfg, a.deps(out, log, interactive), opts)

	log.WithFields(logrus.Fields{
		"version":     a.cfg.Hadoop.Version,
		"install_dir": a.cfg.Hadoop.InstallDir,
		"config":      a.cfg.ConfigFileUsed(),
	}).Info("provisioning started")

	start := time.Now()
	results, err := provision.New(out, log).Run(ctx, rec.Steps())
	if err != nil {
		return err
	}

	t := rec.Target()
	a.recordInstall(out, t)
	log.WithField("duration", time.Since(start).Round(time.Second).String()).Info("provisioning finished")

	counts := provision.Summarize(results)
	fmt.Fprintln(out)
	fmt.Fprintln(out, theme.SuccessBox.Render(theme.SuccessStyle.Render("✓ Installation Complete!")))
	fmt.Fprintf(out, "%s %d done, %d already satisfied, %d tolerated\n",
		theme.LabelStyle.Render("Steps:"),
		counts[provision.StatusDone], counts[provision.StatusSkipped], counts[provision.StatusTolerated])
	fmt.Fprintf(out, "%s %s\n", theme.LabelStyle.Render("HADOOP_HOME:"), theme.PathStyle.Render(t.InstallDir))
	fmt.Fprintln(out)
	fmt.Fprintln(out, theme.Subtitle.Render("Next steps:"))
	fmt.Fprintf(out, "  %s %s\n", theme.StepStyle.Render("1."), theme.Code.Render("sudo -iu "+t.User))
	fmt.Fprintf(out, "  %s %s\n", theme.StepStyle.Render("2."), theme.Code.Render("start-dfs.sh && start-yarn.sh"))

	a.checkForUpdate(ctx, out)
	return nil
}

func (a *app) deps(out io.Writer, log logrus.FieldLogger, interactive bool) recipe.Deps {
	runner := system.NewExecRunner(log)
	return recipe.Deps{
		Runner:    runner,
		Accounts:  system.NewAccounts(runner),
		Preflight: system.NewPreflight(),
		Detector:  java.NewDetector(),
		Installer: installer.NewInstaller(installer.NewDownloader(interactive), out, interactive),
		Out:       out,
		Log:       log,
	}
}

// recordInstall notes a finished install in the state file; failures only warn
func (a *app) recordInstall(out io.Writer, t *target.InstallationTarget) {
	st, err := config.LoadState()
	if err != nil {
		fmt.Fprintln(out, theme.WarningMessage("Failed to load state: "+err.Error()))
		return
	}
	st.AddInstall(config.InstallRecord{
		Version:     t.Version,
		Path:        t.InstallDir,
		JavaHome:    t.JavaHome,
		User:        t.User,
		InstalledAt: time.Now().Format(time.RFC3339),
	})
	if err := st.Save(); err != nil {
		fmt.Fprintln(out, theme.WarningMessage("Failed to save state: "+err.Error()))
	}
}

func newPlanCmd(a *app) *cobra.Command {
	var opts recipe.Options

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List the provisioning steps without running them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			rec := recipe.New(a.cfg, recipe.Deps{Out: out, Log: logging.Discard()}, opts)

			fmt.Fprintln(out, theme.Title.Render("Provisioning plan"))
			fmt.Fprintln(out)
			provision.New(out, logging.Discard()).Plan(rec.Steps())
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.SkipPackages, "skip-packages", false, "omit apt-get steps")
	cmd.Flags().BoolVar(&opts.SkipSSH, "skip-ssh", false, "omit ssh setup")
	cmd.Flags().BoolVar(&opts.Start, "start", false, "include daemon start steps")

	return cmd
}

func newRenderCmd(a *app) *cobra.Command {
	var outDir, javaHome string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the site configuration files only",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			t, err := a.resolveTarget(javaHome)
			if err != nil {
				return err
			}

			files, err := templater.Render(t)
			if err != nil {
				return err
			}

			if outDir == "" {
				for _, f := range files {
					fmt.Fprintln(out, theme.Subtitle.Render("# "+f.Path))
					fmt.Fprintln(out, string(f.Content))
				}
				return nil
			}

			for i := range files {
				files[i].Path = filepath.Join(outDir, files[i].Name)
			}
			if err := templater.Write(files); err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(out, theme.SuccessMessage("Wrote "+f.Path))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write files into this directory instead of printing them")
	cmd.Flags().StringVar(&javaHome, "java-home", "", "Java home to template (default: detected)")

	return cmd
}

func newEnvCmd(a *app) *cobra.Command {
	var javaHome string

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the shell profile block install writes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.resolveTarget(javaHome)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), env.Block(env.Exports(t)))
			return nil
		},
	}

	cmd.Flags().StringVar(&javaHome, "java-home", "", "Java home to export (default: detected)")

	return cmd
}

// resolveTarget resolves the target using an explicit Java home, the
// configured one, or detection, in that order
func (a *app) resolveTarget(javaHome string) (*target.InstallationTarget, error) {
	if javaHome == "" {
		javaHome = a.cfg.Java.Home
	}
	if javaHome == "" {
		home, err := java.NewDetector().JavaHome()
		if err != nil {
			return nil, fmt.Errorf("%w (install Java or pass --java-home)", err)
		}
		javaHome = home
	}
	return target.Resolve(a.cfg, javaHome)
}

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the host and any existing installation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues := a.doctor(cmd)
			if issues > 0 {
				return fmt.Errorf("%d issue(s) found", issues)
			}
			return nil
		},
	}
}

func (a *app) doctor(cmd *cobra.Command) int {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	issues := 0

	fmt.Fprintln(out, theme.Title.Render("hsetup - System Diagnostics"))
	fmt.Fprintln(out)

	pre := system.NewPreflight()

	fmt.Fprintln(out, theme.LabelStyle.Render("Checking host..."))
	if platform, err := pre.Platform(ctx); err != nil {
		fmt.Fprintln(out, "  "+theme.WarningMessage(err.Error()))
	} else {
		fmt.Fprintln(out, "  "+theme.InfoMessage("Platform: "+platform))
	}
	if pre.IsRoot() {
		fmt.Fprintln(out, "  "+theme.SuccessMessage("Running as root"))
	} else {
		fmt.Fprintln(out, "  "+theme.WarningMessage("Not running as root; install needs sudo"))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, theme.LabelStyle.Render("Checking Java..."))
	detector := java.NewDetector()
	javaHome, err := detector.JavaHome()
	if err != nil {
		fmt.Fprintln(out, "  "+theme.ErrorMessage(err.Error()))
		issues++
	} else {
		v := detector.Version(ctx, javaHome)
		fmt.Fprintf(out, "  %s %s (%s)\n", theme.SuccessMessage("JAVA_HOME resolves to"),
			theme.PathStyle.Render(javaHome), theme.CurrentStyle.Render(v.Version))
		if v.Major() != "8" && v.Major() != "7" {
			fmt.Fprintln(out, "  "+theme.WarningMessage("Hadoop 2.x is tested on Java 7 and 8"))
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, theme.LabelStyle.Render("Checking installation..."))
	if javaHome == "" {
		javaHome = a.cfg.Java.Home
	}
	t, err := target.Resolve(a.cfg, javaHome)
	if err != nil {
		fmt.Fprintln(out, "  "+theme.ErrorMessage(err.Error()))
		return issues + 1
	}

	if installer.IsInstalled(t) {
		fmt.Fprintf(out, "  %s %s\n", theme.SuccessMessage("Release present at"), theme.PathStyle.Render(t.InstallDir))
	} else {
		fmt.Fprintf(out, "  %s %s\n", theme.InfoMessage("No release at"), theme.PathStyle.Render(t.InstallDir))
	}

	for _, name := range templater.Documents {
		path := filepath.Join(t.ConfigDir, name)
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintln(out, "  "+theme.SuccessMessage(name+" present"))
		} else if installer.IsInstalled(t) {
			fmt.Fprintln(out, "  "+theme.ErrorMessage(name+" missing"))
			issues++
		}
	}

	if _, err := os.Stat(filepath.Join(t.NameNodeDir, "current", "VERSION")); err == nil {
		fmt.Fprintln(out, "  "+theme.SuccessMessage("Namenode formatted"))
	} else if installer.IsInstalled(t) {
		fmt.Fprintln(out, "  "+theme.WarningMessage("Namenode not formatted"))
	}

	if st, err := config.LoadState(); err == nil {
		if rec := st.GetInstall(t.InstallDir); rec != nil {
			fmt.Fprintf(out, "  %s %s on %s\n", theme.InfoMessage("Installed by hsetup:"),
				theme.CurrentStyle.Render(rec.Version), rec.InstalledAt)
		}
	}
	fmt.Fprintln(out)

	if issues == 0 {
		fmt.Fprintln(out, theme.SuccessMessage("No issues found"))
	}
	return issues
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update hsetup to the latest release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.update(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) update(ctx context.Context, out io.Writer) error {
	if !a.cfg.Update.Enabled {
		fmt.Fprintln(out, theme.WarningMessage("Updates are disabled in configuration."))
		fmt.Fprintln(out, theme.Faint.Render("To enable, set update.enabled to true in hsetup.yaml"))
		return nil
	}

	st, err := config.LoadState()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	upd, err := updater.NewUpdater(a.cfg.Update, st, Version)
	if err != nil {
		return err
	}

	updater.ShowCheckingForUpdates(out)

	ctx, cancel := context.WithTimeout(ctx, updater.UpdateTimeout)
	defer cancel()

	release, err := upd.CheckForUpdate(ctx)
	if err != nil {
		return fmt.Errorf("update check failed: %w", err)
	}

	if release == nil {
		updater.ShowAlreadyUpToDate(out, Version)
		return nil
	}

	if !isTerminal() {
		updater.ShowUpdateNotification(out, Version, release.Version())
		return nil
	}

	action, err := upd.PromptForUpdate(out, release)
	if err != nil {
		fmt.Fprintln(out, theme.WarningMessage("Update cancelled."))
		return nil
	}

	switch action {
	case updater.ActionUpdate:
	case updater.ActionSkip:
		fmt.Fprintln(out, theme.InfoMessage(fmt.Sprintf("Skipped version %s", release.Version())))
		return nil
	default:
		fmt.Fprintln(out, theme.InfoMessage("Update postponed"))
		return nil
	}

	updater.ShowDownloadingUpdate(out, release.Version())
	if err := upd.PerformUpdate(ctx, release); err != nil {
		return err
	}

	updater.ShowUpdateSuccess(out, release.Version())
	return nil
}

// confirmAction shows a confirmation prompt
func confirmAction(title, description string) (bool, error) {
	var confirmed bool

	err := huh.NewConfirm().
		Title(theme.Subtitle.Render(title)).
		Description(theme.Faint.Render(description)).
		Affirmative(theme.SuccessStyle.Render("Yes")).
		Negative(theme.ErrorStyle.Render("No")).
		Value(&confirmed).
		Run()

	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return confirmed, err
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// checkForUpdate prints a one-line notice when a newer hsetup is published.
// Errors are ignored; this never affects the command's outcome.
func (a *app) checkForUpdate(ctx context.Context, out io.Writer) {
	st, err := config.LoadState()
	if err != nil {
		return
	}

	upd, err := updater.NewUpdater(a.cfg.Update, st, Version)
	if err != nil || !upd.ShouldCheckForUpdate() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	release, err := upd.CheckForUpdate(ctx)
	if err != nil || release == nil {
		return
	}

	updater.ShowUpdateNotification(out, Version, release.Version())
}
