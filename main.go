package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"hsetup/internal/provision"
	"hsetup/internal/theme"
)

// Version is set during build time via ldflags
var Version = "dev"

func main() {
	os.Exit(runSafely(os.Args[1:], run, os.Stderr))
}

// runSafely turns a panic anywhere in the command tree into exit status 1
func runSafely(args []string, runner func([]string) int, errWriter io.Writer) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(errWriter, theme.ErrorMessage(fmt.Sprintf("panic recovered: %v\n%s", r, debug.Stack())))
			exitCode = 1
		}
	}()

	return runner(args)
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}

	reportError(root.ErrOrStderr(), err)
	return 1
}

// reportError prints the diagnostic for a failed command. A step failure names
// the step; anything else is printed as is.
func reportError(w io.Writer, err error) {
	var stepErr *provision.StepError
	if errors.As(err, &stepErr) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, theme.ErrorBox.Render(theme.ErrorMessage(stepErr.Error())))
		fmt.Fprintln(w, theme.Faint.Render("The host is partially provisioned. Fix the cause and re-run; completed steps are skipped."))
		return
	}
	fmt.Fprintln(w, theme.ErrorMessage(err.Error()))
}
