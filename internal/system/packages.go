package system

import "context"

var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// AptUpdate refreshes the package index
func AptUpdate(ctx context.Context, r Runner) error {
	_, err := r.Run(ctx, Command{Name: "apt-get", Args: []string{"update"}, Env: aptEnv})
	return err
}

// AptInstall installs packages non-interactively. Installed packages are a no-op for apt.
func AptInstall(ctx context.Context, r Runner, packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	args := append([]string{"install", "-y"}, packages...)
	_, err := r.Run(ctx, Command{Name: "apt-get", Args: args, Env: aptEnv})
	return err
}

// Chown recursively hands path to user:group
func Chown(ctx context.Context, r Runner, path, user, group string) error {
	_, err := r.Run(ctx, Command{Name: "chown", Args: []string{"-R", user + ":" + group, path}})
	return err
}

// AsUser wraps a command so it runs as user with env set explicitly,
// since sudo does not carry the caller's environment across.
func AsUser(user string, cmd Command) Command {
	args := []string{"-u", user, "-H", "env"}
	args = append(args, cmd.Env...)
	args = append(args, cmd.Name)
	args = append(args, cmd.Args...)
	return Command{Name: "sudo", Args: args}
}
