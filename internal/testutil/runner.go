package testutil

import (
	"context"
	"strings"
	"sync"

	"hsetup/internal/system"
)

// Handler scripts the outcome of a fake command
type Handler func(cmd system.Command) ([]byte, error)

// FakeRunner records every command and answers from handlers keyed by command
// name. For sudo-wrapped commands the wrapped program's base name is the key.
// Unknown commands succeed with no output.
type FakeRunner struct {
	mu       sync.Mutex
	calls    []system.Command
	handlers map[string]Handler
}

// NewFakeRunner creates an empty FakeRunner
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{handlers: make(map[string]Handler)}
}

// On registers h for commands whose key is name
func (f *FakeRunner) On(name string, h Handler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
	return f
}

// Fail makes every command keyed by name exit with code and output
func (f *FakeRunner) Fail(name string, code int, output string) *FakeRunner {
	return f.On(name, func(cmd system.Command) ([]byte, error) {
		return []byte(output), &system.ExitError{Command: cmd, ExitCode: code, Output: output}
	})
}

// Run implements system.Runner
func (f *FakeRunner) Run(_ context.Context, cmd system.Command) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	h := f.handlers[Key(cmd)]
	f.mu.Unlock()

	if h == nil {
		return nil, nil
	}
	return h(cmd)
}

// Calls returns the recorded commands in order
func (f *FakeRunner) Calls() []system.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]system.Command(nil), f.calls...)
}

// Keys returns Key of every recorded command in order
func (f *FakeRunner) Keys() []string {
	calls := f.Calls()
	keys := make([]string, len(calls))
	for i, c := range calls {
		keys[i] = Key(c)
	}
	return keys
}

// Called reports whether a command keyed by name was run
func (f *FakeRunner) Called(name string) bool {
	for _, k := range f.Keys() {
		if k == name {
			return true
		}
	}
	return false
}

// Key names cmd by its program's base name. Commands built by system.AsUser
// ("sudo -u <user> -H env K=V... <prog> args") are keyed by <prog>.
func Key(cmd system.Command) string {
	name := cmd.Name
	if name == "sudo" && len(cmd.Args) > 4 {
		for _, arg := range cmd.Args[4:] {
			if !strings.Contains(arg, "=") {
				name = arg
				break
			}
		}
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
