package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/metrics"
)

// DefaultCommand opens a reference with the desktop's default handler.
const DefaultCommand = "xdg-open"

// DisabledCommand as the command line turns player handoff off.
const DisabledCommand = "none"

// ErrNoCommand is returned when player handoff is disabled.
var ErrNoCommand = errors.New("player: no command configured")

// Launcher starts playback of ref in an external player.
type Launcher interface {
	Launch(ctx context.Context, ref, contentType string) error
}

// CommandLauncher runs a command line with the reference appended. The
// placeholders {ref} and {type} in the command are replaced when present, in
// which case ref is not appended.
type CommandLauncher struct {
	name string
	args []string

	// start is swapped in tests.
	start func(cmd *exec.Cmd) error
}

// NewCommandLauncher parses a space-separated command line such as
// "mpv --fs" or "vlc {ref}". An empty line selects DefaultCommand and
// DisabledCommand yields a launcher that always fails with ErrNoCommand.
func NewCommandLauncher(commandLine string) *CommandLauncher {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		fields = []string{DefaultCommand}
	}
	if len(fields) == 1 && strings.EqualFold(fields[0], DisabledCommand) {
		return &CommandLauncher{start: startDetached}
	}
	return &CommandLauncher{
		name:  fields[0],
		args:  fields[1:],
		start: startDetached,
	}
}

// Enabled reports whether the launcher runs a command.
func (l *CommandLauncher) Enabled() bool {
	return l.name != ""
}

// Command returns the program name the launcher runs.
func (l *CommandLauncher) Command() string {
	return l.name
}

// Args returns the arguments passed for ref and contentType.
func (l *CommandLauncher) Args(ref, contentType string) []string {
	out := make([]string, 0, len(l.args)+1)
	substituted := false
	for _, a := range l.args {
		if strings.Contains(a, "{ref}") || strings.Contains(a, "{type}") {
			substituted = true
			a = strings.ReplaceAll(a, "{ref}", ref)
			a = strings.ReplaceAll(a, "{type}", contentType)
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, ref)
	}
	return out
}

// Launch starts the player and returns once the process is running. A ctx
// that is already done prevents the start; after that the player outlives
// ctx.
func (l *CommandLauncher) Launch(ctx context.Context, ref, contentType string) error {
	if l.name == "" {
		metrics.PlayerLaunchesTotal.WithLabelValues("error").Inc()
		return ErrNoCommand
	}
	if err := ctx.Err(); err != nil {
		metrics.PlayerLaunchesTotal.WithLabelValues("error").Inc()
		return err
	}

	cmd := exec.Command(l.name, l.Args(ref, contentType)...)
	if err := l.start(cmd); err != nil {
		metrics.PlayerLaunchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("launch %s: %w", l.name, err)
	}

	metrics.PlayerLaunchesTotal.WithLabelValues("success").Inc()
	logging.Info("Handed %s (%s) to %s", ref, contentType, l.name)
	return nil
}

// startDetached starts cmd and reaps it in the background.
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			logging.Debug("Player %s exited: %v", cmd.Path, err)
		}
	}()
	return nil
}
