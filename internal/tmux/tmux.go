// Package tmux wraps the tmux commands agentwatch needs to observe agents.
//
// Agents run in tmux sessions that agentwatch never creates or controls. The
// package only reads from them: capturing the visible pane plus scrollback,
// checking that a session still exists, and listing sessions for discovery.
//
// Sessions may live on a named server (tmux -L <socket>). An empty socket
// name targets the user's default server.
package tmux

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/agentwatch/internal/errors"
)

// DefaultCommandTimeout bounds every tmux invocation.
const DefaultCommandTimeout = 5 * time.Second

// Target identifies an agent's pane: a session (or session:window.pane, or
// %pane id) on a tmux server.
type Target struct {
	Socket  string
	Session string
}

// String returns the target in socket/session form for logs.
func (t Target) String() string {
	if t.Socket == "" {
		return t.Session
	}
	return t.Socket + "/" + t.Session
}

// commandContext creates a context-aware exec.Cmd for tmux.
// An empty socket uses the default tmux server.
func commandContext(ctx context.Context, socket string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "tmux", commandArgs(socket, args...)...)
}

// commandArgs returns tmux arguments with the socket flag prepended.
func commandArgs(socket string, args ...string) []string {
	return append(socketArgs(socket), args...)
}

// socketArgs returns the socket arguments [-L, socket], or nothing
// for the default server.
func socketArgs(socket string) []string {
	if socket == "" {
		return []string{}
	}
	return []string{"-L", socket}
}

// captureArgs builds the capture-pane arguments for the last n lines of a
// pane. -J joins wrapped lines so a long question is one logical line.
func captureArgs(session string, lines int) []string {
	return []string{"capture-pane", "-p", "-J", "-S", "-" + strconv.Itoa(lines), "-t", session}
}

// Runner executes one tmux command and returns its stdout.
type Runner func(ctx context.Context, socket string, args ...string) ([]byte, error)

// ExecRunner runs the real tmux binary.
func ExecRunner(ctx context.Context, socket string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := commandContext(ctx, socket, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, errors.Wrap(err, msg)
		}
		return out, err
	}
	return out, nil
}

// Backend reads agent panes through tmux.
type Backend struct {
	run     Runner
	timeout time.Duration
}

// Option configures a Backend.
type Option func(*Backend)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(b *Backend) { b.run = r }
}

// WithTimeout sets the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) { b.timeout = d }
}

// NewBackend creates a Backend that shells out to tmux.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{run: ExecRunner, timeout: DefaultCommandTimeout}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CaptureSnapshot returns the last lines of the target pane with trailing
// blank lines removed.
func (b *Backend) CaptureSnapshot(ctx context.Context, target Target, lines int) (string, error) {
	if lines <= 0 {
		lines = 1
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	out, err := b.run(ctx, target.Socket, captureArgs(target.Session, lines)...)
	if err != nil {
		cause := errors.Join(errors.ErrCaptureFailed, err)
		if isNoSession(err) {
			cause = errors.Join(errors.ErrSessionNotFound, cause)
		}
		return "", errors.NewAgentError("capture-pane failed", cause).WithSession(target.String())
	}
	return strings.TrimRight(string(out), " \t\r\n"), nil
}

// SessionAlive reports whether the target's session exists.
func (b *Backend) SessionAlive(ctx context.Context, target Target) bool {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	_, err := b.run(ctx, target.Socket, "has-session", "-t", sessionName(target.Session))
	return err == nil
}

// ListSessions returns the session names on the given server. A server that
// is not running has no sessions and is not an error.
func (b *Backend) ListSessions(ctx context.Context, socket string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	out, err := b.run(ctx, socket, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if isNoServer(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "list-sessions")
	}

	var sessions []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			sessions = append(sessions, name)
		}
	}
	return sessions, scanner.Err()
}

// PaneCommand returns the name of the foreground process in the target
// pane, e.g. "claude" or "node".
func (b *Backend) PaneCommand(ctx context.Context, target Target) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	out, err := b.run(ctx, target.Socket, "display-message", "-p", "-t", target.Session, "#{pane_current_command}")
	if err != nil {
		return "", errors.NewAgentError("display-message failed", err).WithSession(target.String())
	}
	return strings.TrimSpace(string(out)), nil
}

// sessionName strips the window and pane parts of a target, since
// has-session only accepts a session.
func sessionName(target string) string {
	if strings.HasPrefix(target, "%") {
		return target
	}
	if i := strings.IndexAny(target, ":."); i > 0 {
		return target[:i]
	}
	return target
}

// isNoSession reports a target that disappeared, including a server that
// went away with its last session.
func isNoSession(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "can't find session") ||
		strings.Contains(msg, "can't find pane") ||
		strings.Contains(msg, "can't find window") ||
		isNoServer(err)
}

func isNoServer(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no server running") ||
		strings.Contains(msg, "error connecting to") ||
		strings.Contains(msg, "No such file or directory")
}
