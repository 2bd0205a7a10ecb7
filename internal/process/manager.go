// Package process runs task commands as managed child processes: each
// child is started in its own process group so a kill signal reaches the
// whole subtree, and a grace period separates an interrupt from a
// force-kill (spec §4.H.5 "Cancellation").
package process

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// ErrClosing is returned by Exec once the Manager has begun shutting down.
var ErrClosing = errors.New("process manager is closing")

// ExitError reports a child that exited with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited (%d)", e.Command, e.ExitCode)
}

// Manager tracks every child process spawned through it, so Close can stop
// them all together during shutdown.
type Manager struct {
	mu       sync.Mutex
	children map[*child]struct{}
	closing  bool
	grace    time.Duration
}

// NewManager returns a Manager that gives children grace to exit on
// interrupt before force-killing them.
func NewManager(grace time.Duration) *Manager {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return &Manager{children: map[*child]struct{}{}, grace: grace}
}

// Exec runs cmd to completion, returning *ExitError for a non-zero exit and
// ErrClosing if the manager is already shutting down. It blocks until the
// command finishes or Close forces it to stop.
func (m *Manager) Exec(cmd *exec.Cmd) error {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return ErrClosing
	}
	setpgid(cmd)
	c := &child{cmd: cmd, stopCh: make(chan struct{})}
	m.children[c] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.children, c)
		m.mu.Unlock()
	}()

	if err := cmd.Start(); err != nil {
		return err
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		return exitErrorFor(cmd, err)
	case <-c.stopped():
		select {
		case err := <-waitErr:
			return exitErrorFor(cmd, err)
		case <-time.After(m.grace):
			_ = c.killGroup(true)
			<-waitErr
			return &ExitError{Command: cmd.String(), ExitCode: -1}
		}
	}
}

func exitErrorFor(cmd *exec.Cmd, err error) error {
	if err == nil {
		return nil
	}
	code := 1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &ExitError{Command: cmd.String(), ExitCode: code}
}

// Close signals every tracked child to stop (SIGINT, then SIGKILL after the
// grace period) and refuses further Exec calls.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closing = true
	children := make([]*child, 0, len(m.children))
	for c := range m.children {
		children = append(children, c)
	}
	m.mu.Unlock()

	for _, c := range children {
		_ = c.killGroup(false)
		c.signalStop()
	}
}

type child struct {
	cmd    *exec.Cmd
	once   sync.Once
	stopCh chan struct{}
}

func (c *child) stopped() <-chan struct{} { return c.stopCh }

func (c *child) signalStop() {
	c.once.Do(func() { close(c.stopCh) })
}

// killGroup signals the child's process group (force selects SIGKILL over
// the platform's graceful-stop signal). Platform-specific in sys_*.go.
func (c *child) killGroup(force bool) error {
	if c.cmd.Process == nil {
		return nil
	}
	return killGroup(c.cmd, force)
}
