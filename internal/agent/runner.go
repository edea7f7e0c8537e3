package agent

import (
	"context"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// Runner starts agent processes. Injectable so supervision can be
// tested without spawning real binaries.
type Runner interface {
	Start(ctx context.Context, binary string, env []string) (Process, error)
}

// Process is a handle on a running agent.
type Process interface {
	// Wait blocks until the process exits.
	Wait() error

	// Stop asks the process to shut down gracefully.
	Stop() error

	// PID returns the OS process id.
	PID() int
}

type execRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() Runner {
	return execRunner{}
}

func (execRunner) Start(ctx context.Context, binary string, env []string) (Process, error) {
	cmd := exec.CommandContext(ctx, binary)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// Context cancellation asks politely first; the kill follows if the
	// agent ignores it past WaitDelay.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(unix.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Stop() error {
	return p.cmd.Process.Signal(unix.SIGTERM)
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}
