package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ResponseEnv carries the latest response body to the command, so scripts
// can read it without it being spliced into the command line.
const ResponseEnv = "WATCHER_RESPONSE"

// MaxResponseEnvBytes caps the exported body. Linux refuses a single
// environment string over 128 KiB, so larger bodies are not exported.
const MaxResponseEnvBytes = 64 << 10

// ResponseEnvEntry returns the ResponseEnv entry for body. ok is false when
// the body cannot be passed through the environment: it is too large or it
// contains a NUL byte.
func ResponseEnvEntry(body string) (entry string, ok bool) {
	if len(body) > MaxResponseEnvBytes || strings.IndexByte(body, 0) >= 0 {
		return "", false
	}
	return ResponseEnv + "=" + body, true
}

// Options configure one command start.
type Options struct {
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env is appended to the inherited environment (KEY=VALUE format).
	Env []string
	// Stdout and Stderr default to the parent's streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Handle is a started command.
type Handle interface {
	// Wait blocks until the command exits. A non-zero exit is reported through
	// the exit code, not the error; the error is set only when waiting itself
	// failed.
	Wait() (int, error)
	Pid() int
}

// LocalExecutor runs commands through the platform shell.
type LocalExecutor struct {
	shell []string
}

// NewLocalExecutor uses "sh -c" (or "cmd /C" on Windows).
func NewLocalExecutor() *LocalExecutor {
	if runtime.GOOS == "windows" {
		return &LocalExecutor{shell: []string{"cmd", "/C"}}
	}
	return &LocalExecutor{shell: []string{"sh", "-c"}}
}

// Start launches command. The process is killed when ctx is cancelled.
func (e *LocalExecutor) Start(ctx context.Context, command string, opts Options) (Handle, error) {
	if command == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}

	args := append(append([]string{}, e.shell[1:]...), command)
	cmd := exec.CommandContext(ctx, e.shell[0], args...)

	if opts.Dir != "" {
		if info, err := os.Stat(opts.Dir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("working directory does not exist: %s", opts.Dir)
		}
		cmd.Dir = opts.Dir
	}

	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}
	return &process{cmd: cmd}, nil
}

type process struct {
	cmd *exec.Cmd
}

func (p *process) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}
