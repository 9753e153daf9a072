package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/mcp-bridge/message"
)

var (
	// ErrNotStarted is returned when the subprocess has not been spawned yet
	ErrNotStarted = errors.New("subprocess not started")
	// ErrExited is returned when writing to a subprocess that already terminated
	ErrExited = errors.New("subprocess exited")
)

// Config configures a supervised subprocess
type Config struct {
	// Command is the full command line, interpreted by the platform shell
	Command string
	// Dir is an optional working directory
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the current environment
	Env []string
	// Stderr receives the subprocess standard error untouched, os.Stderr when nil
	Stderr io.Writer
}

// Supervisor owns a subprocess speaking line-delimited JSON-RPC on stdin/stdout
type Supervisor struct {
	config Config
	logger zerolog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	done     chan struct{}
	exitCode int
}

// New creates a supervisor, the process is spawned by Start
func New(config Config, logger zerolog.Logger) *Supervisor {
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	return &Supervisor{
		config: config,
		logger: logger.With().Str("component", "process").Logger(),
		done:   make(chan struct{}),
	}
}

// Start spawns the command through the shell with piped stdin/stdout
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return errors.New("subprocess already started")
	}
	if s.config.Command == "" {
		return errors.New("command was empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := shellCommand(s.config.Command)
	cmd.Dir = s.config.Dir
	if len(s.config.Env) > 0 {
		cmd.Env = append(os.Environ(), s.config.Env...)
	}
	cmd.Stderr = s.config.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	// stdout is not a StdoutPipe: Wait would close it on exit and drop unread output
	stdout, stdoutWriter, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutWriter
	if err := cmd.Start(); err != nil {
		stdoutWriter.Close()
		stdout.Close()
		stdin.Close()
		return fmt.Errorf("start subprocess %q: %w", s.config.Command, err)
	}
	stdoutWriter.Close()
	s.cmd = cmd
	s.stdin = stdin
	s.stdout = stdout
	s.logger.Info().Int("pid", cmd.Process.Pid).Str("command", s.config.Command).Msg("subprocess started")
	go s.wait()
	return nil
}

func shellCommand(command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/C", command)
	}
	return exec.Command("sh", "-c", command)
}

func (s *Supervisor) wait() {
	err := s.cmd.Wait()
	code := 0
	if state := s.cmd.ProcessState; state != nil && state.ExitCode() > 0 {
		code = state.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		s.logger.Warn().Err(err).Msg("subprocess wait failed")
	}
	s.mu.Lock()
	s.exitCode = code
	s.mu.Unlock()
	s.logger.Info().Int("code", code).Msg("subprocess exited")
	close(s.done)
}

// Write sends msg as a single newline-terminated line to the subprocess stdin
func (s *Supervisor) Write(msg *message.Message) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return ErrNotStarted
	}
	select {
	case <-s.done:
		return ErrExited
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := stdin.Write(msg.Encode()); err != nil {
		return fmt.Errorf("write to subprocess stdin: %w", err)
	}
	return nil
}

// Stdout returns the subprocess standard output
func (s *Supervisor) Stdout() io.Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stdout
}

// Pid returns the subprocess id, 0 before Start
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Done is closed once the subprocess exits
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// ExitCode returns the subprocess exit code, 0 when none was reported
func (s *Supervisor) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Stop closes stdin and waits up to grace for the subprocess to exit before killing it
func (s *Supervisor) Stop(grace time.Duration) error {
	s.mu.Lock()
	cmd := s.cmd
	stdin := s.stdin
	s.mu.Unlock()
	if cmd == nil {
		return nil
	}
	if stdin != nil {
		_ = stdin.Close()
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-s.done:
		return nil
	case <-timer.C:
	}
	s.logger.Warn().Int("pid", cmd.Process.Pid).Msg("subprocess did not exit gracefully, killing")
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill subprocess: %w", err)
	}
	<-s.done
	return nil
}
