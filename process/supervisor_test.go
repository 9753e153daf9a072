package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-bridge/message"
)

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell commands below assume a POSIX sh")
	}
}

func waitDone(t *testing.T, s *Supervisor) {
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subprocess did not exit")
	}
}

func TestSupervisor_ExitCode(t *testing.T) {
	skipOnWindows(t)
	var testCases = []struct {
		description string
		command     string
		expect      int
	}{
		{description: "clean exit", command: "exit 0", expect: 0},
		{description: "exit code mirrored", command: "exit 3", expect: 3},
		{description: "pipeline through shell", command: "true | false", expect: 1},
		{description: "killed by signal reports zero", command: "kill -9 $$", expect: 0},
	}
	for _, testCase := range testCases {
		s := New(Config{Command: testCase.command}, zerolog.Nop())
		require.NoError(t, s.Start(context.Background()), testCase.description)
		waitDone(t, s)
		assert.Equal(t, testCase.expect, s.ExitCode(), testCase.description)
	}
}

func TestSupervisor_WriteLine(t *testing.T) {
	skipOnWindows(t)
	s := New(Config{Command: "cat"}, zerolog.Nop())
	require.NoError(t, s.Start(context.Background()))
	assert.NotZero(t, s.Pid())

	msg, err := message.Parse([]byte("{\n\"jsonrpc\":\"2.0\",\n\"id\":1,\n\"method\":\"ping\"}"))
	require.NoError(t, err)
	require.NoError(t, s.Write(msg))

	line, err := bufio.NewReader(s.Stdout()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n", line)

	require.NoError(t, s.Stop(2*time.Second))
	assert.Equal(t, 0, s.ExitCode())
	assert.True(t, errors.Is(s.Write(msg), ErrExited))
}

func TestSupervisor_StderrPassthrough(t *testing.T) {
	skipOnWindows(t)
	stderr := &bytes.Buffer{}
	s := New(Config{Command: "echo diagnostics >&2", Stderr: stderr}, zerolog.Nop())
	require.NoError(t, s.Start(context.Background()))
	waitDone(t, s)
	assert.Equal(t, "diagnostics\n", stderr.String())
}

func TestSupervisor_Env(t *testing.T) {
	skipOnWindows(t)
	s := New(Config{Command: `printf '%s\n' "$BRIDGE_TEST_VALUE"`, Env: []string{"BRIDGE_TEST_VALUE=42"}}, zerolog.Nop())
	require.NoError(t, s.Start(context.Background()))
	line, err := bufio.NewReader(s.Stdout()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "42\n", line)
	waitDone(t, s)
}

func TestSupervisor_StopKillsUnresponsive(t *testing.T) {
	skipOnWindows(t)
	s := New(Config{Command: "trap '' TERM; exec sleep 30 < /dev/null"}, zerolog.Nop())
	require.NoError(t, s.Start(context.Background()))
	started := time.Now()
	require.NoError(t, s.Stop(100*time.Millisecond))
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestSupervisor_NotStarted(t *testing.T) {
	s := New(Config{Command: "cat"}, zerolog.Nop())
	msg, err := message.Parse([]byte(`{"jsonrpc":"2.0","method":"ping"}`))
	require.NoError(t, err)
	assert.True(t, errors.Is(s.Write(msg), ErrNotStarted))
	assert.Equal(t, 0, s.Pid())
	assert.NoError(t, s.Stop(time.Millisecond))
}

func TestSupervisor_StartErrors(t *testing.T) {
	assert.Error(t, New(Config{}, zerolog.Nop()).Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, New(Config{Command: "cat"}, zerolog.Nop()).Start(ctx))

	skipOnWindows(t)
	s := New(Config{Command: "exit 0"}, zerolog.Nop())
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	waitDone(t, s)
}
