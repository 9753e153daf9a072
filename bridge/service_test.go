package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-bridge/example/mock"
	"github.com/viant/mcp-bridge/schema"
	"github.com/viant/mcp-bridge/server"
)

const helperEnv = "MCP_BRIDGE_HELPER=1"

// TestHelperProcess is not a real test: the bridge re-executes the test binary
// with helperEnv set to get a stdio MCP server subprocess.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("MCP_BRIDGE_HELPER") != "1" {
		return
	}
	err := mock.Serve(context.Background(), os.Stdin, os.Stdout)
	var exitErr *mock.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func helperCommand() string {
	return fmt.Sprintf("%q -test.run=TestHelperProcess", os.Args[0])
}

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("helper subprocess is launched through sh")
	}
}

// syncBuffer guards output written from several goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startBridge(t *testing.T, config *Config, logs io.Writer) (*Service, *httptest.Server) {
	skipOnWindows(t)
	if config.Command == "" {
		config.Command = helperCommand()
	}
	config.Env = append(config.Env, helperEnv)
	service, err := New(config, WithLogger(zerolog.New(logs)), WithStderr(io.Discard))
	require.NoError(t, err)
	require.NoError(t, service.Start(context.Background()))
	httpServer := httptest.NewServer(service.Handler())
	t.Cleanup(func() {
		httpServer.Close()
		_ = service.supervisor.Stop(time.Second)
		service.Close()
	})
	return service, httpServer
}

func postJSON(t *testing.T, URL, body string) (int, string) {
	response, err := http.Post(URL+server.DefaultPath, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return response.StatusCode, string(data)
}

func TestService_EndToEnd(t *testing.T) {
	logs := &syncBuffer{}
	service, httpServer := startBridge(t, &Config{TimeoutMs: 1000}, logs)

	status, body := postJSON(t, httpServer.URL, `{"jsonrpc":"2.0","id":0,"method":"initialize","params":{}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"name":"mock"`)
	assert.Eventually(t, func() bool {
		return service.ProtocolVersion() == schema.LatestProtocolVersion
	}, 2*time.Second, 10*time.Millisecond)

	status, body = postJSON(t, httpServer.URL, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Empty(t, body)

	status, body = postJSON(t, httpServer.URL, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":"pong"}`, body)

	status, body = postJSON(t, httpServer.URL, `{"jsonrpc":"2.0","id":7,"method":"slow_op"}`)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, `{"jsonrpc":"2.0","id":7,"error":{"code":-32603,"message":"Bridge Timeout"}}`, body)

	health := service.Health()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, service.ID(), health.BridgeID)
	assert.NotZero(t, health.Pid)
	assert.Equal(t, 0, health.Pending)

	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "subprocess initialized") &&
			strings.Contains(logs.String(), `"data":"client initialized"`)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_ConcurrentOutOfOrder(t *testing.T) {
	_, httpServer := startBridge(t, &Config{}, io.Discard)

	type outcome struct {
		status int
		body   string
	}
	results := make([]outcome, 2)
	wg := sync.WaitGroup{}
	requests := []string{
		`{"jsonrpc":"2.0","id":1,"method":"sleep","params":{"ms":200}}`,
		`{"jsonrpc":"2.0","id":2,"method":"sleep","params":{"ms":10}}`,
	}
	for i, request := range requests {
		wg.Add(1)
		go func(i int, request string) {
			defer wg.Done()
			response, err := http.Post(httpServer.URL+server.DefaultPath, "application/json", strings.NewReader(request))
			if !assert.NoError(t, err) {
				return
			}
			defer response.Body.Close()
			data, _ := io.ReadAll(response.Body)
			results[i] = outcome{status: response.StatusCode, body: string(data)}
		}(i, request)
	}
	wg.Wait()
	assert.Equal(t, outcome{http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"slept":200}}`}, results[0])
	assert.Equal(t, outcome{http.StatusOK, `{"jsonrpc":"2.0","id":2,"result":{"slept":10}}`}, results[1])
}

func TestService_HealthEndpoint(t *testing.T) {
	_, httpServer := startBridge(t, &Config{}, io.Discard)
	response, err := http.Get(httpServer.URL + server.HealthPath)
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)
	health := &server.Health{}
	require.NoError(t, json.NewDecoder(response.Body).Decode(health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, helperCommand(), health.Command)
	assert.NotEmpty(t, health.ProtocolVersion)
}

func TestService_RunMirrorsExitCode(t *testing.T) {
	skipOnWindows(t)
	var testCases = []struct {
		description string
		command     string
		expect      int
	}{
		{description: "clean exit", command: "exit 0", expect: 0},
		{description: "exit code 3", command: "exit 3", expect: 3},
		{description: "unknown command", command: "mcp-bridge-no-such-command-xyz", expect: 127},
	}
	for _, testCase := range testCases {
		service, err := New(&Config{Command: testCase.command, Addr: "127.0.0.1:0"}, WithStderr(io.Discard))
		require.NoError(t, err, testCase.description)
		code, err := service.Run(context.Background())
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, code, testCase.description)
	}
}

func TestService_RunReplyBeforeExit(t *testing.T) {
	skipOnWindows(t)
	command := `read line; printf '{"jsonrpc":"2.0","id":1,"result":"pong"}\n'; exit 3`
	for i := 0; i < 20; i++ {
		service, err := New(&Config{Command: command, Addr: "127.0.0.1:0", TimeoutMs: 10000}, WithStderr(io.Discard))
		require.NoError(t, err)
		done := make(chan int, 1)
		go func() {
			code, runErr := service.Run(context.Background())
			assert.NoError(t, runErr)
			done <- code
		}()
		require.Eventually(t, func() bool { return service.Addr() != nil }, 5*time.Second, 10*time.Millisecond)

		started := time.Now()
		status, body := postJSON(t, "http://"+service.Addr().String(), `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
		assert.Equal(t, http.StatusOK, status, "iteration %d", i)
		assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":"pong"}`, body, "iteration %d", i)
		assert.Less(t, time.Since(started), 5*time.Second)

		select {
		case code := <-done:
			assert.Equal(t, 3, code)
		case <-time.After(10 * time.Second):
			t.Fatal("bridge did not stop after subprocess exit")
		}
	}
}

func TestService_RunExitRequestedThroughHTTP(t *testing.T) {
	skipOnWindows(t)
	service, err := New(&Config{Command: helperCommand(), Env: []string{helperEnv}, Addr: "127.0.0.1:0"}, WithStderr(io.Discard))
	require.NoError(t, err)

	done := make(chan int, 1)
	go func() {
		code, runErr := service.Run(context.Background())
		assert.NoError(t, runErr)
		done <- code
	}()
	require.Eventually(t, func() bool { return service.Addr() != nil }, 5*time.Second, 10*time.Millisecond)

	URL := "http://" + service.Addr().String()
	status, body := postJSON(t, URL, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":"pong"}`, body)

	// the subprocess exits without answering; the call resolves on shutdown
	status, _ = postJSON(t, URL, `{"jsonrpc":"2.0","id":2,"method":"exit","params":{"code":3}}`)
	assert.Equal(t, http.StatusGatewayTimeout, status)

	select {
	case code := <-done:
		assert.Equal(t, 3, code)
	case <-time.After(10 * time.Second):
		t.Fatal("bridge did not stop after subprocess exit")
	}
}

func TestService_RunCancelled(t *testing.T) {
	skipOnWindows(t)
	service, err := New(&Config{Command: "cat", Addr: "127.0.0.1:0", ShutdownGraceMs: 100}, WithStderr(io.Discard))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		code, _ := service.Run(ctx)
		done <- code
	}()
	require.Eventually(t, func() bool { return service.Addr() != nil }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(10 * time.Second):
		t.Fatal("bridge did not stop after cancellation")
	}
}

func TestService_RunListenFailure(t *testing.T) {
	skipOnWindows(t)
	service, err := New(&Config{Command: "cat", Addr: "127.0.0.1:99999"}, WithStderr(io.Discard))
	require.NoError(t, err)
	code, err := service.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, code)
}

func TestNew_InvalidConfig(t *testing.T) {
	var testCases = []struct {
		description string
		config      *Config
	}{
		{description: "missing command", config: &Config{}},
		{description: "bad env", config: &Config{Command: "cat", Env: []string{"NOVALUE"}}},
		{description: "bad log level", config: &Config{Command: "cat", LogLevel: "loud"}},
		{description: "bad path", config: &Config{Command: "cat", Path: "mcp"}},
	}
	for _, testCase := range testCases {
		_, err := New(testCase.config)
		assert.Error(t, err, testCase.description)
	}
}
