package mock

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-bridge/message"
	"github.com/viant/mcp-bridge/schema"
	protoschema "github.com/viant/mcp-protocol/schema"
)

const (
	// Name is reported in the initialize result
	Name = "mock"
	// Version is reported in the initialize result
	Version = "0.1"

	// MethodSleep replies after params.ms milliseconds
	MethodSleep = "sleep"
	// MethodSlow is never answered
	MethodSlow = "slow_op"
	// MethodExit stops serving with params.code
	MethodExit = "exit"
)

// ExitError is returned by Serve when a client asked the server to exit
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit requested with code %d", e.Code)
}

type response struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *jsonrpc.Error  `json:"error,omitempty"`
}

type notification struct {
	Jsonrpc string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// EchoCommand represents echo tool arguments
type EchoCommand struct {
	Text string `json:"text"`
}

type server struct {
	mu      sync.Mutex
	out     io.Writer
	pending sync.WaitGroup
}

// Serve answers line-delimited JSON-RPC requests read from in, writing to out, until in is exhausted,
// ctx is done or an exit request arrives
func Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s := &server{out: out}
	defer s.pending.Wait()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := message.Parse(line)
		if err != nil {
			continue
		}
		if err := s.handle(msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *server) handle(msg *message.Message) error {
	switch msg.Kind {
	case message.KindNotification:
		if schema.IsHandshakeComplete(msg.Method) {
			loggerName := Name
			return s.write(&notification{
				Jsonrpc: jsonrpc.Version,
				Method:  schema.MethodNotificationMessage,
				Params: &protoschema.LoggingMessageNotificationParams{
					Level:  protoschema.Info,
					Logger: &loggerName,
					Data:   "client initialized",
				},
			})
		}
		return nil
	case message.KindResponse:
		return nil
	}
	switch msg.Method {
	case schema.MethodInitialize:
		return s.reply(msg.ID, &protoschema.InitializeResult{
			ProtocolVersion: protoschema.LatestProtocolVersion,
			ServerInfo:      protoschema.Implementation{Name: Name, Version: Version},
			Capabilities:    protoschema.ServerCapabilities{},
		})
	case schema.MethodPing:
		return s.reply(msg.ID, "pong")
	case schema.MethodToolsList:
		result, rpcErr := listTools()
		if rpcErr != nil {
			return s.fail(msg.ID, rpcErr)
		}
		return s.reply(msg.ID, result)
	case schema.MethodToolsCall:
		result, rpcErr := callTool(msg.Params)
		if rpcErr != nil {
			return s.fail(msg.ID, rpcErr)
		}
		return s.reply(msg.ID, result)
	case MethodSleep:
		var params struct {
			Ms int `json:"ms"`
		}
		if err := json.Unmarshal(msg.Params, &params); err != nil || params.Ms < 0 {
			return s.fail(msg.ID, jsonrpc.NewInvalidParamsError("sleep expects {\"ms\": <non-negative int>}", nil))
		}
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			time.Sleep(time.Duration(params.Ms) * time.Millisecond)
			_ = s.reply(msg.ID, map[string]int{"slept": params.Ms})
		}()
		return nil
	case MethodSlow:
		return nil
	case MethodExit:
		var params struct {
			Code int `json:"code"`
		}
		_ = json.Unmarshal(msg.Params, &params)
		return &ExitError{Code: params.Code}
	}
	return s.fail(msg.ID, jsonrpc.NewMethodNotFound(fmt.Sprintf("method: %v not found", msg.Method), nil))
}

func listTools() (*protoschema.ListToolsResult, *jsonrpc.Error) {
	var echoSchema protoschema.ToolInputSchema
	if err := echoSchema.Load(&EchoCommand{}); err != nil {
		return nil, jsonrpc.NewInternalError(fmt.Sprintf("failed to create schema: %v", err), nil)
	}
	description := "Echo the text argument"
	return &protoschema.ListToolsResult{
		Tools: []protoschema.Tool{
			{Name: "echo", Description: &description, InputSchema: echoSchema},
		},
	}, nil
}

func callTool(params json.RawMessage) (*protoschema.CallToolResult, *jsonrpc.Error) {
	request := protoschema.CallToolRequestParams{}
	if err := json.Unmarshal(params, &request); err != nil {
		return nil, jsonrpc.NewInvalidParamsError(fmt.Sprintf("failed to parse: %v", err), nil)
	}
	if request.Name != "echo" {
		return nil, jsonrpc.NewMethodNotFound(fmt.Sprintf("tool %v not found", request.Name), nil)
	}
	data, err := json.Marshal(request.Arguments)
	if err != nil {
		return nil, jsonrpc.NewInternalError(fmt.Sprintf("failed to marshal arguments: %v", err), nil)
	}
	var command EchoCommand
	if err := json.Unmarshal(data, &command); err != nil {
		return nil, jsonrpc.NewInternalError(fmt.Sprintf("invalid arguments: %v", err), nil)
	}
	return &protoschema.CallToolResult{
		Content: []protoschema.CallToolResultContentElem{
			protoschema.TextContent{Type: "text", Text: command.Text},
		},
	}, nil
}

func (s *server) reply(id json.RawMessage, result interface{}) error {
	return s.write(&response{Jsonrpc: jsonrpc.Version, ID: id, Result: result})
}

func (s *server) fail(id json.RawMessage, rpcErr *jsonrpc.Error) error {
	return s.write(&response{Jsonrpc: jsonrpc.Version, ID: id, Error: rpcErr})
}

func (s *server) write(value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.out.Write(append(data, '\n'))
	return err
}
