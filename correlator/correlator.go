package correlator

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/mcp-bridge/message"
	"github.com/viant/mcp-bridge/schema"
)

// DefaultTimeout is applied when Register is called with a non-positive timeout
const DefaultTimeout = 30 * time.Second

// ErrClosed is returned once the correlator loop has stopped
var ErrClosed = errors.New("correlator closed")

// Result is delivered exactly once per registered call
type Result struct {
	ID json.RawMessage
	// Response holds the subprocess response line, or the synthetic error envelope when TimedOut
	Response []byte
	TimedOut bool
}

// Sink receives the result of one call; it must have a buffer of at least one
type Sink chan *Result

// NewSink creates a sink able to hold the single result of a call
func NewSink() Sink {
	return make(Sink, 1)
}

// Observer is notified of every response matched to a call, on the loop goroutine
type Observer func(method string, response *message.Message)

type pendingCall struct {
	id           json.RawMessage
	key          string
	method       string
	registeredAt time.Time
	sink         Sink
	timer        *time.Timer
	resolved     bool
}

// Correlator matches subprocess responses to outstanding calls by id.
//
// All access to pending happens on the loop goroutine; public methods submit
// closures to it, so calls are applied in the order they are received.
type Correlator struct {
	logger    zerolog.Logger
	timeout   time.Duration
	observers []Observer

	pending  map[string]*pendingCall
	commands chan func()
	closing  chan struct{}
	done     chan struct{}
	once     sync.Once
}

// Option configures a correlator
type Option func(c *Correlator)

// WithTimeout overrides DefaultTimeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Correlator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithObserver registers an observer for matched responses
func WithObserver(observer Observer) Option {
	return func(c *Correlator) {
		c.observers = append(c.observers, observer)
	}
}

// New creates a correlator and starts its loop; Close stops it
func New(logger zerolog.Logger, options ...Option) *Correlator {
	c := &Correlator{
		logger:   logger.With().Str("component", "correlator").Logger(),
		timeout:  DefaultTimeout,
		pending:  make(map[string]*pendingCall),
		commands: make(chan func()),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	go c.run()
	return c
}

func (c *Correlator) run() {
	defer close(c.done)
	for {
		select {
		case command := <-c.commands:
			command()
		case <-c.closing:
			for key, call := range c.pending {
				delete(c.pending, key)
				c.timeoutCall(call)
			}
			return
		}
	}
}

func (c *Correlator) submit(command func()) error {
	select {
	case c.commands <- command:
		return nil
	case <-c.closing:
		return ErrClosed
	}
}

// Register records an outstanding call for request. It returns once the loop holds the
// call, so a response written to the subprocess afterwards is always matched.
// A non-positive timeout uses the correlator default.
func (c *Correlator) Register(request *message.Message, sink Sink, timeout time.Duration) error {
	if !request.HasID() {
		return errors.New("cannot register a message without id")
	}
	if timeout <= 0 {
		timeout = c.timeout
	}
	call := &pendingCall{
		id:     request.ID,
		key:    request.Key(),
		method: request.Method,
		sink:   sink,
	}
	return c.submit(func() {
		if _, ok := c.pending[call.key]; ok {
			// the earlier call keeps its own timer and resolves through it
			c.logger.Warn().RawJSON("id", call.id).Str("method", call.method).Msg("id reused while a call is outstanding")
		}
		call.registeredAt = time.Now()
		call.timer = time.AfterFunc(timeout, func() { c.expire(call) })
		c.pending[call.key] = call
	})
}

// Cancel removes the call registered for id with sink without delivering a result
func (c *Correlator) Cancel(id json.RawMessage, sink Sink) error {
	key := message.Key(id)
	return c.submit(func() {
		call, ok := c.pending[key]
		if !ok || call.sink != sink {
			return
		}
		delete(c.pending, key)
		call.resolved = true
		call.timer.Stop()
	})
}

// Dispatch routes a message parsed from subprocess output
func (c *Correlator) Dispatch(msg *message.Message) error {
	return c.submit(func() {
		c.dispatch(msg)
	})
}

func (c *Correlator) dispatch(msg *message.Message) {
	if msg.Kind != message.KindResponse {
		c.logger.Info().Str("kind", msg.Kind.String()).Str("method", msg.Method).RawJSON("message", msg.Raw).
			Msg("unhandled message from subprocess")
		return
	}
	call, ok := c.pending[msg.Key()]
	if !ok {
		c.logger.Warn().RawJSON("id", msg.ID).Msg("no pending call for response, discarding")
		return
	}
	delete(c.pending, call.key)
	if !c.resolve(call, &Result{ID: call.id, Response: msg.Raw}) {
		return
	}
	c.logger.Debug().RawJSON("id", call.id).Str("method", call.method).
		Dur("elapsed", time.Since(call.registeredAt)).Msg("call resolved")
	for _, observer := range c.observers {
		observer(call.method, msg)
	}
}

func (c *Correlator) expire(call *pendingCall) {
	err := c.submit(func() {
		if current, ok := c.pending[call.key]; ok && current == call {
			delete(c.pending, call.key)
		}
		c.timeoutCall(call)
	})
	if err != nil {
		// loop is gone; calls it did not resolve are only reachable from their timer
		<-c.done
		c.timeoutCall(call)
	}
}

func (c *Correlator) timeoutCall(call *pendingCall) {
	body, err := message.NewErrorResponse(call.id, schema.NewBridgeTimeout())
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode timeout response")
		return
	}
	if c.resolve(call, &Result{ID: call.id, Response: body, TimedOut: true}) {
		c.logger.Warn().RawJSON("id", call.id).Str("method", call.method).Msg("call timed out")
	}
}

func (c *Correlator) resolve(call *pendingCall, result *Result) bool {
	if call.resolved {
		return false
	}
	call.resolved = true
	if call.timer != nil {
		call.timer.Stop()
	}
	select {
	case call.sink <- result:
	default:
		c.logger.Error().RawJSON("id", call.id).Msg("sink full, result dropped")
	}
	return true
}

// Pending returns the number of outstanding calls
func (c *Correlator) Pending() (int, error) {
	reply := make(chan int, 1)
	if err := c.submit(func() { reply <- len(c.pending) }); err != nil {
		return 0, err
	}
	return <-reply, nil
}

// Close stops the loop; outstanding calls are resolved as timed out
func (c *Correlator) Close() error {
	c.once.Do(func() { close(c.closing) })
	<-c.done
	return nil
}
