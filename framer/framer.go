package framer

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/viant/mcp-bridge/message"
)

const readChunkSize = 32 * 1024

// Emit receives every complete message extracted from the stream
type Emit func(msg *message.Message)

// Framer splits a byte stream into newline-delimited JSON-RPC messages.
// The unterminated tail is buffered across chunks; a Framer is not safe for concurrent Feed calls.
type Framer struct {
	buffer []byte
	logger zerolog.Logger
}

// New creates a framer
func New(logger zerolog.Logger) *Framer {
	return &Framer{logger: logger.With().Str("component", "framer").Logger()}
}

// Feed appends chunk to the buffer and emits a message for each complete non-empty line
func (f *Framer) Feed(chunk []byte, emit Emit) {
	f.buffer = append(f.buffer, chunk...)
	for {
		index := bytes.IndexByte(f.buffer, '\n')
		if index == -1 {
			break
		}
		line := f.buffer[:index]
		f.buffer = f.buffer[index+1:]
		f.emitLine(line, emit)
	}
	if len(f.buffer) == 0 {
		f.buffer = nil // release the backing array once fully consumed
	}
}

func (f *Framer) emitLine(line []byte, emit Emit) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	msg, err := message.Parse(line)
	if err != nil {
		f.logger.Warn().Err(err).Str("line", string(line)).Msg("discarding unparsable line from subprocess")
		return
	}
	emit(msg)
}

// Buffered returns the number of bytes held for an unterminated line
func (f *Framer) Buffered() int {
	return len(f.buffer)
}

// Run reads r until EOF, an error or ctx cancellation, feeding every chunk.
// A non-empty unterminated tail at EOF is dropped.
func (f *Framer) Run(ctx context.Context, r io.Reader, emit Emit) error {
	chunk := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			f.Feed(chunk[:n], emit)
		}
		if err == nil {
			continue
		}
		if tail := bytes.TrimSpace(f.buffer); len(tail) > 0 {
			f.logger.Warn().Str("tail", string(tail)).Msg("stream ended with an unterminated line")
		}
		f.buffer = nil
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}
